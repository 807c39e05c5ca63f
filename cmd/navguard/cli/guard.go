package cli

import (
	"fmt"

	"github.com/tkingovr/navguard/internal/config"
	"github.com/tkingovr/navguard/internal/guard"
	"github.com/tkingovr/navguard/internal/policy"
	"github.com/tkingovr/navguard/internal/storage"
)

// guardOptions turns the file config into guard options backed by the
// persisted token store and, when configured, the Rego policy.
func guardOptions(cfg *config.Config) (guard.Options, error) {
	opts := cfg.GuardOptions()
	opts.Logger = logger
	opts.ErrorHandler = func(err error) {
		logger.Error("route guard error", "error", err)
	}

	tokens, err := storage.NewFileStore(cfg.TokenStorePath)
	if err != nil {
		return opts, fmt.Errorf("opening token store: %w", err)
	}
	opts.Tokens = tokens

	if cfg.PolicyPath != "" {
		engine, err := policy.NewOPAEngine(cfg.PolicyPath)
		if err != nil {
			return opts, fmt.Errorf("creating policy engine: %w", err)
		}
		opts.Policy = engine
	}
	return opts, nil
}

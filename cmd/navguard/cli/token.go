package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tkingovr/navguard/internal/storage"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the persisted login token used by check",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set VALUE",
	Short: "Store a login token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTokenStore(func(s *storage.FileStore, key string) error {
			return s.Set(key, args[0])
		})
	},
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored login token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTokenStore(func(s *storage.FileStore, key string) error {
			return s.Delete(key)
		})
	},
}

func init() {
	tokenCmd.AddCommand(tokenSetCmd, tokenClearCmd)
	rootCmd.AddCommand(tokenCmd)
}

func withTokenStore(fn func(*storage.FileStore, string) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := storage.NewFileStore(cfg.TokenStorePath)
	if err != nil {
		return fmt.Errorf("opening token store: %w", err)
	}
	if err := fn(s, cfg.TokenKey); err != nil {
		return fmt.Errorf("updating token store: %w", err)
	}
	logger.Info("token store updated", "path", cfg.TokenStorePath, "key", cfg.TokenKey)
	return nil
}

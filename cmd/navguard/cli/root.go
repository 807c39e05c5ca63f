package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/tkingovr/navguard/internal/config"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "navguard",
	Short: "Login guard for page navigation",
	Long: `navguard sends visitors who are not logged in to a login page,
unless the page they asked for is on a whitelist. It runs as a reverse
proxy in front of a web app, and can dry-run decisions from the command line.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(os.Stderr, logFormat, flagLevel(slog.LevelInfo))
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "guard config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: json or text (default from config, else json)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// flagLevel returns debug under --verbose, otherwise fallback.
func flagLevel(fallback slog.Level) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return fallback
}

func newLogger(w io.Writer, format string, level slog.Level) (*slog.Logger, error) {
	switch format {
	case "", "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), nil
	case "text":
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
		})), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
}

// loadConfig reads --config, or returns defaults when no file was given.
// Invalid values are logged and defaulted.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.Load(cfgFile, func(err error) {
		logger.Warn("invalid config value", "error", err)
	})
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	// The file may ask for a different log setup than the flags did.
	l, err := newLogger(os.Stderr, pick(logFormat, cfg.LogFormat), flagLevel(cfg.Level()))
	if err != nil {
		return nil, err
	}
	logger = l
	slog.SetDefault(logger)
	return cfg, nil
}

func pick(flag, file string) string {
	if flag != "" {
		return flag
	}
	return file
}

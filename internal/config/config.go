package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tkingovr/navguard/internal/guard"
	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration for navguard.
type Config struct {
	Path string

	// WhiteList is nil when the file leaves it unset.
	WhiteList  []string
	LoginPath  string
	TokenKey   string
	PolicyPath string

	LogDir         string
	DashboardAddr  string
	TokenStorePath string
	LogFormat      string
	LogLevel       string
}

// file mirrors the YAML layout. Fields stay untyped so that a wrong type
// in one key can be reported and defaulted without rejecting the file.
type file struct {
	Version  int            `yaml:"version"`
	Guard    map[string]any `yaml:"guard"`
	Settings map[string]any `yaml:"settings"`
}

// Load reads a YAML config file and produces a runtime Config. Invalid
// values are passed to report and replaced by defaults.
func Load(path string, report func(error)) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := LoadBytes(data, report)
	if err != nil {
		return nil, err
	}
	cfg.Path = path
	if cfg.PolicyPath != "" && !filepath.IsAbs(cfg.PolicyPath) {
		cfg.PolicyPath = filepath.Join(filepath.Dir(path), cfg.PolicyPath)
	}
	return cfg, nil
}

// LoadBytes parses YAML data and produces a runtime Config.
func LoadBytes(data []byte, report func(error)) (*Config, error) {
	if report == nil {
		report = func(err error) {
			slog.Default().Warn("invalid config value", "error", err)
		}
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if f.Version != 1 {
		return nil, fmt.Errorf("unsupported config version: %d (expected 1)", f.Version)
	}

	cfg := DefaultConfig()

	if v, ok := f.Guard["white_list"]; ok && v != nil {
		cfg.WhiteList = stringList("guard.white_list", v, report)
	}
	cfg.LoginPath = stringValue("guard.login_path", f.Guard, cfg.LoginPath, report)
	cfg.TokenKey = stringValue("guard.token_key", f.Guard, cfg.TokenKey, report)
	cfg.PolicyPath = stringValue("guard.policy", f.Guard, "", report)

	cfg.LogDir = expandHome(stringValue("settings.log_dir", f.Settings, DefaultLogDir(), report))
	cfg.DashboardAddr = stringValue("settings.dashboard_addr", f.Settings, cfg.DashboardAddr, report)
	cfg.TokenStorePath = expandHome(stringValue("settings.token_store", f.Settings, DefaultTokenStorePath(), report))
	cfg.LogLevel = stringValue("settings.log_level", f.Settings, cfg.LogLevel, report)
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		report(fmt.Errorf("settings.log_level: %w", err))
		cfg.LogLevel = DefaultLogLevel
	}
	cfg.LogFormat = stringValue("settings.log_format", f.Settings, cfg.LogFormat, report)
	switch cfg.LogFormat {
	case "json", "text":
	default:
		report(fmt.Errorf("settings.log_format: unsupported format %q", cfg.LogFormat))
		cfg.LogFormat = DefaultLogFormat
	}

	return cfg, nil
}

// DefaultConfig returns a config with defaults for when no config file is given.
func DefaultConfig() *Config {
	return &Config{
		LoginPath:      guard.DefaultLoginPath,
		TokenKey:       guard.DefaultTokenKey,
		LogDir:         expandHome(DefaultLogDir()),
		DashboardAddr:  DefaultDashboardAddr,
		TokenStorePath: expandHome(DefaultTokenStorePath()),
		LogFormat:      DefaultLogFormat,
		LogLevel:       DefaultLogLevel,
	}
}

// Level returns the configured log level, or info if it is invalid.
func (c *Config) Level() slog.Level {
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// parseLevel accepts the slog level names (debug, info, warn, error).
func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unsupported level %q", s)
	}
	return lvl, nil
}

// GuardOptions converts the file settings into guard options. Handlers,
// policy engine and stores are left for the caller to fill in.
func (c *Config) GuardOptions() guard.Options {
	opts := guard.Options{
		LoginPath: c.LoginPath,
		TokenKey:  c.TokenKey,
	}
	if c.WhiteList != nil {
		opts.WhiteList = append([]string{}, c.WhiteList...)
	}
	return opts
}

// MarshalYAML serializes the effective configuration for display/export.
func (c *Config) MarshalYAML() ([]byte, error) {
	wl := c.WhiteList
	if wl == nil {
		wl = guard.DefaultWhiteList
	}
	return yaml.Marshal(map[string]any{
		"version": 1,
		"guard": map[string]any{
			"white_list": wl,
			"login_path": c.LoginPath,
			"token_key":  c.TokenKey,
			"policy":     c.PolicyPath,
		},
		"settings": map[string]any{
			"log_dir":        c.LogDir,
			"dashboard_addr": c.DashboardAddr,
			"token_store":    c.TokenStorePath,
			"log_format":     c.LogFormat,
			"log_level":      c.LogLevel,
		},
	})
}

var errNotString = errors.New("must be a string")

// stringList converts a YAML sequence into patterns. A value that is not
// a sequence yields an empty whitelist; non-string entries are dropped.
func stringList(key string, v any, report func(error)) []string {
	items, ok := v.([]any)
	if !ok {
		report(fmt.Errorf("%s: must be a list of strings, got %T", key, v))
		return []string{}
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			report(fmt.Errorf("%s[%d]: %w, got %T", key, i, errNotString, item))
			continue
		}
		out = append(out, s)
	}
	return out
}

func stringValue(key string, section map[string]any, def string, report func(error)) string {
	name := key[strings.LastIndexByte(key, '.')+1:]
	v, ok := section[name]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		report(fmt.Errorf("%s: %w, got %T", key, errNotString, v))
		return def
	}
	if s == "" {
		return def
	}
	return s
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

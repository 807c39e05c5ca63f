package config

const (
	DefaultDashboardAddr = "127.0.0.1:8080"
	DefaultLogFormat     = "json"
	DefaultLogLevel      = "info"
)

// DefaultLogDir returns the default audit log directory path.
func DefaultLogDir() string {
	return "~/.navguard/logs"
}

// DefaultTokenStorePath returns the default persisted token store path.
func DefaultTokenStorePath() string {
	return "~/.navguard/storage.json"
}

// Package policy evaluates whitelist rules written in Rego.
package policy

import "context"

// Engine decides whether a path bypasses the login check.
type Engine interface {
	// Whitelisted reports whether path may be visited without logging in.
	Whitelisted(ctx context.Context, path string) (bool, error)

	// Reload reloads policies from the source (file, remote, etc.).
	Reload(ctx context.Context) error
}

// Package guard decides whether a navigation may proceed and wires that
// decision into a router.
package guard

import (
	"context"
	"errors"

	"github.com/tkingovr/navguard/api"
	"github.com/tkingovr/navguard/internal/router"
)

const (
	// GlobalProperty is the app global the installed guard is exposed as.
	GlobalProperty = "$routerGuard"

	// ProvideKey is the key Use looks the guard up by.
	ProvideKey = "routerGuard"
)

// ErrNotInstalled is returned by Use when Install was never called on the app.
var ErrNotInstalled = errors.New("navguard: route guard is not installed; call guard.Install first")

// Recorder persists decisions. audit.Store satisfies it.
type Recorder interface {
	Write(ctx context.Context, record *api.AuditRecord) error
}

// Guard gives read access to the configuration and runs checks.
type Guard struct {
	cfg *Config
}

// New builds a guard from opts without registering it anywhere.
func New(opts Options) *Guard {
	return &Guard{cfg: NewConfig(opts)}
}

// Config returns the guard configuration.
func (g *Guard) Config() *Config { return g.cfg }

// Check reports whether a navigation to url may proceed. It calls the
// login handler when it may not.
func (g *Guard) Check(url string) bool {
	return Decide(url, g.cfg).Allowed()
}

// Decide runs a full decision for url.
func (g *Guard) Decide(ctx context.Context, url string) Result {
	return DecideContext(ctx, url, g.cfg)
}

// Install builds a guard from opts and registers it on app: an
// interceptor for every navigation action, the GlobalProperty global, and
// a provided value for Use. The default login handler navigates through
// app.Router unless opts.Navigator is set.
func Install(app *router.App, opts Options) *Guard {
	if opts.Navigator == nil {
		opts.Navigator = app.Router
	}
	g := New(opts)

	app.SetGlobal(GlobalProperty, g)
	app.Provide(ProvideKey, g)

	for _, action := range api.InterceptedActions {
		app.Router.AddInterceptor(action, router.Interceptor{
			Invoke: func(ctx context.Context, url string) bool {
				res := DecideContext(ctx, url, g.cfg)
				g.record(action, res)
				return res.Allowed()
			},
		})
	}

	g.cfg.logger.Info("route guard enabled",
		"version", Version,
		"whitelist", len(g.cfg.whiteList),
		"login_path", g.cfg.loginPath,
	)
	return g
}

// Use returns the guard installed on app.
func Use(app *router.App) (*Guard, error) {
	v, ok := app.Inject(ProvideKey)
	if !ok {
		return nil, ErrNotInstalled
	}
	g, ok := v.(*Guard)
	if !ok || g == nil {
		return nil, ErrNotInstalled
	}
	return g, nil
}

// MustUse is like Use but panics if the guard is not installed.
func MustUse(app *router.App) *Guard {
	g, err := Use(app)
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Guard) record(action api.Action, res Result) {
	logger := g.cfg.logger
	logger.Debug("navigation intercepted",
		"action", action,
		"url", res.URL,
		"outcome", res.Outcome,
		"reason", res.Reason,
	)

	if g.cfg.recorder == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("audit recorder panicked", "panic", r)
		}
	}()
	if err := g.cfg.recorder.Write(context.Background(), res.ToAuditRecord(action)); err != nil {
		logger.Warn("writing audit record", "error", err)
	}
}

// MultiRecorder fans a record out to every recorder, returning the first
// error.
type MultiRecorder []Recorder

func (m MultiRecorder) Write(ctx context.Context, record *api.AuditRecord) error {
	var first error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Write(ctx, record); err != nil && first == nil {
			first = err
		}
	}
	return first
}

package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/tkingovr/navguard/internal/match"
	"github.com/tkingovr/navguard/internal/policy"
	"github.com/tkingovr/navguard/internal/storage"
)

// Navigator starts a navigation. *router.Router satisfies it. The context
// carries the navigation the login redirect is nested in.
type Navigator interface {
	NavigateToContext(ctx context.Context, url string) error
}

// Options configures a guard. Every field is optional; zero values take
// the defaults documented on each field.
type Options struct {
	// WhiteList holds patterns that bypass the login check. A nil slice
	// selects DefaultWhiteList; a non-nil empty slice whitelists nothing.
	WhiteList []string

	// LoginPath is the page unauthenticated users are sent to.
	LoginPath string

	// CheckLogin reports whether the user is logged in. Defaults to a
	// non-empty TokenKey entry in Tokens.
	CheckLogin func() bool

	// LoginHandler is called with the blocked URL. Defaults to navigating
	// to LoginPath with the URL as an escaped redirect parameter.
	LoginHandler func(to string)

	// ErrorHandler receives configuration and decision errors. Defaults to
	// logging them.
	ErrorHandler func(error)

	// Policy is consulted when no WhiteList pattern matches.
	Policy policy.Engine

	// Tokens backs the default CheckLogin. Defaults to an empty
	// in-memory store.
	Tokens storage.TokenStore

	// TokenKey is the entry the default CheckLogin looks up.
	TokenKey string

	// Navigator is used by the default LoginHandler.
	Navigator Navigator

	// Recorder receives a record of every intercepted navigation.
	Recorder Recorder

	Logger *slog.Logger
}

// Config is the merged guard configuration. It is read-only once built;
// all handlers are non-nil.
type Config struct {
	whiteList    []string
	loginPath    string
	tokenKey     string
	checkLogin   func() bool
	loginHandler func(ctx context.Context, to string)
	errorHandler func(error)

	policy    policy.Engine
	tokens    storage.TokenStore
	navigator Navigator
	recorder  Recorder
	matcher   *match.Evaluator
	logger    *slog.Logger
}

// NewConfig merges opts over the defaults.
func NewConfig(opts Options) *Config {
	c := &Config{
		whiteList:    opts.WhiteList,
		loginPath:    opts.LoginPath,
		tokenKey:     opts.TokenKey,
		checkLogin:   opts.CheckLogin,
		errorHandler: opts.ErrorHandler,
		policy:       opts.Policy,
		tokens:       opts.Tokens,
		navigator:    opts.Navigator,
		recorder:     opts.Recorder,
		logger:       opts.Logger,
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.whiteList == nil {
		c.whiteList = append([]string(nil), DefaultWhiteList...)
	} else {
		c.whiteList = append([]string{}, c.whiteList...)
	}
	if c.loginPath == "" {
		c.loginPath = DefaultLoginPath
	}
	if c.tokenKey == "" {
		c.tokenKey = DefaultTokenKey
	}
	if c.tokens == nil {
		c.tokens = storage.NewMemoryStore()
	}
	if c.errorHandler == nil {
		c.errorHandler = c.logError
	}
	if c.checkLogin == nil {
		c.checkLogin = c.tokenLoggedIn
	}
	c.loginHandler = contextFree(opts.LoginHandler)
	if c.loginHandler == nil {
		c.loginHandler = c.navigateToLogin
	}
	c.matcher = match.NewEvaluator(c.matchFailed)

	return c
}

// WhiteList returns a copy of the whitelist patterns.
func (c *Config) WhiteList() []string {
	return append([]string{}, c.whiteList...)
}

// LoginPath returns the login page path.
func (c *Config) LoginPath() string { return c.loginPath }

// TokenKey returns the storage key of the login token.
func (c *Config) TokenKey() string { return c.tokenKey }

// HasPolicy reports whether a Rego policy supplements the whitelist.
func (c *Config) HasPolicy() bool { return c.policy != nil }

// Logger returns the guard's logger.
func (c *Config) Logger() *slog.Logger { return c.logger }

// LoginURL returns the login page URL carrying to as the redirect target.
func (c *Config) LoginURL(to string) string {
	return c.loginPath + "?redirect=" + url.QueryEscape(to)
}

// WithHandlers returns a copy of c whose login check and login handler
// are replaced by the non-nil arguments. The proxy uses it to bind both
// to a single request.
func (c *Config) WithHandlers(checkLogin func() bool, loginHandler func(to string)) *Config {
	cp := *c
	if checkLogin != nil {
		cp.checkLogin = checkLogin
	}
	if loginHandler != nil {
		cp.loginHandler = contextFree(loginHandler)
	}
	return &cp
}

func contextFree(fn func(to string)) func(context.Context, string) {
	if fn == nil {
		return nil
	}
	return func(_ context.Context, to string) { fn(to) }
}

// whitelisted returns the first matching pattern, falling back to the
// policy engine. A policy error counts as "not whitelisted".
func (c *Config) whitelisted(ctx context.Context, path string) (string, bool) {
	if pattern, ok := c.matcher.Find(path, c.whiteList); ok {
		return pattern, true
	}
	if c.policy == nil {
		return "", false
	}
	if c.policyWhitelisted(ctx, path) {
		return PolicyPattern, true
	}
	return "", false
}

// policyWhitelisted asks the policy engine. Errors and panics are reported
// and count as "not whitelisted".
func (c *Config) policyWhitelisted(ctx context.Context, path string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			c.reportError(fmt.Errorf("policy evaluation for %q panicked: %v", path, r))
		}
	}()

	ok, err := c.policy.Whitelisted(ctx, path)
	if err != nil {
		c.reportError(fmt.Errorf("policy evaluation for %q: %w", path, err))
		return false
	}
	return ok
}

func (c *Config) matchFailed(err error) {
	c.reportError(fmt.Errorf("whitelist evaluation: %w", err))
}

// reportError passes err to the error handler. A panicking handler is
// logged instead so nothing escapes to the caller.
func (c *Config) reportError(err error) {
	if c == nil || c.errorHandler == nil {
		slog.Default().Error("route guard error", "error", err)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("error handler panicked", "error", err, "panic", r)
		}
	}()
	c.errorHandler(err)
}

func (c *Config) logError(err error) {
	c.logger.Error("route guard error", "error", err)
}

func (c *Config) tokenLoggedIn() bool {
	v, err := c.tokens.Get(c.tokenKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.reportError(fmt.Errorf("reading login token: %w", err))
		}
		return false
	}
	return v != ""
}

func (c *Config) navigateToLogin(ctx context.Context, to string) {
	target := c.LoginURL(to)
	if c.navigator == nil {
		c.logger.Warn("no navigator for login redirect", "url", target)
		return
	}
	if err := c.navigator.NavigateToContext(ctx, target); err != nil {
		c.reportError(fmt.Errorf("navigating to login page: %w", err))
	}
}

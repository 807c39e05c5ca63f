package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/tkingovr/navguard/api"
	"github.com/tkingovr/navguard/internal/guard"
)

// Proxy is an HTTP reverse proxy that sends unauthenticated visitors to
// the login page unless the requested path is whitelisted.
type Proxy struct {
	target       *url.URL
	reverseProxy *httputil.ReverseProxy
	cfg          *guard.Config
	recorder     guard.Recorder
	loginCheck   func(*http.Request) bool
	logger       *slog.Logger
}

// Option customizes a Proxy.
type Option func(*Proxy)

// WithLoginCheck replaces the cookie/bearer login check.
func WithLoginCheck(fn func(*http.Request) bool) Option {
	return func(p *Proxy) {
		if fn != nil {
			p.loginCheck = fn
		}
	}
}

// NewProxy creates a guarding proxy in front of target. recorder may be nil.
func NewProxy(target string, cfg *guard.Config, recorder guard.Recorder, logger *slog.Logger, opts ...Option) (*Proxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid target URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid target URL %q: scheme and host are required", target)
	}

	p := &Proxy{
		target:   u,
		cfg:      cfg,
		recorder: recorder,
		logger:   logger,
	}
	p.loginCheck = func(r *http.Request) bool { return loggedIn(r, cfg.TokenKey()) }
	for _, opt := range opts {
		opt(p)
	}

	rp := httputil.NewSingleHostReverseProxy(u)
	rp.ErrorHandler = p.errorHandler
	p.reverseProxy = rp

	return p, nil
}

// ServeHTTP decides on the request URI and either proxies the request or
// answers with a login redirect.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var redirected bool
	reqCfg := p.cfg.WithHandlers(
		func() bool { return p.loginCheck(r) },
		func(to string) {
			p.denyResponse(w, r, to)
			redirected = true
		},
	)

	res := guard.DecideContext(r.Context(), navigationTarget(r.URL), reqCfg)
	p.record(r.Context(), res)

	switch res.Outcome {
	case api.OutcomeBlocked:
		p.logger.Info("request blocked", "path", res.Path, "method", r.Method)
		if !redirected {
			http.Error(w, "login required", http.StatusUnauthorized)
		}
		return
	case api.OutcomeFailedOpen:
		if redirected {
			// The login handler already answered before failing.
			return
		}
		p.logger.Warn("guard failed open", "path", res.Path, "error", res.Err)
	}

	p.reverseProxy.ServeHTTP(w, r)
}

// navigationTarget is the decoded request path plus the raw query, so
// whitelist patterns are written the way the path reads.
func navigationTarget(u *url.URL) string {
	if u.RawQuery == "" {
		return u.Path
	}
	return u.Path + "?" + u.RawQuery
}

// denyResponse redirects page loads to the login page. Other methods get
// a JSON 401 carrying the login URL, since a redirect would replay them.
func (p *Proxy) denyResponse(w http.ResponseWriter, r *http.Request, to string) {
	loginURL := p.cfg.LoginURL(to)
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		http.Redirect(w, r, loginURL, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": "login required",
		"login": loginURL,
	})
}

func (p *Proxy) record(ctx context.Context, res guard.Result) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Write(ctx, res.ToAuditRecord(api.ActionRequest)); err != nil {
		p.logger.Warn("writing audit record", "error", err)
	}
}

func (p *Proxy) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	p.logger.Error("proxy error", "error", err, "url", r.URL.String())
	http.Error(w, "proxy error: "+err.Error(), http.StatusBadGateway)
}

// loggedIn reports whether the request carries a non-empty token cookie
// or bearer credential.
func loggedIn(r *http.Request, tokenKey string) bool {
	if c, err := r.Cookie(tokenKey); err == nil && c.Value != "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	return ok && strings.TrimSpace(token) != ""
}

// Handler returns an http.Handler for use with http.Server.
func (p *Proxy) Handler() http.Handler {
	return p
}

// ListenAndServe starts the HTTP proxy server.
func (p *Proxy) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: p,
	}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	p.logger.Info("starting guard proxy",
		"listen", addr,
		"target", p.target.String(),
		"login_path", p.cfg.LoginPath(),
	)

	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

package guard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tkingovr/navguard/api"
)

// Result is the outcome of one interception decision.
type Result struct {
	Outcome api.Outcome
	Reason  api.Reason

	// URL is the raw navigation target; Path is URL without its query.
	URL  string
	Path string

	// Pattern is the whitelist entry that matched, if any.
	Pattern string

	// Err is set when the decision failed open.
	Err error

	Duration time.Duration
}

// Allowed reports whether the navigation may proceed. Failed decisions
// are allowed.
func (r Result) Allowed() bool {
	return r.Outcome != api.OutcomeBlocked
}

// ToAuditRecord converts the result into an audit record for action.
func (r Result) ToAuditRecord(action api.Action) *api.AuditRecord {
	rec := &api.AuditRecord{
		Timestamp: time.Now(),
		Action:    action,
		URL:       r.URL,
		Path:      r.Path,
		Outcome:   r.Outcome,
		Reason:    r.Reason,
		Pattern:   r.Pattern,
		Duration:  r.Duration,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}

// ToCheckResponse converts the result into the dry-run API shape.
func (r Result) ToCheckResponse() api.CheckResponse {
	resp := api.CheckResponse{
		Allowed: r.Allowed(),
		Outcome: r.Outcome,
		Reason:  r.Reason,
		Path:    r.Path,
		Pattern: r.Pattern,
	}
	if r.Err != nil {
		resp.Error = r.Err.Error()
	}
	return resp
}

// Decide evaluates a navigation to rawURL.
//
// Only the part of rawURL before the first "?" is matched. A whitelisted
// path or a logged-in user is allowed. Otherwise the login handler is
// called with rawURL and the navigation is blocked. A panic anywhere in
// the decision is reported to the error handler and the navigation is
// allowed.
func Decide(rawURL string, cfg *Config) Result {
	return DecideContext(context.Background(), rawURL, cfg)
}

// DecideContext is Decide with a context for the policy engine.
func DecideContext(ctx context.Context, rawURL string, cfg *Config) (res Result) {
	start := time.Now()
	res.URL = rawURL

	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%v", r)
			}
			err = fmt.Errorf("deciding %q: %w", rawURL, err)
			res.Outcome = api.OutcomeFailedOpen
			res.Reason = api.ReasonError
			res.Err = err
			cfg.reportError(err)
		}
		res.Duration = time.Since(start)
	}()

	res.Path, _, _ = strings.Cut(rawURL, "?")

	if pattern, ok := cfg.whitelisted(ctx, res.Path); ok {
		res.Outcome = api.OutcomeAllowed
		res.Reason = api.ReasonWhitelisted
		res.Pattern = pattern
		return res
	}

	if cfg.checkLogin() {
		res.Outcome = api.OutcomeAllowed
		res.Reason = api.ReasonAuthenticated
		return res
	}

	cfg.loginHandler(ctx, rawURL)
	res.Outcome = api.OutcomeBlocked
	res.Reason = api.ReasonLoginRequired
	return res
}

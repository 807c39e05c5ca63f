package api

import "time"

// Outcome is the result of a single interception decision.
type Outcome string

const (
	OutcomeAllowed    Outcome = "allowed"
	OutcomeBlocked    Outcome = "blocked"
	OutcomeFailedOpen Outcome = "failed_open" // internal error; navigation allowed
)

// Reason explains why a decision produced its outcome.
type Reason string

const (
	ReasonWhitelisted   Reason = "whitelisted"
	ReasonAuthenticated Reason = "authenticated"
	ReasonLoginRequired Reason = "login_required"
	ReasonError         Reason = "error"
)

// Action is a navigation action that the guard intercepts.
type Action string

const (
	ActionNavigateTo Action = "navigateTo"
	ActionRedirectTo Action = "redirectTo"
	ActionReLaunch   Action = "reLaunch"
	ActionSwitchTab  Action = "switchTab"

	// ActionRequest marks a decision made for an HTTP request by the proxy.
	ActionRequest Action = "request"
	// ActionCheck marks a dry-run decision (CLI check, dashboard API).
	ActionCheck Action = "check"
)

// InterceptedActions lists the navigation actions the guard registers on.
var InterceptedActions = []Action{
	ActionNavigateTo,
	ActionRedirectTo,
	ActionReLaunch,
	ActionSwitchTab,
}

// AuditRecord represents a single audited navigation decision.
type AuditRecord struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Action    Action        `json:"action"`
	URL       string        `json:"url"`
	Path      string        `json:"path"`
	Outcome   Outcome       `json:"outcome"`
	Reason    Reason        `json:"reason"`
	Pattern   string        `json:"pattern,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// CheckRequest is used by the CLI `check` command and the dashboard API.
type CheckRequest struct {
	URL      string `json:"url"`
	LoggedIn bool   `json:"logged_in,omitempty"`
}

// CheckResponse is the result of a dry-run check.
type CheckResponse struct {
	Allowed bool    `json:"allowed"`
	Outcome Outcome `json:"outcome"`
	Reason  Reason  `json:"reason"`
	Path    string  `json:"path"`
	Pattern string  `json:"pattern,omitempty"`
	Error   string  `json:"error,omitempty"`

	// LoginURL is where a blocked navigation would be sent.
	LoginURL string `json:"login_url,omitempty"`
}

// GuardInfo describes the active guard configuration.
type GuardInfo struct {
	Version   string   `json:"version"`
	WhiteList []string `json:"white_list"`
	LoginPath string   `json:"login_path"`
	TokenKey  string   `json:"token_key"`
	Policy    bool     `json:"policy"`
}

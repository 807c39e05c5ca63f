package api

import "time"

// QueryFilter defines criteria for querying audit records.
type QueryFilter struct {
	Since   time.Time `json:"since,omitempty"`
	Until   time.Time `json:"until,omitempty"`
	Action  Action    `json:"action,omitempty"`
	Path    string    `json:"path,omitempty"`
	Outcome Outcome   `json:"outcome,omitempty"`
	Limit   int       `json:"limit,omitempty"`
	Offset  int       `json:"offset,omitempty"`
}

// AuditStats provides summary statistics for the dashboard.
type AuditStats struct {
	TotalDecisions  int            `json:"total_decisions"`
	AllowedCount    int            `json:"allowed_count"`
	BlockedCount    int            `json:"blocked_count"`
	FailedOpenCount int            `json:"failed_open_count"`
	ByAction        map[string]int `json:"by_action"`
	ByPath          map[string]int `json:"by_path"`
}

package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tkingovr/navguard/api"
	"github.com/tkingovr/navguard/internal/guard"
)

const defaultAuditLimit = 100

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.guard.Config()
	writeJSON(w, http.StatusOK, api.GuardInfo{
		Version:   guard.Version,
		WhiteList: cfg.WhiteList(),
		LoginPath: cfg.LoginPath(),
		TokenKey:  cfg.TokenKey(),
		Policy:    cfg.HasPolicy(),
	})
}

// handleCheck dry-runs a decision. The login state comes from the request
// and the login handler only records where the user would be sent.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req api.CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	cfg := s.guard.Config()
	var loginURL string
	dry := cfg.WithHandlers(
		func() bool { return req.LoggedIn },
		func(to string) { loginURL = cfg.LoginURL(to) },
	)

	res := guard.DecideContext(r.Context(), req.URL, dry)
	resp := res.ToCheckResponse()
	resp.LoginURL = loginURL
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.auditStore.Stats(r.Context())
	if err != nil {
		http.Error(w, "failed to get stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := api.QueryFilter{
		Action:  api.Action(q.Get("action")),
		Path:    q.Get("path"),
		Outcome: api.Outcome(q.Get("outcome")),
		Limit:   defaultAuditLimit,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid offset", http.StatusBadRequest)
			return
		}
		filter.Offset = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid since: want RFC 3339", http.StatusBadRequest)
			return
		}
		filter.Since = t
	}

	records, err := s.auditStore.Query(r.Context(), filter)
	if err != nil {
		http.Error(w, "failed to query audit log", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*api.AuditRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleAuditStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Subscribe before the headers go out so a client that has seen the
	// response does not miss the next decision.
	ch, cancel := s.auditStore.Subscribe(r.Context())
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case record, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(record)
			if err != nil {
				s.logger.Warn("encoding audit event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: decision\ndata: %s\n\n", data)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

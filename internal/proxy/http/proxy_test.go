package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/tkingovr/navguard/api"
	"github.com/tkingovr/navguard/internal/guard"
)

type memRecorder struct {
	mu      sync.Mutex
	records []*api.AuditRecord
}

func (m *memRecorder) Write(_ context.Context, r *api.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProxy(t *testing.T, backendURL string, rec guard.Recorder) *Proxy {
	t.Helper()
	cfg := guard.NewConfig(guard.Options{
		WhiteList: []string{"/pages/login/index", "/static/*"},
		Logger:    testLogger(),
	})
	p, err := NewProxy(backendURL, cfg, rec, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestProxy_WhitelistedRequest(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("asset " + r.URL.Path))
	}))
	defer backend.Close()

	p := newTestProxy(t, backend.URL, nil)
	req := httptest.NewRequest("GET", "/static/app.js?v=3", nil)
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "asset /static/app.js") {
		t.Errorf("expected proxied response, got %q", w.Body.String())
	}
}

func TestProxy_RedirectsToLogin(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend should not be called for blocked requests")
	}))
	defer backend.Close()

	rec := &memRecorder{}
	p := newTestProxy(t, backend.URL, rec)
	req := httptest.NewRequest("GET", "/pages/secret/index?id=1", nil)
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	want := "/pages/login/index?redirect=%2Fpages%2Fsecret%2Findex%3Fid%3D1"
	if loc := w.Header().Get("Location"); loc != want {
		t.Errorf("expected Location %s, got %s", want, loc)
	}
	if len(rec.records) != 1 || rec.records[0].Outcome != api.OutcomeBlocked {
		t.Errorf("expected one blocked audit record, got %v", rec.records)
	}
	if rec.records[0].Action != api.ActionRequest {
		t.Errorf("expected request action, got %s", rec.records[0].Action)
	}
}

func TestProxy_UnescapedWhitelistPattern(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("help " + r.URL.Path))
	}))
	defer backend.Close()

	rec := &memRecorder{}
	cfg := guard.NewConfig(guard.Options{
		WhiteList: []string{"/pages/帮助/*", "/pages/about us"},
		Logger:    testLogger(),
	})
	p, err := NewProxy(backend.URL, cfg, rec, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	for _, target := range []string{"/pages/%E5%B8%AE%E5%8A%A9/faq?q=1", "/pages/about%20us"} {
		w := httptest.NewRecorder()
		p.ServeHTTP(w, httptest.NewRequest("GET", target, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", target, w.Code)
		}
	}
	if len(rec.records) != 2 || rec.records[0].Path != "/pages/帮助/faq" {
		t.Errorf("expected decoded paths in the audit log, got %v", rec.records)
	}
}

func TestNavigationTarget(t *testing.T) {
	req := httptest.NewRequest("GET", "/pages/a%20b/index?redirect=%2Fx", nil)
	if got := navigationTarget(req.URL); got != "/pages/a b/index?redirect=%2Fx" {
		t.Errorf("unexpected target %q", got)
	}
}

func TestProxy_PostGetsUnauthorized(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend should not be called for blocked requests")
	}))
	defer backend.Close()

	p := newTestProxy(t, backend.URL, nil)
	req := httptest.NewRequest("POST", "/api/orders", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"login"`) {
		t.Errorf("expected login URL in body, got %q", w.Body.String())
	}
}

func TestProxy_LoggedInCookie(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secret page"))
	}))
	defer backend.Close()

	p := newTestProxy(t, backend.URL, nil)
	req := httptest.NewRequest("GET", "/pages/secret/index", nil)
	req.AddCookie(&http.Cookie{Name: guard.DefaultTokenKey, Value: "abc"})
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "secret page" {
		t.Errorf("expected proxied secret page, got %d %q", w.Code, w.Body.String())
	}
}

func TestProxy_LoggedInBearer(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer backend.Close()

	p := newTestProxy(t, backend.URL, nil)
	req := httptest.NewRequest("GET", "/pages/secret/index", nil)
	req.Header.Set("Authorization", "Bearer abc")
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with bearer token, got %d", w.Code)
	}
}

func TestProxy_FailOpen(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer backend.Close()

	var handled error
	cfg := guard.NewConfig(guard.Options{
		WhiteList:    []string{},
		ErrorHandler: func(err error) { handled = err },
		Logger:       testLogger(),
	})
	rec := &memRecorder{}
	p, err := NewProxy(backend.URL, cfg, rec, testLogger(),
		WithLoginCheck(func(*http.Request) bool { panic("session backend down") }),
	)
	if err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	p.ServeHTTP(w, httptest.NewRequest("GET", "/pages/secret", nil))

	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Errorf("expected fail-open to proxy the request, got %d %q", w.Code, w.Body.String())
	}
	if handled == nil || !strings.Contains(handled.Error(), "session backend down") {
		t.Errorf("expected error handler to receive the panic, got %v", handled)
	}
	if len(rec.records) != 1 || rec.records[0].Outcome != api.OutcomeFailedOpen {
		t.Errorf("expected failed_open audit record, got %v", rec.records)
	}
}

func TestProxy_CustomLoginCheck(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer backend.Close()

	cfg := guard.NewConfig(guard.Options{WhiteList: []string{}, Logger: testLogger()})
	p, err := NewProxy(backend.URL, cfg, nil, testLogger(),
		WithLoginCheck(func(r *http.Request) bool { return r.Header.Get("X-User") != "" }),
	)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/pages/secret", nil)
	req.Header.Set("X-User", "alice")
	w := httptest.NewRecorder()
	p.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected custom check to allow, got %d", w.Code)
	}
}

func TestNewProxy_InvalidTarget(t *testing.T) {
	cfg := guard.NewConfig(guard.Options{Logger: testLogger()})
	if _, err := NewProxy("not a url", cfg, nil, testLogger()); err == nil {
		t.Fatal("expected error for target without scheme/host")
	}
}

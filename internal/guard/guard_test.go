package guard

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tkingovr/navguard/api"
	"github.com/tkingovr/navguard/internal/router"
	"github.com/tkingovr/navguard/internal/storage"
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

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig(Options{Logger: newTestLogger()})

	wl := cfg.WhiteList()
	if len(wl) != 1 || wl[0] != DefaultLoginPath {
		t.Errorf("expected default whitelist, got %v", wl)
	}
	if cfg.LoginPath() != DefaultLoginPath {
		t.Errorf("expected default login path, got %s", cfg.LoginPath())
	}
	if cfg.TokenKey() != DefaultTokenKey {
		t.Errorf("expected default token key, got %s", cfg.TokenKey())
	}
	if cfg.checkLogin == nil || cfg.loginHandler == nil || cfg.errorHandler == nil {
		t.Fatal("expected all handlers to be set")
	}
	if cfg.HasPolicy() {
		t.Error("expected no policy by default")
	}
}

func TestNewConfig_EmptyWhiteListKept(t *testing.T) {
	cfg := NewConfig(Options{WhiteList: []string{}, Logger: newTestLogger()})
	if len(cfg.WhiteList()) != 0 {
		t.Errorf("expected empty whitelist, got %v", cfg.WhiteList())
	}
}

func TestNewConfig_WhiteListCopied(t *testing.T) {
	wl := []string{"/a"}
	cfg := NewConfig(Options{WhiteList: wl, Logger: newTestLogger()})
	wl[0] = "/mutated"
	if cfg.WhiteList()[0] != "/a" {
		t.Error("expected config to own its whitelist")
	}
	cfg.WhiteList()[0] = "/mutated"
	if cfg.WhiteList()[0] != "/a" {
		t.Error("expected accessor to return a copy")
	}
}

func TestDefaultCheckLogin_TokenStore(t *testing.T) {
	tokens := storage.NewMemoryStore()
	cfg := NewConfig(Options{WhiteList: []string{}, Tokens: tokens, Logger: newTestLogger()})

	if cfg.checkLogin() {
		t.Error("expected logged out without token")
	}
	_ = tokens.Set(DefaultTokenKey, "")
	if cfg.checkLogin() {
		t.Error("expected empty token to count as logged out")
	}
	_ = tokens.Set(DefaultTokenKey, "abc")
	if !cfg.checkLogin() {
		t.Error("expected logged in with token")
	}
}

func TestLoginURL_EscapesRedirect(t *testing.T) {
	cfg := NewConfig(Options{LoginPath: "/pages/auth/login", Logger: newTestLogger()})
	got := cfg.LoginURL("/pages/order/detail?id=7&x=y")
	want := "/pages/auth/login?redirect=%2Fpages%2Forder%2Fdetail%3Fid%3D7%26x%3Dy"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestInstall_RegistersAccessors(t *testing.T) {
	app := router.NewApp(newTestLogger())

	if _, err := Use(app); !errors.Is(err, ErrNotInstalled) {
		t.Fatalf("expected ErrNotInstalled before install, got %v", err)
	}

	g := Install(app, Options{Logger: newTestLogger()})

	used, err := Use(app)
	if err != nil {
		t.Fatal(err)
	}
	if used != g {
		t.Error("expected Use to return the installed guard")
	}
	global, ok := app.Global(GlobalProperty)
	if !ok || global.(*Guard) != g {
		t.Error("expected guard to be exposed as a global property")
	}
	if MustUse(app) != g {
		t.Error("expected MustUse to return the installed guard")
	}
}

func TestMustUse_PanicsWhenNotInstalled(t *testing.T) {
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrNotInstalled) {
			t.Errorf("expected ErrNotInstalled panic, got %v", r)
		}
	}()
	MustUse(router.NewApp(newTestLogger()))
}

func TestInstall_RedirectsToLogin(t *testing.T) {
	app := router.NewApp(newTestLogger())
	rec := &memRecorder{}
	tokens := storage.NewMemoryStore()
	Install(app, Options{
		WhiteList: []string{"/pages/login/index", "/pages/public/*"},
		Tokens:    tokens,
		Recorder:  rec,
		Logger:    newTestLogger(),
	})

	if err := app.Router.SwitchTab("/pages/public/home"); err != nil {
		t.Fatalf("expected whitelisted switchTab to succeed: %v", err)
	}

	err := app.Router.NavigateTo("/pages/secret/index?id=1")
	if !errors.Is(err, router.ErrNavigationAborted) {
		t.Fatalf("expected navigation to be aborted, got %v", err)
	}
	want := "/pages/login/index?redirect=%2Fpages%2Fsecret%2Findex%3Fid%3D1"
	if app.Router.Current() != want {
		t.Errorf("expected login page %s, got %s", want, app.Router.Current())
	}

	_ = tokens.Set(DefaultTokenKey, "abc")
	if err := app.Router.RedirectTo("/pages/secret/index"); err != nil {
		t.Fatalf("expected logged-in redirect to succeed: %v", err)
	}

	// The login navigation is decided, and recorded, before the
	// navigation that triggered it: switchTab, login, blocked, redirectTo.
	if len(rec.records) != 4 {
		t.Fatalf("expected 4 audit records, got %d", len(rec.records))
	}
	if rec.records[1].Reason != api.ReasonWhitelisted {
		t.Errorf("unexpected login record %+v", rec.records[1])
	}
	if rec.records[2].Outcome != api.OutcomeBlocked || rec.records[2].Action != api.ActionNavigateTo {
		t.Errorf("unexpected blocked record %+v", rec.records[2])
	}
	if rec.records[3].Reason != api.ReasonAuthenticated {
		t.Errorf("expected authenticated record, got %+v", rec.records[3])
	}
}

func TestInstall_AllActionsIntercepted(t *testing.T) {
	app := router.NewApp(newTestLogger())
	Install(app, Options{
		WhiteList:    []string{},
		CheckLogin:   func() bool { return false },
		LoginHandler: func(string) {},
		Logger:       newTestLogger(),
	})

	navs := map[api.Action]func(string) error{
		api.ActionNavigateTo: app.Router.NavigateTo,
		api.ActionRedirectTo: app.Router.RedirectTo,
		api.ActionReLaunch:   app.Router.ReLaunch,
		api.ActionSwitchTab:  app.Router.SwitchTab,
	}
	for action, nav := range navs {
		if err := nav("/pages/secret"); !errors.Is(err, router.ErrNavigationAborted) {
			t.Errorf("%s: expected abort, got %v", action, err)
		}
	}
}

func TestInstall_LoginLoopReported(t *testing.T) {
	app := router.NewApp(newTestLogger())
	var handled []error
	var mu sync.Mutex
	Install(app, Options{
		// The login page is not whitelisted, so every login redirect is
		// itself redirected.
		WhiteList: []string{},
		ErrorHandler: func(err error) {
			mu.Lock()
			handled = append(handled, err)
			mu.Unlock()
		},
		Logger: newTestLogger(),
	})

	if err := app.Router.NavigateTo("/pages/secret"); !errors.Is(err, router.ErrNavigationAborted) {
		t.Fatalf("expected abort, got %v", err)
	}
	found := false
	for _, err := range handled {
		if errors.Is(err, router.ErrNavigationLoop) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a navigation loop error to be reported, got %v", handled)
	}
}

func TestGuard_Check(t *testing.T) {
	spy := &loginSpy{}
	g := New(Options{
		WhiteList:    []string{"/pages/login/index"},
		CheckLogin:   func() bool { return false },
		LoginHandler: spy.handle,
		Logger:       newTestLogger(),
	})

	if !g.Check("/pages/login/index?redirect=%2F") {
		t.Error("expected login page to pass")
	}
	if g.Check("/pages/secret/index") {
		t.Error("expected secret page to be blocked")
	}
	if len(spy.calls) != 1 {
		t.Errorf("expected one login call, got %v", spy.calls)
	}
}

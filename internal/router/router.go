// Package router is a minimal page router that hosts the guard. It
// mirrors the navigation API of mini-program frameworks: four navigation
// actions, each of which runs registered interceptors before it takes
// effect.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tkingovr/navguard/api"
)

var (
	// ErrNavigationAborted is returned when an interceptor rejects a navigation.
	ErrNavigationAborted = errors.New("navigation aborted by interceptor")

	// ErrNavigationLoop is returned when interceptors keep starting new
	// navigations from inside a navigation.
	ErrNavigationLoop = errors.New("navigation loop detected")
)

// maxDepth bounds navigations started from inside interceptors.
const maxDepth = 8

type depthKey struct{}

// depth is the number of navigations ctx is nested in.
func depth(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

// Interceptor runs before a navigation takes effect.
type Interceptor struct {
	// Invoke receives the raw target URL. Returning false aborts the
	// navigation. Navigations started from Invoke must pass ctx on so
	// nesting is counted.
	Invoke func(ctx context.Context, url string) bool
}

// Router dispatches navigations through interceptors and tracks the page
// stack. It is safe for concurrent use; nesting is tracked per call chain
// through the context.
type Router struct {
	mu           sync.Mutex
	interceptors map[api.Action][]Interceptor
	stack        []string
	logger       *slog.Logger
}

// New creates a router with an empty page stack.
func New(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		interceptors: make(map[api.Action][]Interceptor),
		logger:       logger,
	}
}

// AddInterceptor registers an interceptor for action.
func (r *Router) AddInterceptor(action api.Action, ic Interceptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interceptors[action] = append(r.interceptors[action], ic)
}

// RemoveInterceptor removes every interceptor registered for action.
func (r *Router) RemoveInterceptor(action api.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.interceptors, action)
}

// NavigateTo pushes url onto the page stack.
func (r *Router) NavigateTo(url string) error {
	return r.Navigate(context.Background(), api.ActionNavigateTo, url)
}

// NavigateToContext is NavigateTo nested in the navigation carried by ctx.
func (r *Router) NavigateToContext(ctx context.Context, url string) error {
	return r.Navigate(ctx, api.ActionNavigateTo, url)
}

// RedirectTo replaces the current page with url.
func (r *Router) RedirectTo(url string) error {
	return r.Navigate(context.Background(), api.ActionRedirectTo, url)
}

// ReLaunch clears the page stack and opens url.
func (r *Router) ReLaunch(url string) error {
	return r.Navigate(context.Background(), api.ActionReLaunch, url)
}

// SwitchTab clears the page stack and opens the tab page at url.
func (r *Router) SwitchTab(url string) error {
	return r.Navigate(context.Background(), api.ActionSwitchTab, url)
}

// Current returns the URL of the top page, or "" if no page is open.
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stack) == 0 {
		return ""
	}
	return r.stack[len(r.stack)-1]
}

// Stack returns a copy of the page stack, bottom first.
func (r *Router) Stack() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.stack...)
}

// Navigate runs action to url. A navigation started from an interceptor
// should pass the interceptor's ctx; more than maxDepth nested navigations
// fail with ErrNavigationLoop.
func (r *Router) Navigate(ctx context.Context, action api.Action, url string) error {
	d := depth(ctx)
	if d >= maxDepth {
		return fmt.Errorf("%s %s: %w", action, url, ErrNavigationLoop)
	}
	ctx = context.WithValue(ctx, depthKey{}, d+1)

	r.mu.Lock()
	ics := append([]Interceptor(nil), r.interceptors[action]...)
	r.mu.Unlock()

	// Interceptors run unlocked so they may start navigations themselves.
	for _, ic := range ics {
		if ic.Invoke != nil && !ic.Invoke(ctx, url) {
			r.logger.Debug("navigation aborted", "action", action, "url", url)
			return fmt.Errorf("%s %s: %w", action, url, ErrNavigationAborted)
		}
	}

	r.mu.Lock()
	switch action {
	case api.ActionNavigateTo:
		r.stack = append(r.stack, url)
	case api.ActionRedirectTo:
		if len(r.stack) > 0 {
			r.stack[len(r.stack)-1] = url
		} else {
			r.stack = append(r.stack, url)
		}
	case api.ActionReLaunch, api.ActionSwitchTab:
		r.stack = []string{url}
	}
	r.mu.Unlock()

	r.logger.Debug("navigated", "action", action, "url", url)
	return nil
}

package router

import (
	"log/slog"
	"sync"
)

// App is the application handle plugins are installed into. It exposes
// global properties and a provide/inject registry alongside the router.
type App struct {
	Router *Router

	mu       sync.RWMutex
	globals  map[string]any
	provided map[string]any
}

// NewApp creates an application with its own router.
func NewApp(logger *slog.Logger) *App {
	return &App{
		Router:   New(logger),
		globals:  make(map[string]any),
		provided: make(map[string]any),
	}
}

// SetGlobal registers a global property.
func (a *App) SetGlobal(name string, v any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.globals[name] = v
}

// Global returns a global property.
func (a *App) Global(name string) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.globals[name]
	return v, ok
}

// Provide makes v available to Inject under key.
func (a *App) Provide(key string, v any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.provided[key] = v
}

// Inject returns the value provided under key.
func (a *App) Inject(key string) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.provided[key]
	return v, ok
}

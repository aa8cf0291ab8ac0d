// Package frontdoor mounts the registered API surfaces onto a router.
//
// # Adding a New Frontdoor
//
// Implement the handlers in a subpackage and expose an explicit
// registration function that calls registry.RegisterFactory. Wire that
// function from internal/registration so registration is explicit instead
// of relying on init() side effects.
package frontdoor

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/medsim/diagnosis-gateway/internal/frontdoor/registry"
	"github.com/medsim/diagnosis-gateway/internal/server"
)

// Re-export types from registry for convenience
type FrontdoorFactory = registry.FrontdoorFactory
type HandlerConfig = registry.HandlerConfig
type HandlerRegistration = registry.HandlerRegistration

// RegisterFactory registers a frontdoor factory (delegated to registry).
var RegisterFactory = registry.RegisterFactory

// ListFrontdoorTypes returns all registered frontdoor type names (delegated to registry).
var ListFrontdoorTypes = registry.ListFrontdoorTypes

// IsFrontdoorRegistered returns true if a frontdoor type is registered (delegated to registry).
var IsFrontdoorRegistered = registry.IsRegistered

// ClearFrontdoorFactories removes all registered factories (for testing only).
var ClearFrontdoorFactories = registry.ClearFactories

// Mount creates the handlers of every registered frontdoor and attaches
// them to r. Public and Bearer routes run under timeout; Bearer routes also
// require a verified token. LongLived routes get neither.
func Mount(r chi.Router, cfg HandlerConfig, timeout time.Duration) (int, error) {
	var public, bearer, longLived []HandlerRegistration
	for _, f := range registry.ListFactories() {
		regs, err := registry.CreateHandlersFromFactory(f.Type, cfg)
		if err != nil {
			return 0, err
		}
		for _, reg := range regs {
			switch reg.Access {
			case registry.Bearer:
				bearer = append(bearer, reg)
			case registry.LongLived:
				longLived = append(longLived, reg)
			default:
				public = append(public, reg)
			}
		}
	}

	withTimeout := func(g chi.Router) {
		if timeout > 0 {
			g.Use(server.TimeoutMiddleware(timeout))
		}
	}

	r.Group(func(g chi.Router) {
		withTimeout(g)
		register(g, public)
	})
	r.Group(func(g chi.Router) {
		withTimeout(g)
		g.Use(server.AuthMiddleware(cfg.Verifier))
		register(g, bearer)
	})
	register(r, longLived)

	return len(public) + len(bearer) + len(longLived), nil
}

func register(r chi.Router, regs []HandlerRegistration) {
	for _, reg := range regs {
		r.Method(reg.Method, reg.Path, http.HandlerFunc(reg.Handler))
	}
}

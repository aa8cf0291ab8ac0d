// Package registry provides frontdoor factory registration and lookup.
//
// # Adding a New Frontdoor
//
// Each frontdoor package exposes an explicit registration function:
//
//	func RegisterFrontdoor() {
//	    if registry.IsRegistered(FrontdoorType) {
//	        return
//	    }
//	    registry.RegisterFactory(registry.FrontdoorFactory{
//	        Type:           FrontdoorType,
//	        Description:    "what the routes do",
//	        CreateHandlers: createHandlers,
//	    })
//	}
package registry

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/medsim/diagnosis-gateway/internal/auth"
	"github.com/medsim/diagnosis-gateway/internal/core/ports"
	"github.com/medsim/diagnosis-gateway/internal/diagnosis"
)

// HandlerConfig contains the collaborators frontdoor handlers are built from.
type HandlerConfig struct {
	// Pipeline runs the agent and orchestration flows
	Pipeline *diagnosis.Pipeline

	// Agents reports per-agent readiness
	Agents ports.AgentResolver

	// Users registers and logs in accounts
	Users *auth.Service

	// Verifier resolves bearer tokens; used directly by routes that
	// authenticate outside the Authorization header
	Verifier ports.TokenVerifier

	Logger *slog.Logger
}

// Access controls which middleware a route is mounted behind.
type Access int

const (
	// Public routes get the request timeout and no auth.
	Public Access = iota
	// Bearer routes get the request timeout and Authorization header auth.
	Bearer
	// LongLived routes get neither; they authenticate themselves.
	LongLived
)

// HandlerRegistration represents a registered HTTP handler.
type HandlerRegistration struct {
	Path    string
	Method  string
	Access  Access
	Handler func(http.ResponseWriter, *http.Request)
}

// FrontdoorFactory groups the routes of one API surface.
type FrontdoorFactory struct {
	// Type is the frontdoor identifier (e.g., "agents", "users")
	Type string

	// Description provides a human-readable description of the frontdoor
	Description string

	// CreateHandlers creates the HTTP handler registrations for this frontdoor.
	CreateHandlers func(cfg HandlerConfig) []HandlerRegistration
}

// frontdoorRegistry holds registered frontdoor factories
var (
	frontdoorMu   sync.RWMutex
	frontdoorMap  = make(map[string]FrontdoorFactory)
	frontdoorList []FrontdoorFactory
)

// RegisterFactory registers a frontdoor factory for a specific type.
// Panics if a factory with the same type is already registered.
func RegisterFactory(f FrontdoorFactory) {
	frontdoorMu.Lock()
	defer frontdoorMu.Unlock()

	if f.Type == "" {
		panic("frontdoor factory type cannot be empty")
	}
	if f.CreateHandlers == nil {
		panic(fmt.Sprintf("frontdoor factory %q must have a CreateHandlers function", f.Type))
	}

	if _, exists := frontdoorMap[f.Type]; exists {
		panic(fmt.Sprintf("frontdoor factory %q already registered", f.Type))
	}

	frontdoorMap[f.Type] = f
	frontdoorList = append(frontdoorList, f)
}

// GetFactory returns the factory for a frontdoor type, if registered.
func GetFactory(frontdoorType string) (FrontdoorFactory, bool) {
	frontdoorMu.RLock()
	defer frontdoorMu.RUnlock()

	f, ok := frontdoorMap[frontdoorType]
	return f, ok
}

// ListFactories returns all registered frontdoor factories sorted by type.
func ListFactories() []FrontdoorFactory {
	frontdoorMu.RLock()
	defer frontdoorMu.RUnlock()

	result := make([]FrontdoorFactory, len(frontdoorList))
	copy(result, frontdoorList)
	sort.Slice(result, func(i, j int) bool {
		return result[i].Type < result[j].Type
	})
	return result
}

// ListFrontdoorTypes returns all registered frontdoor type names.
func ListFrontdoorTypes() []string {
	factories := ListFactories()
	types := make([]string, len(factories))
	for i, f := range factories {
		types[i] = f.Type
	}
	return types
}

// IsRegistered returns true if a frontdoor type is registered.
func IsRegistered(frontdoorType string) bool {
	_, ok := GetFactory(frontdoorType)
	return ok
}

// CreateHandlersFromFactory creates handlers using the registered factory.
func CreateHandlersFromFactory(frontdoorType string, cfg HandlerConfig) ([]HandlerRegistration, error) {
	f, ok := GetFactory(frontdoorType)
	if !ok {
		return nil, fmt.Errorf("unknown frontdoor type: %s (registered types: %v)", frontdoorType, ListFrontdoorTypes())
	}

	return f.CreateHandlers(cfg), nil
}

// ClearFactories removes all registered factories (for testing only).
func ClearFactories() {
	frontdoorMu.Lock()
	defer frontdoorMu.Unlock()

	frontdoorMap = make(map[string]FrontdoorFactory)
	frontdoorList = nil
}

package agent

import (
	"fmt"
	"sync"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
	"github.com/medsim/diagnosis-gateway/internal/core/ports"
)

// Registry holds the process-wide agent bindings. Bindings are made at
// startup and read concurrently afterwards.
type Registry struct {
	mu     sync.RWMutex
	agents map[domain.AgentKind]ports.Agent
}

var _ ports.AgentResolver = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[domain.AgentKind]ports.Agent)}
}

// Bind registers a for kind, replacing any previous binding.
func (r *Registry) Bind(kind domain.AgentKind, a ports.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[kind] = a
}

// Get returns the agent bound to kind or domain.ErrAgentUnavailable.
func (r *Registry) Get(kind domain.AgentKind) (ports.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[kind]
	if !ok || a == nil {
		return nil, fmt.Errorf("%s: %w", kind.DisplayName(), domain.ErrAgentUnavailable)
	}
	return a, nil
}

// Ready reports whether kind is bound.
func (r *Registry) Ready(kind domain.AgentKind) bool {
	_, err := r.Get(kind)
	return err == nil
}

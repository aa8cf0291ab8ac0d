package ports

import (
	"context"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
)

// Agent runs a single message against a configured language model agent.
// An empty sessionID lets the agent assign one.
type Agent interface {
	Run(ctx context.Context, message, sessionID, userID string) (*domain.RunOutput, error)
}

// AgentResolver looks up process-wide agent bindings.
type AgentResolver interface {
	// Get returns domain.ErrAgentUnavailable when the kind is not bound.
	Get(kind domain.AgentKind) (Agent, error)
	Ready(kind domain.AgentKind) bool
}

// TokenVerifier resolves a bearer credential to an identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (domain.Identity, error)
}

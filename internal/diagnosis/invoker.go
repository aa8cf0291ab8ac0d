// Package diagnosis drives the two-agent diagnosis flow: symptom analysis,
// memorization, clinical protocol generation and assembly of the composite
// response.
package diagnosis

import (
	"context"
	"fmt"
	"strings"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
	"github.com/medsim/diagnosis-gateway/internal/core/ports"
	"github.com/medsim/diagnosis-gateway/internal/extract"
)

// Invoker runs one instruction against a bound agent. It holds no per-call
// state and is safe for concurrent use.
type Invoker struct {
	agents ports.AgentResolver
}

// NewInvoker creates an invoker over the process-wide agent bindings.
func NewInvoker(agents ports.AgentResolver) *Invoker {
	return &Invoker{agents: agents}
}

// Invoke runs instruction and returns the agent's text. An unbound agent
// fails with domain.ErrAgentUnavailable and empty output with
// domain.ErrAgentNoContent.
func (i *Invoker) Invoke(ctx context.Context, kind domain.AgentKind, instruction string, corr domain.Correlation) (string, error) {
	out, err := i.run(ctx, kind, instruction, corr)
	if err != nil {
		return "", err
	}
	content := extract.StripReasoning(out.Content)
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%s: %w", kind.DisplayName(), domain.ErrAgentNoContent)
	}
	return content, nil
}

// Tell runs instruction and discards the agent's reply.
func (i *Invoker) Tell(ctx context.Context, kind domain.AgentKind, instruction string, corr domain.Correlation) error {
	_, err := i.run(ctx, kind, instruction, corr)
	return err
}

func (i *Invoker) run(ctx context.Context, kind domain.AgentKind, instruction string, corr domain.Correlation) (*domain.RunOutput, error) {
	agent, err := i.agents.Get(kind)
	if err != nil {
		return nil, err
	}
	out, err := agent.Run(ctx, instruction, corr.SessionID, corr.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind.DisplayName(), err)
	}
	if out == nil {
		return nil, fmt.Errorf("%s: %w", kind.DisplayName(), domain.ErrAgentNoContent)
	}
	return out, nil
}

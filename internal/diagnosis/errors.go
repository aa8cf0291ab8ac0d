package diagnosis

import (
	"errors"
	"fmt"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
)

// Client-facing failure texts.
const (
	MsgInitialDiagnosis = "Error processing initial diagnosis."
	MsgActionPlan       = "Error processing clinical action plan."
	MsgDiagnosis        = "Error processing diagnosis."
	MsgActionProtocol   = "Error processing clinical action protocol."
)

// ErrAbandoned is returned when the observer can no longer receive events
// or the context is done.
var ErrAbandoned = errors.New("diagnosis run abandoned")

// StageError reports the step at which a run failed. Message is safe to
// show to clients; Err carries the internal cause.
type StageError struct {
	State   State
	Agent   domain.AgentKind
	Message string
	Err     error
	// Orchestrated is set for failures inside a full Run, where errors
	// name the agent that produced nothing.
	Orchestrated bool
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (%s, %s): %v", e.Message, e.State, e.Agent, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// APIError maps the failure to the error surfaced over HTTP.
func (e *StageError) APIError() *domain.APIError {
	var apiErr *domain.APIError
	switch {
	case errors.Is(e.Err, domain.ErrAgentUnavailable):
		apiErr = domain.NewAPIError(domain.ErrorTypeAgentUnavailable, e.Agent.DisplayName()+" not initialized.")
	case errors.Is(e.Err, domain.ErrAgentNoContent):
		msg := "Agent did not produce content."
		if e.Orchestrated {
			msg = e.Agent.DisplayName() + " did not produce any content."
		}
		apiErr = domain.NewAPIError(domain.ErrorTypeAgentNoContent, msg)
	case errors.Is(e.Err, domain.ErrMalformedAgentOutput):
		apiErr = domain.NewAPIError(domain.ErrorTypeMalformedOutput, e.Message)
	default:
		apiErr = domain.ErrServer(e.Message)
	}
	return apiErr.WithCause(e)
}

// AsAPIError converts any pipeline error to an APIError, using fallback for
// errors that did not come from a stage.
func AsAPIError(err error, fallback string) *domain.APIError {
	var se *StageError
	if errors.As(err, &se) {
		return se.APIError()
	}
	return domain.AsAPIError(err, fallback)
}

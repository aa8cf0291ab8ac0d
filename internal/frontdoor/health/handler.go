// Package health serves the readiness summary at the root path.
package health

import (
	"net/http"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
	"github.com/medsim/diagnosis-gateway/internal/core/ports"
	"github.com/medsim/diagnosis-gateway/internal/frontdoor/registry"
	"github.com/medsim/diagnosis-gateway/internal/server"
)

const FrontdoorType = "health"

// Status is the root response body.
type Status struct {
	Message                     string `json:"message"`
	SymptomAnalyzerAgentStatus  string `json:"symptom_analyzer_agent_status"`
	ClinicalProtocolAgentStatus string `json:"clinical_protocol_agent_status"`
}

// Handler returns the readiness of both agents. It always answers 200.
func Handler(agents ports.AgentResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		server.WriteJSON(w, http.StatusOK, Status{
			Message:                     "Welcome to the diagnosis gateway!",
			SymptomAnalyzerAgentStatus:  readiness(agents, domain.SymptomAnalyzer),
			ClinicalProtocolAgentStatus: readiness(agents, domain.ClinicalProtocol),
		})
	}
}

func readiness(agents ports.AgentResolver, kind domain.AgentKind) string {
	if agents != nil && agents.Ready(kind) {
		return "Ready"
	}
	return "Not Ready"
}

// RegisterFrontdoor registers the root route with the frontdoor registry.
func RegisterFrontdoor() {
	if registry.IsRegistered(FrontdoorType) {
		return
	}
	registry.RegisterFactory(registry.FrontdoorFactory{
		Type:        FrontdoorType,
		Description: "Agent readiness",
		CreateHandlers: func(cfg registry.HandlerConfig) []registry.HandlerRegistration {
			return []registry.HandlerRegistration{
				{Path: "/", Method: http.MethodGet, Access: registry.Public, Handler: Handler(cfg.Agents)},
			}
		},
	})
}

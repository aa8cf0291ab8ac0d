package agents

import (
	"net/http"

	"github.com/medsim/diagnosis-gateway/internal/frontdoor/registry"
)

// FrontdoorType identifies the agent routes.
const FrontdoorType = "agents"

// RegisterFrontdoor registers the agent routes with the frontdoor registry.
func RegisterFrontdoor() {
	if registry.IsRegistered(FrontdoorType) {
		return
	}
	registry.RegisterFactory(registry.FrontdoorFactory{
		Type:           FrontdoorType,
		Description:    "Symptom analyzer, clinical protocol and orchestrator",
		CreateHandlers: createHandlers,
	})
}

func createHandlers(cfg registry.HandlerConfig) []registry.HandlerRegistration {
	h := NewHandler(cfg.Pipeline, cfg.Logger)
	ws := NewWebSocketHandler(cfg.Pipeline, cfg.Verifier, cfg.Logger)

	return []registry.HandlerRegistration{
		{Path: "/agent/symptom_analyzer", Method: http.MethodPost, Access: registry.Bearer, Handler: h.HandleSymptomAnalyzer},
		{Path: "/agent/clinical_protocol", Method: http.MethodPost, Access: registry.Bearer, Handler: h.HandleClinicalProtocol},
		{Path: "/agent/orchestrator", Method: http.MethodPost, Access: registry.Bearer, Handler: h.HandleOrchestrator},
		{Path: "/agent/ws/orchestrator", Method: http.MethodGet, Access: registry.LongLived, Handler: ws.HandleOrchestrator},
	}
}

// Package agents serves the symptom analyzer, clinical protocol and
// orchestrator endpoints, both blocking and over WebSocket.
package agents

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
	"github.com/medsim/diagnosis-gateway/internal/diagnosis"
	"github.com/medsim/diagnosis-gateway/internal/server"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// SymptomInput is the body of the symptom analyzer and orchestrator routes.
type SymptomInput struct {
	Symptoms  string `json:"symptoms"`
	SessionID string `json:"session_id,omitempty"`
}

func (in SymptomInput) validate() error {
	if strings.TrimSpace(in.Symptoms) == "" {
		return fmt.Errorf("symptoms: field required")
	}
	return nil
}

// ClinicalProtocolInput is the body of the clinical protocol route.
type ClinicalProtocolInput struct {
	SessionID string                      `json:"session_id"`
	Diagnosis *domain.DiagnosisHypothesis `json:"diagnosis"`
}

func (in ClinicalProtocolInput) validate() error {
	if in.SessionID == "" {
		return fmt.Errorf("session_id: field required")
	}
	if in.Diagnosis == nil {
		return fmt.Errorf("diagnosis: field required")
	}
	for _, f := range []struct{ name, value string }{
		{"diagnosis", in.Diagnosis.Diagnosis},
		{"confidence", in.Diagnosis.Confidence},
		{"justification", in.Diagnosis.Justification},
		{"severity", in.Diagnosis.Severity},
	} {
		if f.value == "" {
			return fmt.Errorf("diagnosis.%s: field required", f.name)
		}
	}
	return nil
}

// Handler serves the agent routes.
type Handler struct {
	pipeline *diagnosis.Pipeline
	logger   *slog.Logger
}

// NewHandler creates a handler over pipeline.
func NewHandler(pipeline *diagnosis.Pipeline, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{pipeline: pipeline, logger: logger}
}

// HandleSymptomAnalyzer returns a diagnostic hypothesis for the submitted symptoms.
func (h *Handler) HandleSymptomAnalyzer(w http.ResponseWriter, r *http.Request) {
	var in SymptomInput
	if !decode(w, r, &in) {
		return
	}
	corr, ok := correlation(w, r, in.SessionID)
	if !ok {
		return
	}
	h.logger.Info("calling symptom analyzer", slog.String("session_id", corr.SessionID))

	hyp, err := h.pipeline.AnalyzeSymptoms(r.Context(), in.Symptoms, corr)
	if err != nil {
		server.WriteError(w, r, diagnosis.AsAPIError(err, diagnosis.MsgDiagnosis))
		return
	}
	server.WriteJSON(w, http.StatusOK, hyp)
}

// HandleClinicalProtocol returns a clinical action for a client-supplied hypothesis.
func (h *Handler) HandleClinicalProtocol(w http.ResponseWriter, r *http.Request) {
	var in ClinicalProtocolInput
	if !decode(w, r, &in) {
		return
	}
	corr, ok := correlation(w, r, in.SessionID)
	if !ok {
		return
	}
	h.logger.Info("calling clinical protocol", slog.String("session_id", corr.SessionID))

	action, err := h.pipeline.ClinicalProtocol(r.Context(), *in.Diagnosis, corr)
	if err != nil {
		server.WriteError(w, r, diagnosis.AsAPIError(err, diagnosis.MsgActionProtocol))
		return
	}
	server.WriteJSON(w, http.StatusOK, action)
}

// HandleOrchestrator runs the full diagnosis and returns the composite response.
func (h *Handler) HandleOrchestrator(w http.ResponseWriter, r *http.Request) {
	var in SymptomInput
	if !decode(w, r, &in) {
		return
	}
	if in.SessionID == "" {
		in.SessionID = uuid.NewString()
	}
	corr, ok := correlation(w, r, in.SessionID)
	if !ok {
		return
	}

	resp, err := h.pipeline.Run(r.Context(), in.Symptoms, corr, diagnosis.NopObserver{})
	if err != nil {
		server.WriteError(w, r, diagnosis.AsAPIError(err, diagnosis.MsgInitialDiagnosis))
		return
	}
	server.WriteJSON(w, http.StatusOK, resp)
}

type validator interface {
	validate() error
}

// decode reads a JSON body into v and validates it. It writes the error
// response and returns false on failure.
func decode(w http.ResponseWriter, r *http.Request, v validator) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		server.WriteError(w, r, domain.ErrValidation("Invalid JSON body").WithCause(err))
		return false
	}
	if err := v.validate(); err != nil {
		server.WriteError(w, r, domain.ErrValidation(err.Error()))
		return false
	}
	return true
}

// correlation binds the session to the authenticated caller.
func correlation(w http.ResponseWriter, r *http.Request, sessionID string) (domain.Correlation, bool) {
	id, ok := server.IdentityFromContext(r.Context())
	if !ok {
		server.WriteError(w, r, domain.ErrAuthentication("Not authenticated"))
		return domain.Correlation{}, false
	}
	server.AddLogField(r.Context(), "session_id", sessionID)
	return domain.NewCorrelation(sessionID, id), true
}

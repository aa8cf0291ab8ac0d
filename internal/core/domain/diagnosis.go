// Package domain holds the canonical types exchanged between the diagnosis
// pipeline, the agents and the HTTP surface.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Disclaimer is attached to every composite diagnosis response.
const Disclaimer = "Remember that this is a simulated diagnosis and is not a substitute for the evaluation " +
	"of a healthcare professional. Seek medical attention immediately in case of an emergency."

// DiagnosisHypothesis is the validated output of the symptom analyzer.
type DiagnosisHypothesis struct {
	Diagnosis     string `json:"diagnosis"`
	Confidence    string `json:"confidence"`
	Justification string `json:"justification"`
	Severity      string `json:"severity"`
}

// Urgency is the closed set of action urgencies a clinical plan may carry.
type Urgency string

const (
	UrgencyImmediate Urgency = "Immediate"
	UrgencyBrief     Urgency = "Brief"
	UrgencyRoutine   Urgency = "Routine"
)

// ParseUrgency matches s case-insensitively against the known urgencies and
// returns the canonical spelling.
func ParseUrgency(s string) (Urgency, error) {
	for _, u := range []Urgency{UrgencyImmediate, UrgencyBrief, UrgencyRoutine} {
		if strings.EqualFold(strings.TrimSpace(s), string(u)) {
			return u, nil
		}
	}
	return "", fmt.Errorf("unknown urgency %q", s)
}

// Recommendation is an exam or treatment entry. Models emit either a
// {name, justification} object or a bare string; both shapes are kept as
// received.
type Recommendation struct {
	Name          string
	Justification string
	// Text and Bare are set when the entry arrived as a bare string.
	Text string
	Bare bool
}

// TextRecommendation creates a bare string entry.
func TextRecommendation(s string) Recommendation {
	return Recommendation{Text: s, Bare: true}
}

// IsText reports whether the entry was a bare string.
func (r Recommendation) IsText() bool {
	return r.Bare
}

func (r Recommendation) MarshalJSON() ([]byte, error) {
	if r.IsText() {
		return json.Marshal(r.Text)
	}
	return json.Marshal(struct {
		Name          string `json:"name"`
		Justification string `json:"justification"`
	}{r.Name, r.Justification})
}

func (r *Recommendation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = TextRecommendation(s)
		return nil
	}

	var obj struct {
		Name          *string `json:"name"`
		Justification *string `json:"justification"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Name == nil || obj.Justification == nil {
		return fmt.Errorf("recommendation requires name and justification")
	}
	*r = Recommendation{Name: *obj.Name, Justification: *obj.Justification}
	return nil
}

// ClinicalAction is the validated output of the clinical protocol agent.
type ClinicalAction struct {
	Condition            *string          `json:"condition"`
	Severity             *string          `json:"severity"`
	ExamRecommendations  []Recommendation `json:"exam_recommendations"`
	TreatmentSuggestions []Recommendation `json:"treatment_suggestions"`
	Urgency              Urgency          `json:"urgency"`
	Justification        *string          `json:"justification"`
}

// MedicalDiagnosisResponse is the composite result of a full orchestration run.
type MedicalDiagnosisResponse struct {
	Diagnosis  DiagnosisHypothesis `json:"diagnosis"`
	ActionPlan ClinicalAction      `json:"action_plan"`
	RAGSources []string            `json:"rag_sources"`
	Notes      string              `json:"notes"`
}

// NewMedicalDiagnosisResponse assembles the composite response from a
// validated hypothesis and action.
func NewMedicalDiagnosisResponse(h DiagnosisHypothesis, a ClinicalAction) MedicalDiagnosisResponse {
	if a.ExamRecommendations == nil {
		a.ExamRecommendations = []Recommendation{}
	}
	if a.TreatmentSuggestions == nil {
		a.TreatmentSuggestions = []Recommendation{}
	}
	return MedicalDiagnosisResponse{
		Diagnosis:  h,
		ActionPlan: a,
		RAGSources: []string{},
		Notes:      Disclaimer,
	}
}

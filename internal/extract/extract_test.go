package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
)

const influenza = `{"diagnosis":"Influenza","confidence":"High","justification":"Fever and dry cough","severity":"Moderate"}`

func TestFirstObject(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "bare object", raw: `{"a":1}`, want: `{"a":1}`},
		{name: "surrounding whitespace", raw: "\n  {\"a\":1}  \n", want: `{"a":1}`},
		{name: "conversational prefix", raw: `Sure, here is the result: {"a":1}`, want: `{"a":1}`},
		{name: "trailing text", raw: `{"a":1} hope this helps`, want: `{"a":1}`},
		{name: "multiple values keeps first", raw: `{"a":1}{"a":2}`, want: `{"a":1}`},
		{name: "nested braces", raw: `{"a":{"b":"}"}}`, want: `{"a":{"b":"}"}}`},
		{name: "stray brace in preamble", raw: `Note {see below}. {"a":1}`, want: `{"a":1}`},
		{name: "unclosed brace before object", raw: `Result { {"a":1}`, want: `{"a":1}`},
		{name: "only stray braces", raw: `use {this} or {that}`, wantErr: true},
		{name: "no object", raw: `I cannot help with that.`, wantErr: true},
		{name: "empty", raw: "   ", wantErr: true},
		{name: "truncated", raw: `{"a":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FirstObject(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrMalformedAgentOutput))
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestDiagnosis(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		h, err := Diagnosis(influenza)
		require.NoError(t, err)
		assert.Equal(t, domain.DiagnosisHypothesis{
			Diagnosis:     "Influenza",
			Confidence:    "High",
			Justification: "Fever and dry cough",
			Severity:      "Moderate",
		}, h)
	})

	t.Run("stray brace before the object", func(t *testing.T) {
		h, err := Diagnosis("Note {see below}. " + influenza)
		require.NoError(t, err)
		assert.Equal(t, "Influenza", h.Diagnosis)
	})

	t.Run("prefixed with conversational text", func(t *testing.T) {
		h, err := Diagnosis("Sure, here is the result: " + influenza)
		require.NoError(t, err)
		assert.Equal(t, "Influenza", h.Diagnosis)
	})

	t.Run("extra keys ignored", func(t *testing.T) {
		h, err := Diagnosis(`{"diagnosis":"Cold","confidence":"Low","justification":"x","severity":"Mild","recommended_next_steps":[]}`)
		require.NoError(t, err)
		assert.Equal(t, "Cold", h.Diagnosis)
	})

	t.Run("deterministic", func(t *testing.T) {
		first, err := Diagnosis(influenza)
		require.NoError(t, err)
		second, err := Diagnosis(influenza)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	failures := map[string]string{
		"missing severity":   `{"diagnosis":"Cold","confidence":"Low","justification":"x"}`,
		"null field":         `{"diagnosis":null,"confidence":"Low","justification":"x","severity":"Mild"}`,
		"number not coerced": `{"diagnosis":"Cold","confidence":0.9,"justification":"x","severity":"Mild"}`,
		"not json":           `The patient likely has a cold.`,
		"array first":        `[{"diagnosis":"Cold"}]`,
	}
	for name, raw := range failures {
		t.Run(name, func(t *testing.T) {
			_, err := Diagnosis(raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrMalformedAgentOutput)
		})
	}
}

func TestClinicalAction(t *testing.T) {
	t.Run("minimal", func(t *testing.T) {
		a, err := ClinicalAction(`{"urgency":"Brief","exam_recommendations":[],"treatment_suggestions":[],"justification":"Supportive care"}`)
		require.NoError(t, err)
		assert.Equal(t, domain.UrgencyBrief, a.Urgency)
		assert.Empty(t, a.ExamRecommendations)
		assert.NotNil(t, a.ExamRecommendations)
		require.NotNil(t, a.Justification)
		assert.Equal(t, "Supportive care", *a.Justification)
		assert.Nil(t, a.Condition)
	})

	t.Run("lists default to empty", func(t *testing.T) {
		a, err := ClinicalAction(`{"urgency":"Routine"}`)
		require.NoError(t, err)
		assert.NotNil(t, a.ExamRecommendations)
		assert.NotNil(t, a.TreatmentSuggestions)
	})

	t.Run("mixed recommendation shapes keep order", func(t *testing.T) {
		a, err := ClinicalAction(`{
			"condition": "Influenza",
			"severity": "Moderate",
			"exam_recommendations": [
				{"name": "Rapid influenza test", "justification": "Confirm diagnosis"},
				"Complete blood count",
				"Complete blood count"
			],
			"treatment_suggestions": ["Hydration"],
			"urgency": "immediate"
		}`)
		require.NoError(t, err)
		require.Len(t, a.ExamRecommendations, 3)
		assert.Equal(t, "Rapid influenza test", a.ExamRecommendations[0].Name)
		assert.True(t, a.ExamRecommendations[1].IsText())
		assert.Equal(t, "Complete blood count", a.ExamRecommendations[2].Text)
		assert.Equal(t, domain.UrgencyImmediate, a.Urgency)
		require.NotNil(t, a.Condition)
		assert.Equal(t, "Influenza", *a.Condition)
	})

	failures := map[string]string{
		"missing urgency":         `{"exam_recommendations":[],"treatment_suggestions":[],"justification":"..."}`,
		"urgency outside set":     `{"urgency":"Whenever"}`,
		"urgency wrong type":      `{"urgency":3}`,
		"recommendation number":   `{"urgency":"Brief","exam_recommendations":[42]}`,
		"recommendation partial":  `{"urgency":"Brief","exam_recommendations":[{"name":"CBC"}]}`,
		"list wrong type":         `{"urgency":"Brief","treatment_suggestions":"rest"}`,
		"optional wrong type":     `{"urgency":"Brief","condition":["flu"]}`,
		"explicit null for list":  `{"urgency":"Brief","exam_recommendations":null}`,
	}
	for name, raw := range failures {
		t.Run(name, func(t *testing.T) {
			_, err := ClinicalAction(raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrMalformedAgentOutput)
		})
	}
}

func TestStripReasoning(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"<think>hmm</think>{\"a\":1}", `{"a":1}`},
		{"<think>\nline1\nline2\n</think>\n\n{}", "{}"},
		{"plain", "plain"},
		{"  padded  ", "padded"},
		{"<think>never closed", ""},
		{"a<think>x</think>b<think>y</think>c", "abc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripReasoning(tt.in), tt.in)
	}
}

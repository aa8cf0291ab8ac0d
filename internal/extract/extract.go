// Package extract locates the first JSON object in free-form agent output and
// validates it against the diagnosis and clinical action contracts.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
)

// FirstObject returns the first syntactically complete JSON object starting
// at or after the first '{' in raw. A '{' that does not open a valid object
// is skipped and scanning resumes at the next one. Text around the object is
// ignored.
func FirstObject(raw string) (json.RawMessage, error) {
	text := strings.TrimSpace(raw)
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, malformed("no JSON object found")
	}

	var firstErr error
	for start >= 0 {
		dec := json.NewDecoder(strings.NewReader(text[start:]))
		var value json.RawMessage
		err := dec.Decode(&value)
		if err == nil {
			return value, nil
		}
		if firstErr == nil {
			firstErr = err
		}

		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, malformed("decode JSON: %v", firstErr)
}

// Diagnosis extracts and validates a DiagnosisHypothesis.
func Diagnosis(raw string) (domain.DiagnosisHypothesis, error) {
	fields, err := objectFields(raw)
	if err != nil {
		return domain.DiagnosisHypothesis{}, err
	}

	var h domain.DiagnosisHypothesis
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"diagnosis", &h.Diagnosis},
		{"confidence", &h.Confidence},
		{"justification", &h.Justification},
		{"severity", &h.Severity},
	} {
		if err := requiredString(fields, f.key, f.dst); err != nil {
			return domain.DiagnosisHypothesis{}, err
		}
	}
	return h, nil
}

// ClinicalAction extracts and validates a ClinicalAction.
func ClinicalAction(raw string) (domain.ClinicalAction, error) {
	fields, err := objectFields(raw)
	if err != nil {
		return domain.ClinicalAction{}, err
	}

	var a domain.ClinicalAction

	var urgency string
	if err := requiredString(fields, "urgency", &urgency); err != nil {
		return domain.ClinicalAction{}, err
	}
	if a.Urgency, err = domain.ParseUrgency(urgency); err != nil {
		return domain.ClinicalAction{}, malformed("%v", err)
	}

	for _, f := range []struct {
		key string
		dst **string
	}{
		{"condition", &a.Condition},
		{"severity", &a.Severity},
		{"justification", &a.Justification},
	} {
		if err := optionalString(fields, f.key, f.dst); err != nil {
			return domain.ClinicalAction{}, err
		}
	}

	if a.ExamRecommendations, err = recommendations(fields, "exam_recommendations"); err != nil {
		return domain.ClinicalAction{}, err
	}
	if a.TreatmentSuggestions, err = recommendations(fields, "treatment_suggestions"); err != nil {
		return domain.ClinicalAction{}, err
	}
	return a, nil
}

func objectFields(raw string) (map[string]json.RawMessage, error) {
	value, err := FirstObject(raw)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(value, &fields); err != nil {
		return nil, malformed("expected JSON object: %v", err)
	}
	return fields, nil
}

func requiredString(fields map[string]json.RawMessage, key string, dst *string) error {
	v, ok := fields[key]
	if !ok || isNull(v) {
		return malformed("missing required field %q", key)
	}
	if !isString(v) {
		return malformed("field %q must be a string", key)
	}
	return json.Unmarshal(v, dst)
}

func optionalString(fields map[string]json.RawMessage, key string, dst **string) error {
	v, ok := fields[key]
	if !ok || isNull(v) {
		return nil
	}
	if !isString(v) {
		return malformed("field %q must be a string", key)
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return malformed("field %q: %v", key, err)
	}
	*dst = &s
	return nil
}

func recommendations(fields map[string]json.RawMessage, key string) ([]domain.Recommendation, error) {
	v, ok := fields[key]
	if !ok {
		return []domain.Recommendation{}, nil
	}
	if isNull(v) {
		return nil, malformed("field %q must be a list", key)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return nil, malformed("field %q must be a list", key)
	}

	out := make([]domain.Recommendation, 0, len(items))
	for i, item := range items {
		var rec domain.Recommendation
		if !isString(item) && !bytes.HasPrefix(bytes.TrimSpace(item), []byte("{")) {
			return nil, malformed("%s[%d] must be an object or a string", key, i)
		}
		if err := json.Unmarshal(item, &rec); err != nil {
			return nil, malformed("%s[%d]: %v", key, i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func isString(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && v[0] == '"'
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedAgentOutput, fmt.Sprintf(format, args...))
}

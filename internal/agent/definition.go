package agent

import "github.com/medsim/diagnosis-gateway/internal/core/domain"

// Definition is the static description of an agent.
type Definition struct {
	Kind         domain.AgentKind
	Name         string
	Description  string
	Instructions []string
	MemoryTable  string
	// SearchKnowledge adds knowledge base references to the system prompt.
	SearchKnowledge bool
}

const diagnosisExample = `{
    "diagnosis": "Potential Condition Name",
    "confidence": "High",
    "justification": "The justification for the diagnosis based on the provided context.",
    "severity": "Moderate"
}`

const clinicalActionExample = `{
  "condition": "string (optional)",
  "severity": "string (optional)",
  "exam_recommendations": [
    {
      "name": "Exam name",
      "justification": "Justification for the examination."
    }
  ],
  "treatment_suggestions": [
    {
      "name": "Treatment Name",
      "justification": "Justification for treatment."
    }
  ],
  "urgency": "string ('Immediate', 'Brief', or 'Routine')",
  "justification": "General justification for the action plan."
}`

// SymptomAnalyzerDefinition proposes a diagnostic hypothesis from symptoms.
func SymptomAnalyzerDefinition() Definition {
	return Definition{
		Kind:        domain.SymptomAnalyzer,
		Name:        domain.SymptomAnalyzer.DisplayName(),
		Description: "Analyzes patient symptoms to suggest diagnostic hypotheses.",
		Instructions: []string{
			"**DO NOT use any tools. Your ONLY task is to return a JSON object with the diagnosis.**",
			"You are an experienced Symptom Analyzer. Given a list of symptoms, your task is to suggest a diagnostic hypothesis.",
			"**Use ONLY the information provided in the context of the knowledge base (RAG) to form your hypothesis.**",
			"**Your ONLY final result MUST be a valid JSON object that fits EXACTLY into the `DiagnosisHypothesis` schema.**",
			"Do NOT include any preamble, explanatory text, code markdown (```json), or anything other than pure JSON.",
			"Your JSON must start with `{` and end with `}`.",
			"**Do NOT include fields like 'recommended_next_steps' or any other that is not explicitly in the `DiagnosisHypothesis` schema.**",
			"Your output JSON must contain these exact keys: 'diagnosis', 'confidence', 'severity', 'justification'.",
			"Here is a perfect example of the output format: \n" + diagnosisExample,
			"Justify your hypothesis based on the symptoms and the knowledge information provided. If the information is not sufficient, indicate low confidence.",
			"Consider the severity of the symptoms and the urgency when determining the 'severity'.",
			"Ensure the 'justification' is clear and concise.",
		},
		MemoryTable:     domain.SymptomAnalyzer.MemoryTable(),
		SearchKnowledge: true,
	}
}

// ClinicalProtocolDefinition turns a hypothesis into exams, treatments and an urgency.
func ClinicalProtocolDefinition() Definition {
	return Definition{
		Kind:        domain.ClinicalProtocol,
		Name:        domain.ClinicalProtocol.DisplayName(),
		Description: "Suggests examinations and treatments based on diagnostic hypotheses.",
		Instructions: []string{
			"You are an expert in Clinical Protocols. Given a diagnostic hypothesis, your task is to suggest appropriate examinations and treatments.",
			"**Use ONLY the information provided in the context of the knowledge base (RAG) to form your recommendations.**",
			"**Your ONLY final result MUST be a valid JSON object that fits EXACTLY into the `ClinicalAction` schema defined below. Do not use any other field names.**",
			"Here is the required JSON schema:\n" + clinicalActionExample,
			"Do NOT include any preamble, explanatory text, code markdown (```json), or anything other than pure JSON.",
			"Your JSON must start with `{` and end with `}`.",
			"**YOU MUST INCLUDE the 'urgency' field and populate it with one of the following values: 'Immediate', 'Brief', 'Routine', based on the severity and urgency of the hypothesis.**",
			"Justify each recommendation in the 'justification' field nested within each exam and treatment object.",
			"Prioritize safety and efficacy in the action plan. If the hypothesis is uncertain or severe, emphasize the need for immediate medical consultation.",
		},
		MemoryTable:     domain.ClinicalProtocol.MemoryTable(),
		SearchKnowledge: false,
	}
}

// Definitions returns both built-in agent definitions.
func Definitions() []Definition {
	return []Definition{SymptomAnalyzerDefinition(), ClinicalProtocolDefinition()}
}

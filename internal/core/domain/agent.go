package domain

import "time"

// AgentKind names one of the configured agents.
type AgentKind string

const (
	SymptomAnalyzer  AgentKind = "symptom_analyzer"
	ClinicalProtocol AgentKind = "clinical_protocol"
)

// DisplayName is the human-facing agent name used in readiness and error messages.
func (k AgentKind) DisplayName() string {
	switch k {
	case SymptomAnalyzer:
		return "Symptom Analyzer Agent"
	case ClinicalProtocol:
		return "Clinical Protocol Agent"
	default:
		return string(k)
	}
}

// MemoryTable is the table holding user memories for the agent.
func (k AgentKind) MemoryTable() string {
	switch k {
	case SymptomAnalyzer:
		return "symptom_analyzer_memories"
	case ClinicalProtocol:
		return "clinical_protocol_memories"
	default:
		return ""
	}
}

// RunOutput is what an agent run returns.
type RunOutput struct {
	Content   string
	SessionID string
	Model     string
}

// AgentRun is a persisted agent exchange used to rebuild history.
type AgentRun struct {
	ID        string
	Agent     AgentKind
	SessionID string
	UserID    string
	Input     string
	Output    string
	CreatedAt time.Time
}

// Memory is a fact remembered about a user by one agent.
type Memory struct {
	ID        int64
	UserID    string
	Content   string
	CreatedAt time.Time
}

// Document is a knowledge base chunk returned by retrieval.
type Document struct {
	Source  string
	Page    int
	Content string
	Score   float64
}

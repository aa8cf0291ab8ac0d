// Package agent runs the language model agents: prompt assembly with
// memories and references, session history, and persistence of each run.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
	"github.com/medsim/diagnosis-gateway/internal/core/ports"
	"github.com/medsim/diagnosis-gateway/internal/extract"
	"github.com/medsim/diagnosis-gateway/internal/tokens"
)

// Settings are the per-agent model and context limits.
type Settings struct {
	Model       string
	MaxTokens   int
	Temperature float64
	HistoryRuns int
	MemoryLimit int
	TopK        int
}

// Deps are the collaborators an agent runs against. Knowledge may be nil
// when the definition does not search it.
type Deps struct {
	Completer ports.Completer
	Sessions  ports.SessionStore
	Memories  ports.MemoryStore
	Knowledge ports.KnowledgeBase
	Logger    *slog.Logger
}

// Agent is a ports.Agent backed by a Completer.
type Agent struct {
	def      Definition
	settings Settings
	deps     Deps
	counter  *tokens.Counter
	tracer   trace.Tracer
}

var _ ports.Agent = (*Agent)(nil)

// New creates an agent. The knowledge base must be ready when the
// definition searches it.
func New(def Definition, settings Settings, deps Deps) (*Agent, error) {
	if deps.Completer == nil || deps.Sessions == nil || deps.Memories == nil {
		return nil, fmt.Errorf("agent %s: completer, session store and memory store are required", def.Kind)
	}
	if def.SearchKnowledge && (deps.Knowledge == nil || !deps.Knowledge.Ready()) {
		return nil, fmt.Errorf("agent %s: knowledge base is not ready", def.Kind)
	}
	if settings.HistoryRuns < 0 {
		settings.HistoryRuns = 0
	}
	if settings.MemoryLimit <= 0 {
		settings.MemoryLimit = 10
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	counter, err := tokens.NewCounter(tokens.DefaultEncoding)
	if err != nil {
		return nil, err
	}

	return &Agent{
		def:      def,
		settings: settings,
		deps:     deps,
		counter:  counter,
		tracer:   otel.Tracer("diagnosis-gateway/agent"),
	}, nil
}

// Definition returns the agent's static description.
func (a *Agent) Definition() Definition {
	return a.def
}

// Run sends message to the model in the context of the session and user.
func (a *Agent) Run(ctx context.Context, message, sessionID, userID string) (*domain.RunOutput, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, span := a.tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("agent.kind", string(a.def.Kind)),
		attribute.String("session.id", sessionID),
	))
	defer span.End()

	out, err := a.run(ctx, message, sessionID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

func (a *Agent) run(ctx context.Context, message, sessionID, userID string) (*domain.RunOutput, error) {
	start := time.Now()
	logger := a.deps.Logger.With(
		slog.String("agent", string(a.def.Kind)),
		slog.String("session_id", sessionID),
		slog.String("user_id", userID))

	system, err := a.systemPrompt(ctx, message, userID)
	if err != nil {
		return nil, err
	}

	history, err := a.history(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	req := &domain.CompletionRequest{
		Model:       a.settings.Model,
		System:      system,
		Messages:    append(history, domain.Message{Role: domain.RoleUser, Content: message}),
		MaxTokens:   a.settings.MaxTokens,
		Temperature: a.settings.Temperature,
	}

	resp, err := a.deps.Completer.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.def.Name, err)
	}
	content := extract.StripReasoning(resp.Content)

	run := &domain.AgentRun{
		Agent:     a.def.Kind,
		SessionID: sessionID,
		UserID:    userID,
		Input:     message,
		Output:    content,
	}
	if err := a.deps.Sessions.AppendRun(ctx, run); err != nil {
		return nil, fmt.Errorf("save %s run: %w", a.def.Kind, err)
	}
	if userID != "" {
		if err := a.deps.Memories.AddMemory(ctx, a.def.MemoryTable, userID, message); err != nil {
			return nil, fmt.Errorf("save %s memory: %w", a.def.Kind, err)
		}
	}

	logger.Debug("agent run completed",
		slog.String("model", resp.Model),
		slog.Int("prompt_tokens_estimated", a.counter.CountRequest(req)),
		slog.Int64("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int64("completion_tokens", resp.Usage.CompletionTokens),
		slog.String("finish_reason", resp.FinishReason),
		slog.Duration("duration", time.Since(start)))

	return &domain.RunOutput{
		Content:   content,
		SessionID: sessionID,
		Model:     resp.Model,
	}, nil
}

func (a *Agent) systemPrompt(ctx context.Context, message, userID string) (string, error) {
	var b strings.Builder
	b.WriteString(a.def.Description)
	b.WriteString("\n\n<instructions>\n")
	for _, in := range a.def.Instructions {
		b.WriteString("- ")
		b.WriteString(in)
		b.WriteString("\n")
	}
	b.WriteString("</instructions>\n")

	if userID != "" {
		memories, err := a.deps.Memories.RecentMemories(ctx, a.def.MemoryTable, userID, a.settings.MemoryLimit)
		if err != nil {
			return "", fmt.Errorf("load %s memories: %w", a.def.Kind, err)
		}
		if len(memories) > 0 {
			b.WriteString("\n<memories_from_previous_interactions>\n")
			for _, m := range memories {
				b.WriteString("- ")
				b.WriteString(m.Content)
				b.WriteString("\n")
			}
			b.WriteString("</memories_from_previous_interactions>\n")
		}
	}

	if a.def.SearchKnowledge {
		docs, err := a.deps.Knowledge.Search(ctx, message, a.settings.TopK)
		if err != nil {
			return "", fmt.Errorf("search knowledge: %w", err)
		}
		if len(docs) > 0 {
			b.WriteString("\n<references>\n")
			for _, d := range docs {
				fmt.Fprintf(&b, "[%s p.%d]\n%s\n\n", d.Source, d.Page, d.Content)
			}
			b.WriteString("</references>\n")
		}
	}

	return b.String(), nil
}

func (a *Agent) history(ctx context.Context, sessionID string) ([]domain.Message, error) {
	if a.settings.HistoryRuns == 0 {
		return nil, nil
	}
	runs, err := a.deps.Sessions.RecentRuns(ctx, a.def.Kind, sessionID, a.settings.HistoryRuns)
	if err != nil {
		return nil, fmt.Errorf("load %s history: %w", a.def.Kind, err)
	}
	msgs := make([]domain.Message, 0, 2*len(runs)+1)
	for _, r := range runs {
		msgs = append(msgs,
			domain.Message{Role: domain.RoleUser, Content: r.Input},
			domain.Message{Role: domain.RoleAssistant, Content: r.Output})
	}
	return msgs, nil
}

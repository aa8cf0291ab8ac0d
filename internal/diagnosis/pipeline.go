package diagnosis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
	"github.com/medsim/diagnosis-gateway/internal/core/ports"
	"github.com/medsim/diagnosis-gateway/internal/extract"
)

// State is a step of a diagnosis run.
type State string

const (
	StateStart               State = "start"
	StateHypothesisRequested State = "hypothesis_requested"
	StateHypothesisValidated State = "hypothesis_validated"
	StateHypothesisMemorized State = "hypothesis_memorized"
	StateActionRequested     State = "action_requested"
	StateActionValidated     State = "action_validated"
	StateActionMemorized     State = "action_memorized"
	StateCompleted           State = "completed"
	StateFailed              State = "failed"
	StateAbandoned           State = "abandoned"
)

// Progress messages emitted to observers, in order.
const (
	StatusAnalyzing       = "Analyzing symptoms..."
	StatusSavingDiagnosis = "Saving initial diagnosis to memory..."
	StatusGeneratingPlan  = "Generating clinical protocol..."
	StatusSavingPlan      = "Saving clinical protocol to memory..."
	StatusCompleted       = "Completed!"
)

// Observer receives progress from a run. Any error abandons the run.
type Observer interface {
	Status(ctx context.Context, message string) error
	Diagnosis(ctx context.Context, h domain.DiagnosisHypothesis) error
	Plan(ctx context.Context, a domain.ClinicalAction) error
}

// NopObserver discards progress. Blocking callers use it.
type NopObserver struct{}

func (NopObserver) Status(context.Context, string) error                        { return nil }
func (NopObserver) Diagnosis(context.Context, domain.DiagnosisHypothesis) error { return nil }
func (NopObserver) Plan(context.Context, domain.ClinicalAction) error           { return nil }

// MemorizeHypothesisInstruction asks the symptom analyzer to remember a diagnosis.
func MemorizeHypothesisInstruction(symptoms string, h domain.DiagnosisHypothesis) string {
	return fmt.Sprintf("Based on our last interaction, please save this to your memory: The user's symptoms are '%s' and the diagnosis was '%s'.", symptoms, h.Diagnosis)
}

// ClinicalInstruction is the clinical agent prompt used by full runs.
func ClinicalInstruction(h domain.DiagnosisHypothesis) string {
	return fmt.Sprintf("Diagnostic hypothesis: %s. Justification: %s. Severity: %s.", h.Diagnosis, h.Justification, h.Severity)
}

// StandaloneClinicalInstruction is the clinical agent prompt for a
// hypothesis submitted directly by a client.
func StandaloneClinicalInstruction(h domain.DiagnosisHypothesis) string {
	return fmt.Sprintf("Diagnostic hypothesis: %s. Justification: %s.", h.Diagnosis, h.Justification)
}

// MemorizeActionInstruction asks the clinical agent to remember a plan's urgency.
func MemorizeActionInstruction(h domain.DiagnosisHypothesis, a domain.ClinicalAction) string {
	return fmt.Sprintf("For the diagnosis of '%s', the suggested clinical protocol has an urgency of '%s'.", h.Diagnosis, a.Urgency)
}

// Pipeline runs diagnoses against the bound agents.
type Pipeline struct {
	agents  ports.AgentResolver
	invoker *Invoker
	logger  *slog.Logger
	tracer  trace.Tracer
	meter   metric.Meter
	runs    metric.Int64Counter
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithMeter sets the meter for the run counter. Defaults to the global provider.
func WithMeter(m metric.Meter) Option {
	return func(p *Pipeline) {
		p.meter = m
	}
}

// New creates a pipeline.
func New(agents ports.AgentResolver, opts ...Option) *Pipeline {
	p := &Pipeline{
		agents:  agents,
		invoker: NewInvoker(agents),
		logger:  slog.Default(),
		tracer:  otel.Tracer("diagnosis-gateway/diagnosis"),
		meter:   otel.Meter("diagnosis-gateway/diagnosis"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.initMetrics()
	return p
}

// initMetrics creates the run counter. Runs are still served without it.
func (p *Pipeline) initMetrics() {
	runs, err := p.meter.Int64Counter(
		"diagnosis.pipeline.runs",
		metric.WithDescription("Diagnosis runs by final state"),
		metric.WithUnit("1"),
	)
	if err != nil {
		p.logger.Warn("failed to create run counter, run metrics disabled",
			slog.String("error", err.Error()))
		return
	}
	p.runs = runs
}

// Ready reports whether the agent of kind is bound.
func (p *Pipeline) Ready(kind domain.AgentKind) bool {
	return p.agents.Ready(kind)
}

// Run executes a full diagnosis. The composite response is returned only
// when every step succeeded.
func (p *Pipeline) Run(ctx context.Context, symptoms string, corr domain.Correlation, obs Observer) (domain.MedicalDiagnosisResponse, error) {
	if obs == nil {
		obs = NopObserver{}
	}
	r := &run{
		p:      p,
		id:     uuid.NewString(),
		corr:   corr,
		obs:    obs,
		state:  StateStart,
		logger: p.logger,
	}
	r.logger = p.logger.With(
		slog.String("run_id", r.id),
		slog.String("session_id", corr.SessionID))

	ctx, span := p.tracer.Start(ctx, "diagnosis.run", trace.WithAttributes(
		attribute.String("run.id", r.id),
		attribute.String("session.id", corr.SessionID),
	))
	defer span.End()

	resp, err := r.execute(ctx, symptoms)

	if p.runs != nil {
		p.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(r.state))))
	}
	span.SetAttributes(attribute.String("run.state", string(r.state)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(r.state))
		return domain.MedicalDiagnosisResponse{}, err
	}
	return resp, nil
}

// AnalyzeSymptoms runs only the symptom analyzer and validates its hypothesis.
func (p *Pipeline) AnalyzeSymptoms(ctx context.Context, symptoms string, corr domain.Correlation) (domain.DiagnosisHypothesis, error) {
	ctx, span := p.tracer.Start(ctx, "diagnosis.analyze_symptoms")
	defer span.End()

	raw, err := p.invoker.Invoke(ctx, domain.SymptomAnalyzer, symptoms, corr)
	if err != nil {
		return domain.DiagnosisHypothesis{}, p.single(span, StateHypothesisRequested, domain.SymptomAnalyzer, MsgDiagnosis, err)
	}
	h, err := extract.Diagnosis(raw)
	if err != nil {
		p.logger.Error("failed to parse symptom analyzer output",
			slog.String("session_id", corr.SessionID),
			slog.String("content", raw),
			slog.String("error", err.Error()))
		return domain.DiagnosisHypothesis{}, p.single(span, StateHypothesisValidated, domain.SymptomAnalyzer, MsgDiagnosis, err)
	}
	return h, nil
}

// ClinicalProtocol runs only the clinical agent on a client-supplied hypothesis.
func (p *Pipeline) ClinicalProtocol(ctx context.Context, h domain.DiagnosisHypothesis, corr domain.Correlation) (domain.ClinicalAction, error) {
	ctx, span := p.tracer.Start(ctx, "diagnosis.clinical_protocol")
	defer span.End()

	raw, err := p.invoker.Invoke(ctx, domain.ClinicalProtocol, StandaloneClinicalInstruction(h), corr)
	if err != nil {
		return domain.ClinicalAction{}, p.single(span, StateActionRequested, domain.ClinicalProtocol, MsgActionProtocol, err)
	}
	a, err := extract.ClinicalAction(raw)
	if err != nil {
		p.logger.Error("failed to parse clinical protocol output",
			slog.String("session_id", corr.SessionID),
			slog.String("content", raw),
			slog.String("error", err.Error()))
		return domain.ClinicalAction{}, p.single(span, StateActionValidated, domain.ClinicalProtocol, MsgActionProtocol, err)
	}
	return a, nil
}

func (p *Pipeline) single(span trace.Span, state State, kind domain.AgentKind, msg string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return &StageError{State: state, Agent: kind, Message: msg, Err: err}
}

// run is the state of one Pipeline.Run call.
type run struct {
	p      *Pipeline
	id     string
	corr   domain.Correlation
	obs    Observer
	state  State
	logger *slog.Logger
}

func (r *run) transition(s State) {
	r.state = s
	r.logger.Debug("diagnosis transition", slog.String("state", string(s)))
}

func (r *run) fail(kind domain.AgentKind, msg string, err error) error {
	failedAt := r.state
	r.transition(StateFailed)
	r.logger.Error("diagnosis failed",
		slog.String("failed_at", string(failedAt)),
		slog.String("agent", string(kind)),
		slog.String("error", err.Error()))
	return &StageError{State: failedAt, Agent: kind, Message: msg, Err: err, Orchestrated: true}
}

func (r *run) abandon(err error) error {
	r.transition(StateAbandoned)
	r.logger.Info("diagnosis abandoned", slog.String("error", err.Error()))
	return fmt.Errorf("%w: %v", ErrAbandoned, err)
}

// emit forwards to the observer after checking the context.
func (r *run) emit(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

func (r *run) status(ctx context.Context, msg string) error {
	return r.emit(ctx, func(ctx context.Context) error { return r.obs.Status(ctx, msg) })
}

// step runs fn inside a child span.
func (r *run) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := r.p.tracer.Start(ctx, "diagnosis.step."+name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (r *run) execute(ctx context.Context, symptoms string) (domain.MedicalDiagnosisResponse, error) {
	var empty domain.MedicalDiagnosisResponse

	for _, kind := range []domain.AgentKind{domain.SymptomAnalyzer, domain.ClinicalProtocol} {
		if !r.p.agents.Ready(kind) {
			r.transition(StateFailed)
			return empty, &StageError{State: StateStart, Agent: kind, Message: MsgInitialDiagnosis,
				Err: fmt.Errorf("%s: %w", kind.DisplayName(), domain.ErrAgentUnavailable), Orchestrated: true}
		}
	}

	// Stage one: hypothesis.
	if err := r.status(ctx, StatusAnalyzing); err != nil {
		return empty, r.abandon(err)
	}

	var h domain.DiagnosisHypothesis
	r.transition(StateHypothesisRequested)
	err := r.step(ctx, "analyze", func(ctx context.Context) error {
		raw, err := r.p.invoker.Invoke(ctx, domain.SymptomAnalyzer, symptoms, r.corr)
		if err != nil {
			return err
		}
		h, err = extract.Diagnosis(raw)
		if err != nil {
			r.logger.Error("failed to parse symptom analyzer output", slog.String("content", raw))
		}
		return err
	})
	if err != nil {
		return empty, r.failOrAbandon(ctx, domain.SymptomAnalyzer, MsgInitialDiagnosis, err)
	}
	r.transition(StateHypothesisValidated)

	if err := r.emit(ctx, func(ctx context.Context) error { return r.obs.Diagnosis(ctx, h) }); err != nil {
		return empty, r.abandon(err)
	}
	if err := r.status(ctx, StatusSavingDiagnosis); err != nil {
		return empty, r.abandon(err)
	}

	err = r.step(ctx, "memorize_hypothesis", func(ctx context.Context) error {
		return r.p.invoker.Tell(ctx, domain.SymptomAnalyzer, MemorizeHypothesisInstruction(symptoms, h), r.corr)
	})
	if err != nil {
		return empty, r.failOrAbandon(ctx, domain.SymptomAnalyzer, MsgInitialDiagnosis, err)
	}
	r.transition(StateHypothesisMemorized)

	// Stage two: clinical action.
	if err := r.status(ctx, StatusGeneratingPlan); err != nil {
		return empty, r.abandon(err)
	}

	var a domain.ClinicalAction
	r.transition(StateActionRequested)
	err = r.step(ctx, "protocol", func(ctx context.Context) error {
		raw, err := r.p.invoker.Invoke(ctx, domain.ClinicalProtocol, ClinicalInstruction(h), r.corr)
		if err != nil {
			return err
		}
		a, err = extract.ClinicalAction(raw)
		if err != nil {
			r.logger.Error("failed to parse clinical protocol output", slog.String("content", raw))
		}
		return err
	})
	if err != nil {
		return empty, r.failOrAbandon(ctx, domain.ClinicalProtocol, MsgActionPlan, err)
	}
	r.transition(StateActionValidated)

	if err := r.emit(ctx, func(ctx context.Context) error { return r.obs.Plan(ctx, a) }); err != nil {
		return empty, r.abandon(err)
	}
	if err := r.status(ctx, StatusSavingPlan); err != nil {
		return empty, r.abandon(err)
	}

	err = r.step(ctx, "memorize_action", func(ctx context.Context) error {
		return r.p.invoker.Tell(ctx, domain.ClinicalProtocol, MemorizeActionInstruction(h, a), r.corr)
	})
	if err != nil {
		return empty, r.failOrAbandon(ctx, domain.ClinicalProtocol, MsgActionPlan, err)
	}
	r.transition(StateActionMemorized)

	resp := domain.NewMedicalDiagnosisResponse(h, a)
	r.transition(StateCompleted)

	// Every step is done; a peer that left before the final status changes nothing.
	if err := r.status(ctx, StatusCompleted); err != nil {
		r.logger.Debug("final status not delivered", slog.String("error", err.Error()))
	}
	r.logger.Info("diagnosis completed")
	return resp, nil
}

// failOrAbandon classifies a step error: context cancellation abandons the
// run, anything else fails it.
func (r *run) failOrAbandon(ctx context.Context, kind domain.AgentKind, msg string, err error) error {
	if ctx.Err() != nil {
		return r.abandon(err)
	}
	return r.fail(kind, msg, err)
}

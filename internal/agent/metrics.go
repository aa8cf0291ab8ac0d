package agent

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
	"github.com/medsim/diagnosis-gateway/internal/core/ports"
)

// Instrumented wraps an agent with request, error and latency metrics.
type Instrumented struct {
	kind     domain.AgentKind
	agent    ports.Agent
	requests metric.Int64Counter
	errors   metric.Int64Counter
	latency  metric.Float64Histogram
}

var _ ports.Agent = (*Instrumented)(nil)

// NewInstrumented creates the decorator using the global meter provider.
func NewInstrumented(kind domain.AgentKind, a ports.Agent) (*Instrumented, error) {
	return NewInstrumentedWithMeter(kind, a, otel.Meter("diagnosis-gateway/agent"))
}

// NewInstrumentedWithMeter creates the decorator on a specific meter.
func NewInstrumentedWithMeter(kind domain.AgentKind, a ports.Agent, meter metric.Meter) (*Instrumented, error) {
	requests, err := meter.Int64Counter(
		"diagnosis.agent.requests",
		metric.WithDescription("Total number of agent runs"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	errs, err := meter.Int64Counter(
		"diagnosis.agent.errors",
		metric.WithDescription("Total number of failed agent runs"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	latency, err := meter.Float64Histogram(
		"diagnosis.agent.latency",
		metric.WithDescription("Agent run latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create latency histogram: %w", err)
	}

	return &Instrumented{kind: kind, agent: a, requests: requests, errors: errs, latency: latency}, nil
}

func (m *Instrumented) Run(ctx context.Context, message, sessionID, userID string) (*domain.RunOutput, error) {
	start := time.Now()
	out, err := m.agent.Run(ctx, message, sessionID, userID)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	status := "success"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("agent.kind", string(m.kind)),
		attribute.String("status", status),
	)

	m.requests.Add(ctx, 1, attrs)
	m.latency.Record(ctx, latencyMs, attrs)
	if err != nil {
		m.errors.Add(ctx, 1, attrs)
		return nil, err
	}
	return out, nil
}

package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
	"github.com/medsim/diagnosis-gateway/internal/storage/memory"
)

type fakeCompleter struct {
	mu       sync.Mutex
	requests []*domain.CompletionRequest
	reply    string
	err      error
}

func (f *fakeCompleter) Complete(_ context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CompletionResponse{Content: f.reply, Model: "qwen/qwen3-32b", FinishReason: "stop"}, nil
}

func (f *fakeCompleter) last() *domain.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fakeKnowledge struct {
	docs    []domain.Document
	queries []string
}

func (f *fakeKnowledge) Search(_ context.Context, query string, k int) ([]domain.Document, error) {
	f.queries = append(f.queries, query)
	return f.docs, nil
}

func (f *fakeKnowledge) Ready() bool { return true }

func newTestAgent(t *testing.T, def Definition, c *fakeCompleter, kb *fakeKnowledge) (*Agent, *memory.Store) {
	t.Helper()
	store := memory.New()
	deps := Deps{Completer: c, Sessions: store, Memories: store}
	if kb != nil {
		deps.Knowledge = kb
	}
	a, err := New(def, Settings{Model: "qwen/qwen3-32b", HistoryRuns: 3, MemoryLimit: 10, TopK: 5}, deps)
	require.NoError(t, err)
	return a, store
}

func TestNew_RequiresReadyKnowledge(t *testing.T) {
	store := memory.New()
	_, err := New(SymptomAnalyzerDefinition(), Settings{}, Deps{Completer: &fakeCompleter{}, Sessions: store, Memories: store})
	require.Error(t, err)

	_, err = New(ClinicalProtocolDefinition(), Settings{}, Deps{Completer: &fakeCompleter{}, Sessions: store, Memories: store})
	require.NoError(t, err, "clinical protocol does not search knowledge")

	_, err = New(ClinicalProtocolDefinition(), Settings{}, Deps{Sessions: store, Memories: store})
	require.Error(t, err)
}

func TestAgent_Run(t *testing.T) {
	ctx := context.Background()
	c := &fakeCompleter{reply: "<think>considering</think>{\"diagnosis\":\"Migraine\"}"}
	kb := &fakeKnowledge{docs: []domain.Document{{Source: "neurology.pdf", Page: 3, Content: "Migraine presents with photophobia."}}}
	a, store := newTestAgent(t, SymptomAnalyzerDefinition(), c, kb)

	out, err := a.Run(ctx, "throbbing headache", "", "7")
	require.NoError(t, err)

	assert.Equal(t, `{"diagnosis":"Migraine"}`, out.Content)
	assert.NotEmpty(t, out.SessionID, "session id is generated when absent")
	assert.Equal(t, "qwen/qwen3-32b", out.Model)

	req := c.last()
	assert.Contains(t, req.System, "Analyzes patient symptoms")
	assert.Contains(t, req.System, "- You are an experienced Symptom Analyzer.")
	assert.Contains(t, req.System, "<references>")
	assert.Contains(t, req.System, "[neurology.pdf p.3]")
	assert.NotContains(t, req.System, "<memories_from_previous_interactions>")
	require.Len(t, req.Messages, 1)
	assert.Equal(t, domain.Message{Role: domain.RoleUser, Content: "throbbing headache"}, req.Messages[0])
	assert.Equal(t, []string{"throbbing headache"}, kb.queries)

	runs, err := store.RecentRuns(ctx, domain.SymptomAnalyzer, out.SessionID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, `{"diagnosis":"Migraine"}`, runs[0].Output)

	mems, err := store.RecentMemories(ctx, "symptom_analyzer_memories", "7", 10)
	require.NoError(t, err)
	require.Len(t, mems, 1)
	assert.Equal(t, "throbbing headache", mems[0].Content)
}

func TestAgent_HistoryAndMemories(t *testing.T) {
	ctx := context.Background()
	c := &fakeCompleter{reply: "ok"}
	a, _ := newTestAgent(t, ClinicalProtocolDefinition(), c, nil)

	for i := 1; i <= 5; i++ {
		_, err := a.Run(ctx, "message "+string(rune('0'+i)), "sess-1", "42")
		require.NoError(t, err)
	}

	req := c.last()
	// Three prior runs as user/assistant pairs, then the new message.
	require.Len(t, req.Messages, 7)
	assert.Equal(t, "message 2", req.Messages[0].Content)
	assert.Equal(t, domain.RoleAssistant, req.Messages[1].Role)
	assert.Equal(t, "message 4", req.Messages[4].Content)
	assert.Equal(t, "message 5", req.Messages[6].Content)

	assert.Contains(t, req.System, "<memories_from_previous_interactions>")
	assert.Contains(t, req.System, "- message 4")
	assert.NotContains(t, req.System, "- message 5", "the current message is stored after the call")
	assert.NotContains(t, req.System, "<references>")

	// Another session starts without history but shares the user's memories.
	_, err := a.Run(ctx, "fresh", "sess-2", "42")
	require.NoError(t, err)
	req = c.last()
	require.Len(t, req.Messages, 1)
	assert.Contains(t, req.System, "- message 5")

	// Another user sees neither.
	_, err = a.Run(ctx, "other", "sess-3", "43")
	require.NoError(t, err)
	assert.NotContains(t, c.last().System, "<memories_from_previous_interactions>")
}

func TestAgent_CompleterError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("upstream down")
	c := &fakeCompleter{err: boom}
	a, store := newTestAgent(t, ClinicalProtocolDefinition(), c, nil)

	_, err := a.Run(ctx, "x", "s", "1")
	require.ErrorIs(t, err, boom)

	runs, err := store.RecentRuns(ctx, domain.ClinicalProtocol, "s", 10)
	require.NoError(t, err)
	assert.Empty(t, runs, "failed runs are not persisted")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	assert.False(t, r.Ready(domain.SymptomAnalyzer))
	_, err := r.Get(domain.SymptomAnalyzer)
	require.ErrorIs(t, err, domain.ErrAgentUnavailable)
	assert.True(t, strings.HasPrefix(err.Error(), "Symptom Analyzer Agent"))

	a, _ := newTestAgent(t, ClinicalProtocolDefinition(), &fakeCompleter{reply: "ok"}, nil)
	r.Bind(domain.ClinicalProtocol, a)

	assert.True(t, r.Ready(domain.ClinicalProtocol))
	assert.False(t, r.Ready(domain.SymptomAnalyzer))
	got, err := r.Get(domain.ClinicalProtocol)
	require.NoError(t, err)
	assert.Same(t, a, got)
}

func TestInstrumented(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(ctx)

	c := &fakeCompleter{reply: "ok"}
	inner, _ := newTestAgent(t, ClinicalProtocolDefinition(), c, nil)
	m, err := NewInstrumentedWithMeter(domain.ClinicalProtocol, inner, mp.Meter("test"))
	require.NoError(t, err)

	_, err = m.Run(ctx, "a", "s", "1")
	require.NoError(t, err)
	c.err = errors.New("boom")
	_, err = m.Run(ctx, "b", "s", "1")
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[md.Name] += dp.Value
				}
			}
			if hist, ok := md.Data.(metricdata.Histogram[float64]); ok {
				for _, dp := range hist.DataPoints {
					totals[md.Name] += int64(dp.Count)
				}
			}
		}
	}

	assert.Equal(t, int64(2), totals["diagnosis.agent.requests"])
	assert.Equal(t, int64(1), totals["diagnosis.agent.errors"])
	assert.Equal(t, int64(2), totals["diagnosis.agent.latency"])
}

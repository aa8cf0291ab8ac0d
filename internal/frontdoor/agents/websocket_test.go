package agents

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsim/diagnosis-gateway/internal/agent"
	"github.com/medsim/diagnosis-gateway/internal/core/domain"
	"github.com/medsim/diagnosis-gateway/internal/diagnosis"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/agent/ws/orchestrator?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

// readUntilClose collects every JSON message until the server closes.
func readUntilClose(t *testing.T, conn *websocket.Conn) ([]map[string]any, *websocket.CloseError) {
	t.Helper()
	var events []map[string]any
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			ce, ok := err.(*websocket.CloseError)
			require.True(t, ok, "expected close error, got %v", err)
			return events, ce
		}
		var ev map[string]any
		require.NoError(t, json.Unmarshal(data, &ev))
		events = append(events, ev)
	}
}

func TestWebSocketOrchestrator(t *testing.T) {
	f := newFixture([]string{hypothesisJSON, "ok"}, []string{actionJSON, "ok"})
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	conn := dial(t, srv, "valid")
	require.NoError(t, conn.WriteJSON(map[string]string{"symptoms": "fever and stiff neck", "session_id": "ws-1"}))

	events, ce := readUntilClose(t, conn)
	assert.Equal(t, websocket.CloseNormalClosure, ce.Code)
	require.Len(t, events, 7)

	assert.Equal(t, "Analyzing symptoms...", events[0]["status"])
	assert.Equal(t, "Analyzing symptoms...", events[0]["message"])
	assert.Equal(t, string(domain.EventDiagnosisResult), events[1]["type"])
	assert.Equal(t, "Meningitis", events[1]["data"].(map[string]any)["diagnosis"])
	assert.Equal(t, "Saving initial diagnosis to memory...", events[2]["status"])
	assert.Equal(t, "Generating clinical protocol...", events[3]["status"])
	assert.Equal(t, string(domain.EventPlanResult), events[4]["type"])
	assert.Equal(t, "Immediate", events[4]["data"].(map[string]any)["urgency"])
	assert.Equal(t, "Saving clinical protocol to memory...", events[5]["status"])
	assert.Equal(t, "Completed!", events[6]["status"])

	for _, c := range append(f.analyzer.Calls(), f.clinical.Calls()...) {
		assert.Equal(t, "ws-1", c.sessionID)
		assert.Equal(t, "42", c.userID)
	}
}

func TestWebSocketOrchestrator_AuthFailure(t *testing.T) {
	f := newFixture([]string{hypothesisJSON}, []string{actionJSON})
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	for _, token := range []string{"", "forged"} {
		conn := dial(t, srv, token)
		events, ce := readUntilClose(t, conn)
		assert.Empty(t, events)
		assert.Equal(t, websocket.ClosePolicyViolation, ce.Code)
		assert.Equal(t, "Authentication failed", ce.Text)
	}
	assert.Empty(t, f.analyzer.Calls())
}

func TestWebSocketOrchestrator_InvalidInput(t *testing.T) {
	f := newFixture([]string{hypothesisJSON}, []string{actionJSON})
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	conn := dial(t, srv, "valid")
	require.NoError(t, conn.WriteJSON(map[string]string{"session_id": "ws-2"}))

	events, ce := readUntilClose(t, conn)
	assert.Equal(t, websocket.CloseNormalClosure, ce.Code)
	require.Len(t, events, 1)
	assert.Equal(t, MsgInvalidInput, events[0]["error"])
	assert.Empty(t, f.analyzer.Calls())
}

func TestWebSocketOrchestrator_AgentsNotReady(t *testing.T) {
	f := newFixture([]string{hypothesisJSON}, nil)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	conn := dial(t, srv, "valid")
	events, _ := readUntilClose(t, conn)
	require.Len(t, events, 1)
	assert.Equal(t, MsgAgentsUnavailable, events[0]["error"])
}

func TestWebSocketOrchestrator_StageFailure(t *testing.T) {
	f := newFixture([]string{"not json at all"}, []string{actionJSON})
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	conn := dial(t, srv, "valid")
	require.NoError(t, conn.WriteJSON(map[string]string{"symptoms": "fever"}))

	events, ce := readUntilClose(t, conn)
	assert.Equal(t, websocket.CloseNormalClosure, ce.Code)
	require.Len(t, events, 2)
	assert.Equal(t, "Analyzing symptoms...", events[0]["status"])
	assert.Equal(t, "Error processing initial diagnosis.", events[1]["error"])
	assert.NotContains(t, events[1]["error"], "not json", "raw output stays server-side")
	assert.Empty(t, f.clinical.Calls())
}

// blockingAgent holds every run open until its context ends.
type blockingAgent struct {
	started  chan struct{}
	canceled chan struct{}
}

func (a *blockingAgent) Run(ctx context.Context, _, _, _ string) (*domain.RunOutput, error) {
	close(a.started)
	<-ctx.Done()
	close(a.canceled)
	return nil, ctx.Err()
}

func TestWebSocketOrchestrator_ClientDisconnectCancelsRun(t *testing.T) {
	analyzer := &blockingAgent{started: make(chan struct{}), canceled: make(chan struct{})}
	clinical := &fakeAgent{replies: []string{actionJSON}}
	reg := agent.NewRegistry()
	reg.Bind(domain.SymptomAnalyzer, analyzer)
	reg.Bind(domain.ClinicalProtocol, clinical)

	ws := NewWebSocketHandler(diagnosis.New(reg), stubVerifier{}, discardLogger())
	done := make(chan struct{})
	r := chi.NewRouter()
	r.Get("/agent/ws/orchestrator", func(w http.ResponseWriter, req *http.Request) {
		defer close(done)
		ws.HandleOrchestrator(w, req)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := dial(t, srv, "valid")
	require.NoError(t, conn.WriteJSON(map[string]string{"symptoms": "fever", "session_id": "ws-gone"}))

	var ev map[string]any
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "Analyzing symptoms...", ev["status"])

	select {
	case <-analyzer.started:
	case <-time.After(5 * time.Second):
		t.Fatal("symptom analyzer never started")
	}
	require.NoError(t, conn.Close())

	select {
	case <-analyzer.canceled:
	case <-time.After(5 * time.Second):
		t.Fatal("run context not canceled after client disconnect")
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not return after client disconnect")
	}
	assert.Empty(t, clinical.Calls(), "clinical agent must not run for a departed client")
}

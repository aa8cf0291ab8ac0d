package agents

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
	"github.com/medsim/diagnosis-gateway/internal/core/ports"
	"github.com/medsim/diagnosis-gateway/internal/diagnosis"
)

const (
	wsWriteWait  = 10 * time.Second
	wsReadWait   = 60 * time.Second
	wsReadLimit  = 64 << 10
	wsAuthFailed = "Authentication failed"
)

// Client-facing WebSocket error texts.
const (
	MsgAgentsUnavailable = "Service not available. Agents not initialized."
	MsgInvalidInput      = "Invalid input. Expected {\"symptoms\": \"...\", \"session_id\": \"...\"}."
)

// WebSocketHandler serves the progressive orchestrator.
type WebSocketHandler struct {
	pipeline *diagnosis.Pipeline
	verifier ports.TokenVerifier
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates the progressive orchestrator handler.
func NewWebSocketHandler(pipeline *diagnosis.Pipeline, verifier ports.TokenVerifier, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		pipeline: pipeline,
		verifier: verifier,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// HandleOrchestrator authenticates with the token query parameter, reads one
// symptom message and streams the run's progress events.
func (h *WebSocketHandler) HandleOrchestrator(w http.ResponseWriter, r *http.Request) {
	id, authErr := h.verifier.Verify(r.Context(), r.URL.Query().Get("token"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	if authErr != nil {
		h.logger.Warn("websocket auth failed", slog.String("error", authErr.Error()))
		closeConn(conn, websocket.ClosePolicyViolation, wsAuthFailed)
		return
	}
	logger := h.logger.With(slog.String("username", id.Username))
	logger.Info("websocket connection accepted")

	obs := &wsObserver{conn: conn}

	if !h.pipeline.Ready(domain.SymptomAnalyzer) || !h.pipeline.Ready(domain.ClinicalProtocol) {
		logger.Error("agents not initialized")
		h.fail(obs, MsgAgentsUnavailable)
		return
	}

	in, ok := h.readInput(conn, logger)
	if !ok {
		h.fail(obs, MsgInvalidInput)
		return
	}
	if in.SessionID == "" {
		in.SessionID = uuid.NewString()
	}
	corr := domain.NewCorrelation(in.SessionID, id)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go watchPeer(conn, cancel)

	_, err = h.pipeline.Run(ctx, in.Symptoms, corr, obs)
	switch {
	case errors.Is(err, diagnosis.ErrAbandoned):
		logger.Info("client disconnected", slog.String("session_id", corr.SessionID))
		return
	case err != nil:
		apiErr := diagnosis.AsAPIError(err, diagnosis.MsgInitialDiagnosis)
		logger.Error("websocket orchestration failed",
			slog.String("session_id", corr.SessionID),
			slog.String("error", err.Error()))
		h.fail(obs, apiErr.Message)
		return
	}
	closeConn(conn, websocket.CloseNormalClosure, "")
	logger.Info("websocket connection closed", slog.String("session_id", corr.SessionID))
}

func (h *WebSocketHandler) readInput(conn *websocket.Conn, logger *slog.Logger) (SymptomInput, bool) {
	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadWait))
	defer conn.SetReadDeadline(time.Time{})

	var in SymptomInput
	if err := conn.ReadJSON(&in); err != nil {
		logger.Warn("invalid websocket input", slog.String("error", err.Error()))
		return in, false
	}
	if err := in.validate(); err != nil {
		logger.Warn("invalid websocket input", slog.String("error", err.Error()))
		return in, false
	}
	return in, true
}

// fail sends the terminal error event and closes normally.
func (h *WebSocketHandler) fail(obs *wsObserver, message string) {
	if err := obs.send(domain.ErrorEvent(message)); err != nil {
		h.logger.Debug("error event not delivered", slog.String("error", err.Error()))
	}
	closeConn(obs.conn, websocket.CloseNormalClosure, "")
}

// watchPeer drains the connection until the peer closes or errors, then
// cancels the run. Messages after the first are ignored.
func watchPeer(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func closeConn(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}

// wsObserver writes pipeline progress as JSON messages. Only the handler
// goroutine writes data frames.
type wsObserver struct {
	conn *websocket.Conn
}

var _ diagnosis.Observer = (*wsObserver)(nil)

func (o *wsObserver) send(ev domain.StreamEvent) error {
	if err := o.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return o.conn.WriteJSON(ev)
}

func (o *wsObserver) Status(_ context.Context, msg string) error {
	return o.send(domain.StatusEvent(msg))
}

func (o *wsObserver) Diagnosis(_ context.Context, h domain.DiagnosisHypothesis) error {
	return o.send(domain.ResultEvent(domain.EventDiagnosisResult, h))
}

func (o *wsObserver) Plan(_ context.Context, a domain.ClinicalAction) error {
	return o.send(domain.ResultEvent(domain.EventPlanResult, a))
}

package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/beardcraft/pokering/internal/poker"
	"github.com/beardcraft/pokering/internal/ratelimit"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Per-socket action budgets, mirroring the limits the protocol has always
// enforced.
var eventLimits = map[string]struct {
	limit  int
	window time.Duration
}{
	EventJoin:               {5, time.Minute},
	EventVote:               {30, time.Minute},
	EventHostVotingDecision: {10, time.Minute},
	EventRequestNewRound:    {3, time.Hour},
	EventRequestNewSession:  {3, time.Hour},
}

// connState is the session binding of one connection. It is only touched
// from the connection's read loop, so it needs no lock.
type connState struct {
	sessionID string
	clientID  string
}

// Handler owns the websocket endpoint and translates envelope events into
// poker store operations.
type Handler struct {
	store   *poker.Store
	hub     *Hub
	limiter *ratelimit.Limiter
	metrics *Metrics
	logger  *slog.Logger
}

func NewHandler(store *poker.Store, hub *Hub, limiter *ratelimit.Limiter, metrics *Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		store:   store,
		hub:     hub,
		limiter: limiter,
		metrics: metrics,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.HandleConnection)
}

func (h *Handler) HandleConnection(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return err
	}

	conn := newWSConn(ws, uuid.NewString(), h.logger)
	state := &connState{}
	ctx := c.Request().Context()

	go conn.writePump()
	conn.readPump(func(msg *ClientMessage) {
		h.dispatch(ctx, conn, state, msg)
	})

	if state.sessionID != "" {
		h.store.Disconnect(state.sessionID, state.clientID, conn.ID())
		h.hub.Unregister(state.sessionID, conn.ID())
	}
	return nil
}

func (h *Handler) dispatch(ctx context.Context, conn Conn, state *connState, msg *ClientMessage) {
	// Only recognized events reach the metrics label set; a client-minted
	// name must never grow the registry.
	budget, ok := eventLimits[msg.Event]
	if !ok {
		h.logger.Debug("unknown event dropped", "event", msg.Event)
		return
	}
	h.metrics.IncEvent(msg.Event)

	if err := h.limiter.Allow(ctx, msg.Event, conn.ID(), budget.limit, budget.window); err != nil {
		h.logger.Warn("rate limit exceeded", "conn_id", conn.ID(), "event", msg.Event)
		if msg.Event == EventJoin || msg.Event == EventRequestNewRound || msg.Event == EventRequestNewSession {
			h.sendJoinFailed(conn, "too many "+msg.Event+" attempts")
		}
		return
	}

	switch msg.Event {
	case EventJoin:
		h.handleJoin(conn, state, msg.Data)
	case EventVote:
		h.handleVote(conn, state, msg.Data)
	case EventHostVotingDecision:
		h.handleDecision(conn, state, msg.Data)
	case EventRequestNewRound:
		h.handleNewRound(conn, state, msg.Data)
	case EventRequestNewSession:
		h.handleNewSession(conn, state, msg.Data)
	}
}

func (h *Handler) handleJoin(conn Conn, state *connState, data json.RawMessage) {
	var payload JoinPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendJoinFailed(conn, "invalid request format")
		return
	}
	if state.sessionID != "" {
		h.sendJoinFailed(conn, "connection already joined a session")
		return
	}
	if !poker.ValidSessionID(payload.SessionID) {
		h.sendJoinFailed(conn, "invalid session id")
		return
	}

	// Register first so the joining client sees its own usersUpdate.
	h.hub.Register(payload.SessionID, conn)
	res, err := h.store.Join(poker.JoinRequest{
		SessionID:   payload.SessionID,
		ClientID:    payload.ClientID,
		ConnID:      conn.ID(),
		Username:    payload.Username,
		WantsToVote: payload.WantsToVote,
		Deck:        payload.Deck,
	})
	if err != nil {
		h.hub.Unregister(payload.SessionID, conn.ID())
		h.sendJoinFailed(conn, joinFailReason(err))
		return
	}

	state.sessionID = payload.SessionID
	state.clientID = payload.ClientID
	if res.AskHost {
		h.hub.SendTo(conn.ID(), poker.EventAskHostToJoinVoting, nil)
	}
}

func (h *Handler) handleVote(conn Conn, state *connState, data json.RawMessage) {
	if state.sessionID == "" {
		return
	}
	var payload VotePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	if payload.SessionID != state.sessionID {
		h.logger.Debug("vote for foreign session dropped", "conn_id", conn.ID())
		return
	}
	var value poker.Vote
	if err := json.Unmarshal(payload.Value, &value); err != nil {
		return
	}
	if err := h.store.Vote(state.sessionID, state.clientID, value); err != nil {
		h.logger.Debug("vote rejected", "conn_id", conn.ID(), "error", err)
	}
}

func (h *Handler) handleDecision(conn Conn, state *connState, data json.RawMessage) {
	if state.sessionID == "" {
		return
	}
	var payload DecisionPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.WantsToVote == nil {
		return
	}
	if payload.SessionID != state.sessionID {
		return
	}
	if err := h.store.HostVotingDecision(state.sessionID, state.clientID, *payload.WantsToVote); err != nil {
		h.logger.Debug("host decision rejected", "conn_id", conn.ID(), "error", err)
	}
}

func (h *Handler) handleNewRound(conn Conn, state *connState, data json.RawMessage) {
	if !h.boundSessionRef(state, data) {
		return
	}
	if err := h.store.ResetRound(state.sessionID, state.clientID); err != nil {
		h.sendJoinFailed(conn, joinFailReason(err))
	}
}

func (h *Handler) handleNewSession(conn Conn, state *connState, data json.RawMessage) {
	if !h.boundSessionRef(state, data) {
		return
	}
	if _, err := h.store.NewSessionFrom(state.sessionID, state.clientID); err != nil {
		h.sendJoinFailed(conn, joinFailReason(err))
	}
}

// boundSessionRef reports whether the payload names the session this
// connection joined. Host actions against any other session are dropped.
func (h *Handler) boundSessionRef(state *connState, data json.RawMessage) bool {
	if state.sessionID == "" {
		return false
	}
	var payload SessionRefPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return false
	}
	return payload.SessionID == state.sessionID
}

func (h *Handler) sendJoinFailed(conn Conn, reason string) {
	h.metrics.IncJoinFailure()
	conn.Send(&ServerMessage{
		Event: poker.EventJoinFailed,
		Data:  poker.JoinFailedPayload{Reason: reason},
	})
}

func joinFailReason(err error) string {
	switch err {
	case poker.ErrInvalidUsername:
		return "invalid username (letters only, max 20)"
	case poker.ErrInvalidClientID:
		return "invalid client id"
	case poker.ErrSessionNotFound:
		return "session not found"
	case poker.ErrSessionFull:
		return "session is full"
	case poker.ErrServerFull:
		return "maximum number of active sessions reached"
	case poker.ErrNotHost:
		return "only the host can do that"
	default:
		return "unable to complete request"
	}
}

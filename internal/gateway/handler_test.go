package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/beardcraft/pokering/internal/poker"
	"github.com/beardcraft/pokering/internal/ratelimit"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
)

func newTestGateway(t *testing.T) (*httptest.Server, *poker.Store) {
	t.Helper()

	logger := discardLogger()
	hub := NewHub(logger)
	store := poker.NewStore(poker.Config{
		CountdownTick: time.Millisecond,
	}, hub, logger)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	limiter := ratelimit.NewLimiter(rdb, logger)

	e := echo.New()
	NewHandler(store, hub, limiter, NewMetrics(), logger).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, store
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendEvent(t *testing.T, ws *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", event, err)
	}
	if err := ws.WriteJSON(ClientMessage{Event: event, Data: raw}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

// readEvent reads frames until one matches the wanted event, skipping
// interleaved broadcasts such as roster updates.
func readEvent(t *testing.T, ws *websocket.Conn, want string) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	ws.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		var msg struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := ws.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if msg.Event == want {
			return msg.Data
		}
	}
	t.Fatalf("no %s event before deadline", want)
	return nil
}

func join(t *testing.T, ws *websocket.Conn, sessionID, username, clientID string, wants *bool) {
	t.Helper()
	sendEvent(t, ws, EventJoin, JoinPayload{
		SessionID:   sessionID,
		Username:    username,
		ClientID:    clientID,
		WantsToVote: wants,
	})
}

// newDispatchHandler wires a handler without the HTTP layer, for tests
// that drive dispatch directly over fake connections.
func newDispatchHandler(t *testing.T) (*Handler, *poker.Store) {
	t.Helper()
	logger := discardLogger()
	hub := NewHub(logger)
	store := poker.NewStore(poker.Config{
		CountdownTick: time.Millisecond,
	}, hub, logger)
	h := NewHandler(store, hub, ratelimit.NewLimiter(nil, logger), NewMetrics(), logger)
	return h, store
}

func dispatch(t *testing.T, h *Handler, conn Conn, state *connState, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", event, err)
	}
	h.dispatch(context.Background(), conn, state, &ClientMessage{Event: event, Data: raw})
}

func TestUnknownEventNotCounted(t *testing.T) {
	h, _ := newDispatchHandler(t)
	conn := newFakeConn("conn-a")

	dispatch(t, h, conn, &connState{}, "definitelyNotAnEvent", map[string]string{})
	if got := testutil.CollectAndCount(h.metrics.eventsTotal); got != 0 {
		t.Errorf("unknown event minted %d label values, want 0", got)
	}

	dispatch(t, h, conn, &connState{}, EventVote, VotePayload{})
	if got := testutil.CollectAndCount(h.metrics.eventsTotal); got != 1 {
		t.Errorf("recognized event produced %d label values, want 1", got)
	}
}

func TestVoteForForeignSessionIgnored(t *testing.T) {
	h, store := newDispatchHandler(t)
	sess, err := store.Create()
	if err != nil {
		t.Fatal(err)
	}

	decline := false
	hostConn := newFakeConn("conn-host")
	hostState := &connState{}
	dispatch(t, h, hostConn, hostState, EventJoin, JoinPayload{
		SessionID: sess.ID, Username: "hanna", ClientID: "client-hanna", WantsToVote: &decline,
	})
	voterConn := newFakeConn("conn-voter")
	voterState := &connState{}
	dispatch(t, h, voterConn, voterState, EventJoin, JoinPayload{
		SessionID: sess.ID, Username: "victor", ClientID: "client-victor",
	})

	dispatch(t, h, voterConn, voterState, EventVote, VotePayload{
		SessionID: "AAAAAAAAbbbbbbbb",
		Value:     json.RawMessage(`5`),
	})
	if v := sess.Snapshot()["conn-voter"].Vote; v != nil {
		t.Fatal("vote naming a foreign session must not register")
	}

	dispatch(t, h, voterConn, voterState, EventVote, VotePayload{
		SessionID: sess.ID,
		Value:     json.RawMessage(`5`),
	})
	if v := sess.Snapshot()["conn-voter"].Vote; v == nil {
		t.Fatal("vote naming the bound session must register")
	}
}

func TestNewRoundForForeignSessionIgnored(t *testing.T) {
	h, store := newDispatchHandler(t)
	sess, err := store.Create()
	if err != nil {
		t.Fatal(err)
	}

	decline := false
	hostConn := newFakeConn("conn-host")
	hostState := &connState{}
	dispatch(t, h, hostConn, hostState, EventJoin, JoinPayload{
		SessionID: sess.ID, Username: "hanna", ClientID: "client-hanna", WantsToVote: &decline,
	})
	voterConn := newFakeConn("conn-voter")
	voterState := &connState{}
	dispatch(t, h, voterConn, voterState, EventJoin, JoinPayload{
		SessionID: sess.ID, Username: "victor", ClientID: "client-victor",
	})
	dispatch(t, h, voterConn, voterState, EventVote, VotePayload{
		SessionID: sess.ID,
		Value:     json.RawMessage(`5`),
	})
	deadline := time.Now().Add(time.Second)
	for sess.Phase() != poker.PhaseRevealed && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if sess.Phase() != poker.PhaseRevealed {
		t.Fatal("round never revealed")
	}

	dispatch(t, h, hostConn, hostState, EventRequestNewRound, SessionRefPayload{
		SessionID: "AAAAAAAAbbbbbbbb",
	})
	if sess.Phase() != poker.PhaseRevealed {
		t.Fatal("reset naming a foreign session must not apply")
	}

	dispatch(t, h, hostConn, hostState, EventRequestNewRound, SessionRefPayload{
		SessionID: sess.ID,
	})
	if sess.Phase() != poker.PhaseCollecting {
		t.Fatal("reset naming the bound session must apply")
	}
}

func TestJoinUnknownSession(t *testing.T) {
	srv, _ := newTestGateway(t)
	ws := dialWS(t, srv)

	join(t, ws, "AAAAAAAAbbbbbbbb", "alice", "client-alice", nil)

	data := readEvent(t, ws, poker.EventJoinFailed)
	var payload poker.JoinFailedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Reason != "session not found" {
		t.Errorf("reason = %q", payload.Reason)
	}
}

func TestJoinInvalidUsername(t *testing.T) {
	srv, store := newTestGateway(t)
	sess, err := store.Create()
	if err != nil {
		t.Fatal(err)
	}
	ws := dialWS(t, srv)

	join(t, ws, sess.ID, "alice99", "client-alice", nil)

	data := readEvent(t, ws, poker.EventJoinFailed)
	var payload poker.JoinFailedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(payload.Reason, "username") {
		t.Errorf("reason = %q, want username complaint", payload.Reason)
	}
}

func TestJoinBroadcastsRoster(t *testing.T) {
	srv, store := newTestGateway(t)
	sess, err := store.Create()
	if err != nil {
		t.Fatal(err)
	}

	decline := false
	host := dialWS(t, srv)
	join(t, host, sess.ID, "hanna", "client-hanna", &decline)
	readEvent(t, host, poker.EventUsersUpdate)

	voter := dialWS(t, srv)
	join(t, voter, sess.ID, "victor", "client-victor", nil)

	data := readEvent(t, voter, poker.EventUsersUpdate)
	var roster poker.Roster
	if err := json.Unmarshal(data, &roster); err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, u := range roster {
		names[u.Username] = true
	}
	if !names["hanna"] || !names["victor"] {
		t.Errorf("roster missing participants: %v", names)
	}
}

func TestUndecidedHostIsPrompted(t *testing.T) {
	srv, store := newTestGateway(t)
	sess, err := store.Create()
	if err != nil {
		t.Fatal(err)
	}

	host := dialWS(t, srv)
	join(t, host, sess.ID, "hanna", "client-hanna", nil)

	readEvent(t, host, poker.EventAskHostToJoinVoting)
}

func TestFullRoundOverWire(t *testing.T) {
	srv, store := newTestGateway(t)
	sess, err := store.Create()
	if err != nil {
		t.Fatal(err)
	}

	decline := false
	host := dialWS(t, srv)
	join(t, host, sess.ID, "hanna", "client-hanna", &decline)
	readEvent(t, host, poker.EventUsersUpdate)

	voter := dialWS(t, srv)
	join(t, voter, sess.ID, "victor", "client-victor", nil)
	readEvent(t, voter, poker.EventUsersUpdate)

	sendEvent(t, voter, EventVote, VotePayload{
		SessionID: sess.ID,
		Value:     json.RawMessage(`5`),
	})

	readEvent(t, voter, poker.EventCountdown)

	data := readEvent(t, voter, poker.EventRevealVotes)
	var payload poker.RevealPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Stats == nil {
		t.Fatal("reveal carried no stats")
	}
	if payload.Stats.Average != 5 || payload.Stats.Median != 5 {
		t.Errorf("stats = %+v, want average and median 5", payload.Stats)
	}

	// The host observes the same reveal.
	readEvent(t, host, poker.EventRevealVotes)
}

func TestDisconnectRemovesParticipant(t *testing.T) {
	srv, store := newTestGateway(t)
	sess, err := store.Create()
	if err != nil {
		t.Fatal(err)
	}

	decline := false
	host := dialWS(t, srv)
	join(t, host, sess.ID, "hanna", "client-hanna", &decline)
	readEvent(t, host, poker.EventUsersUpdate)

	voter := dialWS(t, srv)
	join(t, voter, sess.ID, "victor", "client-victor", nil)
	readEvent(t, voter, poker.EventUsersUpdate)
	voter.Close()

	// The departure reaches the remaining client as a roster update.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatal("roster never shrank after disconnect")
		}
		data := readEvent(t, host, poker.EventUsersUpdate)
		var roster poker.Roster
		if err := json.Unmarshal(data, &roster); err != nil {
			t.Fatal(err)
		}
		if len(roster) == 1 {
			break
		}
	}
}

func TestJoinRateLimit(t *testing.T) {
	srv, _ := newTestGateway(t)
	ws := dialWS(t, srv)

	// The join budget is five per minute; every attempt here targets a
	// session that does not exist, so the first five fail with not-found
	// and the sixth with the limit.
	for i := 0; i < 5; i++ {
		join(t, ws, "AAAAAAAAbbbbbbbb", "alice", fmt.Sprintf("client-%d", i), nil)
		readEvent(t, ws, poker.EventJoinFailed)
	}
	join(t, ws, "AAAAAAAAbbbbbbbb", "alice", "client-last", nil)
	data := readEvent(t, ws, poker.EventJoinFailed)
	var payload poker.JoinFailedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(payload.Reason, "too many") {
		t.Errorf("reason = %q, want rate limit message", payload.Reason)
	}
}

func TestNewRoundRequiresHost(t *testing.T) {
	srv, store := newTestGateway(t)
	sess, err := store.Create()
	if err != nil {
		t.Fatal(err)
	}

	decline := false
	host := dialWS(t, srv)
	join(t, host, sess.ID, "hanna", "client-hanna", &decline)
	readEvent(t, host, poker.EventUsersUpdate)

	voter := dialWS(t, srv)
	join(t, voter, sess.ID, "victor", "client-victor", nil)
	readEvent(t, voter, poker.EventUsersUpdate)

	sendEvent(t, voter, EventRequestNewRound, SessionRefPayload{SessionID: sess.ID})

	data := readEvent(t, voter, poker.EventJoinFailed)
	var payload poker.JoinFailedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(payload.Reason, "host") {
		t.Errorf("reason = %q, want host complaint", payload.Reason)
	}
}

func TestNewSessionRedirectsEveryone(t *testing.T) {
	srv, store := newTestGateway(t)
	sess, err := store.Create()
	if err != nil {
		t.Fatal(err)
	}

	decline := false
	host := dialWS(t, srv)
	join(t, host, sess.ID, "hanna", "client-hanna", &decline)
	readEvent(t, host, poker.EventUsersUpdate)

	voter := dialWS(t, srv)
	join(t, voter, sess.ID, "victor", "client-victor", nil)
	readEvent(t, voter, poker.EventUsersUpdate)

	sendEvent(t, host, EventRequestNewSession, SessionRefPayload{SessionID: sess.ID})

	for _, ws := range []*websocket.Conn{host, voter} {
		data := readEvent(t, ws, poker.EventRedirectToNewSession)
		var payload poker.RedirectPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(payload.URL, "/session/") {
			t.Errorf("redirect url = %q", payload.URL)
		}
		if len(payload.Usernames) != 2 {
			t.Errorf("usernames carried %d entries, want 2", len(payload.Usernames))
		}
	}
}

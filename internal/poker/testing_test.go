package poker

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type sinkEvent struct {
	SessionID string
	ConnID    string
	Event     string
	Payload   any
}

// recorderSink captures broadcasts so tests can assert on the event stream
// without a transport.
type recorderSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

func (r *recorderSink) Broadcast(sessionID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sinkEvent{SessionID: sessionID, Event: event, Payload: payload})
}

func (r *recorderSink) SendTo(connID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sinkEvent{ConnID: connID, Event: event, Payload: payload})
}

func (r *recorderSink) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Event == event {
			n++
		}
	}
	return n
}

func (r *recorderSink) last(event string) (sinkEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Event == event {
			return r.events[i], true
		}
	}
	return sinkEvent{}, false
}

// waitFor polls until at least one event with the given name arrived, or
// fails the test after the deadline. Needed for countdown goroutine events.
func (r *recorderSink) waitFor(t *testing.T, event string, timeout time.Duration) sinkEvent {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e, ok := r.last(event); ok {
			return e
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q event", event)
	return sinkEvent{}
}

func newTestStore(t *testing.T, cfg Config) (*Store, *recorderSink) {
	t.Helper()
	sink := &recorderSink{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStore(cfg, sink, logger), sink
}

// fastConfig shrinks the countdown so round tests finish in milliseconds.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.CountdownTick = time.Millisecond
	return cfg
}

func boolPtr(b bool) *bool { return &b }

func mustJoin(t *testing.T, st *Store, sessionID, clientID, connID, username string, wants *bool) *JoinResult {
	t.Helper()
	res, err := st.Join(JoinRequest{
		SessionID:   sessionID,
		ClientID:    clientID,
		ConnID:      connID,
		Username:    username,
		WantsToVote: wants,
	})
	if err != nil {
		t.Fatalf("join %s: %v", clientID, err)
	}
	return res
}

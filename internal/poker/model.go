// Package poker implements the session synchronization core: the
// per-session roster and round state machine, vote collection, the
// countdown-then-reveal flow, and reveal statistics.
package poker

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"
)

var (
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidClientID = errors.New("invalid client id")
	ErrInvalidVote     = errors.New("invalid vote")
	ErrNotHost         = errors.New("only the host can do that")
	ErrSessionNotFound = errors.New("session not found")
	ErrDuplicateVote   = errors.New("vote already cast this round")
	ErrSessionFull     = errors.New("session is full")
	ErrServerFull      = errors.New("maximum number of active sessions reached")
	ErrNotEligible     = errors.New("participant is not voting this round")
	ErrWrongPhase      = errors.New("operation not valid in current phase")
)

var (
	usernameRe  = regexp.MustCompile(`^[A-Za-z]{1,20}$`)
	sessionIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{16}$`)
	clientIDRe  = regexp.MustCompile(`^[A-Za-z0-9_-]{7,36}$`)
)

// ValidSessionID reports whether id has the generated session id format.
func ValidSessionID(id string) bool {
	return sessionIDRe.MatchString(id)
}

// Phase is the round lifecycle state of a session.
type Phase string

const (
	PhaseCollecting   Phase = "collecting"
	PhaseCountingDown Phase = "counting_down"
	PhaseRevealed     Phase = "revealed"
)

// DefaultDeck is the estimate scale used when the host does not supply one.
var DefaultDeck = []int{1, 2, 3, 5, 8, 13, 21}

const (
	deckValueMin = 1
	deckValueMax = 1000
	deckSizeMin  = 2
	deckSizeMax  = 20
)

// Vote is a single estimate: either a numeric deck value or the "unsure"
// sentinel. It marshals as a JSON number or the string "?".
type Vote struct {
	Unsure bool
	Value  int
}

func NumericVote(v int) Vote { return Vote{Value: v} }

func UnsureVote() Vote { return Vote{Unsure: true} }

func (v Vote) MarshalJSON() ([]byte, error) {
	if v.Unsure {
		return json.Marshal("?")
	}
	return json.Marshal(v.Value)
}

func (v *Vote) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "?" {
			return fmt.Errorf("unknown vote sentinel %q", s)
		}
		v.Unsure = true
		v.Value = 0
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	v.Unsure = false
	v.Value = int(n)
	return nil
}

// Participant is one roster entry. The roster is keyed by client id, so a
// device reconnecting keeps its entry and only the connection handle moves.
type Participant struct {
	ClientID    string
	Username    string
	ConnID      string
	Vote        *Vote
	WantsToVote *bool
}

// Session is the authoritative state of one voting room. All mutation goes
// through Store methods, which hold s.mu; sessions never share a lock.
type Session struct {
	ID string

	mu           sync.Mutex
	roster       map[string]*Participant
	hostClientID string
	phase        Phase
	deck         []int
	generation   uint64
	createdAt    time.Time
	lastActivity time.Time

	// Identity mappings carried over from a predecessor session, so
	// rejoining clients are recognized without re-prompting.
	seededWants map[string]*bool
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:           id,
		roster:       make(map[string]*Participant),
		phase:        PhaseCollecting,
		deck:         append([]int(nil), DefaultDeck...),
		createdAt:    now,
		lastActivity: now,
		seededWants:  make(map[string]*bool),
	}
}

// UserView is the client-visible projection of a Participant, keyed by
// connection handle in usersUpdate payloads.
type UserView struct {
	Username    string `json:"username"`
	Vote        *Vote  `json:"vote"`
	IsHost      bool   `json:"isHost"`
	ClientID    string `json:"clientId"`
	WantsToVote *bool  `json:"wantsToVote,omitempty"`
}

// Roster is the usersUpdate payload shape: connection handle to view.
type Roster map[string]UserView

// snapshotLocked builds a point-in-time roster view. Callers hold s.mu.
func (s *Session) snapshotLocked() Roster {
	out := make(Roster, len(s.roster))
	for _, p := range s.roster {
		out[p.ConnID] = UserView{
			Username:    p.Username,
			Vote:        p.Vote,
			IsHost:      p.ClientID == s.hostClientID,
			ClientID:    p.ClientID,
			WantsToVote: p.WantsToVote,
		}
	}
	return out
}

// eligibleLocked returns the voting-eligible participants: every non-host
// entry, plus the host only when they opted in.
func (s *Session) eligibleLocked() []*Participant {
	var out []*Participant
	for _, p := range s.roster {
		if p.ClientID == s.hostClientID {
			if p.WantsToVote == nil || !*p.WantsToVote {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

func (s *Session) allVotedLocked() bool {
	eligible := s.eligibleLocked()
	if len(eligible) == 0 {
		return false
	}
	for _, p := range eligible {
		if p.Vote == nil {
			return false
		}
	}
	return true
}

func (s *Session) touchLocked(now time.Time) {
	s.lastActivity = now
}

// Snapshot returns a consistent roster view for broadcast or inspection.
func (s *Session) Snapshot() Roster {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Phase returns the current round phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Deck returns a copy of the session's estimate scale.
func (s *Session) Deck() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.deck...)
}

// HostClientID returns the client id holding host privileges, or "" if no
// participant has claimed host yet.
func (s *Session) HostClientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostClientID
}

// sanitizeDeck validates a host-supplied deck, dropping out-of-range and
// duplicate values. Returns nil when the result is unusable.
func sanitizeDeck(deck []int) []int {
	if len(deck) < deckSizeMin || len(deck) > deckSizeMax {
		return nil
	}
	seen := make(map[int]bool, len(deck))
	var clean []int
	for _, v := range deck {
		if v < deckValueMin || v > deckValueMax || seen[v] {
			continue
		}
		clean = append(clean, v)
		seen[v] = true
	}
	if len(clean) < deckSizeMin {
		return nil
	}
	return clean
}

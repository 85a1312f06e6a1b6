package poker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/beardcraft/pokering/internal/shared"
)

// Config tunes session limits and round timing. Zero values are replaced by
// DefaultConfig values in NewStore.
type Config struct {
	MaxSessions        int
	MaxUsersPerSession int
	IdleTimeout        time.Duration
	AbsoluteTimeout    time.Duration
	CleanupInterval    time.Duration

	CountdownStart int
	CountdownTick  time.Duration

	OutlierStepThreshold int

	// ResetHostVoteEachRound re-prompts the host's voting opt-in on every
	// in-place round reset. When false the decision holds for the
	// session's lifetime.
	ResetHostVoteEachRound bool
}

func DefaultConfig() Config {
	return Config{
		MaxSessions:          1000,
		MaxUsersPerSession:   100,
		IdleTimeout:          2 * time.Hour,
		AbsoluteTimeout:      24 * time.Hour,
		CleanupInterval:      5 * time.Minute,
		CountdownStart:       3,
		CountdownTick:        time.Second,
		OutlierStepThreshold: 2,
	}
}

// Store is the registry of live sessions. It owns creation, lookup and
// garbage collection; all round-state mutation happens through its methods
// under the per-session lock.
type Store struct {
	cfg      Config
	sink     Broadcaster
	logger   *slog.Logger
	clock    func() time.Time
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore(cfg Config, sink Broadcaster, logger *slog.Logger) *Store {
	def := DefaultConfig()
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = def.MaxSessions
	}
	if cfg.MaxUsersPerSession <= 0 {
		cfg.MaxUsersPerSession = def.MaxUsersPerSession
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.AbsoluteTimeout <= 0 {
		cfg.AbsoluteTimeout = def.AbsoluteTimeout
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.CountdownStart <= 0 {
		cfg.CountdownStart = def.CountdownStart
	}
	if cfg.CountdownTick <= 0 {
		cfg.CountdownTick = def.CountdownTick
	}
	if cfg.OutlierStepThreshold <= 0 {
		cfg.OutlierStepThreshold = def.OutlierStepThreshold
	}
	return &Store{
		cfg:      cfg,
		sink:     sink,
		logger:   logger.With("component", "poker_store"),
		clock:    time.Now,
		sessions: make(map[string]*Session),
	}
}

func (st *Store) Config() Config {
	return st.cfg
}

// Create allocates a fresh session with a random id. It fails with
// ErrServerFull once MaxSessions is reached.
func (st *Store) Create() (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.sessions) >= st.cfg.MaxSessions {
		return nil, ErrServerFull
	}
	sess := newSession(shared.NewSessionID(), st.clock())
	st.sessions[sess.ID] = sess
	return sess, nil
}

// Get returns the session for id, or ErrSessionNotFound.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Delete drops a session from the registry.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Counts reports active sessions and total roster entries, for health and
// metrics surfaces.
func (st *Store) Counts() (sessions, users int) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	for _, sess := range st.sessions {
		sess.mu.Lock()
		users += len(sess.roster)
		sess.mu.Unlock()
	}
	return len(st.sessions), users
}

// Sweep removes sessions idle past IdleTimeout or older than
// AbsoluteTimeout. A session whose roster emptied stays until the idle
// grace passes, so a brief full disconnect does not destroy the room.
func (st *Store) Sweep(now time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	var expired []string
	for id, sess := range st.sessions {
		sess.mu.Lock()
		idle := now.Sub(sess.lastActivity) > st.cfg.IdleTimeout
		old := now.Sub(sess.createdAt) > st.cfg.AbsoluteTimeout
		sess.mu.Unlock()
		if idle || old {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(st.sessions, id)
	}
	if len(expired) > 0 {
		st.logger.Warn("cleaned up expired sessions", "count", len(expired))
	}
	return len(expired)
}

// RunJanitor sweeps on CleanupInterval until stop is closed.
func (st *Store) RunJanitor(stop <-chan struct{}) {
	ticker := time.NewTicker(st.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			st.Sweep(st.clock())
		}
	}
}

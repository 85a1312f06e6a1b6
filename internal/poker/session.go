package poker

// JoinRequest is the validated input to Store.Join.
type JoinRequest struct {
	SessionID   string
	ClientID    string
	ConnID      string
	Username    string
	WantsToVote *bool
	// Deck optionally customizes the estimate scale. Only honored for the
	// join that claims host.
	Deck []int
}

// JoinResult tells the transport layer what to push after a join commits.
type JoinResult struct {
	Session *Session
	// AskHost is set when the joining client claimed host without a
	// voting decision, so the client should be prompted once.
	AskHost bool
}

// Join admits or re-admits a client to a session. The first committed join
// of a hostless session atomically claims host; a repeat clientID updates
// the existing entry's connection handle and username without disturbing
// its vote or the round phase.
func (st *Store) Join(req JoinRequest) (*JoinResult, error) {
	if !usernameRe.MatchString(req.Username) {
		return nil, ErrInvalidUsername
	}
	if !clientIDRe.MatchString(req.ClientID) {
		return nil, ErrInvalidClientID
	}
	sess, err := st.Get(req.SessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	sess.touchLocked(st.clock())

	if existing, ok := sess.roster[req.ClientID]; ok {
		existing.ConnID = req.ConnID
		existing.Username = req.Username
		snap := sess.snapshotLocked()
		sess.mu.Unlock()

		st.sink.Broadcast(sess.ID, EventUsersUpdate, snap)
		return &JoinResult{Session: sess}, nil
	}

	if len(sess.roster) >= st.cfg.MaxUsersPerSession {
		sess.mu.Unlock()
		return nil, ErrSessionFull
	}

	claimedHost := false
	if sess.hostClientID == "" {
		sess.hostClientID = req.ClientID
		claimedHost = true
		if clean := sanitizeDeck(req.Deck); clean != nil {
			sess.deck = clean
		}
	}
	isHost := req.ClientID == sess.hostClientID

	p := &Participant{
		ClientID: req.ClientID,
		Username: req.Username,
		ConnID:   req.ConnID,
	}
	if isHost {
		if req.WantsToVote != nil {
			p.WantsToVote = req.WantsToVote
		} else if seeded, ok := sess.seededWants[req.ClientID]; ok {
			p.WantsToVote = seeded
		}
	}
	sess.roster[req.ClientID] = p

	askHost := isHost && p.WantsToVote == nil
	snap := sess.snapshotLocked()
	sess.mu.Unlock()

	st.sink.Broadcast(sess.ID, EventUsersUpdate, snap)
	st.logger.Debug("participant joined",
		"session_id", sess.ID, "client_id", req.ClientID, "host", claimedHost)
	return &JoinResult{Session: sess, AskHost: askHost}, nil
}

// Vote records a participant's estimate. One vote per round; a repeat is
// ErrDuplicateVote and leaves state untouched. When the last voting-eligible
// participant votes, the round moves to CountingDown and the reveal
// countdown starts.
func (st *Store) Vote(sessionID, clientID string, value Vote) error {
	sess, err := st.Get(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.phase != PhaseCollecting {
		sess.mu.Unlock()
		return ErrWrongPhase
	}
	p, ok := sess.roster[clientID]
	if !ok {
		sess.mu.Unlock()
		return ErrSessionNotFound
	}
	if clientID == sess.hostClientID && (p.WantsToVote == nil || !*p.WantsToVote) {
		sess.mu.Unlock()
		return ErrNotEligible
	}
	if p.Vote != nil {
		sess.mu.Unlock()
		return ErrDuplicateVote
	}
	if !value.Unsure && !deckContains(sess.deck, value.Value) {
		sess.mu.Unlock()
		return ErrInvalidVote
	}

	v := value
	p.Vote = &v
	sess.touchLocked(st.clock())

	startCountdown := sess.allVotedLocked()
	var gen uint64
	if startCountdown {
		sess.phase = PhaseCountingDown
		gen = sess.generation
	}
	snap := sess.snapshotLocked()
	sess.mu.Unlock()

	st.sink.Broadcast(sess.ID, EventUsersUpdate, snap)
	if startCountdown {
		go st.runCountdown(sess, gen)
	}
	return nil
}

// HostVotingDecision records the host's once-per-round voting opt-in. It is
// ignored for non-hosts and never overrides a decision already made this
// round.
func (st *Store) HostVotingDecision(sessionID, clientID string, wantsToVote bool) error {
	sess, err := st.Get(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	p, ok := sess.roster[clientID]
	if !ok || clientID != sess.hostClientID {
		sess.mu.Unlock()
		return ErrNotHost
	}
	if p.WantsToVote != nil {
		sess.mu.Unlock()
		return nil
	}
	p.WantsToVote = &wantsToVote
	sess.touchLocked(st.clock())
	snap := sess.snapshotLocked()
	sess.mu.Unlock()

	st.sink.Broadcast(sess.ID, EventUsersUpdate, snap)
	return nil
}

// ResetRound is the host's in-place reset: votes cleared, phase back to
// Collecting, any running countdown invalidated. Roster identity is
// untouched.
func (st *Store) ResetRound(sessionID, clientID string) error {
	sess, err := st.Get(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if clientID != sess.hostClientID {
		sess.mu.Unlock()
		return ErrNotHost
	}
	sess.phase = PhaseCollecting
	sess.generation++
	for _, p := range sess.roster {
		p.Vote = nil
		if st.cfg.ResetHostVoteEachRound && p.ClientID == sess.hostClientID {
			p.WantsToVote = nil
		}
	}
	sess.touchLocked(st.clock())
	askHost := false
	if host, ok := sess.roster[sess.hostClientID]; ok && host.WantsToVote == nil {
		askHost = true
	}
	var hostConnID string
	if host, ok := sess.roster[sess.hostClientID]; ok {
		hostConnID = host.ConnID
	}
	snap := sess.snapshotLocked()
	sess.mu.Unlock()

	st.sink.Broadcast(sess.ID, EventUsersUpdate, snap)
	if askHost && hostConnID != "" {
		st.sink.SendTo(hostConnID, EventAskHostToJoinVoting, nil)
	}
	return nil
}

// Disconnect removes the roster entry bound to connID. A stale disconnect
// arriving after the client already rejoined on a new connection is a no-op.
func (st *Store) Disconnect(sessionID, clientID, connID string) {
	sess, err := st.Get(sessionID)
	if err != nil {
		return
	}

	sess.mu.Lock()
	p, ok := sess.roster[clientID]
	if !ok || p.ConnID != connID {
		sess.mu.Unlock()
		return
	}
	delete(sess.roster, clientID)
	sess.touchLocked(st.clock())
	snap := sess.snapshotLocked()
	sess.mu.Unlock()

	st.sink.Broadcast(sess.ID, EventUsersUpdate, snap)
}

func deckContains(deck []int, v int) bool {
	for _, d := range deck {
		if d == v {
			return true
		}
	}
	return false
}

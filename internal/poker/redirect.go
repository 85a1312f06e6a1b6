package poker

// NewSessionFrom retires sessionID and moves its participants to a freshly
// allocated session. Host only. The new session is pre-seeded with the old
// host's client id, the deck, and every participant's voting preference, so
// clients landing on the new URL are recognized without re-prompting. The
// redirect instruction carries each client's preserved username and opt-in
// keyed by connection handle; the old session is dropped once the
// instruction is out.
func (st *Store) NewSessionFrom(sessionID, clientID string) (*Session, error) {
	old, err := st.Get(sessionID)
	if err != nil {
		return nil, err
	}

	old.mu.Lock()
	if clientID != old.hostClientID {
		old.mu.Unlock()
		return nil, ErrNotHost
	}
	// Retire the old round state before the session leaves the registry.
	// A countdown goroutine still holds the *Session pointer; without the
	// generation bump it would reveal into the old room after the
	// redirect went out.
	old.generation++
	old.phase = PhaseCollecting
	hostClientID := old.hostClientID
	deck := append([]int(nil), old.deck...)
	usernames := make(map[string]string, len(old.roster))
	wants := make(map[string]*bool, len(old.roster))
	seeded := make(map[string]*bool, len(old.roster))
	for _, p := range old.roster {
		usernames[p.ConnID] = p.Username
		wants[p.ConnID] = p.WantsToVote
		if p.WantsToVote != nil {
			seeded[p.ClientID] = p.WantsToVote
		}
	}
	old.mu.Unlock()

	next, err := st.Create()
	if err != nil {
		return nil, err
	}
	next.mu.Lock()
	next.hostClientID = hostClientID
	next.deck = deck
	next.seededWants = seeded
	next.mu.Unlock()

	st.sink.Broadcast(sessionID, EventRedirectToNewSession, RedirectPayload{
		URL:         "/session/" + next.ID,
		Usernames:   usernames,
		WantsToVote: wants,
	})
	st.Delete(sessionID)
	st.logger.Info("session migrated", "from", sessionID, "to", next.ID)
	return next, nil
}

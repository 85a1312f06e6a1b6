package poker

import "time"

// runCountdown drives one CountingDown→Revealed transition. It broadcasts a
// tick once per CountdownTick, from CountdownStart down to zero, then
// freezes the vote set, computes statistics and reveals. Every step
// re-checks the session's phase and round generation under the lock, so a
// countdown orphaned by a host reset dies quietly instead of revealing into
// a round it no longer belongs to.
func (st *Store) runCountdown(sess *Session, gen uint64) {
	ticker := time.NewTicker(st.cfg.CountdownTick)
	defer ticker.Stop()

	for n := st.cfg.CountdownStart; ; n-- {
		if !st.countdownAlive(sess, gen) {
			return
		}
		st.sink.Broadcast(sess.ID, EventCountdown, CountdownPayload{SecondsRemaining: n})
		if n == 0 {
			break
		}
		<-ticker.C
	}
	st.reveal(sess, gen)
}

func (st *Store) countdownAlive(sess *Session, gen uint64) bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.phase == PhaseCountingDown && sess.generation == gen
}

// reveal freezes the votes, computes the round statistics and broadcasts
// the reveal payload.
func (st *Store) reveal(sess *Session, gen uint64) {
	sess.mu.Lock()
	if sess.phase != PhaseCountingDown || sess.generation != gen {
		sess.mu.Unlock()
		return
	}
	sess.phase = PhaseRevealed
	sess.touchLocked(st.clock())

	var votes []NamedVote
	for _, p := range sess.eligibleLocked() {
		if p.Vote == nil || p.Vote.Unsure {
			continue
		}
		votes = append(votes, NamedVote{Username: p.Username, Value: p.Vote.Value})
	}
	deck := append([]int(nil), sess.deck...)
	snap := sess.snapshotLocked()
	sess.mu.Unlock()

	stats := ComputeStats(deck, votes, st.cfg.OutlierStepThreshold)
	st.sink.Broadcast(sess.ID, EventRevealVotes, RevealPayload{Users: snap, Stats: stats})
	st.logger.Debug("round revealed", "session_id", sess.ID, "votes", len(votes))
}

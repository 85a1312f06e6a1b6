package poker

// Event names pushed to clients. The transport layer carries them as the
// envelope's event field.
const (
	EventUsersUpdate          = "usersUpdate"
	EventCountdown            = "countdown"
	EventRevealVotes          = "revealVotes"
	EventJoinFailed           = "joinFailed"
	EventAskHostToJoinVoting  = "askHostToJoinVoting"
	EventRedirectToNewSession = "redirectToNewSession"
)

// Broadcaster fans server events out to connected clients. The gateway hub
// implements it; tests use an in-memory recorder.
type Broadcaster interface {
	// Broadcast sends an event to every connection in a session.
	Broadcast(sessionID, event string, payload any)
	// SendTo sends an event to a single connection.
	SendTo(connID, event string, payload any)
}

// CountdownPayload is the per-second tick sent during CountingDown.
type CountdownPayload struct {
	SecondsRemaining int `json:"secondsRemaining"`
}

// RevealPayload carries the frozen roster and the round statistics.
type RevealPayload struct {
	Users Roster      `json:"users"`
	Stats *RoundStats `json:"stats"`
}

// JoinFailedPayload explains a rejected operation to the offending client.
type JoinFailedPayload struct {
	Reason string `json:"reason"`
}

// RedirectPayload instructs every connected client to navigate to a freshly
// created session. The identity maps are keyed by connection handle; each
// client picks out its own entry.
type RedirectPayload struct {
	URL         string            `json:"url"`
	Usernames   map[string]string `json:"usernames"`
	WantsToVote map[string]*bool  `json:"wantsToVote"`
}

// Package gateway carries the realtime protocol: one websocket per client,
// JSON event envelopes in both directions, and per-session fan-out of
// server events.
package gateway

import "encoding/json"

// Client-to-server event names.
const (
	EventJoin               = "join"
	EventVote               = "vote"
	EventHostVotingDecision = "hostVotingDecision"
	EventRequestNewRound    = "requestNewRound"
	EventRequestNewSession  = "requestNewSession"
)

// ClientMessage is the inbound envelope. Data stays raw until the event
// name selects a payload type.
type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServerMessage is the outbound envelope.
type ServerMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// JoinPayload carries a client's join request. WantsToVote is only
// meaningful for the host; Deck only for the join that claims host.
type JoinPayload struct {
	SessionID   string `json:"sessionId"`
	Username    string `json:"username"`
	ClientID    string `json:"clientId"`
	WantsToVote *bool  `json:"wantsToVote,omitempty"`
	Deck        []int  `json:"deck,omitempty"`
}

// VotePayload carries one estimate submission. Value is decoded by the
// poker vote type: a number or the "?" sentinel.
type VotePayload struct {
	SessionID string          `json:"sessionId"`
	Value     json.RawMessage `json:"value"`
}

// DecisionPayload carries the host's voting opt-in.
type DecisionPayload struct {
	SessionID   string `json:"sessionId"`
	WantsToVote *bool  `json:"wantsToVote"`
}

// SessionRefPayload is the shape of host actions that only name a session.
type SessionRefPayload struct {
	SessionID string `json:"sessionId"`
}

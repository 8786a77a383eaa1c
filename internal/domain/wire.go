package domain

import "time"

// Candidate is a nearby peer observed during scanning, keyed by its
// ephemeral identity. Candidates are in-memory only and evicted once
// they stop being re-observed.
type Candidate struct {
	EphemeralID string    `json:"ephemeral_id"` // hex
	Fingerprint []byte    `json:"fingerprint"`  // truncated obfuscated bloom, as received
	RSSI        int       `json:"rssi"`
	LastSeen    time.Time `json:"last_seen"`
}

// LinkRequest asks a discovered peer to join an encrypted session.
type LinkRequest struct {
	FromSessionID   string `json:"from_session_id"`
	FromEphemeralID string `json:"from_ephemeral_id"`
	ToEphemeralID   string `json:"to_ephemeral_id"`
	Message         string `json:"message,omitempty"`
	Timestamp       int64  `json:"timestamp"`
}

// Frame is the relay wire frame. For encrypted application messages the
// Ciphertext field nests a tagged control structure of type "msg"; for
// protocol control (public-key announce, reveal handshake) it carries the
// tagged structure in the clear. The relay forwards frames opaquely and
// can never decrypt "msg" payloads.
type Frame struct {
	SessionID  string `json:"session_id"`
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
	Timestamp  int64  `json:"ts"`
}

// Signaling envelope types, addressed by ephemeral identity.
const (
	SignalSendLinkRequest  = "send_link_request"
	SignalLinkRequest      = "link_request"
	SignalRespondToRequest = "respond_to_request"
	SignalRequestAccepted  = "request_accepted"
)

// SignalEnvelope is the frame exchanged with the rendezvous signaling
// endpoint. Which fields are set depends on Type.
type SignalEnvelope struct {
	Type          string       `json:"type"`
	Request       *LinkRequest `json:"request,omitempty"`
	ToEphemeralID string       `json:"to_ephemeral_id,omitempty"`
	Accepted      bool         `json:"accepted,omitempty"`
	SessionID     string       `json:"session_id,omitempty"`
}

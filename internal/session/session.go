// Package session implements the end-to-end encrypted relay session:
// per-session X25519 key exchange, secretbox message transport, and the
// mutual-consent reveal handshake.
//
// The relay only ever sees the framing; application messages are
// sealed under the session key derived from both sides' ephemeral key
// pairs, which never outlive the session.
package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"closelink/internal/crypto"
	"closelink/internal/domain"
)

// State of the session machine.
type State int

const (
	StateConnecting State = iota
	StateAwaitingPeerKey
	StateEstablished
	StateRevealPending
	StateRevealed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingPeerKey:
		return "awaiting_peer_key"
	case StateEstablished:
		return "established"
	case StateRevealPending:
		return "reveal_pending"
	case StateRevealed:
		return "revealed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var ErrClosed = errors.New("session: closed")

// Control frame types carried in the clear inside the relay frame's
// ciphertext field. Only "msg" nests an encrypted payload.
const (
	ctrlPubKey       = "pubkey"
	ctrlMsg          = "msg"
	ctrlRevealReq    = "reveal_request"
	ctrlRevealAccept = "reveal_accept"
	ctrlRevealReject = "reveal_reject"
)

// control is the tagged structure in the relay frame.
type control struct {
	Type   string `json:"type"`
	Key    string `json:"key,omitempty"`    // pubkey: base64 X25519 public key
	Handle string `json:"handle,omitempty"` // pubkey: identifier shown only after reveal
	Nonce  string `json:"nonce,omitempty"`  // msg: base64 24-byte nonce
	Box    string `json:"box,omitempty"`    // msg: base64 secretbox ciphertext
}

// Transport carries frames to the relay. Sends attempted before the
// underlying connection opens must be queued and flushed in order.
type Transport interface {
	Send(domain.Frame) error
	Close() error
}

// Message is one entry of the in-memory conversation log. The log is
// never persisted and is wiped on Close.
type Message struct {
	FromPeer bool
	Text     string
	At       time.Time
}

// Events are the caller's hooks. All are optional and fired outside the
// session lock, one at a time.
type Events struct {
	// OnEstablished fires when the shared key is derived.
	OnEstablished func()
	// OnMessage fires for each decrypted peer message.
	OnMessage func(text string)
	// OnRevealRequest fires when the peer asks to reveal and we have
	// not ourselves requested; answer with RespondReveal.
	OnRevealRequest func()
	// OnRevealed fires once both sides consent; peerHandle is the
	// identifier the peer exchanged alongside its public key.
	OnRevealed func(peerHandle string)
	// OnClosed fires when the session transitions to Closed.
	OnClosed func()
}

// Session is one end of an encrypted conversation identified by a
// shared session id. All mutation is serialized behind one mutex.
type Session struct {
	id     string
	tr     Transport
	events Events
	logger *slog.Logger

	mu           sync.Mutex
	state        State
	keys         crypto.KeyPair
	key          [crypto.KeySize]byte
	established  bool
	sentPubKey   bool
	handle       string
	peerHandle   string
	localConsent bool
	peerConsent  bool
	pending      []string // plaintexts queued until the key exists
	log          []Message
}

// New creates a session with a fresh key pair scoped to it. handle is
// our out-of-band identifier, exchanged with the public key and shown
// to the peer only after mutual reveal consent.
func New(id string, tr Transport, handle string, ev Events, logger *slog.Logger) (*Session, error) {
	keys, err := crypto.NewSessionKeyPair()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		id:     id,
		tr:     tr,
		events: ev,
		logger: logger,
		state:  StateConnecting,
		keys:   keys,
		handle: handle,
	}, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns the current machine state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start announces our public key and begins awaiting the peer's. The
// transport queues the announce if its connection is not yet open.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state == StateConnecting {
		s.state = StateAwaitingPeerKey
	}
	send := s.pubKeyAnnounceLocked()
	s.mu.Unlock()

	if send != nil {
		return s.tr.Send(*send)
	}
	return nil
}

// pubKeyAnnounceLocked builds the announce frame at most once per
// session: the idempotency guard that keeps two sides from replying to
// each other's keys forever.
func (s *Session) pubKeyAnnounceLocked() *domain.Frame {
	if s.sentPubKey {
		return nil
	}
	s.sentPubKey = true
	f := s.controlFrame(control{
		Type:   ctrlPubKey,
		Key:    base64.StdEncoding.EncodeToString(s.keys.Public[:]),
		Handle: s.handle,
	})
	return &f
}

func (s *Session) controlFrame(c control) domain.Frame {
	raw, _ := json.Marshal(c)
	return domain.Frame{
		SessionID:  s.id,
		Ciphertext: string(raw),
		Nonce:      "",
		Timestamp:  time.Now().UnixMilli(),
	}
}

// Send encrypts text under the session key and ships it through the
// relay. Before the key exists the plaintext is queued and flushed on
// establishment (protocol-violation guard: queue-until-ready, never an
// error).
func (s *Session) Send(text string) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.established {
		s.pending = append(s.pending, text)
		s.mu.Unlock()
		return nil
	}
	frame, err := s.sealLocked(text)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.log = append(s.log, Message{FromPeer: false, Text: text, At: time.Now()})
	s.mu.Unlock()

	return s.tr.Send(frame)
}

func (s *Session) sealLocked(text string) (domain.Frame, error) {
	nonce, box, err := crypto.Seal(s.key, []byte(text))
	if err != nil {
		return domain.Frame{}, fmt.Errorf("sealing message: %w", err)
	}
	return s.controlFrame(control{
		Type:  ctrlMsg,
		Nonce: base64.StdEncoding.EncodeToString(nonce[:]),
		Box:   base64.StdEncoding.EncodeToString(box),
	}), nil
}

// HandleFrame processes one inbound relay frame. Malformed frames and
// undecryptable messages are silently dropped.
func (s *Session) HandleFrame(f domain.Frame) {
	if f.SessionID != s.id {
		return
	}
	var c control
	if err := json.Unmarshal([]byte(f.Ciphertext), &c); err != nil {
		return
	}
	switch c.Type {
	case ctrlPubKey:
		s.handlePeerKey(c)
	case ctrlMsg:
		s.handleMessage(c)
	case ctrlRevealReq:
		s.handleRevealRequest()
	case ctrlRevealAccept:
		s.handleRevealConsent()
	case ctrlRevealReject:
		s.handleRevealReject()
	}
}

// handlePeerKey derives the shared key on the first peer key received
// and reciprocates with our own key if it has not been sent yet.
// Duplicate key frames are ignored.
func (s *Session) handlePeerKey(c control) {
	raw, err := base64.StdEncoding.DecodeString(c.Key)
	if err != nil || len(raw) != 32 {
		return
	}

	s.mu.Lock()
	if s.state == StateClosed || s.established {
		s.mu.Unlock()
		return
	}
	var peerPub [32]byte
	copy(peerPub[:], raw)
	key, err := crypto.SharedKey(s.keys.Private, peerPub)
	if err != nil {
		s.mu.Unlock()
		return
	}
	s.key = key
	s.established = true
	s.peerHandle = c.Handle
	if s.state == StateConnecting || s.state == StateAwaitingPeerKey {
		s.state = StateEstablished
	}
	reply := s.pubKeyAnnounceLocked()

	flush := make([]domain.Frame, 0, len(s.pending))
	for _, text := range s.pending {
		frame, err := s.sealLocked(text)
		if err != nil {
			continue
		}
		s.log = append(s.log, Message{FromPeer: false, Text: text, At: time.Now()})
		flush = append(flush, frame)
	}
	s.pending = nil
	established := s.events.OnEstablished
	s.mu.Unlock()

	if reply != nil {
		if err := s.tr.Send(*reply); err != nil {
			s.logger.Warn("pubkey reply failed", "session", s.id, "err", err)
		}
	}
	for _, frame := range flush {
		if err := s.tr.Send(frame); err != nil {
			s.logger.Warn("queued message send failed", "session", s.id, "err", err)
		}
	}
	if established != nil {
		established()
	}
}

func (s *Session) handleMessage(c control) {
	nonceRaw, err := base64.StdEncoding.DecodeString(c.Nonce)
	if err != nil || len(nonceRaw) != crypto.NonceSize {
		return
	}
	box, err := base64.StdEncoding.DecodeString(c.Box)
	if err != nil {
		return
	}

	s.mu.Lock()
	if !s.established || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	var nonce [crypto.NonceSize]byte
	copy(nonce[:], nonceRaw)
	plain, ok := crypto.Open(s.key, nonce, box)
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("dropping undecryptable message", "session", s.id)
		return
	}
	text := string(plain)
	s.log = append(s.log, Message{FromPeer: true, Text: text, At: time.Now()})
	onMessage := s.events.OnMessage
	s.mu.Unlock()

	if onMessage != nil {
		onMessage(text)
	}
}

// RequestReveal records our consent and notifies the peer. If the peer
// already consented the session resolves to Revealed immediately.
func (s *Session) RequestReveal() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.localConsent {
		s.mu.Unlock()
		return nil // duplicate request is idempotent
	}
	s.localConsent = true

	var frame domain.Frame
	var revealed func(string)
	if s.peerConsent {
		frame = s.controlFrame(control{Type: ctrlRevealAccept})
		revealed = s.revealLocked()
	} else {
		frame = s.controlFrame(control{Type: ctrlRevealReq})
		if s.state == StateEstablished {
			s.state = StateRevealPending
		}
	}
	peerHandle := s.peerHandle
	s.mu.Unlock()

	err := s.tr.Send(frame)
	if revealed != nil {
		revealed(peerHandle)
	}
	return err
}

// RespondReveal answers a peer's reveal request. Declining closes the
// session; no further reveal is possible without a new one.
func (s *Session) RespondReveal(accept bool) error {
	if !accept {
		s.mu.Lock()
		if s.state == StateClosed {
			s.mu.Unlock()
			return ErrClosed
		}
		frame := s.controlFrame(control{Type: ctrlRevealReject})
		s.mu.Unlock()

		err := s.tr.Send(frame)
		s.Close()
		return err
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.localConsent = true
	frame := s.controlFrame(control{Type: ctrlRevealAccept})
	var revealed func(string)
	if s.peerConsent {
		revealed = s.revealLocked()
	}
	peerHandle := s.peerHandle
	s.mu.Unlock()

	err := s.tr.Send(frame)
	if revealed != nil {
		revealed(peerHandle)
	}
	return err
}

// handleRevealRequest records the peer's consent. If we already
// consented the session resolves to Revealed; otherwise the decision
// surfaces to the caller.
func (s *Session) handleRevealRequest() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.peerConsent = true
	var revealed func(string)
	var ask func()
	if s.localConsent {
		revealed = s.revealLocked()
	} else {
		ask = s.events.OnRevealRequest
	}
	peerHandle := s.peerHandle
	s.mu.Unlock()

	if revealed != nil {
		revealed(peerHandle)
	}
	if ask != nil {
		ask()
	}
}

// handleRevealConsent records a peer accept, even when we have not yet
// requested: a later local request then resolves immediately.
func (s *Session) handleRevealConsent() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.peerConsent = true
	var revealed func(string)
	if s.localConsent {
		revealed = s.revealLocked()
	}
	peerHandle := s.peerHandle
	s.mu.Unlock()

	if revealed != nil {
		revealed(peerHandle)
	}
}

func (s *Session) handleRevealReject() {
	s.Close()
}

// revealLocked transitions to Revealed once and returns the OnRevealed
// hook to fire outside the lock, or nil.
func (s *Session) revealLocked() func(string) {
	if s.state == StateRevealed {
		return nil
	}
	s.state = StateRevealed
	return s.events.OnRevealed
}

// PeerHandle returns the peer's out-of-band identifier; ok is true only
// after mutual reveal.
func (s *Session) PeerHandle() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRevealed {
		return "", false
	}
	return s.peerHandle, true
}

// Messages returns a copy of the in-memory conversation log.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.log...)
}

// Close tears down the transport and discards the symmetric key and
// message log. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	crypto.Wipe(s.key[:])
	crypto.Wipe(s.keys.Private[:])
	s.established = false
	s.log = nil
	s.pending = nil
	closed := s.events.OnClosed
	s.mu.Unlock()

	if err := s.tr.Close(); err != nil {
		s.logger.Debug("transport close", "session", s.id, "err", err)
	}
	if closed != nil {
		closed()
	}
}

package session_test

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"closelink/internal/domain"
	"closelink/internal/session"
)

// pipe is an in-memory transport delivering frames straight to the
// other side's session, recording everything it sends.
type pipe struct {
	mu   sync.Mutex
	peer *session.Session
	sent []domain.Frame
}

func (p *pipe) Send(f domain.Frame) error {
	p.mu.Lock()
	p.sent = append(p.sent, f)
	peer := p.peer
	p.mu.Unlock()
	if peer != nil {
		peer.HandleFrame(f)
	}
	return nil
}

func (p *pipe) Close() error { return nil }

func (p *pipe) sentOfType(typ string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, f := range p.sent {
		var c struct {
			Type string `json:"type"`
		}
		if json.Unmarshal([]byte(f.Ciphertext), &c) == nil && c.Type == typ {
			n++
		}
	}
	return n
}

func connectedPair(t *testing.T, evA, evB session.Events) (*session.Session, *session.Session, *pipe, *pipe) {
	t.Helper()
	pa, pb := &pipe{}, &pipe{}
	a, err := session.New("sess-1", pa, "@alice", evA, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := session.New("sess-1", pb, "@bob", evB, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pa.peer = b
	pb.peer = a
	return a, b, pa, pb
}

func TestHandshake_Establishes(t *testing.T) {
	a, b, _, _ := connectedPair(t, session.Events{}, session.Events{})

	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// A announced; B derived the key and reciprocated; A derived too.
	if a.State() != session.StateEstablished {
		t.Fatalf("a state = %v, want established", a.State())
	}
	if b.State() != session.StateEstablished {
		t.Fatalf("b state = %v, want established", b.State())
	}
}

func TestHandshake_PubKeyIdempotent(t *testing.T) {
	a, b, pa, pb := connectedPair(t, session.Events{}, session.Events{})

	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Replay A's announce at B several times.
	announce := func() domain.Frame {
		pa.mu.Lock()
		defer pa.mu.Unlock()
		return pa.sent[0]
	}()
	b.HandleFrame(announce)
	b.HandleFrame(announce)

	if got := pb.sentOfType("pubkey"); got != 1 {
		t.Fatalf("b sent %d pubkeys, want exactly 1", got)
	}
	if got := pa.sentOfType("pubkey"); got != 1 {
		t.Fatalf("a sent %d pubkeys, want exactly 1", got)
	}
}

func TestMessages_RoundTrip(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	a, b, _, _ := connectedPair(t, session.Events{}, session.Events{
		OnMessage: func(text string) {
			mu.Lock()
			got = append(got, text)
			mu.Unlock()
		},
	})
	_ = b // messages flow a -> b

	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := a.Send("hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := a.Send("world"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if strings.Join(got, " ") != "hello world" {
		t.Fatalf("b received %q", got)
	}
}

func TestMessages_QueuedUntilEstablished(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	a, _, _, _ := connectedPair(t, session.Events{}, session.Events{
		OnMessage: func(text string) {
			mu.Lock()
			got = append(got, text)
			mu.Unlock()
		},
	})

	// No handshake yet: sends queue instead of failing.
	if err := a.Send("first"); err != nil {
		t.Fatalf("Send before establish: %v", err)
	}
	if err := a.Send("second"); err != nil {
		t.Fatalf("Send before establish: %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if strings.Join(got, ",") != "first,second" {
		t.Fatalf("queued messages delivered as %q, want in order", got)
	}
}

func TestMessages_CorruptedDroppedSilently(t *testing.T) {
	delivered := 0
	a, b, _, _ := connectedPair(t, session.Events{}, session.Events{
		OnMessage: func(string) { delivered++ },
	})
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// A valid-looking msg frame with garbage ciphertext.
	b.HandleFrame(domain.Frame{
		SessionID:  "sess-1",
		Ciphertext: `{"type":"msg","nonce":"` + strings.Repeat("A", 32) + `","box":"Z29vZA=="}`,
	})
	if delivered != 0 {
		t.Fatalf("corrupted message surfaced to the caller")
	}
	if b.State() != session.StateEstablished {
		t.Fatalf("corrupted message must not affect session state")
	}
}

func TestReveal_MutualConsent(t *testing.T) {
	var aHandle, bHandle string
	var asked bool
	a, b, _, _ := connectedPair(t,
		session.Events{OnRevealed: func(h string) { aHandle = h }},
		session.Events{
			OnRevealRequest: func() { asked = true },
			OnRevealed:      func(h string) { bHandle = h },
		},
	)
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := a.RequestReveal(); err != nil {
		t.Fatalf("RequestReveal: %v", err)
	}
	if a.State() != session.StateRevealPending {
		t.Fatalf("a state = %v, want reveal_pending", a.State())
	}
	if !asked {
		t.Fatalf("b was not asked for a decision")
	}
	if b.State() == session.StateRevealed {
		t.Fatalf("b revealed before consenting")
	}

	if err := b.RespondReveal(true); err != nil {
		t.Fatalf("RespondReveal: %v", err)
	}
	if a.State() != session.StateRevealed || b.State() != session.StateRevealed {
		t.Fatalf("states after mutual consent: a=%v b=%v", a.State(), b.State())
	}
	if aHandle != "@bob" || bHandle != "@alice" {
		t.Fatalf("handles: a saw %q, b saw %q", aHandle, bHandle)
	}
	if h, ok := a.PeerHandle(); !ok || h != "@bob" {
		t.Fatalf("PeerHandle = %q,%v", h, ok)
	}
}

func TestReveal_RejectCloses(t *testing.T) {
	aClosed, bClosed := false, false
	a, b, _, _ := connectedPair(t,
		session.Events{OnClosed: func() { aClosed = true }},
		session.Events{OnClosed: func() { bClosed = true }},
	)
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := a.RequestReveal(); err != nil {
		t.Fatalf("RequestReveal: %v", err)
	}
	if err := b.RespondReveal(false); err != nil {
		t.Fatalf("RespondReveal: %v", err)
	}

	if a.State() != session.StateClosed || b.State() != session.StateClosed {
		t.Fatalf("states after reject: a=%v b=%v", a.State(), b.State())
	}
	if !aClosed || !bClosed {
		t.Fatalf("OnClosed hooks not fired: a=%v b=%v", aClosed, bClosed)
	}
	// No further reveal without a new session.
	if err := a.RequestReveal(); err == nil {
		t.Fatalf("RequestReveal on closed session must fail")
	}
	if len(a.Messages()) != 0 {
		t.Fatalf("message log must be discarded on close")
	}
}

func TestReveal_EarlyConsentRecorded(t *testing.T) {
	// B accepts before A requested anything; a later local request on A
	// resolves immediately.
	a, _, _, _ := connectedPair(t, session.Events{}, session.Events{})
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	a.HandleFrame(domain.Frame{
		SessionID:  "sess-1",
		Ciphertext: `{"type":"reveal_accept"}`,
	})
	if a.State() == session.StateRevealed {
		t.Fatalf("one-sided consent must not reveal")
	}

	if err := a.RequestReveal(); err != nil {
		t.Fatalf("RequestReveal: %v", err)
	}
	if a.State() != session.StateRevealed {
		t.Fatalf("a state = %v, want revealed", a.State())
	}
}

func TestClose_WipesAndIgnoresTraffic(t *testing.T) {
	a, b, _, _ := connectedPair(t, session.Events{}, session.Events{})
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := a.Send("remember me"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	a.Close()
	if a.State() != session.StateClosed {
		t.Fatalf("state after Close = %v", a.State())
	}
	if len(a.Messages()) != 0 {
		t.Fatalf("log survived Close")
	}
	if err := a.Send("after close"); err == nil {
		t.Fatalf("Send after Close must fail")
	}
	_ = b
}

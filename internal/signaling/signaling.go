// Package signaling implements the rendezvous channel: a lightweight
// addressed message bus keyed by ephemeral identity, used to match a
// session id to a live peer before any relay session exists.
//
// It carries no message history and makes no delivery guarantees; a
// request to a rotated-away identity is simply lost.
package signaling

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"closelink/internal/domain"
)

// Options configure the signaling client hooks.
type Options struct {
	// OnRequest surfaces an incoming link request for an accept/reject
	// decision.
	OnRequest func(domain.LinkRequest)
	// OnAccepted fires when a peer accepted our link request; the
	// session id is the join key for the relay session.
	OnAccepted func(sessionID string)
	Logger     *slog.Logger
}

// Client is one open signaling channel bound to our current ephemeral
// identity.
type Client struct {
	ephemeralID string
	opts        Options

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// Dial opens the channel for the given ephemeral identity. Unlike the
// relay transport this connect is synchronous: an unreachable signaling
// endpoint is an unavailable capability the caller must see.
func Dial(ctx context.Context, baseURL, ephemeralID string, opts Options) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	url := baseURL + "/link-requests/" + ephemeralID
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("signaling dial %s: %w", url, err)
	}

	c := &Client{ephemeralID: ephemeralID, opts: opts, conn: conn}
	go c.readLoop()
	return c, nil
}

// EphemeralID returns the identity this channel is addressed by.
func (c *Client) EphemeralID() string { return c.ephemeralID }

// SendLinkRequest pushes a request to the peer's current ephemeral
// identity. sessionID is caller-generated (see NewSessionID) and is the
// join key both sides will use on the relay.
func (c *Client) SendLinkRequest(toEphemeralID, sessionID, message string) error {
	return c.send(domain.SignalEnvelope{
		Type: domain.SignalSendLinkRequest,
		Request: &domain.LinkRequest{
			FromSessionID:   sessionID,
			FromEphemeralID: c.ephemeralID,
			ToEphemeralID:   toEphemeralID,
			Message:         message,
			Timestamp:       time.Now().UnixMilli(),
		},
	})
}

// Respond answers a previously surfaced link request. Accepting routes
// the session id back to the requester; a decline is intentionally not
// forwarded (the requester just never hears back).
func (c *Client) Respond(toEphemeralID string, accepted bool, sessionID string) error {
	return c.send(domain.SignalEnvelope{
		Type:          domain.SignalRespondToRequest,
		ToEphemeralID: toEphemeralID,
		Accepted:      accepted,
		SessionID:     sessionID,
	})
}

// Close tears the channel down deterministically.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()
	return conn.Close()
}

func (c *Client) send(env domain.SignalEnvelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("signaling channel closed")
	}
	return c.conn.WriteJSON(env)
}

func (c *Client) readLoop() {
	for {
		var env domain.SignalEnvelope
		if err := c.conn.ReadJSON(&env); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.opts.Logger.Warn("signaling read failed", "err", err)
			}
			return
		}
		switch env.Type {
		case domain.SignalLinkRequest:
			if env.Request != nil && c.opts.OnRequest != nil {
				c.opts.OnRequest(*env.Request)
			}
		case domain.SignalRequestAccepted:
			if c.opts.OnAccepted != nil {
				c.opts.OnAccepted(env.SessionID)
			}
		}
	}
}

// NewSessionID derives a join key from both parties' ephemeral ids and
// a timestamp, unique per initiation attempt.
func NewSessionID(fromEphemeralID, toEphemeralID string, at time.Time) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d", fromEphemeralID, toEphemeralID, at.UnixNano()))
	return hex.EncodeToString(sum[:8])
}

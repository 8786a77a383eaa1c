// Package relay implements the WebSocket transport to the untrusted
// relay. Frames are opaque to the relay for application messages; the
// client guarantees FIFO delivery for sends attempted before the
// connection opens.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"closelink/internal/domain"
)

// Options configure a Client. OnFrame receives every inbound frame;
// OnError observes transport failures (connect refused, read torn
// down). Both run on the client's read goroutine.
type Options struct {
	OnFrame func(domain.Frame)
	OnError func(error)
	Logger  *slog.Logger
}

// Client is a duplex frame channel for one session. Sends before the
// socket opens are queued and flushed in order on open; this is the
// only place backpressure is absorbed.
type Client struct {
	url  string
	opts Options

	mu     sync.Mutex
	conn   *websocket.Conn
	open   bool
	closed bool
	queue  []domain.Frame
}

// NewClient prepares a client for the given ws:// URL. No I/O happens
// until Connect.
func NewClient(url string, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{url: url, opts: opts}
}

// Connect dials in the background. Queued frames are flushed in order
// once the socket opens; a dial failure is surfaced through OnError so
// the caller can degrade rather than hang.
func (c *Client) Connect(ctx context.Context) {
	go c.run(ctx)
}

func (c *Client) run(ctx context.Context) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.fail(fmt.Errorf("relay dial %s: %w", c.url, err))
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.open = true
	queued := c.queue
	c.queue = nil
	c.mu.Unlock()

	for _, f := range queued {
		if err := c.write(f); err != nil {
			c.fail(fmt.Errorf("flushing queued frame: %w", err))
			return
		}
	}

	for {
		var f domain.Frame
		if err := conn.ReadJSON(&f); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.fail(fmt.Errorf("relay read: %w", err))
			}
			return
		}
		if c.opts.OnFrame != nil {
			c.opts.OnFrame(f)
		}
	}
}

// Send queues or writes one frame. Returns an error only after Close;
// transport-level failures surface asynchronously via OnError.
func (c *Client) Send(f domain.Frame) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("relay client closed")
	}
	if !c.open {
		c.queue = append(c.queue, f)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.write(f)
}

// write serializes socket writes; gorilla permits one concurrent writer.
func (c *Client) write(f domain.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("relay connection gone")
	}
	return c.conn.WriteJSON(f)
}

// Close tears the connection down. Queued-but-unflushed frames are
// dropped with the session they belonged to.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.open = false
	conn := c.conn
	c.conn = nil
	c.queue = nil
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Client) fail(err error) {
	c.opts.Logger.Warn("relay transport failure", "err", err)
	if c.opts.OnError != nil {
		c.opts.OnError(err)
	}
}

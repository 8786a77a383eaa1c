// Package relaysrv is the untrusted rendezvous and relay server: it
// fans frames out to the other participants of a session and routes
// link requests between live ephemeral identities. It stores nothing
// and cannot decrypt application messages.
package relaysrv

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"closelink/internal/domain"
)

var upgrader = websocket.Upgrader{
	// Origin checks belong to whatever fronts a public deployment.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) writeMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(messageType, data)
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// Hub holds the live session rooms and the signaling registry.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	rooms   map[string]map[*wsConn]struct{}
	signals map[string]*wsConn

	registry      *prometheus.Registry
	framesRelayed prometheus.Counter
	linkRequests  prometheus.Counter
	connections   prometheus.Counter
}

// New builds a hub with its own metrics registry. A nil logger falls
// back to slog.Default.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		logger:   logger,
		rooms:    make(map[string]map[*wsConn]struct{}),
		signals:  make(map[string]*wsConn),
		registry: prometheus.NewRegistry(),
		framesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_frames_relayed_total",
			Help: "Frames forwarded between session participants.",
		}),
		linkRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_link_requests_total",
			Help: "Link requests routed between ephemeral identities.",
		}),
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_connections_total",
			Help: "WebSocket connections accepted.",
		}),
	}
	h.registry.MustRegister(h.framesRelayed, h.linkRequests, h.connections)
	return h
}

// Router wires the hub's endpoints.
func (h *Hub) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	r.HandleFunc("/ws/{sessionID}", h.handleSession)
	r.HandleFunc("/link-requests/{ephemeralID}", h.handleSignaling)
	return r
}

// handleSession joins the caller to a session room and forwards every
// frame it sends, verbatim, to everyone else in the room.
func (h *Hub) handleSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("session upgrade failed", "session", sessionID, "err", err)
		return
	}
	h.connections.Inc()
	conn := &wsConn{ws: ws}

	h.mu.Lock()
	room := h.rooms[sessionID]
	if room == nil {
		room = make(map[*wsConn]struct{})
		h.rooms[sessionID] = room
	}
	room[conn] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(room, conn)
		if len(room) == 0 {
			delete(h.rooms, sessionID)
		}
		h.mu.Unlock()
		ws.Close()
	}()

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		h.mu.Lock()
		peers := make([]*wsConn, 0, len(room))
		for peer := range room {
			if peer != conn {
				peers = append(peers, peer)
			}
		}
		h.mu.Unlock()

		for _, peer := range peers {
			if err := peer.writeMessage(messageType, data); err != nil {
				h.logger.Debug("relay forward failed", "session", sessionID, "err", err)
			}
		}
		h.framesRelayed.Inc()
	}
}

// handleSignaling registers the caller under its ephemeral identity and
// routes addressed envelopes to whichever identity is currently live.
func (h *Hub) handleSignaling(w http.ResponseWriter, r *http.Request) {
	ephemeralID := mux.Vars(r)["ephemeralID"]
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("signaling upgrade failed", "ephemeral", ephemeralID, "err", err)
		return
	}
	h.connections.Inc()
	conn := &wsConn{ws: ws}

	h.mu.Lock()
	h.signals[ephemeralID] = conn
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		if h.signals[ephemeralID] == conn {
			delete(h.signals, ephemeralID)
		}
		h.mu.Unlock()
		ws.Close()
	}()

	for {
		var env domain.SignalEnvelope
		if err := ws.ReadJSON(&env); err != nil {
			return
		}
		switch env.Type {
		case domain.SignalSendLinkRequest:
			if env.Request == nil {
				continue
			}
			h.linkRequests.Inc()
			h.forward(env.Request.ToEphemeralID, domain.SignalEnvelope{
				Type:    domain.SignalLinkRequest,
				Request: env.Request,
			})
		case domain.SignalRespondToRequest:
			// Declines are not forwarded; the requester never hears back.
			if !env.Accepted {
				continue
			}
			h.forward(env.ToEphemeralID, domain.SignalEnvelope{
				Type:      domain.SignalRequestAccepted,
				SessionID: env.SessionID,
			})
		}
	}
}

func (h *Hub) forward(toEphemeralID string, env domain.SignalEnvelope) {
	h.mu.Lock()
	target := h.signals[toEphemeralID]
	h.mu.Unlock()
	if target == nil {
		h.logger.Debug("no live channel for identity", "ephemeral", toEphemeralID)
		return
	}
	if err := target.writeJSON(env); err != nil {
		h.logger.Debug("signal forward failed", "ephemeral", toEphemeralID, "err", err)
	}
}

package relaysrv

// Test-only visibility into hub registration, so tests can wait for a
// handler to finish joining instead of sleeping.

func (h *Hub) RoomSize(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[sessionID])
}

func (h *Hub) SignalRegistered(ephemeralID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.signals[ephemeralID]
	return ok
}

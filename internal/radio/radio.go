// Package radio abstracts the short-range broadcast capability the
// discovery orchestrator consumes: bytes out via advertising, bytes
// plus a signal-strength reading in via scanning.
//
// Hardware radios live in the host application; this package ships a
// simulated backend for tests and demos and a zeroconf/mDNS backend
// that stands in for proximity on a shared LAN.
package radio

import "errors"

// ErrUnavailable reports that the radio capability cannot be opened.
// Callers degrade gracefully (disable discovery) rather than crash.
var ErrUnavailable = errors.New("radio: capability unavailable")

// ScanResult is one raw observation: an opaque payload and the signal
// strength it arrived with.
type ScanResult struct {
	Payload []byte
	RSSI    int
}

// Handler receives scan results. Implementations invoke it from a
// single goroutine per radio.
type Handler func(ScanResult)

// Radio is the advertise/scan capability.
type Radio interface {
	// StartAdvertising begins (or replaces) the broadcast of payload.
	StartAdvertising(payload []byte) error
	StopAdvertising()

	// StartScanning delivers every received payload to h until
	// StopScanning is called.
	StartScanning(h Handler) error
	StopScanning()
}

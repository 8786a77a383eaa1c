package radio

import (
	"crypto/rand"
	"math/big"
	"sync"
	"time"
)

// Simulated is an in-process radio. It records whatever is advertised,
// lets tests inject frames directly, and can optionally emit synthetic
// random candidates on an interval the way a busy room would.
type Simulated struct {
	// Synthetic emission settings; zero interval disables emission.
	Interval time.Duration

	mu          sync.Mutex
	advertised  []byte
	handler     Handler
	stop        chan struct{}
	advertising bool
}

var _ Radio = (*Simulated)(nil)

// NewSimulated returns a simulated radio. With a non-zero interval it
// emits one synthetic 18-byte candidate frame per tick while scanning.
func NewSimulated(interval time.Duration) *Simulated {
	return &Simulated{Interval: interval}
}

func (s *Simulated) StartAdvertising(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advertised = append([]byte(nil), payload...)
	s.advertising = true
	return nil
}

func (s *Simulated) StopAdvertising() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advertising = false
}

// Advertised returns the most recently advertised payload, or nil.
func (s *Simulated) Advertised() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.advertising {
		return nil
	}
	return append([]byte(nil), s.advertised...)
}

func (s *Simulated) StartScanning(h Handler) error {
	s.mu.Lock()
	if s.handler != nil {
		s.mu.Unlock()
		return nil
	}
	s.handler = h
	stop := make(chan struct{})
	s.stop = stop
	interval := s.Interval
	s.mu.Unlock()

	if interval > 0 {
		go s.emit(stop, interval)
	}
	return nil
}

func (s *Simulated) StopScanning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.handler = nil
}

// Inject delivers a frame to the scan handler as if received over the
// air. No-op when not scanning.
func (s *Simulated) Inject(payload []byte, rssi int) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h(ScanResult{Payload: append([]byte(nil), payload...), RSSI: rssi})
	}
}

func (s *Simulated) emit(stop chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			frame := make([]byte, 18)
			frame[0] = 1
			rand.Read(frame[1:17])
			s.Inject(frame, -50-randomBelow(30))
		}
	}
}

func randomBelow(n int64) int {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

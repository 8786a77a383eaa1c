package radio

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	mdnsService = "_closelink._udp"
	mdnsDomain  = "local."
	mdnsPort    = 42424

	// NominalRSSI is reported for LAN-discovered peers; mDNS carries no
	// signal-strength reading, so peers on the same network are treated
	// as comfortably in range.
	NominalRSSI = -60

	browseWindow = 5 * time.Second
)

// MDNS is a zeroconf-backed radio for desktops and demos: the
// advertisement payload travels hex-encoded in a TXT record, which is
// reversible back to the exact original bytes.
type MDNS struct {
	Logger *slog.Logger

	mu       sync.Mutex
	server   *zeroconf.Server
	cancel   context.CancelFunc
	instance string
}

var _ Radio = (*MDNS)(nil)

// NewMDNS returns a LAN radio. A nil logger falls back to slog.Default.
func NewMDNS(logger *slog.Logger) *MDNS {
	if logger == nil {
		logger = slog.Default()
	}
	return &MDNS{Logger: logger}
}

func (m *MDNS) StartAdvertising(payload []byte) error {
	encoded := hex.EncodeToString(payload)
	instance := "closelink-" + encoded[:min(len(encoded), 12)]

	server, err := zeroconf.Register(
		instance,
		mdnsService,
		mdnsDomain,
		mdnsPort,
		[]string{"p=" + encoded},
		nil,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	m.mu.Lock()
	if m.server != nil {
		m.server.Shutdown()
	}
	m.server = server
	m.instance = instance
	m.mu.Unlock()
	return nil
}

func (m *MDNS) StopAdvertising() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.server != nil {
		m.server.Shutdown()
		m.server = nil
	}
}

func (m *MDNS) StartScanning(h Handler) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mu.Unlock()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		m.StopScanning()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	go m.browseLoop(ctx, resolver, h)
	return nil
}

func (m *MDNS) StopScanning() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *MDNS) browseLoop(ctx context.Context, resolver *zeroconf.Resolver, h Handler) {
	for ctx.Err() == nil {
		entries := make(chan *zeroconf.ServiceEntry, 32)
		browseCtx, cancel := context.WithTimeout(ctx, browseWindow)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for entry := range entries {
				m.deliver(entry, h)
			}
		}()

		if err := resolver.Browse(browseCtx, mdnsService, mdnsDomain, entries); err != nil {
			m.Logger.Warn("mdns browse failed", "err", err)
		}
		<-done
		cancel()
	}
}

func (m *MDNS) deliver(entry *zeroconf.ServiceEntry, h Handler) {
	if entry == nil {
		return
	}
	m.mu.Lock()
	self := m.instance
	m.mu.Unlock()
	if entry.Instance == self {
		return
	}
	for _, record := range entry.Text {
		encoded, ok := strings.CutPrefix(record, "p=")
		if !ok {
			continue
		}
		payload, err := hex.DecodeString(encoded)
		if err != nil {
			continue
		}
		h(ScanResult{Payload: payload, RSSI: NominalRSSI})
		return
	}
}

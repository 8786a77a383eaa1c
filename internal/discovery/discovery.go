// Package discovery drives the broadcast/scan loop: periodic identity
// rotation and re-advertising, scan-result decoding, and the in-memory
// table of nearby candidates with staleness eviction.
package discovery

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"closelink/internal/advert"
	"closelink/internal/domain"
	"closelink/internal/fingerprint"
	"closelink/internal/identity"
	"closelink/internal/radio"
)

const (
	// DefaultStaleness evicts candidates not re-observed within it.
	DefaultStaleness = 3 * time.Second

	defaultSweepInterval = time.Second
)

// Config parameterizes an orchestrator. Zero durations take defaults;
// a nil logger falls back to slog.Default.
type Config struct {
	// StableDeviceID is the opaque per-install id from the platform,
	// combined with the epoch for identity rotation.
	StableDeviceID string

	// Secret is the 32-byte device secret for this discovery session.
	Secret []byte

	RotationWindow time.Duration
	Staleness      time.Duration
	SweepInterval  time.Duration

	// Version selects the advertisement frame format.
	Version byte
	Flags   byte

	Logger *slog.Logger

	// OnError observes non-fatal failures (a broadcast attempt that
	// will be retried on the next rotation cycle). Optional.
	OnError func(error)
}

// Orchestrator owns the rotation and sweep timers, the current
// advertisement, and the candidate table. All state is serialized
// behind one mutex; callbacks into it never block.
type Orchestrator struct {
	cfg   Config
	radio radio.Radio

	mu         sync.Mutex
	running    bool
	stop       chan struct{}
	ephemeral  identity.EphemeralID
	payload    []byte
	bloom      uint64
	interests  []string
	candidates map[string]domain.Candidate
}

// New builds an orchestrator over the given radio capability.
func New(r radio.Radio, cfg Config) *Orchestrator {
	if cfg.RotationWindow <= 0 {
		cfg.RotationWindow = identity.DefaultRotationWindow
	}
	if cfg.Staleness <= 0 {
		cfg.Staleness = DefaultStaleness
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.Version == 0 {
		cfg.Version = advert.VersionCompact
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		cfg:        cfg,
		radio:      r,
		candidates: make(map[string]domain.Candidate),
	}
}

// Start computes the current epoch's advertisement, begins advertising
// and scanning, and launches the rotation and staleness timers. A scan
// capability failure is returned to the caller; broadcast failures are
// reported through OnError and retried on the next cycle.
func (o *Orchestrator) Start(interests []string) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil
	}
	o.running = true
	o.stop = make(chan struct{})
	o.interests = append([]string(nil), interests...)
	stop := o.stop
	o.mu.Unlock()

	if err := o.radio.StartScanning(o.handleScan); err != nil {
		o.mu.Lock()
		o.running = false
		o.stop = nil
		o.mu.Unlock()
		return fmt.Errorf("starting scan: %w", err)
	}

	o.rotate()
	go o.run(stop)
	return nil
}

// Stop synchronously cancels the timers and requests cessation of
// broadcast and scan. Discovered candidates stay visible until Clear.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	close(o.stop)
	o.stop = nil
	o.mu.Unlock()

	o.radio.StopScanning()
	o.radio.StopAdvertising()
}

// EphemeralID returns the identity currently being advertised.
func (o *Orchestrator) EphemeralID() identity.EphemeralID {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ephemeral
}

// Bloom returns the local interest Bloom mask for scoring.
func (o *Orchestrator) Bloom() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.bloom
}

// Candidates returns a snapshot of the table, most recently seen first.
func (o *Orchestrator) Candidates() []domain.Candidate {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.Candidate, 0, len(o.candidates))
	for _, c := range o.candidates {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out
}

// Clear empties the candidate table.
func (o *Orchestrator) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.candidates = make(map[string]domain.Candidate)
}

func (o *Orchestrator) run(stop chan struct{}) {
	rotation := time.NewTicker(o.cfg.RotationWindow)
	sweep := time.NewTicker(o.cfg.SweepInterval)
	defer rotation.Stop()
	defer sweep.Stop()

	for {
		select {
		case <-stop:
			return
		case <-rotation.C:
			o.rotate()
		case <-sweep.C:
			o.evictStale()
		}
	}
}

// rotate derives the current epoch's identity and fingerprint, repacks
// the advertisement, and re-advertises. Fire-and-forget: a broadcast
// failure is logged, surfaced via OnError, and retried next cycle.
func (o *Orchestrator) rotate() {
	o.mu.Lock()
	epoch := identity.EpochAt(time.Now(), o.cfg.RotationWindow)
	eph := identity.Derive(o.cfg.StableDeviceID, epoch, o.cfg.Secret)
	fp := fingerprint.Build(o.interests, o.cfg.Secret)

	payload, err := advert.Pack(advert.Payload{
		Version:     o.cfg.Version,
		EphemeralID: eph.Slice(),
		Fingerprint: fp.Obfuscated[:],
		Flags:       o.cfg.Flags,
	})
	if err == nil {
		o.ephemeral = eph
		o.bloom = fp.Bloom
		o.payload = payload
	}
	o.mu.Unlock()

	if err == nil {
		err = o.radio.StartAdvertising(payload)
	}
	if err != nil {
		o.cfg.Logger.Warn("advertising failed, will retry next rotation", "err", err)
		if o.cfg.OnError != nil {
			o.cfg.OnError(err)
		}
	}
}

// handleScan decodes one raw observation. Malformed payloads are
// silently discarded; valid ones become or refresh a candidate.
func (o *Orchestrator) handleScan(res radio.ScanResult) {
	p, ok := advert.Unpack(res.Payload)
	if !ok {
		return
	}
	key := hex.EncodeToString(p.EphemeralID)

	o.mu.Lock()
	defer o.mu.Unlock()
	if key == o.ephemeral.Hex() {
		return // our own broadcast reflected back
	}
	o.candidates[key] = domain.Candidate{
		EphemeralID: key,
		Fingerprint: p.Fingerprint,
		RSSI:        res.RSSI,
		LastSeen:    time.Now(),
	}
}

func (o *Orchestrator) evictStale() {
	cutoff := time.Now().Add(-o.cfg.Staleness)
	o.mu.Lock()
	defer o.mu.Unlock()
	for key, c := range o.candidates {
		if c.LastSeen.Before(cutoff) {
			delete(o.candidates, key)
		}
	}
}

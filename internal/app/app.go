package app

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"time"

	"closelink/internal/domain"
	"closelink/internal/radio"
	"closelink/internal/store"
)

// App is the assembled dependency graph shared by all commands.
type App struct {
	Cfg    Config
	Radio  radio.Radio
	Logger *slog.Logger
}

// New constructs the dependency graph from cfg. The home directory is
// created if missing.
func New(cfg Config) (*App, error) {
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, fmt.Errorf("creating home dir: %w", err)
	}
	logger := NewLogger(cfg.LogLevel)

	var r radio.Radio
	switch cfg.Radio {
	case "", "sim":
		r = radio.NewSimulated(0)
	case "mdns":
		r = radio.NewMDNS(logger)
	default:
		return nil, fmt.Errorf("unknown radio backend %q", cfg.Radio)
	}

	return &App{
		Cfg:    cfg,
		Radio:  r,
		Logger: logger,
	}, nil
}

// Open unlocks the encrypted local store with the given passphrase.
func (a *App) Open(passphrase string) *store.ProfileStore {
	return store.NewProfileStore(store.NewFileKV(a.Cfg.Home, passphrase))
}

// NewLogger builds the JSON logger used across the CLI and the relay.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// EnsureDevice loads the stable device identity, creating one on first
// run. The derivation secret is not part of it; callers generate a
// fresh secret per discovery session.
func EnsureDevice(st *store.ProfileStore) (domain.Device, error) {
	d, ok, err := st.LoadDevice()
	if err != nil {
		return domain.Device{}, err
	}
	if ok {
		return d, nil
	}

	var raw [8]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return domain.Device{}, fmt.Errorf("generating device id: %w", err)
	}
	d = domain.Device{
		StableID:  "dev-" + hex.EncodeToString(raw[:]),
		CreatedAt: time.Now().Unix(),
	}
	if err := st.SaveDevice(d); err != nil {
		return domain.Device{}, err
	}
	return d, nil
}

package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// SecretSize is the length of a device secret in bytes.
	SecretSize = 32

	// IDSize is the length of an ephemeral identity in bytes.
	IDSize = 8

	// DefaultRotationWindow is how long a single ephemeral identity
	// stays valid before the next epoch begins.
	DefaultRotationWindow = 10 * time.Minute
)

// EphemeralID identifies a device for one rotation epoch. IDs from
// different epochs are statistically unlinkable without the device
// secret.
type EphemeralID [IDSize]byte

// Hex returns the lowercase hex form used to address signaling channels.
func (id EphemeralID) Hex() string { return hex.EncodeToString(id[:]) }

// Slice returns the identity bytes.
func (id EphemeralID) Slice() []byte { return id[:] }

// NewDeviceSecret returns 32 fresh random bytes. The secret lives for
// one discovery session and is owned by the identity and fingerprint
// engines; it is never persisted or broadcast.
func NewDeviceSecret() ([]byte, error) {
	secret := make([]byte, SecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating device secret: %w", err)
	}
	return secret, nil
}

// EpochAt buckets t into a rotation epoch of the given window.
func EpochAt(t time.Time, window time.Duration) uint64 {
	if window <= 0 {
		window = DefaultRotationWindow
	}
	return uint64(t.UnixMilli() / window.Milliseconds())
}

// Derive computes the ephemeral identity for one device-epoch pair:
// SHA-256("stableDeviceID:epoch" || secret) truncated to 8 bytes.
// Deterministic for fixed inputs so repeated derivations within an
// epoch produce an identical advertisement.
func Derive(stableDeviceID string, epoch uint64, secret []byte) EphemeralID {
	h := sha256.New()
	fmt.Fprintf(h, "%s:%d", stableDeviceID, epoch)
	h.Write(secret)
	var id EphemeralID
	copy(id[:], h.Sum(nil))
	return id
}

// Package crypto exposes the primitives behind closelink sessions:
// per-session X25519 key pairs, shared-key derivation, and secret-key
// authenticated encryption (NaCl secretbox) with random nonces.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// KeySize is the symmetric key width in bytes.
	KeySize = 32
	// NonceSize is the secretbox nonce width in bytes.
	NonceSize = 24
)

// KeyPair is an X25519 key pair scoped to a single session. Pairs are
// never reused across sessions.
type KeyPair struct {
	Private [32]byte
	Public  [32]byte
}

func (k KeyPair) String() string   { return "crypto.KeyPair{REDACTED}" }
func (k KeyPair) GoString() string { return k.String() }

// NewSessionKeyPair returns a fresh X25519 pair, private key clamped
// per RFC 7748.
func NewSessionKeyPair() (KeyPair, error) {
	var kp KeyPair
	if _, err := rand.Read(kp.Private[:]); err != nil {
		return KeyPair{}, fmt.Errorf("generating session key: %w", err)
	}
	kp.Private[0] &= 248
	kp.Private[31] &= 127
	kp.Private[31] |= 64

	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, err
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// SharedKey runs X25519 scalar multiplication against the peer's public
// key and hashes the shared point to a fixed-width symmetric key.
func SharedKey(priv [32]byte, peerPub [32]byte) ([KeySize]byte, error) {
	var key [KeySize]byte
	shared, err := curve25519.X25519(priv[:], peerPub[:])
	if err != nil {
		return key, fmt.Errorf("deriving shared key: %w", err)
	}
	sum := sha256.Sum256(shared)
	copy(key[:], sum[:])
	Wipe(shared)
	return key, nil
}

// Seal encrypts plaintext under key with a fresh random nonce.
func Seal(key [KeySize]byte, plaintext []byte) (nonce [NonceSize]byte, box []byte, err error) {
	if _, err = rand.Read(nonce[:]); err != nil {
		return nonce, nil, fmt.Errorf("generating nonce: %w", err)
	}
	box = secretbox.Seal(nil, plaintext, &nonce, &key)
	return nonce, box, nil
}

// Open authenticates and decrypts box. A false return means the key is
// wrong or the nonce/ciphertext is corrupted; callers drop the unit of
// data and carry on.
func Open(key [KeySize]byte, nonce [NonceSize]byte, box []byte) ([]byte, bool) {
	return secretbox.Open(nil, box, &nonce, &key)
}

// Wipe overwrites b with zeros.
func Wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
}

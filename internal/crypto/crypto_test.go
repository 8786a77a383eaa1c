package crypto_test

import (
	"bytes"
	"testing"

	"closelink/internal/crypto"
)

func TestSharedKey_Agreement(t *testing.T) {
	a, err := crypto.NewSessionKeyPair()
	if err != nil {
		t.Fatalf("NewSessionKeyPair: %v", err)
	}
	b, err := crypto.NewSessionKeyPair()
	if err != nil {
		t.Fatalf("NewSessionKeyPair: %v", err)
	}

	ka, err := crypto.SharedKey(a.Private, b.Public)
	if err != nil {
		t.Fatalf("SharedKey: %v", err)
	}
	kb, err := crypto.SharedKey(b.Private, a.Public)
	if err != nil {
		t.Fatalf("SharedKey: %v", err)
	}
	if ka != kb {
		t.Fatalf("sides derived different keys")
	}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	var key [crypto.KeySize]byte
	copy(key[:], bytes.Repeat([]byte{0x42}, crypto.KeySize))

	nonce, box, err := crypto.Seal(key, []byte("hello"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	pt, ok := crypto.Open(key, nonce, box)
	if !ok {
		t.Fatalf("Open failed on valid box")
	}
	if string(pt) != "hello" {
		t.Fatalf("got %q, want %q", pt, "hello")
	}
}

func TestOpen_RejectsTamperingAndWrongKey(t *testing.T) {
	var key, wrong [crypto.KeySize]byte
	key[0] = 1
	wrong[0] = 2

	nonce, box, err := crypto.Seal(key, []byte("hello"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if _, ok := crypto.Open(wrong, nonce, box); ok {
		t.Fatalf("wrong key must not decrypt")
	}

	box[0] ^= 0xFF
	if _, ok := crypto.Open(key, nonce, box); ok {
		t.Fatalf("tampered box must not decrypt")
	}
}

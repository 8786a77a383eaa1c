package fingerprint_test

import (
	"bytes"
	"math/bits"
	"testing"

	"closelink/internal/fingerprint"
)

func TestBuild_Deterministic(t *testing.T) {
	secret := bytes.Repeat([]byte{0x11}, 32)
	tags := []string{"music", "books"}

	a := fingerprint.Build(tags, secret)
	b := fingerprint.Build(tags, secret)

	if a.Bloom != b.Bloom {
		t.Fatalf("bloom not deterministic: %x vs %x", a.Bloom, b.Bloom)
	}
	if a.Obfuscated != b.Obfuscated {
		t.Fatalf("obfuscation not deterministic")
	}
}

func TestBuild_SecretChangesObfuscationOnly(t *testing.T) {
	tags := []string{"music", "travel"}

	a := fingerprint.Build(tags, bytes.Repeat([]byte{0x01}, 32))
	b := fingerprint.Build(tags, bytes.Repeat([]byte{0x02}, 32))

	if a.Bloom != b.Bloom {
		t.Fatalf("bloom must not depend on the secret")
	}
	if a.Obfuscated == b.Obfuscated {
		t.Fatalf("obfuscation must depend on the secret")
	}
}

func TestBuildBloom_TagNormalization(t *testing.T) {
	if fingerprint.BuildBloom([]string{"Music"}) != fingerprint.BuildBloom([]string{"music"}) {
		t.Fatalf("tags must be case-insensitive")
	}
}

func TestBuildBloom_SetsAtMostKBitsPerTag(t *testing.T) {
	bloom := fingerprint.BuildBloom([]string{"music"})
	if n := bits.OnesCount64(bloom); n == 0 || n > 3 {
		t.Fatalf("one tag set %d bits, want 1..3", n)
	}
}

func TestApproxJaccard_Bounds(t *testing.T) {
	a := fingerprint.BuildBloom([]string{"music", "books"})
	if a == 0 {
		t.Fatalf("expected non-empty mask")
	}
	if got := fingerprint.ApproxJaccard(a, a); got != 1 {
		t.Fatalf("self similarity = %v, want 1", got)
	}
	if got := fingerprint.ApproxJaccard(0, 0); got != 0 {
		t.Fatalf("empty/empty = %v, want 0", got)
	}
	b := fingerprint.BuildBloom([]string{"music", "sports"})
	got := fingerprint.ApproxJaccard(a, b)
	if got < 0 || got > 1 {
		t.Fatalf("similarity %v out of [0,1]", got)
	}
}

func TestTagID_UnknownTagStable(t *testing.T) {
	a := fingerprint.TagID("quantum knitting")
	b := fingerprint.TagID("quantum knitting")
	if a != b {
		t.Fatalf("unknown tag id not stable: %d vs %d", a, b)
	}
	if a < 0 || a >= 1000 {
		t.Fatalf("synthetic id %d out of range", a)
	}
}

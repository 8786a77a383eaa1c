// Package fingerprint compresses interest tags into an obfuscated
// fixed-size token suitable for radio broadcast.
//
// Tags are folded into a 64-bit Bloom filter (k=3 positions derived
// from one hash primitive). The raw Bloom mask would be vulnerable to a
// dictionary attack against the fixed tag universe, so the broadcast
// form is a keyed hash of the mask under the device secret, truncated
// to the wire-format width.
package fingerprint

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"math/bits"
	"strings"
)

// Width of the full obfuscated token in bytes. Wire formats may
// truncate it further (see the advert package).
const Size = 8

// bloomK is the number of bit positions set per tag.
const bloomK = 3

// Universe is the fixed tag dictionary shared by all devices. Tags
// outside it are hashed into a synthetic id so they still contribute
// bits, at a slightly higher collision rate.
var Universe = []string{
	"music",
	"books",
	"sports",
	"art",
	"tech",
	"travel",
	"food",
	"movies",
	"fitness",
	"gaming",
}

// Fingerprint pairs the raw Bloom mask (local use only) with the
// obfuscated broadcast token.
type Fingerprint struct {
	Bloom      uint64
	Obfuscated [Size]byte
}

// TagID maps a normalized tag to its integer id in the universe, or to
// a stable synthetic id below 1000 for unknown tags.
func TagID(tag string) int {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for i, t := range Universe {
		if t == tag {
			return i
		}
	}
	sum := sha256.Sum256([]byte(tag))
	return int(binary.BigEndian.Uint32(sum[:4]) % 1000)
}

// BuildBloom folds the tags into a 64-bit Bloom mask. For each tag id,
// k positions are derived by hashing (idLo, idHi, j) and taking the
// first digest byte mod 64.
func BuildBloom(tags []string) uint64 {
	var bloom uint64
	for _, tag := range tags {
		id := TagID(tag)
		for j := 0; j < bloomK; j++ {
			sum := sha256.Sum256([]byte{byte(id), byte(id >> 8), byte(j)})
			bloom |= 1 << (sum[0] % 64)
		}
	}
	return bloom
}

// Build computes the Bloom mask for tags and its keyed obfuscation
// under the device secret. Pure: identical inputs yield identical
// output.
func Build(tags []string, secret []byte) Fingerprint {
	bloom := BuildBloom(tags)

	var be [8]byte
	binary.BigEndian.PutUint64(be[:], bloom)

	mac := hmac.New(sha256.New, secret)
	mac.Write(be[:])

	fp := Fingerprint{Bloom: bloom}
	copy(fp.Obfuscated[:], mac.Sum(nil))
	return fp
}

// ApproxJaccard estimates tag-set similarity from two Bloom masks as
// popcount(a&b)/popcount(a|b). Defined as 0 when both masks are empty.
// This is an estimate: hash collisions can push it to 0 even when some
// overlap exists, which is an accepted accuracy/privacy trade-off.
func ApproxJaccard(a, b uint64) float64 {
	union := bits.OnesCount64(a | b)
	if union == 0 {
		return 0
	}
	return float64(bits.OnesCount64(a&b)) / float64(union)
}

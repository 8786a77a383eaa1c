// Package scoring computes a deterministic compatibility score in [0,1]
// from two profiles plus proximity. It is pure and side-effect-free;
// callers decide the threshold that gates whether a connection action
// is offered.
package scoring

import (
	"fmt"
	"strings"

	"closelink/internal/domain"
	"closelink/internal/fingerprint"
)

// Weights for the normalized component signals. The bio term only
// contributes when both sides carry a bio.
type Weights struct {
	Age       float64
	Gender    float64
	Interest  float64
	Bio       float64
	Proximity float64
}

// DefaultWeights are the reference weights.
var DefaultWeights = Weights{
	Age:       0.25,
	Gender:    0.15,
	Interest:  0.40,
	Bio:       0.05,
	Proximity: 0.15,
}

const (
	// DefaultMatchThreshold gates whether a connect action is offered.
	DefaultMatchThreshold = 0.35

	// adultAge and ageGapTolerance parameterize the safety rule: when
	// exactly one party is a minor and the age gap exceeds the
	// tolerance, the pair is force-scored to zero.
	adultAge        = 18
	ageGapTolerance = 2

	// minProximity short-circuits scoring: a peer effectively out of
	// range is not a candidate match no matter the other signals.
	minProximity = 0.05

	// RSSI endpoints of the linear proximity map.
	rssiNear = -45
	rssiFar  = -85

	// Reason codes for deterministic zero scores.
	ReasonAgeGapPolicy = "age_gap_policy"
	ReasonOutOfRange   = "out_of_range"
)

// Peer is the scorer's view of the other party. Interests may be nil
// when only the broadcast fingerprint is known; Bloom is used then.
type Peer struct {
	Age       int
	Sex       domain.Sex
	Interests []string
	Bloom     uint64
	Bio       string
	RSSI      int
}

// Result is a derived, never-persisted score with a human-readable
// summary. Incompatible marks a safety-policy rejection, which is not
// an error: the zero score is the deterministic outcome.
type Result struct {
	Score        float64
	Reason       string
	Incompatible bool
}

// Proximity maps RSSI onto [0,1]: >= -45 dBm is 1, <= -85 dBm is 0,
// linear in between.
func Proximity(rssi int) float64 {
	if rssi >= rssiNear {
		return 1
	}
	if rssi <= rssiFar {
		return 0
	}
	return float64(rssi-rssiFar) / float64(rssiNear-rssiFar)
}

// Score evaluates peer against me. myBloom is my interest fingerprint,
// used when cleartext interests are unavailable on either side.
func Score(me domain.Profile, myBloom uint64, peer Peer, w Weights) Result {
	if violatesAgePolicy(me.Age, peer.Age) {
		return Result{Score: 0, Reason: ReasonAgeGapPolicy, Incompatible: true}
	}

	prox := Proximity(peer.RSSI)
	if prox < minProximity {
		return Result{Score: 0, Reason: ReasonOutOfRange}
	}

	age := ageSignal(me.Preference, me.Age, peer.Age)

	var gender float64
	if me.Preference.Accepts(peer.Sex) {
		gender = 1
	}

	interest := interestSignal(me.Interests, peer.Interests, myBloom, peer.Bloom)

	bio := 0.0
	if me.Bio != "" && peer.Bio != "" {
		bio = tokenJaccard(tokenize(me.Bio), tokenize(peer.Bio))
	}

	score := w.Age*age + w.Gender*gender + w.Interest*interest + w.Bio*bio + w.Proximity*prox
	score = clamp01(score)

	reason := fmt.Sprintf("age %.2f · gender %.0f · interests %.2f · proximity %.2f",
		age, gender, interest, prox)
	return Result{Score: score, Reason: reason}
}

// violatesAgePolicy reports whether exactly one party is under the
// adulthood threshold with an age gap beyond the tolerance.
func violatesAgePolicy(a, b int) bool {
	minorA, minorB := a < adultAge, b < adultAge
	if minorA == minorB {
		return false
	}
	gap := a - b
	if gap < 0 {
		gap = -gap
	}
	return gap > ageGapTolerance
}

// ageSignal is 1 inside the preferred window and decays linearly to 0
// over a 10-year distance from the nearest bound. With no window
// configured it decays from the exact age difference instead.
func ageSignal(pref domain.Preference, myAge, peerAge int) float64 {
	if pref.AgeMin == 0 && pref.AgeMax == 0 {
		diff := myAge - peerAge
		if diff < 0 {
			diff = -diff
		}
		return clamp01(1 - float64(diff)/10)
	}
	if peerAge >= pref.AgeMin && peerAge <= pref.AgeMax {
		return 1
	}
	var dist int
	if peerAge < pref.AgeMin {
		dist = pref.AgeMin - peerAge
	} else {
		dist = peerAge - pref.AgeMax
	}
	return clamp01(1 - float64(dist)/10)
}

// interestSignal prefers the exact comparison whenever both cleartext
// tag sets are locally available (self-check, mock peers); otherwise it
// falls back to the approximate Bloom comparison of the broadcast
// fingerprints.
func interestSignal(mine, theirs []string, myBloom, theirBloom uint64) float64 {
	if mine != nil && theirs != nil {
		return tokenJaccard(lowerSet(mine), lowerSet(theirs))
	}
	return fingerprint.ApproxJaccard(myBloom, theirBloom)
}

func lowerSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}

// tokenize splits free text into normalized tokens of three or more
// characters.
func tokenize(text string) map[string]struct{} {
	set := make(map[string]struct{})
	word := strings.Builder{}
	flush := func() {
		if word.Len() >= 3 {
			set[word.String()] = struct{}{}
		}
		word.Reset()
	}
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			word.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return set
}

func tokenJaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

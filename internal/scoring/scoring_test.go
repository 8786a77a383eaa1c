package scoring_test

import (
	"testing"

	"closelink/internal/domain"
	"closelink/internal/fingerprint"
	"closelink/internal/scoring"
)

func alice() domain.Profile {
	return domain.Profile{
		Age: 28,
		Sex: domain.SexFemale,
		Preference: domain.Preference{
			Genders: []domain.Sex{domain.SexMale},
			AgeMin:  25,
			AgeMax:  35,
		},
		Interests: []string{"music", "books"},
	}
}

func bob() scoring.Peer {
	return scoring.Peer{
		Age:       30,
		Sex:       domain.SexMale,
		Interests: []string{"music", "sports"},
		RSSI:      -55,
	}
}

func TestScore_EndToEndAliceBob(t *testing.T) {
	near := bob()
	far := bob()
	far.RSSI = -85

	nearRes := scoring.Score(alice(), 0, near, scoring.DefaultWeights)
	farRes := scoring.Score(alice(), 0, far, scoring.DefaultWeights)

	if nearRes.Score <= 0.5 {
		t.Fatalf("near score %v, want > 0.5 (%s)", nearRes.Score, nearRes.Reason)
	}
	if farRes.Score >= nearRes.Score {
		t.Fatalf("far score %v not strictly lower than near %v", farRes.Score, nearRes.Score)
	}
	if farRes.Score < 0 || nearRes.Score > 1 {
		t.Fatalf("scores out of [0,1]: %v %v", farRes.Score, nearRes.Score)
	}
}

func TestScore_ProximityMonotonic(t *testing.T) {
	strong := bob()
	weak := bob()
	weak.RSSI = -75

	a := scoring.Score(alice(), 0, strong, scoring.DefaultWeights)
	b := scoring.Score(alice(), 0, weak, scoring.DefaultWeights)
	if a.Score <= b.Score {
		t.Fatalf("score(-55)=%v not greater than score(-75)=%v", a.Score, b.Score)
	}
}

func TestProximity_Clamps(t *testing.T) {
	if got := scoring.Proximity(-40); got != 1 {
		t.Fatalf("Proximity(-40) = %v, want 1", got)
	}
	if got := scoring.Proximity(-90); got != 0 {
		t.Fatalf("Proximity(-90) = %v, want 0", got)
	}
	mid := scoring.Proximity(-65)
	if mid <= 0 || mid >= 1 {
		t.Fatalf("Proximity(-65) = %v, want inside (0,1)", mid)
	}
}

func TestScore_SafetyClamp(t *testing.T) {
	me := alice()
	me.Age = 17
	peer := bob()
	peer.Age = 30
	peer.Interests = []string{"music", "books"} // full overlap must not matter

	res := scoring.Score(me, 0, peer, scoring.DefaultWeights)
	if res.Score != 0 {
		t.Fatalf("minor/adult gap must score exactly 0, got %v", res.Score)
	}
	if !res.Incompatible || res.Reason != scoring.ReasonAgeGapPolicy {
		t.Fatalf("expected age-gap policy rejection, got %+v", res)
	}
}

func TestScore_SafetyTolerance(t *testing.T) {
	// 17 and 19: one minor, but within the 2-year tolerance.
	me := alice()
	me.Age = 17
	me.Preference.AgeMin, me.Preference.AgeMax = 16, 20
	peer := bob()
	peer.Age = 19

	res := scoring.Score(me, 0, peer, scoring.DefaultWeights)
	if res.Incompatible {
		t.Fatalf("2-year gap inside tolerance must not be clamped: %+v", res)
	}
}

func TestScore_OutOfRangeShortCircuit(t *testing.T) {
	peer := bob()
	peer.RSSI = -110

	res := scoring.Score(alice(), 0, peer, scoring.DefaultWeights)
	if res.Score != 0 || res.Reason != scoring.ReasonOutOfRange {
		t.Fatalf("out-of-range peer must score 0, got %+v", res)
	}
	if res.Incompatible {
		t.Fatalf("out of range is not a safety rejection")
	}
}

func TestScore_GenderPreference(t *testing.T) {
	me := alice()
	peer := bob()
	peer.Sex = domain.SexFemale // outside Alice's accepted set

	with := scoring.Score(me, 0, bob(), scoring.DefaultWeights)
	without := scoring.Score(me, 0, peer, scoring.DefaultWeights)
	if without.Score >= with.Score {
		t.Fatalf("unaccepted sex should lower the score: %v vs %v", without.Score, with.Score)
	}

	me.Preference.Genders = nil // empty set means no preference
	open := scoring.Score(me, 0, peer, scoring.DefaultWeights)
	if open.Score != with.Score {
		t.Fatalf("no-preference score %v, want %v", open.Score, with.Score)
	}
}

func TestScore_BloomFallback(t *testing.T) {
	myBloom := fingerprint.BuildBloom([]string{"music", "books"})
	peer := bob()
	peer.Interests = nil // cleartext unavailable, bloom only
	peer.Bloom = fingerprint.BuildBloom([]string{"music", "sports"})

	res := scoring.Score(alice(), myBloom, peer, scoring.DefaultWeights)
	if res.Score <= 0 || res.Score > 1 {
		t.Fatalf("bloom-only score %v out of range", res.Score)
	}
}

func TestScore_AgeWindowDecay(t *testing.T) {
	me := alice() // window 25..35
	inWindow := bob()
	justOut := bob()
	justOut.Age = 38 // 3 years past the bound
	wayOut := bob()
	wayOut.Age = 50 // beyond the 10-year decay

	a := scoring.Score(me, 0, inWindow, scoring.DefaultWeights)
	b := scoring.Score(me, 0, justOut, scoring.DefaultWeights)
	c := scoring.Score(me, 0, wayOut, scoring.DefaultWeights)
	if !(a.Score > b.Score && b.Score > c.Score) {
		t.Fatalf("age decay not monotonic: %v %v %v", a.Score, b.Score, c.Score)
	}
}

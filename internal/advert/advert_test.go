package advert_test

import (
	"bytes"
	"errors"
	"testing"

	"closelink/internal/advert"
)

func samplePayload(version byte, fpWidth int) advert.Payload {
	fp := make([]byte, fpWidth)
	for i := range fp {
		fp[i] = byte(0xF0 + i)
	}
	return advert.Payload{
		Version:     version,
		EphemeralID: []byte{1, 2, 3, 4, 5, 6, 7, 8},
		Fingerprint: fp,
		Flags:       0x05,
	}
}

func TestPackUnpack_RoundTripBothWidths(t *testing.T) {
	cases := []struct {
		version byte
		width   int
		size    int
	}{
		{advert.VersionWide, 8, 18},
		{advert.VersionCompact, 2, 12},
	}
	for _, tc := range cases {
		in := samplePayload(tc.version, tc.width)
		frame, err := advert.Pack(in)
		if err != nil {
			t.Fatalf("Pack v%d: %v", tc.version, err)
		}
		if len(frame) != tc.size {
			t.Fatalf("v%d frame size %d, want %d", tc.version, len(frame), tc.size)
		}
		out, ok := advert.Unpack(frame)
		if !ok {
			t.Fatalf("Unpack v%d failed", tc.version)
		}
		if out.Version != in.Version || out.Flags != in.Flags {
			t.Fatalf("v%d header mismatch: %+v", tc.version, out)
		}
		if !bytes.Equal(out.EphemeralID, in.EphemeralID) {
			t.Fatalf("v%d identity mismatch", tc.version)
		}
		if !bytes.Equal(out.Fingerprint, in.Fingerprint[:tc.width]) {
			t.Fatalf("v%d fingerprint mismatch", tc.version)
		}
		if out.FingerprintWidth() != tc.width {
			t.Fatalf("v%d reported width %d, want %d", tc.version, out.FingerprintWidth(), tc.width)
		}

		// Byte-exact: re-packing the decoded payload reproduces the frame.
		again, err := advert.Pack(out)
		if err != nil {
			t.Fatalf("re-Pack v%d: %v", tc.version, err)
		}
		if !bytes.Equal(again, frame) {
			t.Fatalf("v%d round trip not byte-exact", tc.version)
		}
	}
}

func TestPack_TruncatesLongFingerprint(t *testing.T) {
	in := samplePayload(advert.VersionCompact, 8)
	frame, err := advert.Pack(in)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	out, ok := advert.Unpack(frame)
	if !ok {
		t.Fatalf("Unpack failed")
	}
	if !bytes.Equal(out.Fingerprint, in.Fingerprint[:2]) {
		t.Fatalf("fingerprint not truncated to 2 bytes: %x", out.Fingerprint)
	}
}

func TestPack_Errors(t *testing.T) {
	bad := samplePayload(advert.VersionCompact, 2)
	bad.EphemeralID = bad.EphemeralID[:7]
	if _, err := advert.Pack(bad); !errors.Is(err, advert.ErrBadIdentity) {
		t.Fatalf("short identity: got %v", err)
	}

	bad = samplePayload(advert.VersionWide, 2)
	if _, err := advert.Pack(bad); !errors.Is(err, advert.ErrBadFingerprint) {
		t.Fatalf("short fingerprint: got %v", err)
	}

	bad = samplePayload(99, 2)
	if _, err := advert.Pack(bad); !errors.Is(err, advert.ErrBadVersion) {
		t.Fatalf("unknown version: got %v", err)
	}
}

func TestUnpack_Malformed(t *testing.T) {
	if _, ok := advert.Unpack(nil); ok {
		t.Fatalf("nil input must not parse")
	}
	if _, ok := advert.Unpack(make([]byte, 11)); ok {
		t.Fatalf("undersized input must not parse")
	}
}

func TestUnpack_UnknownVersionStructural(t *testing.T) {
	frame, err := advert.Pack(samplePayload(advert.VersionCompact, 2))
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	frame[0] = 7 // unknown version, length still matches the compact frame

	out, ok := advert.Unpack(frame)
	if !ok {
		t.Fatalf("unknown version with matching length must still parse")
	}
	if out.Version != 7 || out.FingerprintWidth() != 2 {
		t.Fatalf("structural parse wrong: %+v", out)
	}

	// Unknown version with a length matching neither width fails.
	if _, ok := advert.Unpack(append(frame, 0)); ok {
		t.Fatalf("unknown version with odd length must not parse")
	}
}

func TestUnpack_IgnoresTrailingPaddingForKnownVersion(t *testing.T) {
	frame, err := advert.Pack(samplePayload(advert.VersionCompact, 2))
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	padded := append(frame, 0x00, 0x00)
	out, ok := advert.Unpack(padded)
	if !ok {
		t.Fatalf("padded known-version frame must parse")
	}
	if out.FingerprintWidth() != 2 {
		t.Fatalf("reported width %d, want 2", out.FingerprintWidth())
	}
}

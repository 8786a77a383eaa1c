// Package advert packs and unpacks the fixed-size radio advertisement:
// version (1) + ephemeral identity (8) + truncated fingerprint (2 or 8)
// + flags (1).
//
// Two frame widths exist because constrained radio platforms bound the
// broadcastable payload to roughly 20-30 bytes once it is re-encoded
// into a discoverable name field. Version 1 is the original wide frame
// with the full 8-byte fingerprint; version 2 shrinks the fingerprint
// to 2 bytes for a 12-byte frame. Round-trips are byte-exact.
package advert

import (
	"errors"
	"fmt"
)

const (
	// VersionWide carries the full 8-byte fingerprint (18-byte frame).
	VersionWide = 1
	// VersionCompact carries a 2-byte fingerprint (12-byte frame).
	VersionCompact = 2

	idSize = 8

	wideFingerprintSize    = 8
	compactFingerprintSize = 2

	wideFrameSize    = 1 + idSize + wideFingerprintSize + 1    // 18
	compactFrameSize = 1 + idSize + compactFingerprintSize + 1 // 12

	// MinFrameSize is the shortest structurally valid frame.
	MinFrameSize = compactFrameSize
)

var (
	ErrBadIdentity    = errors.New("advert: ephemeral identity must be 8 bytes")
	ErrBadFingerprint = errors.New("advert: fingerprint shorter than format width")
	ErrBadVersion     = errors.New("advert: unknown version")
)

// Payload is the decoded advertisement. Fingerprint holds exactly the
// number of bytes the frame's version allocates.
type Payload struct {
	Version     byte
	EphemeralID []byte
	Fingerprint []byte
	Flags       byte
}

// FingerprintWidth reports how many fingerprint bytes the payload's
// frame carries.
func (p Payload) FingerprintWidth() int { return len(p.Fingerprint) }

// fingerprintWidth returns the fingerprint width a version mandates, or
// 0 for unknown versions.
func fingerprintWidth(version byte) int {
	switch version {
	case VersionWide:
		return wideFingerprintSize
	case VersionCompact:
		return compactFingerprintSize
	}
	return 0
}

// Pack encodes p into its fixed-size frame. The fingerprint is
// truncated to the version's width; longer input is accepted, shorter
// input is an error.
func Pack(p Payload) ([]byte, error) {
	if len(p.EphemeralID) != idSize {
		return nil, ErrBadIdentity
	}
	width := fingerprintWidth(p.Version)
	if width == 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, p.Version)
	}
	if len(p.Fingerprint) < width {
		return nil, ErrBadFingerprint
	}

	buf := make([]byte, 1+idSize+width+1)
	buf[0] = p.Version
	copy(buf[1:], p.EphemeralID)
	copy(buf[1+idSize:], p.Fingerprint[:width])
	buf[len(buf)-1] = p.Flags
	return buf, nil
}

// Unpack decodes a received frame. Malformed input yields ok=false and
// must be discarded by the caller; it is never an error condition.
//
// Known versions decode at their fixed width (trailing padding from the
// radio layer is ignored). Frames with an unknown version byte are
// still structurally parseable when their length matches one of the
// fixed frame sizes exactly, leaving interpretation to the caller.
func Unpack(data []byte) (Payload, bool) {
	if len(data) < MinFrameSize {
		return Payload{}, false
	}

	version := data[0]
	width := fingerprintWidth(version)
	switch {
	case width != 0:
		if len(data) < 1+idSize+width+1 {
			return Payload{}, false
		}
	case len(data) == wideFrameSize:
		width = wideFingerprintSize
	case len(data) == compactFrameSize:
		width = compactFingerprintSize
	default:
		return Payload{}, false
	}

	p := Payload{
		Version:     version,
		EphemeralID: append([]byte(nil), data[1:1+idSize]...),
		Fingerprint: append([]byte(nil), data[1+idSize:1+idSize+width]...),
		Flags:       data[1+idSize+width],
	}
	return p, true
}

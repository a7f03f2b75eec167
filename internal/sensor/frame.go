package sensor

import (
	"encoding/binary"
	"fmt"
)

// Measurement-data protocol constants. The interval characteristic delivers
// a 10-byte header followed by N 6-byte samples.
const (
	pmdTypePPI    = 0x03
	pmdHeaderSize = 10
	pmdSampleSize = 6
)

// Contact-flag bits in the PPI sample flags byte.
const (
	flagSkinContact      = 1 << 0
	flagContactSupported = 1 << 1
)

// PPISample is one decoded interval sample from the proprietary interval
// characteristic.
type PPISample struct {
	IntervalMs float64
	ErrorEstMs float64
	// SkinContact is the per-sample contact-quality flag feeding the rolling
	// signal-quality indicator.
	SkinContact bool
}

// frameError reports a malformed characteristic payload. Malformed frames
// are dropped samples, never fatal: the caller counts and continues.
type frameError struct {
	characteristic string
	reason         string
}

func (e *frameError) Error() string {
	return fmt.Sprintf("sensor: malformed %s frame: %s", e.characteristic, e.reason)
}

// parseHeartRate decodes the heart-rate characteristic. The first byte's low
// bit selects the encoding: 0 → uint8 at offset 1, 1 → uint16 LE at offset 1.
func parseHeartRate(data []byte) (int, error) {
	if len(data) < 2 {
		return 0, &frameError{characteristic: "hr", reason: "too short"}
	}
	if data[0]&0x01 != 0 {
		if len(data) < 3 {
			return 0, &frameError{characteristic: "hr", reason: "16-bit value truncated"}
		}
		return int(binary.LittleEndian.Uint16(data[1:3])), nil
	}
	return int(data[1]), nil
}

// parsePPIFrame decodes the proprietary interval characteristic: a 10-byte
// header (measurement type, device timestamp, frame type) followed by 6-byte
// samples of {heart rate, uint16 LE interval ms, uint16 LE error estimate
// ms, flags}. Frames of the wrong measurement type or with no complete
// sample are rejected.
func parsePPIFrame(data []byte) ([]PPISample, error) {
	if len(data) < pmdHeaderSize+pmdSampleSize {
		return nil, &frameError{characteristic: "ppi", reason: "too short"}
	}
	if data[0] != pmdTypePPI {
		return nil, &frameError{
			characteristic: "ppi",
			reason:         fmt.Sprintf("unexpected measurement type 0x%02x", data[0]),
		}
	}

	raw := data[pmdHeaderSize:]
	samples := make([]PPISample, 0, len(raw)/pmdSampleSize)
	for off := 0; off+pmdSampleSize <= len(raw); off += pmdSampleSize {
		flags := raw[off+5]
		samples = append(samples, PPISample{
			IntervalMs:  float64(binary.LittleEndian.Uint16(raw[off+1 : off+3])),
			ErrorEstMs:  float64(binary.LittleEndian.Uint16(raw[off+3 : off+5])),
			SkinContact: flags&flagSkinContact != 0,
		})
	}
	return samples, nil
}

// parseBattery decodes the single-byte battery-level characteristic.
func parseBattery(data []byte) (int, error) {
	if len(data) < 1 {
		return 0, &frameError{characteristic: "battery", reason: "empty"}
	}
	if data[0] > 100 {
		return 0, &frameError{characteristic: "battery", reason: "level above 100"}
	}
	return int(data[0]), nil
}

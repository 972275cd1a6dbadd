// Package decode interprets raw serial frames as quaternions according to a
// selected wire format, validating every candidate before it is allowed
// further into the pipeline.
package decode

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/quat"
)

// Format selects how incoming frames are interpreted.
type Format int

const (
	Float32 Format = iota // 16-byte little-endian (w,x,y,z) float32 quads
	Float64               // 32-byte little-endian (w,x,y,z) float64 quads
	ASCII                 // "w,x,y,z\n" text lines
	Binary                // 16-byte quads, byte order auto-disambiguated
	Custom                // 20-byte framed packets: magic + quad + checksum
	NMEA                  // $--QTN,w,x,y,z*hh proprietary sentences
)

var formatNames = map[Format]string{
	Float32: "float32",
	Float64: "float64",
	ASCII:   "ascii",
	Binary:  "binary",
	Custom:  "custom",
	NMEA:    "nmea",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// ParseFormat maps a configuration string onto a Format.
func ParseFormat(s string) (Format, error) {
	for f, name := range formatNames {
		if name == s {
			return f, nil
		}
	}
	return Float32, fmt.Errorf("unknown decode format %q", s)
}

const (
	// CustomMagic is the little-endian header constant of the 20-byte
	// framed packet format.
	CustomMagic      = 0xAA55
	customPacketSize = 20

	float32QuadSize = 16
	float64QuadSize = 32

	asciiCarryMax  = 1000
	asciiCarryKeep = 500

	// Plausible magnitude window for the binary byte-order heuristic.
	binaryMagMin = 0.1
	binaryMagMax = 2.0
)

// Stats are the decoder's cumulative packet counters. Total counts every
// candidate seen, Valid the ones that passed validation, Invalid the ones
// that were dropped (malformed, bad magic, NaN/Inf or off-unit magnitude).
type Stats struct {
	Total   uint64 `json:"total"`
	Valid   uint64 `json:"valid"`
	Invalid uint64 `json:"invalid"`
}

// Decoder turns frames into validated unit quaternions. It is a
// single-threaded state machine: the only state carried between calls is
// the ASCII carryover buffer and the counters.
type Decoder struct {
	format Format
	carry  []byte
	stats  Stats
}

// New creates a decoder for the given format.
func New(format Format) *Decoder {
	return &Decoder{format: format}
}

// SetFormat switches the wire format and discards any ASCII carryover.
func (d *Decoder) SetFormat(format Format) {
	d.format = format
	d.carry = nil
}

// Format returns the currently selected wire format.
func (d *Decoder) Format() Format {
	return d.format
}

// Stats returns a snapshot of the cumulative counters.
func (d *Decoder) Stats() Stats {
	return d.stats
}

// Decode interprets one frame. Malformed input yields an empty slice and
// bumps counters; it never errors out of the pipeline. Every returned
// quaternion is normalized to exact unit magnitude.
func (d *Decoder) Decode(frame []byte) []quat.Quaternion {
	var candidates []quat.Quaternion
	switch d.format {
	case Float32:
		candidates = d.decodeFloat32(frame)
	case Float64:
		candidates = d.decodeFloat64(frame)
	case ASCII:
		candidates = d.decodeASCII(frame)
	case Binary:
		candidates = d.decodeBinary(frame)
	case Custom:
		candidates = d.decodeCustom(frame)
	case NMEA:
		candidates = d.decodeNMEA(frame)
	}

	out := candidates[:0]
	for _, q := range candidates {
		d.stats.Total++
		if !q.IsValid() {
			d.stats.Invalid++
			log.Debugf("decode: rejected quaternion with norm %.4f", q.Norm())
			continue
		}
		d.stats.Valid++
		out = append(out, q.Normalized())
	}
	return out
}

func f32le(b []byte) (float64, float64, float64, float64) {
	a := float64(math.Float32frombits(binary.LittleEndian.Uint32(b[0:4])))
	c := float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4:8])))
	e := float64(math.Float32frombits(binary.LittleEndian.Uint32(b[8:12])))
	f := float64(math.Float32frombits(binary.LittleEndian.Uint32(b[12:16])))
	return a, c, e, f
}

func f32be(b []byte) (float64, float64, float64, float64) {
	a := float64(math.Float32frombits(binary.BigEndian.Uint32(b[0:4])))
	c := float64(math.Float32frombits(binary.BigEndian.Uint32(b[4:8])))
	e := float64(math.Float32frombits(binary.BigEndian.Uint32(b[8:12])))
	f := float64(math.Float32frombits(binary.BigEndian.Uint32(b[12:16])))
	return a, c, e, f
}

// decodeFloat32 splits the frame into 16-byte chunks of four little-endian
// float32 values in (w,x,y,z) order. A short trailing chunk is dropped.
func (d *Decoder) decodeFloat32(frame []byte) []quat.Quaternion {
	var out []quat.Quaternion
	for i := 0; i+float32QuadSize <= len(frame); i += float32QuadSize {
		w, x, y, z := f32le(frame[i:])
		out = append(out, quat.Quaternion{W: w, X: x, Y: y, Z: z})
	}
	return out
}

// decodeFloat64 splits the frame into 32-byte chunks of four little-endian
// float64 values in (w,x,y,z) order.
func (d *Decoder) decodeFloat64(frame []byte) []quat.Quaternion {
	var out []quat.Quaternion
	for i := 0; i+float64QuadSize <= len(frame); i += float64QuadSize {
		out = append(out, quat.Quaternion{
			W: math.Float64frombits(binary.LittleEndian.Uint64(frame[i : i+8])),
			X: math.Float64frombits(binary.LittleEndian.Uint64(frame[i+8 : i+16])),
			Y: math.Float64frombits(binary.LittleEndian.Uint64(frame[i+16 : i+24])),
			Z: math.Float64frombits(binary.LittleEndian.Uint64(frame[i+24 : i+32])),
		})
	}
	return out
}

// decodeASCII appends the frame to the carryover buffer, parses every
// complete "w,x,y,z" line and keeps the trailing partial line for the next
// call, so quaternions split across frames are still recovered.
func (d *Decoder) decodeASCII(frame []byte) []quat.Quaternion {
	d.carry = append(d.carry, frame...)

	text := strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(string(d.carry))
	lines := strings.Split(text, "\n")

	// The final element is the (possibly empty) incomplete line.
	incomplete := lines[len(lines)-1]
	complete := lines[:len(lines)-1]

	var out []quat.Quaternion
	for _, line := range complete {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		q, err := parseASCIILine(line)
		if err != nil {
			d.stats.Total++
			d.stats.Invalid++
			log.Warnf("decode: bad ascii line %q: %v", line, err)
			continue
		}
		out = append(out, q)
	}

	d.carry = []byte(incomplete)
	if len(d.carry) > asciiCarryMax {
		d.carry = d.carry[len(d.carry)-asciiCarryKeep:]
	}
	return out
}

func parseASCIILine(line string) (quat.Quaternion, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 4 {
		return quat.Quaternion{}, fmt.Errorf("expected 4 fields, got %d", len(parts))
	}

	var vals [4]float64
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return quat.Quaternion{}, fmt.Errorf("field %d: %w", i, err)
		}
		vals[i] = v
	}
	return quat.Quaternion{W: vals[0], X: vals[1], Y: vals[2], Z: vals[3]}, nil
}

// decodeBinary splits the frame into 16-byte chunks and tries, in order,
// little-endian (w,x,y,z), big-endian (w,x,y,z) and little-endian (x,y,z,w).
// The first interpretation whose magnitude lands in a plausible window wins.
// This is a heuristic across unknown producer byte orders and can accept a
// wrong interpretation for magnitude-neutral noise; it is documented as a
// known limitation, not a guaranteed-correct decoder.
func (d *Decoder) decodeBinary(frame []byte) []quat.Quaternion {
	plausible := func(q quat.Quaternion) bool {
		m := q.Norm()
		return m >= binaryMagMin && m <= binaryMagMax
	}

	var out []quat.Quaternion
	for i := 0; i+float32QuadSize <= len(frame); i += float32QuadSize {
		chunk := frame[i:]

		w, x, y, z := f32le(chunk)
		if q := (quat.Quaternion{W: w, X: x, Y: y, Z: z}); plausible(q) {
			out = append(out, q)
			continue
		}

		w, x, y, z = f32be(chunk)
		if q := (quat.Quaternion{W: w, X: x, Y: y, Z: z}); plausible(q) {
			out = append(out, q)
			continue
		}

		x, y, z, w = f32le(chunk)
		if q := (quat.Quaternion{W: w, X: x, Y: y, Z: z}); plausible(q) {
			out = append(out, q)
			continue
		}

		d.stats.Total++
		d.stats.Invalid++
		log.Debugf("decode: undecodable binary chunk at offset %d", i)
	}
	return out
}

// decodeCustom parses fixed 20-byte packets: a 2-byte little-endian magic
// header, a 16-byte little-endian float quad and a 2-byte trailing checksum.
// The checksum field is parsed but deliberately not validated: the known
// producer emits an uninitialized value there, so the magic header is the
// only integrity check. A packet with the wrong magic is skipped and counted
// invalid.
func (d *Decoder) decodeCustom(frame []byte) []quat.Quaternion {
	var out []quat.Quaternion
	for i := 0; i+customPacketSize <= len(frame); i += customPacketSize {
		magic := binary.LittleEndian.Uint16(frame[i : i+2])
		if magic != CustomMagic {
			d.stats.Total++
			d.stats.Invalid++
			log.Debugf("decode: bad custom magic 0x%04X at offset %d", magic, i)
			continue
		}

		w, x, y, z := f32le(frame[i+2 : i+18])
		_ = binary.LittleEndian.Uint16(frame[i+18 : i+20]) // checksum, unvalidated

		out = append(out, quat.Quaternion{W: w, X: x, Y: y, Z: z})
	}
	return out
}

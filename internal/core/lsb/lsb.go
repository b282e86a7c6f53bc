// Package lsb implements W-LSB decoding (RFC 3095 §4.5.1).
//
// A value v is sent as its k least significant bits. The receiver picks the
// only value whose k LSBs match inside the interpretation interval
//
//	[ref - p, ref + 2^k - 1 - p]
//
// where ref is the last correctly decompressed value and p depends on the
// field being decoded.
package lsb

// Shift selects the interpretation interval offset p.
type Shift uint8

const (
	// ShiftSN gives p = -1: the sequence number only moves forward.
	ShiftSN Shift = iota
	// ShiftIPID gives p = 0: IP-ID offsets never go backwards.
	ShiftIPID
	// ShiftRTPTS gives p = 2^(k-2) - 1 to tolerate some reordering of timestamps.
	ShiftRTPTS
)

// P returns the interval offset for k bits.
func (s Shift) P(k int) int64 {
	switch s {
	case ShiftSN:
		return -1
	case ShiftRTPTS:
		if k <= 2 {
			return 0
		}
		return int64(1)<<(k-2) - 1
	default:
		return 0
	}
}

// Decoder keeps the reference values of one LSB-encoded field.
//
// Decoder is a plain value: a decompression context copies it, decodes
// against the copy and only stores it back once the packet is accepted.
type Decoder struct {
	width  uint8
	shift  Shift
	ref    uint32
	old    uint32
	hasRef bool
	hasOld bool
}

// NewDecoder returns a decoder for a field of width bits.
func NewDecoder(width int, shift Shift) Decoder {
	return Decoder{width: uint8(width), shift: shift}
}

// Width returns the field width in bits.
func (d Decoder) Width() int { return int(d.width) }

// Ref returns the current reference and whether one was set.
func (d Decoder) Ref() (uint32, bool) { return d.ref, d.hasRef }

// OldRef returns the reference in use before the last Set.
func (d Decoder) OldRef() (uint32, bool) { return d.old, d.hasOld }

// Set records v as the new reference, keeping the previous one for repair.
func (d *Decoder) Set(v uint32) {
	if d.hasRef {
		d.old = d.ref
		d.hasOld = true
	}
	d.ref = v & d.mask()
	d.hasRef = true
}

// Decode interprets the k bits m against the current reference.
// It reports false when no reference is known yet.
func (d Decoder) Decode(m uint32, k int) (uint32, bool) {
	if !d.hasRef {
		return 0, false
	}
	return d.DecodeFrom(d.ref, m, k), true
}

// DecodeOld interprets m against the reference preceding the current one.
func (d Decoder) DecodeOld(m uint32, k int) (uint32, bool) {
	if !d.hasOld {
		return 0, false
	}
	return d.DecodeFrom(d.old, m, k), true
}

// DecodeFrom interprets the k bits m against an explicit reference.
func (d Decoder) DecodeFrom(ref, m uint32, k int) uint32 {
	mask := d.mask()
	if k >= int(d.width) {
		return m & mask
	}
	if k <= 0 {
		return ref & mask
	}

	low := uint32(int64(ref)-d.shift.P(k)) & mask
	window := uint32(1)<<k - 1
	return (low + ((m - low) & window)) & mask
}

func (d Decoder) mask() uint32 {
	if d.width >= 32 {
		return 0xFFFFFFFF
	}
	return uint32(1)<<d.width - 1
}

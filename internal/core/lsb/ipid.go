package lsb

// IP-ID values are compressed as an offset from the sequence number
// (RFC 3095 §4.5.5): the LSBs on the wire are those of ID - SN, except for
// a full 16-bit field which carries the identifier itself.
//
// Identifiers are handled in network order: when a sender does not use
// network byte order (NBO=0) the raw field is byte-swapped with Normalize
// before any offset is computed, and swapped back when the header is rebuilt.

// Swap16 reverses the bytes of a 16-bit value.
func Swap16(v uint16) uint16 {
	return v<<8 | v>>8
}

// Normalize converts a raw header IP-ID to network order space.
// It is its own inverse.
func Normalize(raw uint16, nbo bool) uint16 {
	if nbo {
		return raw
	}
	return Swap16(raw)
}

// IPIDOffset returns the offset stored as IP-ID decoder reference.
func IPIDOffset(id, sn uint16) uint16 {
	return id - sn
}

// NewIPIDDecoder returns a decoder for 16-bit IP-ID offsets.
func NewIPIDDecoder() Decoder {
	return NewDecoder(16, ShiftIPID)
}

// DecodeIPID decodes the k offset bits m received with sequence number sn
// against the offset reference of d. It reports false when d has no reference.
func DecodeIPID(d Decoder, m uint32, k int, sn uint16) (uint16, bool) {
	if !d.hasRef {
		return 0, false
	}
	return DecodeIPIDFrom(d, d.ref, m, k, sn), true
}

// DecodeIPIDFrom is DecodeIPID with an explicit offset reference.
func DecodeIPIDFrom(d Decoder, ref uint32, m uint32, k int, sn uint16) uint16 {
	if k >= 16 {
		return uint16(m)
	}
	off := d.DecodeFrom(ref, m, k)
	return uint16(off) + sn
}

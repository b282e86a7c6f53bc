// Package sdvl implements the self-describing variable-length encoding of
// RFC 3095 §4.5.6.
//
//	0xxxxxxx                             7 bits
//	10xxxxxx xxxxxxxx                   14 bits
//	110xxxxx xxxxxxxx xxxxxxxx          21 bits
//	111xxxxx xxxxxxxx xxxxxxxx xxxxxxxx 29 bits
package sdvl

import (
	"fmt"

	"firestige.xyz/rohc/internal/core"
)

// MaxValue is the largest value SDVL can carry.
const MaxValue = 1<<29 - 1

// Len returns the number of octets needed to encode v, or 0 if v does not fit.
func Len(v uint32) int {
	switch {
	case v < 1<<7:
		return 1
	case v < 1<<14:
		return 2
	case v < 1<<21:
		return 3
	case v <= MaxValue:
		return 4
	default:
		return 0
	}
}

// Bits returns how many value bits an encoding of n octets carries.
func Bits(n int) int {
	switch n {
	case 1:
		return 7
	case 2:
		return 14
	case 3:
		return 21
	case 4:
		return 29
	default:
		return 0
	}
}

// Encode writes v into dst and returns the number of octets written.
func Encode(dst []byte, v uint32) (int, error) {
	n := Len(v)
	if n == 0 {
		return 0, fmt.Errorf("%w: value %d exceeds SDVL range", core.ErrInvalidArgument, v)
	}
	if len(dst) < n {
		return 0, fmt.Errorf("%w: need %d bytes for SDVL, have %d", core.ErrInvalidArgument, n, len(dst))
	}

	switch n {
	case 1:
		dst[0] = byte(v)
	case 2:
		dst[0] = 0x80 | byte(v>>8)
		dst[1] = byte(v)
	case 3:
		dst[0] = 0xC0 | byte(v>>16)
		dst[1] = byte(v >> 8)
		dst[2] = byte(v)
	case 4:
		dst[0] = 0xE0 | byte(v>>24)
		dst[1] = byte(v >> 16)
		dst[2] = byte(v >> 8)
		dst[3] = byte(v)
	}
	return n, nil
}

// Decode reads one SDVL value from the front of data.
// It returns the value and the number of octets consumed.
func Decode(data []byte) (uint32, int, error) {
	if len(data) == 0 {
		return 0, 0, core.ErrPacketTooShort
	}

	first := data[0]
	var n int
	switch {
	case first&0x80 == 0:
		return uint32(first), 1, nil
	case first&0xC0 == 0x80:
		n = 2
	case first&0xE0 == 0xC0:
		n = 3
	default:
		n = 4
	}
	if len(data) < n {
		return 0, 0, fmt.Errorf("%w: SDVL field of %d bytes truncated", core.ErrPacketTooShort, n)
	}

	var v uint32
	switch n {
	case 2:
		v = uint32(first&0x3F)<<8 | uint32(data[1])
	case 3:
		v = uint32(first&0x1F)<<16 | uint32(data[1])<<8 | uint32(data[2])
	case 4:
		v = uint32(first&0x1F)<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
	}
	return v, n, nil
}

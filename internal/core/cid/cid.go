// Package cid encodes and strips the context identifier carried in front of
// every ROHC packet (RFC 3095 §5.1.3).
//
// Small CIDs (0..15) travel in an optional add-CID octet placed before the
// packet type octet. Large CIDs (0..16383) travel as a one or two octet SDVL
// value placed right after the packet type octet.
package cid

import (
	"fmt"

	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/core/sdvl"
)

const (
	// MaxSmall is the largest CID of a small CID channel.
	MaxSmall = 15
	// MaxLarge is the largest CID of a large CID channel.
	MaxLarge = 1<<14 - 1

	padding    = 0xE0
	addCIDMask = 0xF0
)

// Max returns the largest CID usable with t.
func Max(t core.CIDType) uint16 {
	if t == core.LargeCID {
		return MaxLarge
	}
	return MaxSmall
}

// AddCID returns the add-CID octet for a small CID.
func AddCID(cid uint16) byte {
	return padding | byte(cid&0x0F)
}

// IsAddCID reports whether b is an add-CID octet for a non-zero CID.
func IsAddCID(b byte) bool {
	return b&addCIDMask == padding && b != padding
}

// Prefix describes the layout EncodePrefix produced in the caller's buffer.
type Prefix struct {
	// Written is the number of CID octets written.
	Written int
	// First is where the caller must put the packet type octet.
	First int
	// Next is the first position after the packet type octet and the CID.
	Next int
}

// EncodePrefix writes the CID part of a packet header into dst.
//
// For small CID 0 nothing is written. For other small CIDs the add-CID octet
// goes at position 0 and the packet type octet follows it. For large CIDs
// position 0 is left for the packet type octet and the SDVL-encoded CID
// starts at position 1.
func EncodePrefix(dst []byte, cid uint16, t core.CIDType) (Prefix, error) {
	if cid > Max(t) {
		return Prefix{}, fmt.Errorf("%w: CID %d out of range for %s CID", core.ErrInvalidArgument, cid, t)
	}

	if t == core.SmallCID {
		if cid == 0 {
			if len(dst) < 1 {
				return Prefix{}, fmt.Errorf("%w: buffer too small for CID prefix", core.ErrInvalidArgument)
			}
			return Prefix{Written: 0, First: 0, Next: 1}, nil
		}
		if len(dst) < 2 {
			return Prefix{}, fmt.Errorf("%w: buffer too small for add-CID", core.ErrInvalidArgument)
		}
		dst[0] = AddCID(cid)
		return Prefix{Written: 1, First: 1, Next: 2}, nil
	}

	if len(dst) < 1 {
		return Prefix{}, fmt.Errorf("%w: buffer too small for CID prefix", core.ErrInvalidArgument)
	}
	n, err := sdvl.Encode(dst[1:], uint32(cid))
	if err != nil {
		return Prefix{}, err
	}
	return Prefix{Written: n, First: 0, Next: 1 + n}, nil
}

// Header is a packet with its CID stripped.
type Header struct {
	CID uint16
	// Type is the packet type octet.
	Type byte
	// Body holds everything after the packet type octet and a large CID.
	Body []byte
	// Start is the offset of the add-CID or packet type octet, after padding.
	Start int
	// TypeOffset is the offset of the packet type octet.
	TypeOffset int
}

// Decode strips padding and the CID from the front of data.
func Decode(data []byte, t core.CIDType) (Header, error) {
	pos := 0
	for pos < len(data) && data[pos] == padding {
		pos++
	}
	if pos == len(data) {
		return Header{}, fmt.Errorf("%w: no packet type octet after padding", core.ErrPacketTooShort)
	}

	h := Header{Start: pos}

	if t == core.SmallCID {
		if IsAddCID(data[pos]) {
			h.CID = uint16(data[pos] & 0x0F)
			pos++
			if pos == len(data) {
				return Header{}, fmt.Errorf("%w: no packet type octet after add-CID", core.ErrPacketTooShort)
			}
		}
		h.TypeOffset = pos
		h.Type = data[pos]
		h.Body = data[pos+1:]
		return h, nil
	}

	h.TypeOffset = pos
	h.Type = data[pos]
	pos++
	v, n, err := sdvl.Decode(data[pos:])
	if err != nil {
		return Header{}, fmt.Errorf("large CID: %w", err)
	}
	if n > 2 {
		return Header{}, fmt.Errorf("%w: large CID encoded on %d octets", core.ErrMalformedPacket, n)
	}
	h.CID = uint16(v)
	h.Body = data[pos+n:]
	return h, nil
}

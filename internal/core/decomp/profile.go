package decomp

import (
	"fmt"

	"github.com/google/gopacket"

	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/core/crc"
)

// Profile holds the parts of decompression that depend on what follows the
// IP headers. A context picks its profile once, at creation.
type Profile interface {
	ID() core.ProfileID
	// RTP reports whether UO packets carry RTP fields.
	RTP() bool
	// Protocol returns the transport protocol the profile compresses, if any.
	Protocol() (uint8, bool)

	// ParseStatic reads the profile part of the static chain.
	ParseStatic(data []byte, u *Upper) (int, error)
	// ParseDynamic reads the profile part of the dynamic chain and returns
	// the SN found in it.
	ParseDynamic(data []byte, u *Upper) (n int, sn uint32, err error)
	// ParseTail reads the profile fields at the end of a UO header.
	ParseTail(data []byte, u *Upper) (int, error)

	// DecodeValues turns the profile bits of a UO packet into field values.
	DecodeValues(u *Upper, b *Bits, sn, refSN uint32) error
	// Build prepends the profile headers to buf.
	Build(buf gopacket.SerializeBuffer, u *Upper, sn uint32) error

	// CRCStatic and CRCDynamic fold the profile headers at the front of hdr
	// into a UO CRC.
	CRCStatic(k crc.Kind, v uint8, hdr []byte) uint8
	CRCDynamic(k crc.Kind, v uint8, hdr []byte) uint8

	// Commit updates the profile references once a packet is accepted.
	Commit(u *Upper)
}

// irObserver is implemented by profiles that learn from the size of IR
// packets.
type irObserver interface {
	observeIR(u *Upper, payloadLen int)
}

// NewProfile returns the implementation of id.
func NewProfile(id core.ProfileID) (Profile, error) {
	switch id {
	case core.ProfileIP:
		return ipProfile{}, nil
	case core.ProfileUDP:
		return udpProfile{}, nil
	case core.ProfileUDPLite:
		return udpLiteProfile{}, nil
	case core.ProfileRTP:
		return rtpProfile{}, nil
	default:
		return nil, fmt.Errorf("%w: 0x%04x", core.ErrUnsupportedProfile, uint16(id))
	}
}

// readSN reads the 16-bit SN closing a non-RTP dynamic chain.
func readSN(r *reader) (uint32, error) {
	sn, err := r.u16("SN")
	return uint32(sn), err
}

func crcRange(k crc.Kind, v uint8, hdr []byte, from, to int) uint8 {
	if len(hdr) < to {
		return v
	}
	return k.Update(v, hdr[from:to])
}

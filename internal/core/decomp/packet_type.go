package decomp

import (
	"fmt"

	"firestige.xyz/rohc/internal/core"
)

const (
	typeIR      = 0xFC // 1111110D
	typeIRMask  = 0xFE
	typeIRDyn   = 0xF8
	irDynamicOn = 0x01
)

// IsIR reports whether typ is the type octet of an IR packet, the only one
// that may open a context.
func IsIR(typ byte) bool { return typ&typeIRMask == typeIR }

// Classify finds the packet type from the type octet. body holds the octets
// following the type octet and any large CID; RTP UOR-2 packets keep their
// T bit in the first of them.
//
// rtp selects the RTP flavour of UO-1 and UOR-2. ipv4ID tells whether the
// context has a sequential IPv4 header, in which case RTP packets use the
// -ID/-TS variants.
func Classify(typ byte, body []byte, rtp, ipv4ID bool) (core.PacketKind, error) {
	switch {
	case IsIR(typ):
		return core.PacketIR, nil
	case typ == typeIRDyn:
		return core.PacketIRDyn, nil
	case typ&0x80 == 0:
		return core.PacketUO0, nil
	case typ&0xC0 == 0x80:
		if !rtp || !ipv4ID {
			return core.PacketUO1, nil
		}
		if typ&0x20 == 0 {
			return core.PacketUO1ID, nil
		}
		return core.PacketUO1TS, nil
	case typ&0xE0 == 0xC0:
		if !rtp || !ipv4ID {
			return core.PacketUOR2, nil
		}
		if len(body) == 0 {
			return core.PacketUnknown, fmt.Errorf("%w: UOR-2 without second octet", core.ErrPacketTooShort)
		}
		if body[0]&0x80 == 0 {
			return core.PacketUOR2ID, nil
		}
		return core.PacketUOR2TS, nil
	}
	// feedback, segments and reserved types
	return core.PacketUnknown, fmt.Errorf("%w: type octet 0x%02x", core.ErrUnknownPacketType, typ)
}

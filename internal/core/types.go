// Package core defines core types with zero external dependencies.
package core

import "fmt"

// PacketKind classifies one ROHC packet after CID stripping.
type PacketKind uint8

const (
	PacketUnknown PacketKind = iota
	PacketIR
	PacketIRDyn
	PacketUO0
	PacketUO1    // UO-1 (non-RTP profiles and RTP without non-random IPv4)
	PacketUO1ID  // RTP UO-1-ID
	PacketUO1TS  // RTP UO-1-TS
	PacketUOR2   // UOR-2 (non-RTP profiles and RTP without non-random IPv4)
	PacketUOR2ID // RTP UOR-2-ID
	PacketUOR2TS // RTP UOR-2-TS
)

var packetKindNames = map[PacketKind]string{
	PacketUnknown: "unknown",
	PacketIR:      "IR",
	PacketIRDyn:   "IR-DYN",
	PacketUO0:     "UO-0",
	PacketUO1:     "UO-1",
	PacketUO1ID:   "UO-1-ID",
	PacketUO1TS:   "UO-1-TS",
	PacketUOR2:    "UOR-2",
	PacketUOR2ID:  "UOR-2-ID",
	PacketUOR2TS:  "UOR-2-TS",
}

func (k PacketKind) String() string {
	if name, ok := packetKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("PacketKind(%d)", uint8(k))
}

// IsUO reports whether k is one of the UO-0/UO-1/UOR-2 families.
func (k PacketKind) IsUO() bool {
	return k >= PacketUO0 && k <= PacketUOR2TS
}

// IsUOR2 reports whether k carries a 7-bit CRC.
func (k PacketKind) IsUOR2() bool {
	return k == PacketUOR2 || k == PacketUOR2ID || k == PacketUOR2TS
}

// ProfileID identifies a ROHC profile (RFC 3095 §8, RFC 4019).
type ProfileID uint16

const (
	ProfileRTP     ProfileID = 0x0001
	ProfileUDP     ProfileID = 0x0002
	ProfileIP      ProfileID = 0x0004
	ProfileUDPLite ProfileID = 0x0008
)

func (p ProfileID) String() string {
	switch p {
	case ProfileRTP:
		return "rtp"
	case ProfileUDP:
		return "udp"
	case ProfileIP:
		return "ip"
	case ProfileUDPLite:
		return "udplite"
	default:
		return fmt.Sprintf("profile-0x%04x", uint16(p))
	}
}

// ParseProfileID maps a configuration name to a profile.
func ParseProfileID(name string) (ProfileID, error) {
	switch name {
	case "rtp":
		return ProfileRTP, nil
	case "udp":
		return ProfileUDP, nil
	case "ip":
		return ProfileIP, nil
	case "udplite":
		return ProfileUDPLite, nil
	default:
		return 0, fmt.Errorf("%w: profile %q", ErrUnsupportedProfile, name)
	}
}

// CIDType is the CID space negotiated for the channel.
type CIDType uint8

const (
	SmallCID CIDType = iota // CIDs 0..15, add-CID octet
	LargeCID                // CIDs 0..16383, SDVL after the first octet
)

func (t CIDType) String() string {
	if t == LargeCID {
		return "large"
	}
	return "small"
}

// ContextState is the decompressor state of one context (RFC 3095 §5.3.2).
type ContextState uint8

const (
	NoContext ContextState = iota
	StaticContext
	FullContext
)

func (s ContextState) String() string {
	switch s {
	case StaticContext:
		return "static-context"
	case FullContext:
		return "full-context"
	default:
		return "no-context"
	}
}

// IPIDBehavior tracks the RND flag of an IPv4 header.
type IPIDBehavior uint8

const (
	IPIDUnknown IPIDBehavior = iota
	IPIDSequential
	IPIDRandom
)

// IPIDOrder tracks the NBO flag of an IPv4 header.
type IPIDOrder uint8

const (
	IPIDOrderUnknown IPIDOrder = iota
	IPIDNetworkOrder
	IPIDSwapped
)

// ExtHeaderKind is the type of an IPv6 extension header list item.
type ExtHeaderKind uint8

const (
	ExtHopByHop    ExtHeaderKind = 0
	ExtRouting     ExtHeaderKind = 43
	ExtAuth        ExtHeaderKind = 51
	ExtDestination ExtHeaderKind = 60
)

// Valid reports whether k is a supported list item type.
func (k ExtHeaderKind) Valid() bool {
	switch k {
	case ExtHopByHop, ExtRouting, ExtAuth, ExtDestination:
		return true
	}
	return false
}

func (k ExtHeaderKind) String() string {
	switch k {
	case ExtHopByHop:
		return "hop-by-hop"
	case ExtRouting:
		return "routing"
	case ExtAuth:
		return "ah"
	case ExtDestination:
		return "destination"
	default:
		return fmt.Sprintf("ext-%d", uint8(k))
	}
}

package decomp

import (
	"net/netip"

	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/core/complist"
	"firestige.xyz/rohc/internal/core/lsb"
)

// MaxIPHeaders is the deepest IP-in-IP nesting a context follows.
const MaxIPHeaders = 2

// HeaderChange is what the context knows about one IP header.
type HeaderChange struct {
	Version  uint8
	TOS      uint8 // IPv4 TOS or IPv6 traffic class
	TTL      uint8 // IPv4 TTL or IPv6 hop limit
	Protocol uint8 // IPv4 protocol or IPv6 next header after the extension chain
	Src      netip.Addr
	Dst      netip.Addr

	FlowLabel uint32

	// ID is the IPv4 identification. Sequential IDs are kept in network
	// order space, random ones as found in the header.
	ID       uint16
	DF       bool
	Behavior core.IPIDBehavior
	Order    core.IPIDOrder

	// UsesList is set once an extension header list was received.
	UsesList bool
}

// IsIPv4 reports whether h describes an IPv4 header.
func (h *HeaderChange) IsIPv4() bool { return h.Version == 4 }

// SequentialID reports whether the IP-ID of h is LSB-encoded against the SN.
func (h *HeaderChange) SequentialID() bool {
	return h.IsIPv4() && h.Behavior != core.IPIDRandom
}

// RandomID reports whether the IP-ID of h travels in full in every packet.
func (h *HeaderChange) RandomID() bool {
	return h.IsIPv4() && h.Behavior == core.IPIDRandom
}

// NBO reports whether the IP-ID is sent in network byte order.
func (h *HeaderChange) NBO() bool { return h.Order != core.IPIDSwapped }

// RawID returns the identification as written in the header.
func (h *HeaderChange) RawID() uint16 {
	if h.RandomID() {
		return h.ID
	}
	return lsb.Normalize(h.ID, h.NBO())
}

// SetRawID stores an identification read from a header.
func (h *HeaderChange) SetRawID(raw uint16) {
	if h.RandomID() {
		h.ID = raw
		return
	}
	h.ID = lsb.Normalize(raw, h.NBO())
}

func (h *HeaderChange) setFlags(df, rnd, nbo bool) {
	h.DF = df
	if rnd {
		h.Behavior = core.IPIDRandom
	} else {
		h.Behavior = core.IPIDSequential
	}
	if nbo {
		h.Order = core.IPIDNetworkOrder
	} else {
		h.Order = core.IPIDSwapped
	}
}

// Upper holds the transport and RTP fields of a context. Profiles only use
// the fields they carry.
type Upper struct {
	SrcPort uint16
	DstPort uint16

	Checksum         uint16
	Coverage         uint16
	CoverageInferred bool

	SSRC        uint32
	Padding     bool
	Extension   bool
	Marker      bool
	PayloadType uint8
	TS          uint32
	TSStride    uint32
	TimeStride  uint32
	Mode        uint8
	TIS         bool
	TSS         bool

	// ts holds the TS of the last accepted packet.
	ts lsb.Decoder
}

// state is the part of a context rebuilt by every packet. A copy is made for
// each decode attempt and written back only on success.
type state struct {
	ip      [MaxIPHeaders]HeaderChange
	ipCount int
	upper   Upper

	// lists holds the extension list to rebuild for each IPv6 header and
	// updates the decoded list changes to commit.
	lists   [MaxIPHeaders]*complist.List
	updates [MaxIPHeaders]*complist.Update
}

func (s *state) innermost() int { return s.ipCount - 1 }

// outer returns the index of the outer header, or -1 with a single header.
func (s *state) outer() int {
	if s.ipCount == MaxIPHeaders {
		return 0
	}
	return -1
}

// ipidTarget picks the header the base header IP-ID bits apply to: the
// innermost sequential IPv4 header, else the outer one.
func (s *state) ipidTarget() int {
	for i := s.ipCount - 1; i >= 0; i-- {
		if s.ip[i].SequentialID() {
			return i
		}
	}
	return -1
}

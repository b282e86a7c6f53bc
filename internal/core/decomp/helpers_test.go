package decomp

import (
	"net/netip"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"

	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/core/cid"
	"firestige.xyz/rohc/internal/core/crc"
	"firestige.xyz/rohc/internal/core/lsb"
)

// flow plays the compressor for an IPv4 header followed by UDP, UDP-Lite
// or UDP/RTP.
type flow struct {
	profile core.ProfileID
	src     netip.Addr
	dst     netip.Addr
	tos     uint8
	ttl     uint8
	df      bool

	idOffset uint16 // sequential IP-ID = idOffset + SN
	swapped  bool   // NBO = 0
	random   bool
	randomID uint16

	sport    uint16
	dport    uint16
	checksum uint16
	coverage uint16 // UDP-Lite, 0 to cover the whole datagram

	ssrc     uint32
	pt       uint8
	marker   bool
	tsBase   uint32 // RTP TS at SN 100
	tsStride uint32
}

func newFlow(profile core.ProfileID) *flow {
	return &flow{
		profile:  profile,
		src:      netip.MustParseAddr("10.0.0.1"),
		dst:      netip.MustParseAddr("10.0.0.2"),
		ttl:      64,
		df:       true,
		idOffset: 0x1000,
		sport:    5000,
		dport:    6000,
		ssrc:     0x11223344,
		pt:       96,
		tsBase:   1000,
		tsStride: 160,
	}
}

func (f *flow) ts(sn uint16) uint32 {
	return f.tsBase + uint32(sn-100)*f.tsStride
}

func (f *flow) proto() uint8 {
	if f.profile == core.ProfileUDPLite {
		return uint8(layers.IPProtocolUDPLite)
	}
	return protoUDP
}

// headerID returns the identification field as written in the header.
func (f *flow) headerID(sn uint16) uint16 {
	if f.random {
		return f.randomID
	}
	return lsb.Normalize(f.idOffset+sn, !f.swapped)
}

// packet builds the uncompressed packet the decompressor must produce.
func (f *flow) packet(t *testing.T, sn uint16, payload []byte) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.Payload(payload).SerializeTo(buf, fixLengths))

	if f.profile == core.ProfileRTP {
		h := rtp.Header{
			Version:        2,
			Marker:         f.marker,
			PayloadType:    f.pt,
			SequenceNumber: sn,
			Timestamp:      f.ts(sn),
			SSRC:           f.ssrc,
		}
		b, err := buf.PrependBytes(h.MarshalSize())
		require.NoError(t, err)
		_, err = h.MarshalTo(b)
		require.NoError(t, err)
	}

	if f.profile == core.ProfileUDPLite {
		length := len(buf.Bytes()) + 8
		coverage := f.coverage
		if coverage == 0 {
			coverage = uint16(length)
		}
		b, err := buf.PrependBytes(8)
		require.NoError(t, err)
		copy(b, []byte{
			byte(f.sport >> 8), byte(f.sport), byte(f.dport >> 8), byte(f.dport),
			byte(coverage >> 8), byte(coverage), byte(f.checksum >> 8), byte(f.checksum),
		})
	} else if f.profile != core.ProfileIP {
		udp := &layers.UDP{SrcPort: layers.UDPPort(f.sport), DstPort: layers.UDPPort(f.dport), Checksum: f.checksum}
		require.NoError(t, udp.SerializeTo(buf, fixLengths))
	}

	ip := &layers.IPv4{
		Version:  4,
		TOS:      f.tos,
		TTL:      f.ttl,
		Id:       f.headerID(sn),
		Protocol: layers.IPProtocol(f.proto()),
		SrcIP:    f.src.AsSlice(),
		DstIP:    f.dst.AsSlice(),
	}
	if f.df {
		ip.Flags = layers.IPv4DontFragment
	}
	require.NoError(t, ip.SerializeTo(buf, fixAndVerify))
	return buf.Bytes()
}

func (f *flow) static() []byte {
	b := []byte{0x40, f.proto()}
	b = append(b, f.src.AsSlice()...)
	b = append(b, f.dst.AsSlice()...)
	if f.profile != core.ProfileIP {
		b = append(b, byte(f.sport>>8), byte(f.sport), byte(f.dport>>8), byte(f.dport))
	}
	if f.profile == core.ProfileRTP {
		b = append(b, byte(f.ssrc>>24), byte(f.ssrc>>16), byte(f.ssrc>>8), byte(f.ssrc))
	}
	return b
}

func (f *flow) dynamic(payloadLen int, sn uint16) []byte {
	var flags byte
	if f.df {
		flags |= dynDF
	}
	if f.random {
		flags |= dynRND
	}
	if !f.swapped {
		flags |= dynNBO
	}
	id := f.headerID(sn)
	b := []byte{f.tos, f.ttl, byte(id >> 8), byte(id), flags}

	switch f.profile {
	case core.ProfileUDPLite:
		coverage := f.coverage
		if coverage == 0 {
			coverage = uint16(8 + payloadLen)
		}
		b = append(b, byte(coverage>>8), byte(coverage))
		b = append(b, byte(f.checksum>>8), byte(f.checksum))
	case core.ProfileUDP, core.ProfileRTP:
		b = append(b, byte(f.checksum>>8), byte(f.checksum))
	}

	if f.profile != core.ProfileRTP {
		return append(b, byte(sn>>8), byte(sn))
	}

	// V=2 RX=1 | M PT | SN | TS | empty CSRC list | TSS | TS_STRIDE
	mpt := f.pt
	if f.marker {
		mpt |= 0x80
	}
	ts := f.ts(sn)
	b = append(b, 0x90, mpt, byte(sn>>8), byte(sn))
	b = append(b, byte(ts>>24), byte(ts>>16), byte(ts>>8), byte(ts))
	b = append(b, 0x00, rxTSS)
	return append(b, sdvlBytes(f.tsStride)...)
}

func sdvlBytes(v uint32) []byte {
	switch {
	case v < 1<<7:
		return []byte{byte(v)}
	case v < 1<<14:
		return []byte{0x80 | byte(v>>8), byte(v)}
	default:
		return []byte{0xC0 | byte(v>>16), byte(v >> 8), byte(v)}
	}
}

// ir builds an IR packet for CID 0, with or without dynamic chain.
func (f *flow) ir(sn uint16, payload []byte, dynamic bool) []byte {
	b := []byte{typeIR, byte(f.profile), 0}
	b = append(b, f.static()...)
	if dynamic {
		b[0] |= irDynamicOn
		b = append(b, f.dynamic(len(payload), sn)...)
	}
	b[2] = irCRC(b, 0, 2, len(b))
	return append(b, payload...)
}

func (f *flow) irDyn(sn uint16, payload []byte) []byte {
	b := []byte{typeIRDyn, byte(f.profile), 0}
	b = append(b, f.dynamic(len(payload), sn)...)
	b[2] = irCRC(b, 0, 2, len(b))
	return append(b, payload...)
}

func (f *flow) crc(t *testing.T, k crc.Kind, sn uint16, payload []byte) uint8 {
	t.Helper()
	p, err := NewProfile(f.profile)
	require.NoError(t, err)
	v, err := headerCRC(k, f.packet(t, sn, payload), 1, p)
	require.NoError(t, err)
	return v
}

// tail returns the fields following every UO base header of the flow.
func (f *flow) tail() []byte {
	var b []byte
	if f.random {
		b = append(b, byte(f.randomID>>8), byte(f.randomID))
	}
	switch f.profile {
	case core.ProfileUDPLite:
		if f.coverage != 0 {
			b = append(b, byte(f.coverage>>8), byte(f.coverage))
		}
		b = append(b, byte(f.checksum>>8), byte(f.checksum))
	case core.ProfileUDP, core.ProfileRTP:
		if f.checksum != 0 {
			b = append(b, byte(f.checksum>>8), byte(f.checksum))
		}
	}
	return b
}

func (f *flow) uo0(t *testing.T, sn uint16, payload []byte) []byte {
	c := f.crc(t, crc.CRC3, sn, payload)
	b := []byte{byte(sn&0x0F)<<3 | c}
	b = append(b, f.tail()...)
	return append(b, payload...)
}

// uor2 builds a non-RTP UOR-2 packet, optionally followed by ext.
func (f *flow) uor2(t *testing.T, sn uint16, ext []byte, payload []byte) []byte {
	c := f.crc(t, crc.CRC7, sn, payload)
	b := []byte{0xC0 | byte(sn&0x1F), c}
	if ext != nil {
		b[1] |= 0x80
		b = append(b, ext...)
	}
	b = append(b, f.tail()...)
	return append(b, payload...)
}

func decode(t *testing.T, c *Context, raw []byte, arrival uint32) (*Result, error) {
	t.Helper()
	h, err := cid.Decode(raw, core.SmallCID)
	require.NoError(t, err)
	return c.Decode(raw, h, arrival)
}

func newContext(t *testing.T, id core.ProfileID) *Context {
	t.Helper()
	c, err := New(0, id, DefaultConfig())
	require.NoError(t, err)
	return c
}

// establish sends an IR for SN 100 and checks it is accepted.
func establish(t *testing.T, c *Context, f *flow) {
	t.Helper()
	payload := []byte("first")
	res, err := decode(t, c, f.ir(100, payload, true), 0)
	require.NoError(t, err)
	require.Equal(t, f.packet(t, 100, payload), res.Data)
}

// pickTOS changes the TOS until the CRCs of the packets for SN a and b
// differ, so that a wrong SN guess is always caught. The TOS shares its
// checksum word with the version octet and moves the carries that the
// differing IP-ID bytes run into.
func pickTOS(t *testing.T, f *flow, k crc.Kind, a, b uint16, payload []byte) {
	t.Helper()
	for tos := 0; tos < 256; tos++ {
		f.tos = uint8(tos)
		if f.crc(t, k, a, payload) != f.crc(t, k, b, payload) {
			return
		}
	}
	t.Fatal("no TOS separates the CRCs")
}

package decomp

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/core/cid"
	"firestige.xyz/rohc/internal/core/complist"
	"firestige.xyz/rohc/internal/core/crc"
)

func TestNewContext(t *testing.T) {
	c, err := New(3, core.ProfileUDP, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, uint16(3), c.CID())
	assert.Equal(t, core.ProfileUDP, c.Profile())
	assert.Equal(t, core.NoContext, c.State())
	_, ok := c.SN()
	assert.False(t, ok)

	_, err = New(0, 0x0003, DefaultConfig())
	assert.True(t, errors.Is(err, core.ErrUnsupportedProfile))

	cfg := DefaultConfig()
	cfg.List.TableSize = 4
	_, err = New(0, core.ProfileUDP, cfg)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestIRThenUO0(t *testing.T) {
	f := newFlow(core.ProfileUDP)
	c := newContext(t, core.ProfileUDP)

	res, err := decode(t, c, f.ir(100, []byte("hello"), true), 0)
	require.NoError(t, err)
	assert.Equal(t, core.PacketIR, res.Kind)
	assert.Equal(t, uint32(100), res.SN)
	assert.Equal(t, f.packet(t, 100, []byte("hello")), res.Data)
	assert.Equal(t, core.FullContext, c.State())

	res, err = decode(t, c, f.uo0(t, 101, []byte("world")), 1)
	require.NoError(t, err)
	assert.Equal(t, core.PacketUO0, res.Kind)
	assert.Equal(t, uint32(101), res.SN)
	assert.Equal(t, RepairNone, res.Repair)
	require.Equal(t, f.packet(t, 101, []byte("world")), res.Data)

	pkt := gopacket.NewPacket(res.Data, layers.LayerTypeIPv4, gopacket.Default)
	ip := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	assert.Equal(t, uint16(0x1000+101), ip.Id)
	assert.Equal(t, uint8(64), ip.TTL)
	assert.Equal(t, layers.IPv4DontFragment, ip.Flags)
	udp := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
	assert.Equal(t, layers.UDPPort(5000), udp.SrcPort)
	assert.Equal(t, layers.UDPPort(6000), udp.DstPort)
	assert.Equal(t, []byte("world"), udp.Payload)

	sn, ok := c.SN()
	assert.True(t, ok)
	assert.Equal(t, uint32(101), sn)
	assert.Equal(t, uint32(1), c.InterArrival())
}

func TestIRWithoutDynamicChain(t *testing.T) {
	f := newFlow(core.ProfileUDP)
	c := newContext(t, core.ProfileUDP)

	res, err := decode(t, c, f.ir(100, nil, false), 0)
	require.NoError(t, err)
	assert.Nil(t, res.Data)
	assert.Equal(t, core.StaticContext, c.State())
	require.Len(t, c.Headers(), 1)
	assert.Equal(t, f.src, c.Headers()[0].Src)

	// UO-0 needs the dynamic part
	_, err = decode(t, c, f.uo0(t, 101, nil), 1)
	assert.True(t, errors.Is(err, core.ErrContextDamaged))

	res, err = decode(t, c, f.irDyn(101, []byte("dyn")), 2)
	require.NoError(t, err)
	assert.Equal(t, core.PacketIRDyn, res.Kind)
	assert.Equal(t, f.packet(t, 101, []byte("dyn")), res.Data)
	assert.Equal(t, core.FullContext, c.State())
}

func TestPacketsWithoutContext(t *testing.T) {
	f := newFlow(core.ProfileUDP)
	c := newContext(t, core.ProfileUDP)

	_, err := decode(t, c, f.irDyn(100, nil), 0)
	assert.True(t, errors.Is(err, core.ErrNoContext))

	_, err = decode(t, c, f.uo0(t, 100, nil), 0)
	assert.True(t, errors.Is(err, core.ErrNoContext))
	assert.Equal(t, core.NoContext, c.State())
}

func TestIRErrors(t *testing.T) {
	f := newFlow(core.ProfileUDP)
	c := newContext(t, core.ProfileUDP)

	raw := f.ir(100, nil, true)
	raw[2] ^= 0xFF
	_, err := decode(t, c, raw, 0)
	assert.True(t, errors.Is(err, core.ErrCRCMismatch))
	assert.Equal(t, core.NoContext, c.State())

	other := newFlow(core.ProfileRTP)
	_, err = decode(t, c, other.ir(100, nil, true), 0)
	assert.True(t, errors.Is(err, core.ErrProfileMismatch))

	// static chain cut inside the addresses
	raw = f.ir(100, nil, true)[:8]
	_, err = decode(t, c, raw, 0)
	assert.True(t, errors.Is(err, core.ErrPacketTooShort))
}

func TestUnknownPacketTypeKeepsContext(t *testing.T) {
	f := newFlow(core.ProfileUDP)
	c := newContext(t, core.ProfileUDP)
	establish(t, c, f)

	_, err := decode(t, c, []byte{0xF0, 0x00}, 1)
	assert.True(t, errors.Is(err, core.ErrUnknownPacketType))
	assert.Equal(t, core.FullContext, c.State())

	_, err = decode(t, c, f.uo0(t, 101, nil), 2)
	assert.NoError(t, err)
}

func TestUO1IPIDJump(t *testing.T) {
	f := newFlow(core.ProfileUDP)
	c := newContext(t, core.ProfileUDP)
	establish(t, c, f)

	f.idOffset += 5
	crc3 := f.crc(t, crc.CRC3, 101, []byte("p"))
	// 10 IP-ID offset(6) | SN(5) CRC(3)
	raw := []byte{0x80 | byte(f.idOffset)&0x3F, byte(101&0x1F)<<3 | crc3, 'p'}
	res, err := decode(t, c, raw, 1)
	require.NoError(t, err)
	assert.Equal(t, core.PacketUO1, res.Kind)
	assert.Equal(t, f.packet(t, 101, []byte("p")), res.Data)

	// the new offset is the reference for the next packets
	res, err = decode(t, c, f.uo0(t, 102, nil), 2)
	require.NoError(t, err)
	assert.Equal(t, f.packet(t, 102, nil), res.Data)
}

func TestUOR2Extension3(t *testing.T) {
	f := newFlow(core.ProfileUDP)
	c := newContext(t, core.ProfileUDP)
	establish(t, c, f)

	f.ttl, f.tos = 32, 0x10
	// 11 S=0 Mode=0 I=0 ip=1 ip2=0 | TOS TTL DF NBO | TOS | TTL
	ext := []byte{0xC2, flagTOS | flagTTL | flagDF | flagNBO, 0x10, 32}
	res, err := decode(t, c, f.uor2(t, 101, ext, []byte("ext3")), 1)
	require.NoError(t, err)
	assert.Equal(t, core.PacketUOR2, res.Kind)
	assert.Equal(t, f.packet(t, 101, []byte("ext3")), res.Data)
	assert.Equal(t, uint8(32), c.Headers()[0].TTL)

	res, err = decode(t, c, f.uo0(t, 102, nil), 2)
	require.NoError(t, err)
	assert.Equal(t, f.packet(t, 102, nil), res.Data)
}

func TestUOR2Extension0(t *testing.T) {
	f := newFlow(core.ProfileUDP)
	c := newContext(t, core.ProfileUDP)
	establish(t, c, f)

	// SN 300 needs 8 bits: 5 in the base header, 3 in the extension
	f.idOffset += 2
	sn := uint16(300)
	crc7 := f.crc(t, crc.CRC7, sn, nil)
	raw := []byte{
		0xC0 | byte(sn>>3)&0x1F, 0x80 | crc7,
		// 00 SN(3) IP-ID offset(3)
		byte(sn&0x07)<<3 | byte(f.idOffset)&0x07,
	}
	res, err := decode(t, c, raw, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(300), res.SN)
	assert.Equal(t, f.packet(t, sn, nil), res.Data)
}

func TestRandomIPID(t *testing.T) {
	f := newFlow(core.ProfileUDP)
	f.random, f.randomID = true, 0xBEEF
	c := newContext(t, core.ProfileUDP)
	establish(t, c, f)
	assert.Equal(t, core.IPIDRandom, c.Headers()[0].Behavior)

	f.randomID = 0x1234
	res, err := decode(t, c, f.uo0(t, 101, []byte("r")), 1)
	require.NoError(t, err)
	assert.Equal(t, f.packet(t, 101, []byte("r")), res.Data)

	// no sequential IPv4 header to send IP-ID bits for
	_, err = decode(t, c, []byte{0x81, 0x00, 0x12, 0x34}, 2)
	assert.True(t, errors.Is(err, core.ErrMalformedPacket))
}

func TestSwappedIPID(t *testing.T) {
	f := newFlow(core.ProfileUDP)
	f.swapped = true
	c := newContext(t, core.ProfileUDP)
	establish(t, c, f)
	assert.Equal(t, core.IPIDSwapped, c.Headers()[0].Order)

	res, err := decode(t, c, f.uo0(t, 101, nil), 1)
	require.NoError(t, err)
	assert.Equal(t, f.packet(t, 101, nil), res.Data)
}

func TestUDPChecksumTail(t *testing.T) {
	f := newFlow(core.ProfileUDP)
	f.checksum = 0xABCD
	c := newContext(t, core.ProfileUDP)
	establish(t, c, f)

	f.checksum = 0x5555
	res, err := decode(t, c, f.uo0(t, 101, []byte("sum")), 1)
	require.NoError(t, err)
	assert.Equal(t, f.packet(t, 101, []byte("sum")), res.Data)
	assert.Equal(t, uint16(0x5555), c.Upper().Checksum)
}

func TestIPOnlyProfile(t *testing.T) {
	f := newFlow(core.ProfileIP)
	c := newContext(t, core.ProfileIP)
	establish(t, c, f)

	res, err := decode(t, c, f.uo0(t, 101, []byte("raw ip payload")), 1)
	require.NoError(t, err)
	assert.Equal(t, f.packet(t, 101, []byte("raw ip payload")), res.Data)
}

func TestUDPLiteCoverage(t *testing.T) {
	t.Run("Inferred", func(t *testing.T) {
		f := newFlow(core.ProfileUDPLite)
		f.checksum = 0x0102
		c := newContext(t, core.ProfileUDPLite)
		establish(t, c, f)
		assert.True(t, c.Upper().CoverageInferred)

		res, err := decode(t, c, f.uo0(t, 101, []byte("longer payload")), 1)
		require.NoError(t, err)
		assert.Equal(t, f.packet(t, 101, []byte("longer payload")), res.Data)
	})

	t.Run("Explicit", func(t *testing.T) {
		f := newFlow(core.ProfileUDPLite)
		f.coverage = 8
		c := newContext(t, core.ProfileUDPLite)
		establish(t, c, f)
		assert.False(t, c.Upper().CoverageInferred)

		res, err := decode(t, c, f.uo0(t, 101, []byte("partial")), 1)
		require.NoError(t, err)
		assert.Equal(t, f.packet(t, 101, []byte("partial")), res.Data)
		assert.Equal(t, uint16(8), c.Upper().Coverage)
	})
}

func TestRTPTimestampFromSN(t *testing.T) {
	f := newFlow(core.ProfileRTP)
	c := newContext(t, core.ProfileRTP)
	establish(t, c, f)
	assert.Equal(t, uint32(160), c.Upper().TSStride)

	res, err := decode(t, c, f.uo0(t, 101, []byte("voice")), 1)
	require.NoError(t, err)
	require.Equal(t, f.packet(t, 101, []byte("voice")), res.Data)

	pkt := gopacket.NewPacket(res.Data, layers.LayerTypeIPv4, gopacket.Default)
	udp := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
	var p rtp.Packet
	require.NoError(t, p.Unmarshal(udp.Payload))
	assert.Equal(t, uint16(101), p.SequenceNumber)
	assert.Equal(t, uint32(1160), p.Timestamp)
	assert.Equal(t, uint32(0x11223344), p.SSRC)
	assert.Equal(t, uint8(96), p.PayloadType)
	assert.Equal(t, []byte("voice"), p.Payload)
}

func TestRTPUOR2TS(t *testing.T) {
	f := newFlow(core.ProfileRTP)
	c := newContext(t, core.ProfileRTP)
	establish(t, c, f)

	_, err := decode(t, c, f.uo0(t, 101, nil), 1)
	require.NoError(t, err)

	// four packets lost, talkspurt starts with the marker
	sn := uint16(105)
	f.marker = true
	scaled := f.ts(sn) / f.tsStride
	crc7 := f.crc(t, crc.CRC7, sn, []byte("m"))
	raw := []byte{
		0xC0 | byte(scaled)&0x1F,    // 110 TS(5)
		0x80 | 0x40 | byte(sn)&0x3F, // T=1 M SN(6)
		crc7,                        // X=0 CRC(7)
		'm',
	}
	res, err := decode(t, c, raw, 5)
	require.NoError(t, err)
	assert.Equal(t, core.PacketUOR2TS, res.Kind)
	assert.Equal(t, f.packet(t, sn, []byte("m")), res.Data)
	assert.True(t, c.Upper().Marker)

	// marker is per packet
	f.marker = false
	res, err = decode(t, c, f.uo0(t, 106, nil), 6)
	require.NoError(t, err)
	assert.Equal(t, f.packet(t, 106, nil), res.Data)
}

func netipPair(a, b string) [2]netip.Addr {
	return [2]netip.Addr{netip.MustParseAddr(a), netip.MustParseAddr(b)}
}

func TestIPv4InIPv4(t *testing.T) {
	c := newContext(t, core.ProfileUDP)
	outer := netipPair("192.168.0.1", "192.168.0.2")
	f := newFlow(core.ProfileUDP)

	build := func(sn uint16) []byte {
		inner := f.packet(t, sn, []byte("tun"))
		buf := gopacket.NewSerializeBuffer()
		require.NoError(t, gopacket.Payload(inner).SerializeTo(buf, fixLengths))
		ip := &layers.IPv4{
			Version: 4, TTL: 255, Id: 0x2000 + sn, Protocol: layers.IPProtocolIPv4,
			SrcIP: outer[0].AsSlice(), DstIP: outer[1].AsSlice(),
		}
		require.NoError(t, ip.SerializeTo(buf, fixAndVerify))
		return buf.Bytes()
	}

	// outer static, inner static, UDP static
	static := []byte{0x40, protoIPIP}
	static = append(static, outer[0].AsSlice()...)
	static = append(static, outer[1].AsSlice()...)
	static = append(static, f.static()...)
	// outer dynamic: TOS TTL ID flags, then inner and UDP dynamic
	id := uint16(0x2000 + 100)
	dynamic := []byte{0, 255, byte(id >> 8), byte(id), dynNBO}
	dynamic = append(dynamic, f.dynamic(3, 100)...)

	raw := []byte{typeIR | irDynamicOn, byte(core.ProfileUDP), 0}
	raw = append(raw, static...)
	raw = append(raw, dynamic...)
	raw[2] = irCRC(raw, 0, 2, len(raw))
	raw = append(raw, "tun"...)

	res, err := decode(t, c, raw, 0)
	require.NoError(t, err)
	require.Equal(t, build(100), res.Data)
	require.Len(t, c.Headers(), 2)

	p, _ := NewProfile(core.ProfileUDP)
	crc3, err := headerCRC(crc.CRC3, build(101), 2, p)
	require.NoError(t, err)
	res, err = decode(t, c, []byte{byte(101&0x0F)<<3 | crc3, 't', 'u', 'n'}, 1)
	require.NoError(t, err)
	assert.Equal(t, build(101), res.Data)
}

func TestIPv6ExtensionList(t *testing.T) {
	c := newContext(t, core.ProfileUDP)
	addrs := netipPair("2001:db8::1", "2001:db8::2")
	hbh := []byte{0x00, 0x00, 0x01, 0x04, 0x00, 0x00, 0x00, 0x00}

	build := func(sn uint16, payload []byte) []byte {
		buf := gopacket.NewSerializeBuffer()
		require.NoError(t, gopacket.Payload(payload).SerializeTo(buf, fixLengths))
		udp := &layers.UDP{SrcPort: 7000, DstPort: 7001}
		require.NoError(t, udp.SerializeTo(buf, fixLengths))
		ext, err := buf.PrependBytes(len(hbh))
		require.NoError(t, err)
		copy(ext, hbh)
		ext[0] = protoUDP
		ip := &layers.IPv6{
			Version: 6, FlowLabel: 0x12345, NextHeader: layers.IPProtocolIPv6HopByHop, HopLimit: 40,
			SrcIP: addrs[0].AsSlice(), DstIP: addrs[1].AsSlice(),
		}
		require.NoError(t, ip.SerializeTo(buf, fixLengths))
		return buf.Bytes()
	}

	// version + flow label | next header | addresses | UDP ports
	raw := []byte{typeIR | irDynamicOn, byte(core.ProfileUDP), 0, 0x61, 0x23, 0x45, protoUDP}
	raw = append(raw, addrs[0].AsSlice()...)
	raw = append(raw, addrs[1].AsSlice()...)
	raw = append(raw, 0x1B, 0x58, 0x1B, 0x59)
	// TC | hop limit | generic list: 1 item inline at index 0 | UDP checksum | SN
	raw = append(raw, 0x00, 40, 0x01, 0x80)
	raw = append(raw, hbh...)
	raw = append(raw, 0x00, 0x00, 0x00, 100)
	raw[2] = irCRC(raw, 0, 2, len(raw))
	raw = append(raw, "v6"...)

	res, err := decode(t, c, raw, 0)
	require.NoError(t, err)
	require.Equal(t, build(100, []byte("v6")), res.Data)
	assert.Equal(t, []complist.Encoding{complist.EncodingGeneric}, res.Lists)
	assert.True(t, c.Headers()[0].UsesList)
	assert.Equal(t, 1, c.List(0).Current().Len())

	p, _ := NewProfile(core.ProfileUDP)
	crc3, err := headerCRC(crc.CRC3, build(101, nil), 1, p)
	require.NoError(t, err)
	res, err = decode(t, c, []byte{byte(101&0x0F)<<3 | crc3}, 1)
	require.NoError(t, err)
	assert.Equal(t, build(101, nil), res.Data)
	assert.Empty(t, res.Lists)
}

func TestDestroy(t *testing.T) {
	f := newFlow(core.ProfileUDP)
	c := newContext(t, core.ProfileUDP)
	establish(t, c, f)

	c.Destroy()
	assert.Equal(t, core.NoContext, c.State())
	assert.Empty(t, c.Headers())
	_, ok := c.SN()
	assert.False(t, ok)
}

func TestPacketProfile(t *testing.T) {
	f := newFlow(core.ProfileRTP)
	h, err := cid.Decode(f.ir(100, nil, true), core.SmallCID)
	require.NoError(t, err)
	id, ok := PacketProfile(h)
	assert.True(t, ok)
	assert.Equal(t, core.ProfileRTP, id)

	h, err = cid.Decode([]byte{0x00}, core.SmallCID)
	require.NoError(t, err)
	_, ok = PacketProfile(h)
	assert.False(t, ok)
}

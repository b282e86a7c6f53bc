package decomp

import (
	"fmt"

	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/core/crc"
)

// Field is a run of LSBs received for one header field.
type Field struct {
	Value uint32
	Bits  int
}

// add appends n less significant bits, as extensions do.
func (f *Field) add(v uint32, n int) {
	if n <= 0 {
		return
	}
	if n >= 32 {
		f.Value, f.Bits = v, 32
		return
	}
	f.Value = f.Value<<n | v&(uint32(1)<<n-1)
	f.Bits += n
	if f.Bits > 32 {
		f.Bits = 32
	}
}

// set replaces the bits with a complete value.
func (f *Field) set(v uint32, n int) {
	f.Value, f.Bits = v, n
}

// Bits holds everything extracted from a UO packet before LSB decoding.
type Bits struct {
	Kind    core.PacketKind
	CRC     uint8
	CRCKind crc.Kind

	SN   Field
	IPID [MaxIPHeaders]Field
	TS   Field
	// TSUnscaled is set when the TS bits are not scaled by TS_STRIDE.
	TSUnscaled bool
	Marker     bool

	// Ext is the X bit of the base header, Extension the extension type.
	Ext       bool
	Extension int

	RandomID    [MaxIPHeaders]uint16
	HasRandomID [MaxIPHeaders]bool
}

// parseBase extracts the fields of a UO-0, UO-1 or UOR-2 base header. typ is
// the type octet, r is positioned on the octet after it (and after a large
// CID).
func parseBase(kind core.PacketKind, typ byte, r *reader, rtp bool) (*Bits, error) {
	b := &Bits{Kind: kind, Extension: -1}

	switch kind {
	case core.PacketUO0:
		// 0 SN(4) CRC(3)
		b.SN.add(uint32(typ>>3)&0x0F, 4)
		b.CRC, b.CRCKind = typ&0x07, crc.CRC3
		return b, nil

	case core.PacketUO1, core.PacketUO1ID, core.PacketUO1TS:
		o, err := r.u8(kind.String())
		if err != nil {
			return nil, err
		}
		b.CRC, b.CRCKind = o&0x07, crc.CRC3
		switch {
		case kind == core.PacketUO1 && !rtp:
			// 10 IP-ID(6) | SN(5) CRC(3)
			b.IPID[0].add(uint32(typ&0x3F), 6)
			b.SN.add(uint32(o>>3), 5)
		case kind == core.PacketUO1:
			// 10 TS(6) | M SN(4) CRC(3)
			b.TS.add(uint32(typ&0x3F), 6)
			b.Marker = o&0x80 != 0
			b.SN.add(uint32(o>>3)&0x0F, 4)
		case kind == core.PacketUO1ID:
			// 10 0 IP-ID(5) | X SN(4) CRC(3)
			b.IPID[0].add(uint32(typ&0x1F), 5)
			b.Ext = o&0x80 != 0
			b.SN.add(uint32(o>>3)&0x0F, 4)
		default:
			// 10 1 TS(5) | M SN(4) CRC(3)
			b.TS.add(uint32(typ&0x1F), 5)
			b.Marker = o&0x80 != 0
			b.SN.add(uint32(o>>3)&0x0F, 4)
		}
		return b, nil

	case core.PacketUOR2, core.PacketUOR2ID, core.PacketUOR2TS:
		b.CRCKind = crc.CRC7
		if kind == core.PacketUOR2 && !rtp {
			// 110 SN(5) | X CRC(7)
			o, err := r.u8(kind.String())
			if err != nil {
				return nil, err
			}
			b.SN.add(uint32(typ&0x1F), 5)
			b.Ext, b.CRC = o&0x80 != 0, o&0x7F
			return b, nil
		}

		o1, err := r.u8(kind.String())
		if err != nil {
			return nil, err
		}
		o2, err := r.u8(kind.String())
		if err != nil {
			return nil, err
		}
		switch kind {
		case core.PacketUOR2:
			// 110 TS(5) | TS(1) M SN(6) | X CRC(7)
			b.TS.add(uint32(typ&0x1F)<<1|uint32(o1>>7), 6)
		case core.PacketUOR2ID:
			// 110 IP-ID(5) | T=0 M SN(6) | X CRC(7)
			b.IPID[0].add(uint32(typ&0x1F), 5)
		default:
			// 110 TS(5) | T=1 M SN(6) | X CRC(7)
			b.TS.add(uint32(typ&0x1F), 5)
		}
		b.Marker = o1&0x40 != 0
		b.SN.add(uint32(o1&0x3F), 6)
		b.Ext, b.CRC = o2&0x80 != 0, o2&0x7F
		return b, nil
	}

	return nil, fmt.Errorf("%w: %s is not a UO packet", core.ErrUnknownPacketType, kind)
}

// routeIPID moves base header IP-ID bits, parsed into slot 0, to the header
// they belong to.
func (b *Bits) routeIPID(st *state) error {
	if b.IPID[0].Bits == 0 {
		return nil
	}
	t := st.ipidTarget()
	if t < 0 {
		return fmt.Errorf("%w: %s carries IP-ID bits without sequential IPv4 header", core.ErrMalformedPacket, b.Kind)
	}
	if t != 0 {
		b.IPID[t], b.IPID[0] = b.IPID[0], Field{}
	}
	return nil
}

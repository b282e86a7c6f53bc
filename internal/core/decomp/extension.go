package decomp

import (
	"fmt"

	"firestige.xyz/rohc/internal/core"
)

// Extension types, selected by the two first bits of the extension.
const (
	ext0 = iota
	ext1
	ext2
	ext3
)

// inner/outer IP header flags of extension 3
const (
	flagTOS = 0x80
	flagTTL = 0x40
	flagDF  = 0x20
	flagPR  = 0x10
	flagIPX = 0x08
	flagNBO = 0x04
	flagRND = 0x02
	flagLow = 0x01 // ip2 for inner RTP flags, I2 for outer flags
)

// tIsIPID tells whether +T (plus) or -T bits of extensions 0 to 2 carry
// IP-ID rather than TS bits.
func tIsIPID(kind core.PacketKind, rtp, plus bool) bool {
	if !rtp {
		return true
	}
	switch kind {
	case core.PacketUO1ID, core.PacketUOR2ID:
		return plus
	default:
		return !plus
	}
}

func (c *Context) addT(b *Bits, st *state, plus bool, v uint32, n int) error {
	if !tIsIPID(b.Kind, c.profile.RTP(), plus) {
		b.TS.add(v, n)
		return nil
	}
	t := st.ipidTarget()
	if t < 0 {
		return fmt.Errorf("%w: extension IP-ID bits without sequential IPv4 header", core.ErrMalformedPacket)
	}
	b.IPID[t].add(v, n)
	return nil
}

// parseExtension reads the extension following a base header with X set.
// Header field changes of extension 3 are applied to st.
func (c *Context) parseExtension(b *Bits, r *reader, st *state) error {
	e, err := r.u8("extension")
	if err != nil {
		return err
	}
	b.Extension = int(e >> 6)
	rtp := c.profile.RTP()

	switch b.Extension {
	case ext0:
		// 00 SN(3) +T(3)
		b.SN.add(uint32(e>>3)&0x07, 3)
		return c.addT(b, st, true, uint32(e&0x07), 3)

	case ext1:
		// 01 SN(3) +T(3) | -T(8)
		b.SN.add(uint32(e>>3)&0x07, 3)
		if err := c.addT(b, st, true, uint32(e&0x07), 3); err != nil {
			return err
		}
		o, err := r.u8("extension 1")
		if err != nil {
			return err
		}
		return c.addT(b, st, false, uint32(o), 8)

	case ext2:
		// 10 SN(3) +T(11) | -T(8)
		b.SN.add(uint32(e>>3)&0x07, 3)
		o1, err := r.u8("extension 2")
		if err != nil {
			return err
		}
		o2, err := r.u8("extension 2")
		if err != nil {
			return err
		}
		plus := uint32(e&0x07)<<8 | uint32(o1)
		if rtp {
			if err := c.addT(b, st, true, plus, 11); err != nil {
				return err
			}
			return c.addT(b, st, false, uint32(o2), 8)
		}
		// outer IP-ID in +T, inner IP-ID in -T
		outer, inner := st.outer(), st.innermost()
		if outer < 0 || !st.ip[outer].SequentialID() || !st.ip[inner].SequentialID() {
			return fmt.Errorf("%w: extension 2 needs two sequential IPv4 headers", core.ErrMalformedPacket)
		}
		b.IPID[outer].add(plus, 11)
		b.IPID[inner].add(uint32(o2), 8)
		return nil
	}

	return c.parseExt3(e, b, r, st)
}

func (c *Context) parseExt3(e byte, b *Bits, r *reader, st *state) error {
	rtp := c.profile.RTP()

	var rts, tsc, rtpFlags, ip2 bool
	s := e&0x20 != 0
	id := e&0x04 != 0
	ip := e&0x02 != 0
	if rtp {
		// 11 S R-TS Tsc I ip rtp
		rts = e&0x10 != 0
		tsc = e&0x08 != 0
		rtpFlags = e&0x01 != 0
	} else {
		// 11 S Mode(2) I ip ip2
		st.upper.Mode = (e >> 3) & 0x03
		ip2 = e&0x01 != 0
	}

	var innerFlags, outerFlags byte
	var err error
	if ip {
		if innerFlags, err = r.u8("extension 3 inner flags"); err != nil {
			return err
		}
		if rtp {
			ip2 = innerFlags&flagLow != 0
		}
	}
	if ip2 {
		if st.outer() < 0 {
			return fmt.Errorf("%w: outer IP flags with a single IP header", core.ErrMalformedPacket)
		}
		if outerFlags, err = r.u8("extension 3 outer flags"); err != nil {
			return err
		}
	}

	if s {
		sn, err := r.u8("extension 3 SN")
		if err != nil {
			return err
		}
		b.SN.add(uint32(sn), 8)
	}
	if rts {
		v, n, err := r.sdvlValue("extension 3 TS")
		if err != nil {
			return err
		}
		b.TS.add(v, n)
		b.TSUnscaled = !tsc
	}
	if ip {
		if err := c.parseIPFields(r, st, st.innermost(), innerFlags, b, false); err != nil {
			return err
		}
	}
	if id {
		v, err := r.u16("extension 3 IP-ID")
		if err != nil {
			return err
		}
		t := st.ipidTarget()
		if t < 0 {
			return fmt.Errorf("%w: extension 3 IP-ID without sequential IPv4 header", core.ErrMalformedPacket)
		}
		b.IPID[t].set(uint32(v), 16)
	}
	if ip2 {
		if err := c.parseIPFields(r, st, st.outer(), outerFlags, b, true); err != nil {
			return err
		}
	}
	if rtpFlags {
		return c.parseRTPFields(r, st, b)
	}
	return nil
}

// parseIPFields applies one IP header flags octet and reads the fields it
// announces.
func (c *Context) parseIPFields(r *reader, st *state, idx int, flags byte, b *Bits, outer bool) error {
	h := &st.ip[idx]
	var err error

	if flags&flagTOS != 0 {
		if h.TOS, err = r.u8("TOS"); err != nil {
			return err
		}
	}
	if flags&flagTTL != 0 {
		if h.TTL, err = r.u8("TTL"); err != nil {
			return err
		}
	}
	if flags&flagPR != 0 {
		if h.Protocol, err = r.u8("protocol"); err != nil {
			return err
		}
	}
	if flags&flagIPX != 0 {
		if h.IsIPv4() {
			return fmt.Errorf("%w: IPv4 option list", core.ErrUnsupported)
		}
		u, n, err := c.lists[idx].Decode(r.rest())
		if err != nil {
			return err
		}
		r.skip(n)
		st.updates[idx], st.lists[idx] = u, u.List
		h.UsesList = true
	}
	if h.IsIPv4() {
		h.setFlags(flags&flagDF != 0, flags&flagRND != 0, flags&flagNBO != 0)
	}
	if outer && flags&flagLow != 0 {
		v, err := r.u16("outer IP-ID")
		if err != nil {
			return err
		}
		if !h.SequentialID() {
			return fmt.Errorf("%w: outer IP-ID for a header without sequential IP-ID", core.ErrMalformedPacket)
		}
		b.IPID[idx].set(uint32(v), 16)
	}
	return nil
}

// RTP header flags of extension 3: Mode(2) R-PT M R-X CSRC TSS TIS
func (c *Context) parseRTPFields(r *reader, st *state, b *Bits) error {
	f, err := r.u8("extension 3 RTP flags")
	if err != nil {
		return err
	}
	u := &st.upper
	u.Mode = f >> 6
	b.Marker = f&0x10 != 0
	u.Extension = f&0x08 != 0

	if f&0x20 != 0 {
		o, err := r.u8("extension 3 payload type")
		if err != nil {
			return err
		}
		u.Padding = o&0x80 != 0
		u.PayloadType = o & 0x7F
	}
	if f&0x04 != 0 {
		return fmt.Errorf("%w: CSRC list", core.ErrUnsupported)
	}
	if f&0x02 != 0 {
		if u.TSStride, _, err = r.sdvlValue("TS_STRIDE"); err != nil {
			return err
		}
		u.TSS = true
	}
	if f&0x01 != 0 {
		if u.TimeStride, _, err = r.sdvlValue("TIME_STRIDE"); err != nil {
			return err
		}
		u.TIS = true
	}
	return nil
}

// parseTail reads the random IP-IDs and the profile fields following the
// base header and its extension.
func (c *Context) parseTail(b *Bits, r *reader, st *state) error {
	if o := st.outer(); o >= 0 && st.ip[o].RandomID() {
		v, err := r.u16("outer random IP-ID")
		if err != nil {
			return err
		}
		b.RandomID[o], b.HasRandomID[o] = v, true
	}
	if in := st.innermost(); st.ip[in].RandomID() {
		v, err := r.u16("random IP-ID")
		if err != nil {
			return err
		}
		b.RandomID[in], b.HasRandomID[in] = v, true
	}
	n, err := c.profile.ParseTail(r.rest(), &st.upper)
	if err != nil {
		return err
	}
	r.skip(n)
	return nil
}

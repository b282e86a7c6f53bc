package decomp

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/pion/rtp"

	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/core/crc"
	"firestige.xyz/rohc/internal/core/lsb"
)

const (
	rtpVersion   = 2
	rtpHeaderLen = 12
	rtpXBit      = 0x10
)

// RX octet of the RTP dynamic chain: reserved(3) X Mode(2) TIS TSS
const (
	rxX   = 0x10
	rxTIS = 0x02
	rxTSS = 0x01
)

// rtpProfile compresses IP/UDP/RTP (RFC 3095 §5.7).
type rtpProfile struct{}

func (rtpProfile) ID() core.ProfileID      { return core.ProfileRTP }
func (rtpProfile) RTP() bool               { return true }
func (rtpProfile) Protocol() (uint8, bool) { return protoUDP, true }

// UDP ports | SSRC
func (rtpProfile) ParseStatic(data []byte, u *Upper) (int, error) {
	r := &reader{data: data}
	if err := parsePorts(r, u); err != nil {
		return 0, err
	}
	var err error
	u.SSRC, err = r.u32("SSRC")
	return r.pos, err
}

// UDP checksum | V P RX CC | M PT | SN | TS | CSRC list | [RX fields]
func (rtpProfile) ParseDynamic(data []byte, u *Upper) (int, uint32, error) {
	r := &reader{data: data}
	var err error
	if u.Checksum, err = r.u16("UDP checksum"); err != nil {
		return 0, 0, err
	}
	first, err := r.u8("RTP version")
	if err != nil {
		return 0, 0, err
	}
	if v := first >> 6; v != rtpVersion {
		return 0, 0, fmt.Errorf("%w: RTP version %d", core.ErrMalformedPacket, v)
	}
	if first&0x0F != 0 {
		return 0, 0, fmt.Errorf("%w: CSRC list", core.ErrUnsupported)
	}
	u.Padding = first&0x20 != 0
	rx := first&0x10 != 0

	mpt, err := r.u8("RTP payload type")
	if err != nil {
		return 0, 0, err
	}
	u.Marker, u.PayloadType = mpt&0x80 != 0, mpt&0x7F

	sn, err := readSN(r)
	if err != nil {
		return 0, 0, err
	}
	if u.TS, err = r.u32("RTP timestamp"); err != nil {
		return 0, 0, err
	}
	if err := skipEmptyCSRCList(r); err != nil {
		return 0, 0, err
	}

	u.Extension, u.Mode, u.TIS, u.TSS = false, 0, false, false
	u.TSStride, u.TimeStride = 0, 0
	if rx {
		o, err := r.u8("RTP RX flags")
		if err != nil {
			return 0, 0, err
		}
		u.Extension = o&rxX != 0
		u.Mode = (o >> 2) & 0x03
		u.TIS, u.TSS = o&rxTIS != 0, o&rxTSS != 0
		if u.TSS {
			if u.TSStride, _, err = r.sdvlValue("TS_STRIDE"); err != nil {
				return 0, 0, err
			}
		}
		if u.TIS {
			if u.TimeStride, _, err = r.sdvlValue("TIME_STRIDE"); err != nil {
				return 0, 0, err
			}
		}
	}

	if u.ts.Width() == 0 {
		u.ts = lsb.NewDecoder(32, lsb.ShiftRTPTS)
	}
	return r.pos, sn, nil
}

// skipEmptyCSRCList reads a generic CSRC list announcing no item.
func skipEmptyCSRCList(r *reader) error {
	h, err := r.u8("CSRC list")
	if err != nil {
		return err
	}
	if h>>6 != 0 || h&0x0F != 0 {
		return fmt.Errorf("%w: CSRC list", core.ErrUnsupported)
	}
	if h&0x20 != 0 {
		_, err = r.u8("CSRC list generation")
	}
	return err
}

func (rtpProfile) ParseTail(data []byte, u *Upper) (int, error) {
	return parseChecksumTail(data, u)
}

// DecodeValues decodes the marker and the timestamp. With a known TS_STRIDE
// the timestamp travels scaled; without any TS bits it follows the SN.
func (rtpProfile) DecodeValues(u *Upper, b *Bits, sn, refSN uint32) error {
	u.Marker = b.Marker
	ref, ok := u.ts.Ref()
	if !ok {
		return fmt.Errorf("%w: RTP timestamp without reference", core.ErrMalformedPacket)
	}

	stride := u.TSStride
	switch {
	case b.TS.Bits == 0 && stride == 0:
		// unchanged
	case b.TS.Bits == 0:
		delta := uint32(uint16(sn - refSN))
		u.TS = ref + delta*stride
	case stride == 0 || b.TSUnscaled:
		u.TS = u.ts.DecodeFrom(ref, b.TS.Value, b.TS.Bits)
	default:
		scaled := u.ts.DecodeFrom(ref/stride, b.TS.Value, b.TS.Bits)
		u.TS = scaled*stride + ref%stride
	}
	return nil
}

func (rtpProfile) Build(buf gopacket.SerializeBuffer, u *Upper, sn uint32) error {
	h := rtp.Header{
		Version:        rtpVersion,
		Padding:        u.Padding,
		Marker:         u.Marker,
		PayloadType:    u.PayloadType,
		SequenceNumber: uint16(sn),
		Timestamp:      u.TS,
		SSRC:           u.SSRC,
	}
	b, err := buf.PrependBytes(h.MarshalSize())
	if err != nil {
		return err
	}
	if _, err := h.MarshalTo(b); err != nil {
		return err
	}
	// the extension itself belongs to the payload
	if u.Extension {
		b[0] |= rtpXBit
	}
	return buildUDP(buf, u)
}

// UDP ports, then V P X CC and SSRC are static; the rest of both headers
// is dynamic.
func (rtpProfile) CRCStatic(k crc.Kind, v uint8, hdr []byte) uint8 {
	if len(hdr) < 8+rtpHeaderLen {
		return v
	}
	v = k.Update(v, hdr[0:4])
	v = k.Update(v, hdr[8:9])
	return k.Update(v, hdr[16:20])
}

func (rtpProfile) CRCDynamic(k crc.Kind, v uint8, hdr []byte) uint8 {
	if len(hdr) < 8+rtpHeaderLen {
		return v
	}
	v = k.Update(v, hdr[4:8])
	return k.Update(v, hdr[9:16])
}

func (rtpProfile) Commit(u *Upper) {
	u.ts.Set(u.TS)
}

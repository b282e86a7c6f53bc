package decomp

import (
	"encoding/binary"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/core/crc"
)

const udpLiteHeaderLen = 8

// udpLiteProfile compresses IP/UDP-Lite (RFC 4019).
type udpLiteProfile struct{}

func (udpLiteProfile) ID() core.ProfileID { return core.ProfileUDPLite }
func (udpLiteProfile) RTP() bool          { return false }

func (udpLiteProfile) Protocol() (uint8, bool) {
	return uint8(layers.IPProtocolUDPLite), true
}

func (udpLiteProfile) ParseStatic(data []byte, u *Upper) (int, error) {
	r := &reader{data: data}
	err := parsePorts(r, u)
	return r.pos, err
}

// checksum coverage | checksum | SN
func (udpLiteProfile) ParseDynamic(data []byte, u *Upper) (int, uint32, error) {
	r := &reader{data: data}
	var err error
	if u.Coverage, err = r.u16("UDP-Lite coverage"); err != nil {
		return 0, 0, err
	}
	if u.Checksum, err = r.u16("UDP-Lite checksum"); err != nil {
		return 0, 0, err
	}
	sn, err := readSN(r)
	return r.pos, sn, err
}

// observeIR infers the coverage when it spans the whole datagram.
func (udpLiteProfile) observeIR(u *Upper, payloadLen int) {
	u.CoverageInferred = int(u.Coverage) == udpLiteHeaderLen+payloadLen
}

// [coverage] | checksum
func (udpLiteProfile) ParseTail(data []byte, u *Upper) (int, error) {
	r := &reader{data: data}
	var err error
	if !u.CoverageInferred {
		if u.Coverage, err = r.u16("UDP-Lite coverage"); err != nil {
			return 0, err
		}
	}
	if u.Checksum, err = r.u16("UDP-Lite checksum"); err != nil {
		return 0, err
	}
	return r.pos, nil
}

func (udpLiteProfile) DecodeValues(*Upper, *Bits, uint32, uint32) error { return nil }

func (udpLiteProfile) Build(buf gopacket.SerializeBuffer, u *Upper, _ uint32) error {
	length := len(buf.Bytes()) + udpLiteHeaderLen
	hdr, err := buf.PrependBytes(udpLiteHeaderLen)
	if err != nil {
		return err
	}
	coverage := u.Coverage
	if u.CoverageInferred {
		coverage = uint16(length)
	}
	binary.BigEndian.PutUint16(hdr[0:], u.SrcPort)
	binary.BigEndian.PutUint16(hdr[2:], u.DstPort)
	binary.BigEndian.PutUint16(hdr[4:], coverage)
	binary.BigEndian.PutUint16(hdr[6:], u.Checksum)
	return nil
}

func (udpLiteProfile) CRCStatic(k crc.Kind, v uint8, hdr []byte) uint8 {
	return crcRange(k, v, hdr, 0, 4)
}

func (udpLiteProfile) CRCDynamic(k crc.Kind, v uint8, hdr []byte) uint8 {
	return crcRange(k, v, hdr, 4, 8)
}

func (udpLiteProfile) Commit(*Upper) {}

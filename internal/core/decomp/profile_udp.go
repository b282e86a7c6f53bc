package decomp

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/core/crc"
)

const protoUDP = 17

// udpProfile compresses IP/UDP (RFC 3095 §5.11).
type udpProfile struct{}

func (udpProfile) ID() core.ProfileID      { return core.ProfileUDP }
func (udpProfile) RTP() bool               { return false }
func (udpProfile) Protocol() (uint8, bool) { return protoUDP, true }

// parsePorts reads the UDP static chain: source port | destination port.
func parsePorts(r *reader, u *Upper) error {
	var err error
	if u.SrcPort, err = r.u16("UDP source port"); err != nil {
		return err
	}
	u.DstPort, err = r.u16("UDP destination port")
	return err
}

func (udpProfile) ParseStatic(data []byte, u *Upper) (int, error) {
	r := &reader{data: data}
	err := parsePorts(r, u)
	return r.pos, err
}

// checksum | SN
func (udpProfile) ParseDynamic(data []byte, u *Upper) (int, uint32, error) {
	r := &reader{data: data}
	var err error
	if u.Checksum, err = r.u16("UDP checksum"); err != nil {
		return 0, 0, err
	}
	sn, err := readSN(r)
	return r.pos, sn, err
}

// parseChecksumTail reads the UDP checksum sent with every UO packet of a
// flow that uses checksums.
func parseChecksumTail(data []byte, u *Upper) (int, error) {
	if u.Checksum == 0 {
		return 0, nil
	}
	r := &reader{data: data}
	var err error
	u.Checksum, err = r.u16("UDP checksum")
	return r.pos, err
}

func (udpProfile) ParseTail(data []byte, u *Upper) (int, error) {
	return parseChecksumTail(data, u)
}

func (udpProfile) DecodeValues(*Upper, *Bits, uint32, uint32) error { return nil }

func buildUDP(buf gopacket.SerializeBuffer, u *Upper) error {
	udp := &layers.UDP{
		SrcPort:  layers.UDPPort(u.SrcPort),
		DstPort:  layers.UDPPort(u.DstPort),
		Checksum: u.Checksum,
	}
	return udp.SerializeTo(buf, fixLengths)
}

func (udpProfile) Build(buf gopacket.SerializeBuffer, u *Upper, _ uint32) error {
	return buildUDP(buf, u)
}

// ports are static, length and checksum dynamic
func (udpProfile) CRCStatic(k crc.Kind, v uint8, hdr []byte) uint8 {
	return crcRange(k, v, hdr, 0, 4)
}

func (udpProfile) CRCDynamic(k crc.Kind, v uint8, hdr []byte) uint8 {
	return crcRange(k, v, hdr, 4, 8)
}

func (udpProfile) Commit(*Upper) {}

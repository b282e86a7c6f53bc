package decomp

import (
	"fmt"

	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/core/complist"
	"firestige.xyz/rohc/internal/core/crc"
)

type ipSpan struct {
	hdr []byte
	ext []byte
}

// splitHeaders cuts the IP headers, with their extension chains, off the
// front of an uncompressed packet.
func splitHeaders(pkt []byte, ipCount int) ([]ipSpan, []byte, error) {
	spans := make([]ipSpan, 0, ipCount)
	rest := pkt
	for i := 0; i < ipCount; i++ {
		if len(rest) == 0 {
			return nil, nil, fmt.Errorf("%w: missing IP header %d", core.ErrPacketTooShort, i)
		}
		switch rest[0] >> 4 {
		case 4:
			ihl := int(rest[0]&0x0F) * 4
			if ihl < 20 || len(rest) < ihl {
				return nil, nil, fmt.Errorf("%w: IPv4 header", core.ErrPacketTooShort)
			}
			spans = append(spans, ipSpan{hdr: rest[:ihl]})
			rest = rest[ihl:]
		case 6:
			if len(rest) < 40 {
				return nil, nil, fmt.Errorf("%w: IPv6 header", core.ErrPacketTooShort)
			}
			hdr := rest[:40]
			rest = rest[40:]
			nh := core.ExtHeaderKind(hdr[6])
			extLen := 0
			for nh.Valid() {
				size, err := complist.ItemSize(nh, rest[extLen:])
				if err != nil {
					return nil, nil, err
				}
				if len(rest) < extLen+size {
					return nil, nil, fmt.Errorf("%w: IPv6 extension header", core.ErrPacketTooShort)
				}
				nh = core.ExtHeaderKind(rest[extLen])
				extLen += size
			}
			spans = append(spans, ipSpan{hdr: hdr, ext: rest[:extLen]})
			rest = rest[extLen:]
		default:
			return nil, nil, fmt.Errorf("%w: IP version %d", core.ErrMalformedPacket, rest[0]>>4)
		}
	}
	return spans, rest, nil
}

// headerCRC computes the CRC of a UO packet over the uncompressed headers of
// pkt: the static octets of every header first, then the dynamic ones.
func headerCRC(k crc.Kind, pkt []byte, ipCount int, p Profile) (uint8, error) {
	spans, upper, err := splitHeaders(pkt, ipCount)
	if err != nil {
		return 0, err
	}

	v := k.Init()
	for _, s := range spans {
		if s.hdr[0]>>4 == 4 {
			// version, IHL, TOS | flags, offset, TTL, protocol | addresses
			v = k.Update(v, s.hdr[0:2])
			v = k.Update(v, s.hdr[6:10])
			v = k.Update(v, s.hdr[12:20])
		} else {
			// version, TC, flow label | next header, hop limit, addresses
			v = k.Update(v, s.hdr[0:4])
			v = k.Update(v, s.hdr[6:40])
			v = k.Update(v, s.ext)
		}
	}
	v = p.CRCStatic(k, v, upper)

	for _, s := range spans {
		if s.hdr[0]>>4 == 4 {
			// total length, identification | checksum
			v = k.Update(v, s.hdr[2:6])
			v = k.Update(v, s.hdr[10:12])
		} else {
			// payload length
			v = k.Update(v, s.hdr[4:6])
		}
	}
	return p.CRCDynamic(k, v, upper), nil
}

// irCRC computes the CRC-8 of an IR or IR-DYN header found in raw between
// start and end, with the CRC octet at pos taken as zero.
func irCRC(raw []byte, start, pos, end int) uint8 {
	v := crc.CRC8.Init()
	v = crc.CRC8.Update(v, raw[start:pos])
	v = crc.CRC8.Update(v, []byte{0})
	return crc.CRC8.Update(v, raw[pos+1:end])
}

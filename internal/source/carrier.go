package source

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Carrier extracts ROHC packets from captured frames. A frame carries ROHC
// when it holds a UDP datagram whose source or destination port is the
// configured one.
type Carrier struct {
	port  layers.UDPPort
	ip4   *gopacket.DecodingLayerParser // link layer first, or IPv4 on raw IP links
	ip6   *gopacket.DecodingLayerParser // IPv6 packets on raw IP links
	rawIP bool

	eth     layers.Ethernet
	dot1q   layers.Dot1Q
	sll     layers.LinuxSLL
	ipv4    layers.IPv4
	ipv6    layers.IPv6
	udp     layers.UDP
	payload gopacket.Payload
	decoded []gopacket.LayerType
}

// NewCarrier returns a carrier for frames of the given link type.
func NewCarrier(link layers.LinkType, port uint16) (*Carrier, error) {
	c := &Carrier{port: layers.UDPPort(port), decoded: make([]gopacket.LayerType, 0, 8)}

	var first gopacket.LayerType
	switch link {
	case layers.LinkTypeEthernet:
		first = layers.LayerTypeEthernet
	case layers.LinkTypeLinuxSLL:
		first = layers.LayerTypeLinuxSLL
	case layers.LinkTypeRaw, layers.LinkTypeIPv4, layers.LinkTypeIPv6:
		first = layers.LayerTypeIPv4
		c.rawIP = true
	default:
		return nil, fmt.Errorf("unsupported link type %s", link)
	}

	c.ip4 = c.parser(first)
	c.ip6 = c.parser(layers.LayerTypeIPv6)
	return c, nil
}

func (c *Carrier) parser(first gopacket.LayerType) *gopacket.DecodingLayerParser {
	p := gopacket.NewDecodingLayerParser(first,
		&c.eth, &c.dot1q, &c.sll, &c.ipv4, &c.ipv6, &c.udp, &c.payload)
	p.IgnoreUnsupported = true
	return p
}

// Extract returns the ROHC packet inside frame. ok is false for frames that
// do not carry one, including IP fragments and truncated datagrams.
func (c *Carrier) Extract(frame []byte) (pkt []byte, ok bool) {
	p := c.ip4
	if c.rawIP && len(frame) > 0 && frame[0]>>4 == 6 {
		p = c.ip6
	}
	if err := p.DecodeLayers(frame, &c.decoded); err != nil || p.Truncated {
		return nil, false
	}
	for _, typ := range c.decoded {
		if typ != layers.LayerTypeUDP {
			continue
		}
		if c.udp.SrcPort != c.port && c.udp.DstPort != c.port {
			return nil, false
		}
		if len(c.udp.Payload) == 0 {
			return nil, false
		}
		return c.udp.Payload, true
	}
	return nil, false
}

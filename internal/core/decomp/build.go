package decomp

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/rohc/internal/core/complist"
)

var (
	fixLengths   = gopacket.SerializeOptions{FixLengths: true}
	fixAndVerify = gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
)

// build rebuilds the uncompressed packet from st with payload appended.
// Headers are prepended innermost first.
func (c *Context) build(st *state, sn uint32, payload []byte) ([]byte, error) {
	buf := gopacket.NewSerializeBufferExpectedSize(64, 0)
	p, err := buf.PrependBytes(len(payload))
	if err != nil {
		return nil, err
	}
	copy(p, payload)

	if err := c.profile.Build(buf, &st.upper, sn); err != nil {
		return nil, fmt.Errorf("build %s header: %w", c.profile.ID(), err)
	}

	for i := st.ipCount - 1; i >= 0; i-- {
		h := &st.ip[i]
		if h.IsIPv4() {
			ip := &layers.IPv4{
				Version:  4,
				TOS:      h.TOS,
				TTL:      h.TTL,
				Id:       h.RawID(),
				Protocol: layers.IPProtocol(h.Protocol),
				SrcIP:    h.Src.AsSlice(),
				DstIP:    h.Dst.AsSlice(),
			}
			if h.DF {
				ip.Flags = layers.IPv4DontFragment
			}
			if err := ip.SerializeTo(buf, fixAndVerify); err != nil {
				return nil, fmt.Errorf("build IPv4 header: %w", err)
			}
			continue
		}

		nh := h.Protocol
		if l := st.lists[i]; l != nil && l.Len() > 0 {
			ext, err := buf.PrependBytes(l.Size())
			if err != nil {
				return nil, err
			}
			if _, nh, err = complist.EncodeList(l, ext, h.Protocol); err != nil {
				return nil, err
			}
		}
		ip := &layers.IPv6{
			Version:      6,
			TrafficClass: h.TOS,
			FlowLabel:    h.FlowLabel,
			NextHeader:   layers.IPProtocol(nh),
			HopLimit:     h.TTL,
			SrcIP:        h.Src.AsSlice(),
			DstIP:        h.Dst.AsSlice(),
		}
		if err := ip.SerializeTo(buf, fixLengths); err != nil {
			return nil, fmt.Errorf("build IPv6 header: %w", err)
		}
	}

	return buf.Bytes(), nil
}

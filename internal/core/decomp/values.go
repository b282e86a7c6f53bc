package decomp

import (
	"fmt"

	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/core/lsb"
)

// decodeSN interprets the SN bits of a UO packet against ref.
func (c *Context) decodeSN(ref uint32, b *Bits) uint32 {
	return c.sn.DecodeFrom(ref, b.SN.Value, b.SN.Bits)
}

// decodeValues reconstructs the IP-IDs and the profile fields of st from the
// bits of a UO packet, once the SN is known.
func (c *Context) decodeValues(st *state, b *Bits, sn, refSN uint32) error {
	for i := 0; i < st.ipCount; i++ {
		h := &st.ip[i]
		if !h.IsIPv4() {
			continue
		}
		if h.RandomID() {
			if !b.HasRandomID[i] {
				return fmt.Errorf("%w: random IP-ID of header %d missing", core.ErrMalformedPacket, i)
			}
			h.SetRawID(b.RandomID[i])
			continue
		}

		f := b.IPID[i]
		ref, ok := c.ipid[i].Ref()
		if !ok && f.Bits < 16 {
			return fmt.Errorf("%w: header %d has no IP-ID reference for %d bits", core.ErrIPIDDecodeAmbiguous, i, f.Bits)
		}
		h.ID = lsb.DecodeIPIDFrom(c.ipid[i], ref, f.Value, f.Bits, uint16(sn))
	}
	return c.profile.DecodeValues(&st.upper, b, sn, refSN)
}

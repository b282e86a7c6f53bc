package decomp

import (
	"fmt"
	"net/netip"

	"firestige.xyz/rohc/internal/core"
)

const (
	protoIPIP = 4
	protoIPv6 = 41
)

// IPv4 dynamic flags: DF RND NBO 0 0 0 0 0
const (
	dynDF  = 0x80
	dynRND = 0x40
	dynNBO = 0x20
)

func addrFrom(b []byte) netip.Addr {
	a, _ := netip.AddrFromSlice(b)
	return a
}

// parseStaticChain reads the IP static chain of an IR packet followed by the
// profile part.
func (c *Context) parseStaticChain(r *reader, st *state) error {
	st.ipCount = 0
	for {
		if st.ipCount == MaxIPHeaders {
			return fmt.Errorf("%w: more than %d IP headers", core.ErrUnsupported, MaxIPHeaders)
		}
		h := &st.ip[st.ipCount]
		*h = HeaderChange{}
		st.lists[st.ipCount], st.updates[st.ipCount] = nil, nil

		first, err := r.u8("IP static version")
		if err != nil {
			return err
		}
		switch first >> 4 {
		case 4:
			// version(4) 0(4) | protocol | src(4) | dst(4)
			h.Version = 4
			if h.Protocol, err = r.u8("IPv4 protocol"); err != nil {
				return err
			}
			addrs, err := r.bytes(8, "IPv4 addresses")
			if err != nil {
				return err
			}
			h.Src, h.Dst = addrFrom(addrs[:4]), addrFrom(addrs[4:])
		case 6:
			// version(4) flow label(4) | flow label(16) | next header | src(16) | dst(16)
			h.Version = 6
			low, err := r.u16("IPv6 flow label")
			if err != nil {
				return err
			}
			h.FlowLabel = uint32(first&0x0F)<<16 | uint32(low)
			if h.Protocol, err = r.u8("IPv6 next header"); err != nil {
				return err
			}
			addrs, err := r.bytes(32, "IPv6 addresses")
			if err != nil {
				return err
			}
			h.Src, h.Dst = addrFrom(addrs[:16]), addrFrom(addrs[16:])
		default:
			return fmt.Errorf("%w: IP version %d in static chain", core.ErrMalformedPacket, first>>4)
		}
		st.ipCount++

		if h.Protocol != protoIPIP && h.Protocol != protoIPv6 {
			break
		}
	}

	last := &st.ip[st.innermost()]
	if proto, ok := c.profile.Protocol(); ok && last.Protocol != proto {
		return fmt.Errorf("%w: %s profile over protocol %d", core.ErrMalformedPacket, c.profile.ID(), last.Protocol)
	}

	n, err := c.profile.ParseStatic(r.rest(), &st.upper)
	if err != nil {
		return err
	}
	r.skip(n)
	return nil
}

// parseDynamicChain reads the dynamic chain of an IR or IR-DYN packet and
// returns the SN it carries.
func (c *Context) parseDynamicChain(r *reader, st *state) (uint32, error) {
	for i := 0; i < st.ipCount; i++ {
		h := &st.ip[i]
		var err error
		if h.TOS, err = r.u8("IP dynamic TOS"); err != nil {
			return 0, err
		}
		if h.TTL, err = r.u8("IP dynamic TTL"); err != nil {
			return 0, err
		}

		if h.IsIPv4() {
			// TOS | TTL | IP-ID(2) | DF RND NBO 0(5)
			id, err := r.u16("IPv4 identification")
			if err != nil {
				return 0, err
			}
			flags, err := r.u8("IPv4 dynamic flags")
			if err != nil {
				return 0, err
			}
			h.setFlags(flags&dynDF != 0, flags&dynRND != 0, flags&dynNBO != 0)
			h.SetRawID(id)
			continue
		}

		// TC | hop limit | extension header list
		u, n, err := c.lists[i].Decode(r.rest())
		if err != nil {
			return 0, err
		}
		r.skip(n)
		st.updates[i], st.lists[i] = u, u.List
		h.UsesList = h.UsesList || u.List.Len() > 0
	}

	n, sn, err := c.profile.ParseDynamic(r.rest(), &st.upper)
	if err != nil {
		return 0, err
	}
	r.skip(n)
	return sn, nil
}

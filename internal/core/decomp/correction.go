package decomp

import (
	"fmt"

	"firestige.xyz/rohc/internal/core"
)

// Repair tells how a UO packet that first failed its CRC was recovered.
type Repair uint8

const (
	RepairNone Repair = iota
	// RepairWraparound assumed the SN wrapped around its k bits while
	// packets were lost.
	RepairWraparound
	// RepairOldReference decoded the SN against the reference in use before
	// the last accepted packet.
	RepairOldReference
)

func (r Repair) String() string {
	switch r {
	case RepairWraparound:
		return "sn-wraparound"
	case RepairOldReference:
		return "old-reference"
	default:
		return "none"
	}
}

// correction keeps the counters of RFC 3095 §5.3.2.2.3 and §5.3.2.2.4.
// Arrival times are whatever monotonic unit the caller uses.
type correction struct {
	failures     int
	last         uint32
	hasLast      bool
	interArrival uint32
}

// accept records a packet that passed its CRC.
func (c *correction) accept(arrival uint32) {
	if c.hasLast {
		delta := arrival - c.last
		if c.interArrival == 0 {
			c.interArrival = delta
		} else {
			c.interArrival = (c.interArrival + delta) / 2
		}
	}
	c.last, c.hasLast = arrival, true
	c.failures = 0
}

// mayHaveWrapped reports whether enough time went by since the last
// accepted packet for 2^k packets to have been lost.
func (c *correction) mayHaveWrapped(arrival uint32, k int) bool {
	if !c.hasLast || c.interArrival == 0 || k >= 32 {
		return false
	}
	return uint64(arrival-c.last) >= uint64(c.interArrival)<<k
}

// crcFailed counts a CRC failure no repair could fix. Past the configured
// limit the context loses one state level.
func (c *Context) crcFailed(kind core.PacketKind) error {
	c.corr.failures++
	if c.corr.failures <= c.cfg.MaxCRCFailures {
		return fmt.Errorf("%w: %s, failure %d of %d", core.ErrCRCMismatch, kind, c.corr.failures, c.cfg.MaxCRCFailures)
	}

	c.corr.failures = 0
	from := c.state
	switch c.state {
	case core.FullContext:
		c.state = core.StaticContext
	case core.StaticContext:
		c.state = core.NoContext
	}
	return fmt.Errorf("%w: %s after repeated CRC failures, %s -> %s", core.ErrContextDamaged, kind, from, c.state)
}

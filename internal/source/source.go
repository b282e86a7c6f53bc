// Package source provides the channels ROHC packets are read from.
package source

import (
	"context"
	"time"

	"firestige.xyz/rohc/internal/core"
)

// Source yields the packets of one ROHC channel in arrival order.
type Source interface {
	// Next returns the next packet. It returns io.EOF once the source is
	// exhausted.
	Next(ctx context.Context) (core.RawPacket, error)
	Close() error
}

// Clock derives the arrival counter of a channel from packet timestamps.
// The counter is the number of milliseconds since the first packet.
type Clock struct {
	start   time.Time
	started bool
}

// Arrival returns the counter value for a packet seen at ts. Timestamps
// earlier than the first packet map to 0.
func (c *Clock) Arrival(ts time.Time) uint32 {
	if !c.started {
		c.start = ts
		c.started = true
		return 0
	}
	d := ts.Sub(c.start)
	if d < 0 {
		return 0
	}
	return uint32(d / time.Millisecond)
}

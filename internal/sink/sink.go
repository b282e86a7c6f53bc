// Package sink consumes decompressed packets.
package sink

import (
	"time"

	"firestige.xyz/rohc/internal/core"
)

// Sink receives every packet the decompressor delivers.
type Sink interface {
	Send(pkt *core.DecodedPacket) error
	Close() error
}

// FailureRecorder is implemented by sinks that also account for rejected
// packets.
type FailureRecorder interface {
	Fail(ts time.Time, err error)
}

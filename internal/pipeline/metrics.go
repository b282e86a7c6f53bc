package pipeline

import (
	"sync/atomic"
)

// Metrics contains per-pipeline counters.
type Metrics struct {
	Received     atomic.Uint64
	Decompressed atomic.Uint64
	Failed       atomic.Uint64
	SinkErrors   atomic.Uint64
}

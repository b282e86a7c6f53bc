// Package console prints one line per decompressed or rejected packet.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"firestige.xyz/rohc/internal/core"
)

const timeLayout = "15:04:05.000000"

type Sink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

func (s *Sink) Send(pkt *core.DecodedPacket) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s cid=%d profile=%s type=%s sn=%d len=%d",
		pkt.Timestamp.Format(timeLayout), pkt.CID, pkt.Profile, pkt.Kind, pkt.SN, len(pkt.Data))
	if pkt.Repair != "" {
		fmt.Fprintf(&b, " repair=%s", pkt.Repair)
	}
	if len(pkt.Lists) > 0 {
		fmt.Fprintf(&b, " lists=%s", strings.Join(pkt.Lists, ","))
	}
	b.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, b.String())
	return err
}

func (s *Sink) Fail(ts time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "%s error: %v\n", ts.Format(timeLayout), err)
}

func (s *Sink) Close() error {
	return nil
}

// Package report summarizes a decompression run per CID as YAML.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/decompressor"
	"gopkg.in/yaml.v3"
)

// Report is the document written on Close.
type Report struct {
	Packets  uint64            `yaml:"packets"`
	Failures uint64            `yaml:"failures"`
	Start    time.Time         `yaml:"start,omitempty"`
	End      time.Time         `yaml:"end,omitempty"`
	Unrouted map[string]uint64 `yaml:"unrouted,omitempty"`
	Contexts []*ContextReport  `yaml:"contexts"`
}

// ContextReport is the summary of one CID.
type ContextReport struct {
	CID      uint16            `yaml:"cid"`
	Profile  string            `yaml:"profile,omitempty"`
	State    string            `yaml:"state,omitempty"`
	FirstSN  uint32            `yaml:"first_sn"`
	LastSN   uint32            `yaml:"last_sn"`
	Bytes    uint64            `yaml:"bytes"`
	Packets  map[string]uint64 `yaml:"packets,omitempty"`
	Failures map[string]uint64 `yaml:"failures,omitempty"`
	Repairs  map[string]uint64 `yaml:"repairs,omitempty"`
	Lists    map[string]uint64 `yaml:"lists,omitempty"`

	delivered bool
}

// Sink accumulates a Report and writes it on Close.
type Sink struct {
	mu     sync.Mutex
	w      io.Writer
	c      io.Closer
	rep    Report
	byCID  map[uint16]*ContextReport
	closed bool
}

// New writes the report to w.
func New(w io.Writer) *Sink {
	return &Sink{
		w:     w,
		byCID: make(map[uint16]*ContextReport),
	}
}

// Create writes the report to path.
func Create(path string) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	s := New(f)
	s.c = f
	return s, nil
}

func (s *Sink) context(id uint16) *ContextReport {
	c, ok := s.byCID[id]
	if !ok {
		c = &ContextReport{CID: id}
		s.byCID[id] = c
	}
	return c
}

func (s *Sink) seen(ts time.Time) {
	if s.rep.Start.IsZero() || ts.Before(s.rep.Start) {
		s.rep.Start = ts
	}
	if ts.After(s.rep.End) {
		s.rep.End = ts
	}
}

func (s *Sink) Send(pkt *core.DecodedPacket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rep.Packets++
	s.seen(pkt.Timestamp)

	c := s.context(pkt.CID)
	c.Profile = pkt.Profile.String()
	if pkt.Data != nil {
		if !c.delivered {
			c.FirstSN = pkt.SN
			c.delivered = true
		}
		c.LastSN = pkt.SN
	}
	c.Bytes += uint64(len(pkt.Data))
	inc(&c.Packets, pkt.Kind.String())
	if pkt.Repair != "" {
		inc(&c.Repairs, pkt.Repair)
	}
	for _, l := range pkt.Lists {
		inc(&c.Lists, l)
	}
	return nil
}

// Fail accounts for a rejected packet. Errors that carry no CID are counted
// as unrouted.
func (s *Sink) Fail(ts time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rep.Failures++
	s.seen(ts)

	reason := decompressor.FailureReason(err)
	var de *decompressor.DecodeError
	if !errors.As(err, &de) {
		inc(&s.rep.Unrouted, reason)
		return
	}
	c := s.context(de.CID)
	if de.Profile != 0 && c.Profile == "" {
		c.Profile = de.Profile.String()
	}
	inc(&c.Failures, reason)
}

// SetStates records the final state of each context.
func (s *Sink) SetStates(states map[uint16]core.ContextState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, st := range states {
		s.context(id).State = st.String()
	}
}

// Report returns the summary built so far.
func (s *Sink) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.build()
}

func (s *Sink) build() Report {
	rep := s.rep
	ids := make([]uint16, 0, len(s.byCID))
	for id := range s.byCID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	rep.Contexts = make([]*ContextReport, 0, len(ids))
	for _, id := range ids {
		rep.Contexts = append(rep.Contexts, s.byCID[id])
	}
	return rep
}

// Close writes the report.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	rep := s.build()
	enc := yaml.NewEncoder(s.w)
	enc.SetIndent(2)
	err := enc.Encode(&rep)
	if err == nil {
		err = enc.Close()
	}
	if s.c != nil {
		if cerr := s.c.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func inc(m *map[string]uint64, key string) {
	if *m == nil {
		*m = make(map[string]uint64)
	}
	(*m)[key]++
}

// Package pcap writes decompressed IP packets to a capture file.
package pcap

import (
	"bufio"
	"fmt"
	"os"

	"firestige.xyz/rohc/internal/core"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const snapLen = 65535

// Sink writes one raw IP frame per decompressed packet.
type Sink struct {
	f       *os.File
	buf     *bufio.Writer
	w       *pcapgo.Writer
	written uint64
}

// Create truncates path and writes the capture header.
func Create(path string) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	buf := bufio.NewWriter(f)
	w := pcapgo.NewWriterNanos(buf)
	if err := w.WriteFileHeader(snapLen, layers.LinkTypeRaw); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	return &Sink{f: f, buf: buf, w: w}, nil
}

// Send writes pkt. Packets without an IP packet (IR without dynamic chain)
// are skipped.
func (s *Sink) Send(pkt *core.DecodedPacket) error {
	if len(pkt.Data) == 0 {
		return nil
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     pkt.Timestamp,
		CaptureLength: len(pkt.Data),
		Length:        len(pkt.Data),
	}
	if err := s.w.WritePacket(ci, pkt.Data); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	s.written++
	return nil
}

// Written returns the number of packets written.
func (s *Sink) Written() uint64 { return s.written }

func (s *Sink) Close() error {
	if s.f == nil {
		return nil
	}
	ferr := s.buf.Flush()
	cerr := s.f.Close()
	s.f = nil
	if ferr != nil {
		return fmt.Errorf("failed to flush capture: %w", ferr)
	}
	return cerr
}

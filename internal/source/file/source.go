// Package file reads ROHC packets out of pcap and pcapng captures.
package file

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/log"
	"firestige.xyz/rohc/internal/source"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var ngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Source replays the ROHC packets of a capture file. Frames that do not carry
// ROHC on the configured UDP port are skipped.
type Source struct {
	path    string
	f       *os.File
	r       packetReader
	carrier *source.Carrier
	clock   source.Clock
	frames  uint64
	skipped uint64
	log     log.Logger
}

// Open opens the capture at path. The format is detected from the file magic.
func Open(path string, port uint16) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture %s: %w", path, err)
	}

	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read capture header %s: %w", path, err)
	}

	var r packetReader
	if bytes.Equal(magic, ngMagic) {
		r, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		r, err = pcapgo.NewReader(br)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to parse capture %s: %w", path, err)
	}

	c, err := source.NewCarrier(r.LinkType(), port)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("capture %s: %w", path, err)
	}

	return &Source{
		path:    path,
		f:       f,
		r:       r,
		carrier: c,
		log:     log.GetLogger().WithField("source", path),
	}, nil
}

// Next returns the next ROHC packet of the capture.
func (s *Source) Next(ctx context.Context) (core.RawPacket, error) {
	for {
		if err := ctx.Err(); err != nil {
			return core.RawPacket{}, err
		}
		data, ci, err := s.r.ReadPacketData()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return core.RawPacket{}, io.EOF
			}
			return core.RawPacket{}, fmt.Errorf("failed to read packet: %w", err)
		}
		s.frames++

		pkt, ok := s.carrier.Extract(data)
		if !ok {
			s.skipped++
			continue
		}
		return core.RawPacket{
			Data:      pkt,
			Timestamp: ci.Timestamp,
			Arrival:   s.clock.Arrival(ci.Timestamp),
		}, nil
	}
}

// Skipped returns the number of frames that carried no ROHC packet.
func (s *Source) Skipped() uint64 { return s.skipped }

func (s *Source) Close() error {
	if s.f == nil {
		return nil
	}
	s.log.WithFields(map[string]interface{}{"frames": s.frames, "skipped": s.skipped}).Debug("capture closed")
	err := s.f.Close()
	s.f = nil
	return err
}

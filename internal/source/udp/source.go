// Package udp receives ROHC packets from a UDP socket.
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/log"
	"firestige.xyz/rohc/internal/source"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	maxDatagram  = 65535
	pollInterval = 200 * time.Millisecond
)

type batchReader interface {
	ReadBatch(ms []ipv4.Message, flags int) (int, error)
}

// Source reads datagrams in batches. Each datagram is one ROHC packet.
type Source struct {
	conn  net.PacketConn
	br    batchReader
	msgs  []ipv4.Message
	n     int // messages filled by the last batch
	next  int // next message to hand out
	ts    time.Time
	clock source.Clock
	log   log.Logger
}

// Listen binds addr and reads up to batch datagrams per system call.
func Listen(addr string, batch int) (*Source, error) {
	ua, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	network := "udp4"
	if ua.IP != nil && ua.IP.To4() == nil {
		network = "udp6"
	}
	conn, err := net.ListenPacket(network, ua.String())
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	var br batchReader
	if network == "udp4" {
		br = ipv4.NewPacketConn(conn)
	} else {
		br = ipv6.NewPacketConn(conn)
	}

	if batch <= 0 {
		batch = 1
	}
	msgs := make([]ipv4.Message, batch)
	for i := range msgs {
		msgs[i].Buffers = [][]byte{make([]byte, maxDatagram)}
	}

	s := &Source{conn: conn, br: br, msgs: msgs}
	s.log = log.GetLogger().WithField("source", s.Addr())
	s.log.Info("listening for ROHC packets")
	return s, nil
}

// Addr returns the bound address.
func (s *Source) Addr() string { return s.conn.LocalAddr().String() }

// Next blocks until a datagram arrives or ctx is done.
func (s *Source) Next(ctx context.Context) (core.RawPacket, error) {
	for s.next >= s.n {
		if err := s.fill(ctx); err != nil {
			return core.RawPacket{}, err
		}
	}

	m := &s.msgs[s.next]
	s.next++
	data := make([]byte, m.N)
	copy(data, m.Buffers[0][:m.N])
	return core.RawPacket{
		Data:      data,
		Timestamp: s.ts,
		Arrival:   s.clock.Arrival(s.ts),
	}, nil
}

func (s *Source) fill(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return fmt.Errorf("failed to set read deadline: %w", err)
		}
		n, err := s.br.ReadBatch(s.msgs, 0)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return net.ErrClosed
			}
			return fmt.Errorf("failed to read datagrams: %w", err)
		}
		s.ts = time.Now()
		s.n, s.next = n, 0
		return nil
	}
}

func (s *Source) Close() error {
	return s.conn.Close()
}

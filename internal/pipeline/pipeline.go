// Package pipeline moves packets from a source through the decompressor to
// the sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/decompressor"
	"firestige.xyz/rohc/internal/log"
	"firestige.xyz/rohc/internal/sink"
	"firestige.xyz/rohc/internal/source"
)

// Pipeline is a single-threaded decompression chain. Packets of a channel
// must be decompressed in order, so one pipeline serves one channel.
type Pipeline struct {
	source       source.Source
	decompressor *decompressor.Decompressor
	sinks        []sink.Sink
	metrics      *Metrics
	log          log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	packets chan core.RawPacket
	errMu   sync.Mutex
	err     error
}

// Config contains pipeline configuration.
type Config struct {
	Source       source.Source
	Decompressor *decompressor.Decompressor
	Sinks        []sink.Sink
	BufferSize   int // read-ahead between the source and the decompressor
}

// New creates a pipeline. It does not take ownership of the decompressor.
func New(cfg Config) *Pipeline {
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 1024
	}
	return &Pipeline{
		source:       cfg.Source,
		decompressor: cfg.Decompressor,
		sinks:        cfg.Sinks,
		metrics:      &Metrics{},
		log:          log.GetLogger().WithField("component", "pipeline"),
		packets:      make(chan core.RawPacket, cfg.BufferSize),
	}
}

// Start reads and decompresses packets until the source is exhausted or
// ctx is done.
func (p *Pipeline) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.log.Info("pipeline starting")

	p.wg.Add(2)
	go p.readLoop()
	go p.processLoop()
}

// Wait blocks until both loops have ended and returns the source error, if
// any.
func (p *Pipeline) Wait() error {
	p.wg.Wait()
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

// Stop cancels the loops, then closes the source and every sink.
func (p *Pipeline) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}
	err := p.Wait()

	if cerr := p.source.Close(); cerr != nil {
		p.log.WithError(cerr).Error("source close failed")
	}
	for _, s := range p.sinks {
		if cerr := s.Close(); cerr != nil {
			p.log.WithError(cerr).Error("sink close failed")
			if err == nil {
				err = fmt.Errorf("failed to close sink: %w", cerr)
			}
		}
	}

	st := p.Stats()
	p.log.WithFields(map[string]interface{}{
		"received":     st.Received,
		"decompressed": st.Decompressed,
		"failed":       st.Failed,
		"sink_errors":  st.SinkErrors,
	}).Info("pipeline stopped")
	return err
}

func (p *Pipeline) readLoop() {
	defer p.wg.Done()
	defer close(p.packets)

	for {
		pkt, err := p.source.Next(p.ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && p.ctx.Err() == nil {
				p.setErr(fmt.Errorf("source failed: %w", err))
			}
			return
		}
		select {
		case p.packets <- pkt:
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pipeline) processLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case raw, ok := <-p.packets:
			if !ok {
				return
			}
			p.metrics.Received.Add(1)
			p.processPacket(raw)
		}
	}
}

func (p *Pipeline) processPacket(raw core.RawPacket) {
	out, err := p.decompressor.Decompress(raw)
	if err != nil {
		p.metrics.Failed.Add(1)
		for _, s := range p.sinks {
			if r, ok := s.(sink.FailureRecorder); ok {
				r.Fail(raw.Timestamp, err)
			}
		}
		return
	}
	p.metrics.Decompressed.Add(1)

	for _, s := range p.sinks {
		if err := s.Send(out); err != nil {
			p.metrics.SinkErrors.Add(1)
			p.log.WithError(err).Error("sink failed")
		}
	}
}

func (p *Pipeline) setErr(err error) {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	if p.err == nil {
		p.err = err
	}
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Received:     p.metrics.Received.Load(),
		Decompressed: p.metrics.Decompressed.Load(),
		Failed:       p.metrics.Failed.Load(),
		SinkErrors:   p.metrics.SinkErrors.Load(),
	}
}

// Stats represents pipeline statistics.
type Stats struct {
	Received     uint64
	Decompressed uint64
	Failed       uint64
	SinkErrors   uint64
}

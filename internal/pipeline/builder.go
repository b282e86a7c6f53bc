package pipeline

import (
	"firestige.xyz/rohc/internal/decompressor"
	"firestige.xyz/rohc/internal/sink"
	"firestige.xyz/rohc/internal/source"
)

// Builder provides a fluent interface for building pipelines.
type Builder struct {
	config Config
}

// NewBuilder creates a new pipeline builder.
func NewBuilder() *Builder {
	return &Builder{config: Config{BufferSize: 1024}}
}

// WithSource sets the packet source.
func (b *Builder) WithSource(s source.Source) *Builder {
	b.config.Source = s
	return b
}

// WithDecompressor sets the decompressor of the channel.
func (b *Builder) WithDecompressor(d *decompressor.Decompressor) *Builder {
	b.config.Decompressor = d
	return b
}

// WithSinks appends sinks.
func (b *Builder) WithSinks(sinks ...sink.Sink) *Builder {
	b.config.Sinks = append(b.config.Sinks, sinks...)
	return b
}

// WithBufferSize sets the read-ahead buffer size.
func (b *Builder) WithBufferSize(size int) *Builder {
	b.config.BufferSize = size
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() *Pipeline {
	return New(b.config)
}

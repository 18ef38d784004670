// Package pipeline implements pipeline construction.
package pipeline

import (
	"fmt"
	"time"

	"firestige.xyz/otus-inject/internal/config"
	"firestige.xyz/otus-inject/internal/core"
	"firestige.xyz/otus-inject/internal/log"
)

// Builder provides a fluent interface for building pipelines.
// This is an alternative to using New directly.
type Builder struct {
	config Config
	sink   Sink
	logger log.Logger
}

// NewBuilder creates a new pipeline builder.
func NewBuilder() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration with the pipeline section of the
// configuration file.
func (b *Builder) WithConfig(c config.PipelineConfig) *Builder {
	b.config = FromConfig(c)
	return b
}

// WithSink sets the device the frames are written to.
func (b *Builder) WithSink(s Sink) *Builder {
	b.sink = s
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(l log.Logger) *Builder {
	b.logger = l
	return b
}

// WithBatchSize sets the number of frames per batch.
func (b *Builder) WithBatchSize(size int) *Builder {
	b.config.BatchSize = size
	return b
}

// WithQueueCapacity sets the number of batches the queue holds.
func (b *Builder) WithQueueCapacity(capacity int) *Builder {
	b.config.QueueCapacity = capacity
	return b
}

// WithWorkers sets the number of generation goroutines.
func (b *Builder) WithWorkers(n int) *Builder {
	b.config.Workers = n
	return b
}

// WithProgress sets the progress reporting cadence.
func (b *Builder) WithProgress(every uint64, minInterval time.Duration) *Builder {
	b.config.ProgressEvery = every
	b.config.ProgressMinInterval = minInterval
	return b
}

// WithSeed sets the per-frame sequence seed.
func (b *Builder) WithSeed(seed int64) *Builder {
	b.config.Seed = seed
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if b.sink == nil {
		return nil, fmt.Errorf("%w: pipeline needs a sink", core.ErrConfigInvalid)
	}
	return New(b.config, b.sink, b.logger), nil
}

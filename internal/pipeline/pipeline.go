// Package pipeline injects copies of a template frame into a device.
//
// A run has two sides joined by a bounded queue of batches: one generation
// goroutine materializes batches in parallel and pushes them in order, and the
// caller's goroutine drains them into the sink, pacing writes by the
// configured interval.
package pipeline

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/multierr"

	"firestige.xyz/otus-inject/internal/config"
	"firestige.xyz/otus-inject/internal/core"
	"firestige.xyz/otus-inject/internal/frame"
	"firestige.xyz/otus-inject/internal/log"
	"firestige.xyz/otus-inject/internal/metrics"
	"firestige.xyz/otus-inject/internal/settings"
)

// Sink receives serialized frames. device.Sink satisfies it.
type Sink interface {
	WritePacketData(data []byte) error
}

// Batch is an ordered run of frame copies, the unit moved through the queue.
type Batch [][]byte

// Config contains pipeline configuration.
type Config struct {
	BatchSize           int           // frames per batch
	QueueCapacity       int           // batches held by the queue
	Workers             int           // generation goroutines, 0 = GOMAXPROCS
	ProgressEvery       uint64        // frames between progress reports, 0 = off
	ProgressMinInterval time.Duration // minimum time between progress reports
	Seed                int64         // per-frame sequence seed, 0 = time based
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:           1000,
		QueueCapacity:       100,
		ProgressEvery:       10000,
		ProgressMinInterval: time.Second,
	}
}

// FromConfig converts the pipeline section of the configuration file.
func FromConfig(c config.PipelineConfig) Config {
	return Config{
		BatchSize:           c.BatchSize,
		QueueCapacity:       c.QueueCapacity,
		Workers:             c.Workers,
		ProgressEvery:       c.ProgressEvery,
		ProgressMinInterval: c.ProgressMinInterval,
		Seed:                c.Seed,
	}
}

type batchFunc func(template *frame.Frame, perFrame bool, n uint64, seed int64) Batch

// Pipeline runs a single injection. It is not reusable.
type Pipeline struct {
	cfg      Config
	sink     Sink
	logger   log.Logger
	state    atomic.Int32
	counters *Counters

	build batchFunc
	sleep func(time.Duration)
	now   func() time.Time
}

// New creates a new pipeline. Non-positive sizes fall back to the defaults.
func New(cfg Config, sink Sink, logger log.Logger) *Pipeline {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = def.QueueCapacity
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = log.GetLogger()
	}

	p := &Pipeline{
		cfg:      cfg,
		sink:     sink,
		logger:   logger,
		counters: &Counters{},
		sleep:    time.Sleep,
		now:      time.Now,
	}
	p.build = materialize
	return p
}

// Counters returns the live run counters.
func (p *Pipeline) Counters() *Counters {
	return p.counters
}

// Run sends s.Count() copies of template and blocks until they are all
// written or the run fails. Exactly Count frames are written on success.
// Every failure is fatal; the returned error wraps one of the core sentinels.
func (p *Pipeline) Run(template *frame.Frame, s *settings.Settings) (Stats, error) {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return Stats{}, fmt.Errorf("%w: state %s", core.ErrPipelineStarted, p.State())
	}
	metrics.RunState.Set(float64(StateRunning))

	start := p.now()
	count := s.Count()
	logger := p.logger.WithFields(map[string]interface{}{
		"count":     count,
		"frame_len": template.Len(),
		"seq_mode":  s.SeqMode(),
		"interval":  s.Interval(),
	})
	logger.Info("injection started")

	if count == 0 {
		p.setState(StateDraining)
		p.setState(StateCompleted)
		logger.Info("nothing to send")
		return p.stats(start), nil
	}

	seed := p.cfg.Seed
	if seed == 0 {
		seed = start.UnixNano()
	}

	queue := make(chan Batch, p.cfg.QueueCapacity)
	stop := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		var err error
		var pc panics.Catcher
		pc.Try(func() {
			err = p.generate(template, s.SeqMode() == settings.SeqPerFrame, count, seed, queue, stop)
		})
		if r := pc.Recovered(); r != nil {
			err = fmt.Errorf("%w: %v", core.ErrThreadJoin, r.AsError())
		}
		done <- err
	}()

	pr := newProgress(logger, p.cfg.ProgressEvery, p.cfg.ProgressMinInterval, count, start, p.now)
	if err := p.drain(queue, count, s.Interval(), pr); err != nil {
		close(stop)
		// a push rejected because the drain side gave up adds nothing
		if genErr := <-done; genErr != nil && !errors.Is(genErr, core.ErrChannelSend) {
			err = multierr.Append(err, genErr)
		}
		return p.fail(err, start, logger)
	}

	p.setState(StateDraining)
	if err := <-done; err != nil {
		return p.fail(err, start, logger)
	}
	p.setState(StateCompleted)

	stats := p.stats(start)
	logger.WithFields(map[string]interface{}{
		"sent":    stats.Sent,
		"bytes":   stats.Bytes,
		"batches": stats.Batches,
		"elapsed": stats.Elapsed.Round(time.Millisecond),
		"rate":    fmt.Sprintf("%.1f pps", stats.Rate()),
	}).Info("injection completed")
	return stats, nil
}

// drain writes frames until count is reached. It stops mid-batch at the
// target and never sleeps after the last frame.
func (p *Pipeline) drain(queue <-chan Batch, count uint64, interval time.Duration, pr *progress) error {
	var sent uint64
	for sent < count {
		batch, ok := <-queue
		if !ok {
			return fmt.Errorf("%w: queue closed after %d of %d frames", core.ErrChannelReceive, sent, count)
		}
		p.counters.Consumed.Add(1)
		metrics.QueueDepth.Set(float64(len(queue)))

		for _, data := range batch {
			if err := p.sink.WritePacketData(data); err != nil {
				return fmt.Errorf("%w: frame %d of %d: %w", core.ErrPacketSend, sent+1, count, err)
			}
			sent++
			p.counters.Sent.Add(1)
			p.counters.Bytes.Add(uint64(len(data)))
			metrics.PacketsSentTotal.Inc()
			metrics.BytesSentTotal.Add(float64(len(data)))
			pr.observe(sent)

			if sent == count {
				break
			}
			if interval > 0 {
				p.sleep(interval)
			}
		}
	}
	return nil
}

func (p *Pipeline) fail(err error, start time.Time, logger log.Logger) (Stats, error) {
	p.setState(StateFailed)
	metrics.RunErrorsTotal.WithLabelValues(core.Stage(err)).Inc()

	stats := p.stats(start)
	logger.WithError(err).WithFields(map[string]interface{}{
		"sent":  stats.Sent,
		"stage": core.Stage(err),
	}).Error("injection failed")
	return stats, err
}

func (p *Pipeline) stats(start time.Time) Stats {
	return Stats{
		Sent:    p.counters.Sent.Load(),
		Bytes:   p.counters.Bytes.Load(),
		Batches: p.counters.Batches.Load(),
		Elapsed: p.now().Sub(start),
	}
}

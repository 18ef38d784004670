package pipeline

import (
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/stream"

	"firestige.xyz/otus-inject/internal/core"
	"firestige.xyz/otus-inject/internal/frame"
	"firestige.xyz/otus-inject/internal/metrics"
)

// generate partitions [0, count) into chunks of BatchSize, materializes them
// on up to Workers goroutines and pushes them to queue in chunk order. The
// last chunk holds the remainder, so the queue carries exactly count frames.
// queue is closed on return.
func (p *Pipeline) generate(template *frame.Frame, perFrame bool, count uint64, seed int64, queue chan<- Batch, stop <-chan struct{}) error {
	defer close(queue)

	var (
		failed atomic.Bool
		err    error // only touched by stream callbacks, which run one at a time
	)

	size := uint64(p.cfg.BatchSize)
	s := stream.New().WithMaxGoroutines(p.cfg.Workers)
	for first, chunk := uint64(0), int64(0); first < count && !failed.Load(); first, chunk = first+size, chunk+1 {
		n := min(size, count-first)
		chunkSeed := seed + chunk

		s.Go(func() stream.Callback {
			var batch Batch
			var pc panics.Catcher
			pc.Try(func() { batch = p.build(template, perFrame, n, chunkSeed) })
			recovered := pc.Recovered()

			return func() {
				if failed.Load() {
					return
				}
				if recovered != nil {
					failed.Store(true)
					err = fmt.Errorf("%w: batch %d: %v", core.ErrThreadJoin, chunk, recovered.AsError())
					return
				}
				select {
				case queue <- batch:
					p.counters.Batches.Add(1)
					metrics.BatchesGeneratedTotal.Inc()
					metrics.BatchSize.Observe(float64(len(batch)))
				case <-stop:
					failed.Store(true)
					err = fmt.Errorf("%w: batch %d rejected, drain stopped", core.ErrChannelSend, chunk)
				}
			}
		})
	}
	s.Wait()

	return err
}

// materialize copies template n times. In per-frame mode every copy gets its
// own sequence number from a source seeded with seed, so a chunk always
// yields the same frames regardless of which goroutine builds it.
func materialize(template *frame.Frame, perFrame bool, n uint64, seed int64) Batch {
	batch := make(Batch, n)
	if !perFrame {
		for i := range batch {
			batch[i] = template.Clone()
		}
		return batch
	}

	rng := rand.New(rand.NewSource(seed))
	for i := range batch {
		batch[i] = template.WithSequence(rng.Uint32())
	}
	return batch
}

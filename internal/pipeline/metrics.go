package pipeline

import (
	"sync/atomic"
	"time"
)

// Counters contains per-run counters.
type Counters struct {
	Batches  atomic.Uint64 // pushed to the queue
	Consumed atomic.Uint64 // popped from the queue
	Sent     atomic.Uint64
	Bytes    atomic.Uint64
}

// Pending returns the number of batches pushed but not yet popped.
func (c *Counters) Pending() uint64 {
	consumed := c.Consumed.Load()
	batches := c.Batches.Load()
	if batches < consumed {
		return 0
	}
	return batches - consumed
}

// Stats summarizes a run.
type Stats struct {
	Sent    uint64
	Bytes   uint64
	Batches uint64
	Elapsed time.Duration
}

// Rate returns the achieved rate in frames per second.
func (s Stats) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Sent) / s.Elapsed.Seconds()
}

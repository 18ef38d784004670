package pipeline

import (
	"fmt"
	"time"

	"firestige.xyz/otus-inject/internal/log"
)

// progress reports every `every` frames, at most once per minInterval.
type progress struct {
	logger      log.Logger
	every       uint64
	minInterval time.Duration
	total       uint64
	start       time.Time
	last        time.Time
	now         func() time.Time
	reports     int
}

func newProgress(logger log.Logger, every uint64, minInterval time.Duration, total uint64, start time.Time, now func() time.Time) *progress {
	return &progress{
		logger:      logger,
		every:       every,
		minInterval: minInterval,
		total:       total,
		start:       start,
		last:        start,
		now:         now,
	}
}

func (pr *progress) observe(sent uint64) {
	if pr.every == 0 || sent%pr.every != 0 {
		return
	}
	now := pr.now()
	if now.Sub(pr.last) < pr.minInterval {
		return
	}
	pr.last = now
	pr.reports++

	elapsed := now.Sub(pr.start)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(sent) / elapsed.Seconds()
	}
	pr.logger.WithFields(map[string]interface{}{
		"sent":    sent,
		"total":   pr.total,
		"elapsed": elapsed.Round(time.Millisecond),
		"rate":    fmt.Sprintf("%.1f pps", rate),
	}).Info("injection progress")
}

package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector keeps in-process request counters plus per-calculation GAR
// counters. Snapshot is served from GET /metrics.
type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	garCalculations uint64
	garEmpty        uint64
	garDurationMs   uint64

	mu       sync.Mutex
	jobRuns  map[string]uint64
	jobFails map[string]uint64
}

func New() *Collector {
	return &Collector{
		jobRuns:  map[string]uint64{},
		jobFails: map[string]uint64{},
	}
}

func (c *Collector) Record(status int, duration time.Duration) {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordGAR counts one rating computation; empty marks the no-tasks outcome.
func (c *Collector) RecordGAR(empty bool, duration time.Duration) {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.garCalculations, 1)
	if empty {
		atomic.AddUint64(&c.garEmpty, 1)
	}
	atomic.AddUint64(&c.garDurationMs, uint64(duration.Milliseconds()))
}

func (c *Collector) RecordJob(jobType string, failed bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobRuns[jobType]++
	if failed {
		c.jobFails[jobType]++
	}
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	garTotal := atomic.LoadUint64(&c.garCalculations)
	garMs := atomic.LoadUint64(&c.garDurationMs)

	c.mu.Lock()
	runs := make(map[string]uint64, len(c.jobRuns))
	for k, v := range c.jobRuns {
		runs[k] = v
	}
	fails := make(map[string]uint64, len(c.jobFails))
	for k, v := range c.jobFails {
		fails[k] = v
	}
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":    total,
		"errorsTotal":      atomic.LoadUint64(&c.errorRequests),
		"rateLimitedTotal": atomic.LoadUint64(&c.rateLimited),
		"avgDurationMs":    average(totalMs, total),
		"totalDurationMs":  totalMs,
		"garCalculations":  garTotal,
		"garEmptyResults":  atomic.LoadUint64(&c.garEmpty),
		"garAvgDurationMs": average(garMs, garTotal),
		"jobRunsTotal":     runs,
		"jobFailuresTotal": fails,
	}
}

func average(sum, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return float64(sum) / float64(count)
}

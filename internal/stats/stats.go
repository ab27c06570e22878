// Package stats tracks process-wide execution counters as a standalone
// component the Stats Collector and the facade both read from.
package stats

import (
	"sync/atomic"
	"time"
)

// Outcome classifies how an execution finished, for the counter it bumps.
type Outcome int

const (
	Collected Outcome = iota
	TimedOut
	Errored
	Killed
)

// Collector holds atomic execution counters. The zero value is ready to
// use.
type Collector struct {
	total       int64
	collected   int64
	timedOut    int64
	errored     int64
	killed      int64
	concurrent  int32
	maxConcur   int32
	cpuTimeNS   int64
	memoryBytes int64
}

// New returns a ready-to-use Collector.
func New() *Collector {
	return &Collector{}
}

// Start records the beginning of an execution and returns a done func the
// caller must invoke exactly once with the outcome and elapsed wall time.
func (c *Collector) Start() (done func(outcome Outcome, wall time.Duration, peakMemoryBytes int64)) {
	current := atomic.AddInt32(&c.concurrent, 1)
	for {
		max := atomic.LoadInt32(&c.maxConcur)
		if current <= max {
			break
		}
		if atomic.CompareAndSwapInt32(&c.maxConcur, max, current) {
			break
		}
	}

	return func(outcome Outcome, wall time.Duration, peakMemoryBytes int64) {
		atomic.AddInt32(&c.concurrent, -1)
		atomic.AddInt64(&c.total, 1)
		atomic.AddInt64(&c.cpuTimeNS, wall.Nanoseconds())
		atomic.AddInt64(&c.memoryBytes, peakMemoryBytes)

		switch outcome {
		case Collected:
			atomic.AddInt64(&c.collected, 1)
		case TimedOut:
			atomic.AddInt64(&c.timedOut, 1)
		case Errored:
			atomic.AddInt64(&c.errored, 1)
		case Killed:
			atomic.AddInt64(&c.killed, 1)
		}
	}
}

// Snapshot is a point-in-time copy of the collector's counters.
type Snapshot struct {
	TotalExecutions    int64
	Collected          int64
	TimedOut           int64
	Errored            int64
	Killed             int64
	ConcurrentExecs    int32
	MaxConcurrentExecs int32
	TotalCPUTime       time.Duration
	TotalMemoryUsed    int64
}

// Snapshot reads a consistent-enough view of every counter. Individual
// fields are read independently (no global lock): a snapshot under
// concurrent load is a best-effort picture, not a transaction.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		TotalExecutions:    atomic.LoadInt64(&c.total),
		Collected:          atomic.LoadInt64(&c.collected),
		TimedOut:           atomic.LoadInt64(&c.timedOut),
		Errored:            atomic.LoadInt64(&c.errored),
		Killed:             atomic.LoadInt64(&c.killed),
		ConcurrentExecs:    atomic.LoadInt32(&c.concurrent),
		MaxConcurrentExecs: atomic.LoadInt32(&c.maxConcur),
		TotalCPUTime:       time.Duration(atomic.LoadInt64(&c.cpuTimeNS)),
		TotalMemoryUsed:    atomic.LoadInt64(&c.memoryBytes),
	}
}

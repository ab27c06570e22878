package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartAndCompleteTracksTotals(t *testing.T) {
	c := New()

	done := c.Start()
	done(Collected, 10*time.Millisecond, 1024)

	snap := c.Snapshot()
	assert.EqualValues(t, 1, snap.TotalExecutions)
	assert.EqualValues(t, 1, snap.Collected)
	assert.EqualValues(t, 0, snap.ConcurrentExecs)
	assert.Equal(t, 10*time.Millisecond, snap.TotalCPUTime)
	assert.EqualValues(t, 1024, snap.TotalMemoryUsed)
}

func TestOutcomesBumpDistinctCounters(t *testing.T) {
	c := New()

	c.Start()(TimedOut, time.Millisecond, 0)
	c.Start()(Errored, time.Millisecond, 0)
	c.Start()(Killed, time.Millisecond, 0)
	c.Start()(Collected, time.Millisecond, 0)

	snap := c.Snapshot()
	assert.EqualValues(t, 4, snap.TotalExecutions)
	assert.EqualValues(t, 1, snap.TimedOut)
	assert.EqualValues(t, 1, snap.Errored)
	assert.EqualValues(t, 1, snap.Killed)
	assert.EqualValues(t, 1, snap.Collected)
}

func TestMaxConcurrentTracksPeak(t *testing.T) {
	c := New()

	doneA := c.Start()
	doneB := c.Start()
	mid := c.Snapshot()
	assert.EqualValues(t, 2, mid.ConcurrentExecs)
	assert.EqualValues(t, 2, mid.MaxConcurrentExecs)

	doneA(Collected, time.Millisecond, 0)
	doneB(Collected, time.Millisecond, 0)

	final := c.Snapshot()
	assert.EqualValues(t, 0, final.ConcurrentExecs)
	assert.EqualValues(t, 2, final.MaxConcurrentExecs)
}

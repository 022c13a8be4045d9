package progress

import (
	"testing"
	"time"

	"github.com/doublegate/prortip/pkg/models"
)

func TestCountersRecordState(t *testing.T) {
	c := NewCounters()

	c.RecordState(models.StateOpen)
	c.RecordState(models.StateOpen)
	c.RecordState(models.StateClosed)

	if got := c.StateCount(models.StateOpen); got != 2 {
		t.Errorf("StateCount(Open) = %d, want 2", got)
	}

	if got := c.Completed.Load(); got != 3 {
		t.Errorf("Completed = %d, want 3", got)
	}
}

func TestCountersRecordError(t *testing.T) {
	c := NewCounters()

	c.RecordError(models.ErrTimeout)
	c.RecordError(models.ErrTimeout)

	if got := c.ErrorCount(models.ErrTimeout); got != 2 {
		t.Errorf("ErrorCount(Timeout) = %d, want 2", got)
	}

	if got := c.Completed.Load(); got != 0 {
		t.Errorf("Completed after errors only = %d, want 0", got)
	}
}

func TestSnapshotRateAndETA(t *testing.T) {
	c := NewCounters()
	c.Start = time.Now().Add(-10 * time.Second)

	for i := 0; i < 100; i++ {
		c.RecordState(models.StateOpen)
	}

	snap := c.Snapshot()

	if rate := snap.Rate(); rate < 9 || rate > 11 {
		t.Errorf("Rate() = %v, want ~10/s", rate)
	}

	eta := snap.ETA(200)
	if eta <= 0 {
		t.Errorf("ETA(200) = %v, want > 0", eta)
	}
}

func TestThroughputMonitorSum(t *testing.T) {
	base := time.Now()
	tick := base

	m := NewThroughputMonitor()
	m.now = func() time.Time { return tick }
	m.currentStart = tick

	m.Record(10, 1000, 1)

	tick = tick.Add(1100 * time.Millisecond) // force a roll

	m.Record(5, 500, 0)

	sum := m.Sum()
	if sum.Packets != 15 {
		t.Errorf("Sum().Packets = %d, want 15", sum.Packets)
	}

	if sum.Bytes != 1500 {
		t.Errorf("Sum().Bytes = %d, want 1500", sum.Bytes)
	}
}

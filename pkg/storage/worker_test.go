package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/doublegate/prortip/pkg/aggregator"
	"github.com/doublegate/prortip/pkg/models"
)

type recordingSink struct {
	mu      sync.Mutex
	batches [][]models.Result
}

func (r *recordingSink) SaveResults(ctx context.Context, results []models.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.batches = append(r.batches, results)

	return nil
}

func (r *recordingSink) GetResults(context.Context, models.ResultFilter) ([]models.Result, error) {
	return nil, nil
}

func (r *recordingSink) Close() error { return nil }

func (r *recordingSink) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, b := range r.batches {
		n += len(b)
	}

	return n
}

func TestWorkerDrainsOnShutdown(t *testing.T) {
	queue := aggregator.New(100)
	for i := 0; i < 10; i++ {
		_ = queue.Push(models.Result{Port: uint16(i)})
	}

	sink := &recordingSink{}
	w := NewWorker(queue, sink)
	w.FlushInterval = time.Hour // don't let the ticker fire during the test

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	queue.Shutdown()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Worker.Run did not return after cancellation")
	}

	if sink.total() != 10 {
		t.Errorf("sink persisted %d results, want 10", sink.total())
	}
}

// halvingMonitor reports a resource monitor that always halves the
// requested batch size, mirroring pkg/resources.Monitor under pressure.
type halvingMonitor struct{}

func (halvingMonitor) AdjustBatch(batch int) int { return batch / 2 }

func TestWorkerResourceMonitorShrinksBatchSize(t *testing.T) {
	const queued = 200 // between DefaultBatchSize/2 and DefaultBatchSize

	queue := aggregator.New(queued)
	for i := 0; i < queued; i++ {
		_ = queue.Push(models.Result{Port: uint16(i)})
	}

	sink := &recordingSink{}
	w := NewWorker(queue, sink)
	w.ResourceMonitor = halvingMonitor{}
	w.FlushInterval = time.Hour // drive flushes manually via drainBatchAndPersist

	w.drainBatchAndPersist()

	// Without the resource monitor this would drain all 200 in one
	// pass; halved to DefaultBatchSize/2, only that many come out.
	if got := sink.total(); got != DefaultBatchSize/2 {
		t.Errorf("sink persisted %d results, want %d", got, DefaultBatchSize/2)
	}
}

func TestWorkerPeriodicFlush(t *testing.T) {
	queue := aggregator.New(100)
	_ = queue.Push(models.Result{Port: 1})

	sink := &recordingSink{}
	w := NewWorker(queue, sink)
	w.FlushInterval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx)

	deadline := time.After(2 * time.Second)
	for sink.total() == 0 {
		select {
		case <-deadline:
			t.Fatal("periodic flush never persisted the queued result")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

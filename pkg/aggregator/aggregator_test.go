package aggregator

import (
	"testing"

	"github.com/doublegate/prortip/pkg/models"
)

func TestQueuePushAndDrainBatch(t *testing.T) {
	q := New(10)

	for i := 0; i < 5; i++ {
		if err := q.Push(models.Result{Port: uint16(i)}); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	if q.Size() != 5 {
		t.Errorf("Size() = %d, want 5", q.Size())
	}

	batch := q.DrainBatch(3)
	if len(batch) != 3 {
		t.Fatalf("DrainBatch(3) returned %d, want 3", len(batch))
	}

	if q.Size() != 2 {
		t.Errorf("Size() after drain = %d, want 2", q.Size())
	}
}

func TestQueuePushBackpressureAtCapacity(t *testing.T) {
	q := New(2)

	if err := q.Push(models.Result{}); err != nil {
		t.Fatalf("Push 1: %v", err)
	}

	if err := q.Push(models.Result{}); err != nil {
		t.Fatalf("Push 2: %v", err)
	}

	if err := q.Push(models.Result{}); err != ErrBackpressure {
		t.Errorf("Push 3 error = %v, want ErrBackpressure", err)
	}
}

func TestQueueDrainAllEmptiesQueue(t *testing.T) {
	q := New(10)

	for i := 0; i < 7; i++ {
		_ = q.Push(models.Result{})
	}

	all := q.DrainAll()
	if len(all) != 7 {
		t.Fatalf("DrainAll returned %d, want 7", len(all))
	}

	if q.Size() != 0 {
		t.Errorf("Size() after DrainAll = %d, want 0", q.Size())
	}
}

func TestQueuePushAfterShutdown(t *testing.T) {
	q := New(10)
	q.Shutdown()

	if err := q.Push(models.Result{}); err != ErrShutdown {
		t.Errorf("Push after shutdown error = %v, want ErrShutdown", err)
	}

	if !q.ShuttingDown() {
		t.Error("ShuttingDown() = false, want true")
	}
}

func TestQueueDrainBatchFewerThanRequested(t *testing.T) {
	q := New(10)
	_ = q.Push(models.Result{})
	_ = q.Push(models.Result{})

	batch := q.DrainBatch(5)
	if len(batch) != 2 {
		t.Errorf("DrainBatch(5) returned %d, want 2", len(batch))
	}
}

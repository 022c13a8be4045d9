package sender

import (
	"errors"
	"net"
	"testing"
)

func TestBatchFlushSendsEverything(t *testing.T) {
	var sent []outboundPacket

	b := NewBatch(func(pkts []outboundPacket) (int, error) {
		sent = append(sent, pkts...)
		return len(pkts), nil
	})

	dst := net.ParseIP("192.0.2.1")
	for i := 0; i < 10; i++ {
		if err := b.Add(dst, []byte{byte(i)}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	n, err := b.Flush(3)
	if err != nil {
		t.Fatalf("Flush error = %v", err)
	}

	if n != 10 {
		t.Errorf("Flush sent = %d, want 10", n)
	}

	if len(sent) != 10 {
		t.Errorf("sendFunc received %d packets, want 10", len(sent))
	}
}

func TestBatchFlushRetriesPartialSend(t *testing.T) {
	calls := 0

	b := NewBatch(func(pkts []outboundPacket) (int, error) {
		calls++
		if calls == 1 {
			return len(pkts) - 2, nil // tail of 2 unsent
		}

		return len(pkts), nil
	})

	dst := net.ParseIP("192.0.2.1")
	for i := 0; i < 5; i++ {
		_ = b.Add(dst, []byte{byte(i)})
	}

	n, err := b.Flush(3)
	if err != nil {
		t.Fatalf("Flush error = %v", err)
	}

	if n != 5 {
		t.Errorf("Flush sent = %d, want 5", n)
	}

	if calls != 2 {
		t.Errorf("sendFunc called %d times, want 2", calls)
	}
}

func TestBatchFlushExhaustsRetries(t *testing.T) {
	wantErr := errors.New("boom")

	b := NewBatch(func(pkts []outboundPacket) (int, error) {
		return 0, wantErr
	})

	dst := net.ParseIP("192.0.2.1")
	_ = b.Add(dst, []byte{1})
	_ = b.Add(dst, []byte{2})

	n, err := b.Flush(2)
	if err != wantErr {
		t.Errorf("Flush error = %v, want %v", err, wantErr)
	}

	if n != 0 {
		t.Errorf("Flush sent = %d, want 0", n)
	}
}

func TestBatchAutoFlushesAtMaxSize(t *testing.T) {
	flushes := 0

	b := NewBatch(func(pkts []outboundPacket) (int, error) {
		flushes++
		return len(pkts), nil
	})

	dst := net.ParseIP("192.0.2.1")
	for i := 0; i < MaxBatchSize; i++ {
		if err := b.Add(dst, []byte{byte(i)}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	if flushes != 1 {
		t.Errorf("flushes = %d, want 1 (auto-flush at MaxBatchSize)", flushes)
	}
}

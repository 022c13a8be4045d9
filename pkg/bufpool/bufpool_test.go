package bufpool

import "testing"

func TestAcquireReleaseHitRate(t *testing.T) {
	p := New()

	h := p.Acquire(100)
	if len(h.Buf) != 100 {
		t.Fatalf("len(Buf) = %d, want 100", len(h.Buf))
	}

	h.Release()

	h2 := p.Acquire(200)
	if cap(h2.Buf) != Tier4K {
		t.Errorf("cap(Buf) = %d, want %d (reused tier-4K buffer)", cap(h2.Buf), Tier4K)
	}

	if p.Stats().Hits.Load() != 1 {
		t.Errorf("Hits = %d, want 1", p.Stats().Hits.Load())
	}

	if p.Stats().Misses.Load() != 1 {
		t.Errorf("Misses = %d, want 1", p.Stats().Misses.Load())
	}
}

func TestAcquireOversizedBypassesPool(t *testing.T) {
	p := New()

	h := p.Acquire(Tier64K + 1)
	if h.tier != -1 {
		t.Errorf("tier = %d, want -1 (bypass)", h.tier)
	}

	h.Release() // must not panic

	if p.Stats().Returns.Load() != 0 {
		t.Errorf("Returns = %d, want 0 for bypassed buffer", p.Stats().Returns.Load())
	}
}

func TestReleaseClearsBuffer(t *testing.T) {
	p := New()

	h := p.Acquire(16)
	copy(h.Buf, []byte("secret"))
	h.Release()

	h2 := p.Acquire(16)
	for i, b := range h2.Buf {
		if b != 0 {
			t.Fatalf("Buf[%d] = %d, want 0 (cleared on release)", i, b)
		}
	}
}

func TestHitRate(t *testing.T) {
	p := New()

	if got := p.Stats().HitRate(); got != 0 {
		t.Errorf("HitRate() on empty pool = %v, want 0", got)
	}

	p.Acquire(10).Release()
	p.Acquire(10)

	if got := p.Stats().HitRate(); got != 0.5 {
		t.Errorf("HitRate() = %v, want 0.5", got)
	}
}

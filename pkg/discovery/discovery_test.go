package discovery

import (
	"context"
	"testing"
	"time"
)

type fakeProber struct {
	name string
	live bool
	err  error
	wait time.Duration
}

func (f *fakeProber) Name() string { return f.name }

func (f *fakeProber) Probe(ctx context.Context, host string, timeout time.Duration) (bool, error) {
	if f.wait > 0 {
		select {
		case <-time.After(f.wait):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	return f.live, f.err
}

func TestEngineRunMarksLiveWhenAnyProberClassifies(t *testing.T) {
	e := New([]Prober{
		&fakeProber{name: "a", live: false},
		&fakeProber{name: "b", live: true},
	}, time.Second, 2)

	hosts := make(chan string, 1)
	hosts <- "10.0.0.1"
	close(hosts)

	results := e.Run(context.Background(), hosts)

	var got []Result
	for r := range results {
		got = append(got, r)
	}

	if len(got) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(got))
	}

	if !got[0].Live {
		t.Errorf("Live = false, want true")
	}
}

func TestEngineRunSkipsWhenAllProbersTimeOut(t *testing.T) {
	e := New([]Prober{
		&fakeProber{name: "a", live: false},
		&fakeProber{name: "b", live: false},
	}, time.Second, 2)

	hosts := make(chan string, 1)
	hosts <- "10.0.0.1"
	close(hosts)

	results := e.Run(context.Background(), hosts)

	r := <-results

	if r.Live {
		t.Errorf("Live = true, want false")
	}
}

func TestEngineRunMultipleHostsBoundedParallelism(t *testing.T) {
	e := New([]Prober{&fakeProber{name: "a", live: true}}, time.Second, 2)

	hosts := make(chan string, 5)
	for i := 0; i < 5; i++ {
		hosts <- "10.0.0.1"
	}
	close(hosts)

	results := e.Run(context.Background(), hosts)

	count := 0
	for r := range results {
		if !r.Live {
			t.Errorf("Live = false, want true")
		}
		count++
	}

	if count != 5 {
		t.Errorf("count = %d, want 5", count)
	}
}

func TestEngineRunNoProbersNeverLive(t *testing.T) {
	e := New(nil, time.Second, 1)

	hosts := make(chan string, 1)
	hosts <- "10.0.0.1"
	close(hosts)

	r := <-e.Run(context.Background(), hosts)

	if r.Live {
		t.Errorf("Live = true, want false (no probers configured)")
	}
}

func TestEngineRunRespectsContextCancellation(t *testing.T) {
	e := New([]Prober{&fakeProber{name: "slow", live: true, wait: time.Second}}, 5*time.Second, 1)

	ctx, cancel := context.WithCancel(context.Background())
	hosts := make(chan string)

	results := e.Run(ctx, hosts)
	cancel()

	select {
	case _, ok := <-results:
		if ok {
			t.Error("expected channel closed after cancellation, got a result")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not respect context cancellation")
	}
}

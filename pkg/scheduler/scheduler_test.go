package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/doublegate/prortip/pkg/aggregator"
	"github.com/doublegate/prortip/pkg/models"
	"github.com/doublegate/prortip/pkg/ratelimit"
)

type fakeProber struct {
	mu    sync.Mutex
	calls []models.HostPort
	fail  map[string]bool
}

func (f *fakeProber) Probe(_ context.Context, host string, port uint16, scanType models.ScanType, _ time.Duration) (models.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, models.HostPort{Host: host, Port: port, Type: scanType})

	if f.fail[host] {
		return models.Result{}, models.NewProbeError(models.KindTimeout, host, port, errors.New("simulated timeout"))
	}

	return models.Result{TargetIP: host, Port: port, Type: scanType, State: models.StateOpen}, nil
}

func (f *fakeProber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

func newTestScheduler(prober *fakeProber, queueCap int) *Scheduler {
	rateCtl := ratelimit.NewController(1_000_000, 1_000_000, 1000)

	return New(prober, rateCtl, aggregator.New(queueCap))
}

func TestSchedulerRunProbesEveryWorkItem(t *testing.T) {
	prober := &fakeProber{fail: map[string]bool{}}
	s := newTestScheduler(prober, 1000)

	ports, err := models.ParsePortRange("80-82")
	if err != nil {
		t.Fatalf("ParsePortRange: %v", err)
	}

	cfg := Config{ScanType: models.ScanSYN, Timing: models.TimingNormal, Parallelism: 4}

	scanID, status, err := s.Run(context.Background(), []string{"192.0.2.1/30"}, ports, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if status != StatusSuccess {
		t.Errorf("status = %v, want %v", status, StatusSuccess)
	}

	if scanID == "" {
		t.Error("scanID is empty")
	}

	// /30 yields 2 usable hosts x 3 ports = 6 probes.
	if got := prober.callCount(); got != 6 {
		t.Errorf("probe call count = %d, want 6", got)
	}

	results := s.Queue.DrainAll()
	if len(results) != 6 {
		t.Errorf("queued results = %d, want 6", len(results))
	}

	for _, r := range results {
		if r.ScanID != scanID {
			t.Errorf("result ScanID = %q, want %q", r.ScanID, scanID)
		}
	}
}

func TestSchedulerRunRecordsFailuresWithoutQueuing(t *testing.T) {
	prober := &fakeProber{fail: map[string]bool{"192.0.2.5": true}}
	s := newTestScheduler(prober, 1000)

	ports, err := models.ParsePortRange("80")
	if err != nil {
		t.Fatalf("ParsePortRange: %v", err)
	}

	cfg := Config{ScanType: models.ScanSYN, Timing: models.TimingNormal, Parallelism: 2}

	_, status, err := s.Run(context.Background(), []string{"192.0.2.5"}, ports, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if status != StatusSuccess {
		t.Errorf("status = %v, want %v", status, StatusSuccess)
	}

	if got := len(s.Queue.DrainAll()); got != 0 {
		t.Errorf("queued results = %d, want 0 for a failed probe", got)
	}

	if got := s.Counters.ErrorCount(models.ErrTimeout); got != 1 {
		t.Errorf("timeout error count = %d, want 1", got)
	}
}

func TestSchedulerRunHonorsCancellation(t *testing.T) {
	prober := &fakeProber{fail: map[string]bool{}}
	s := newTestScheduler(prober, 1000)

	ports, err := models.ParsePortRange("1-65535")
	if err != nil {
		t.Fatalf("ParsePortRange: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := Config{ScanType: models.ScanSYN, Timing: models.TimingNormal, Parallelism: 4}

	_, status, err := s.Run(ctx, []string{"10.0.0.0/16"}, ports, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if status != StatusCancelled {
		t.Errorf("status = %v, want %v", status, StatusCancelled)
	}
}

func TestSchedulerRunUsesProvidedScanID(t *testing.T) {
	prober := &fakeProber{fail: map[string]bool{}}
	s := newTestScheduler(prober, 10)

	ports, err := models.ParsePortRange("80")
	if err != nil {
		t.Fatalf("ParsePortRange: %v", err)
	}

	cfg := Config{ScanType: models.ScanSYN, Timing: models.TimingNormal, Parallelism: 1, ScanID: "fixed-id"}

	scanID, _, err := s.Run(context.Background(), []string{"192.0.2.9"}, ports, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if scanID != "fixed-id" {
		t.Errorf("scanID = %q, want %q", scanID, "fixed-id")
	}

	if got := s.CurrentScanID(); got != "fixed-id" {
		t.Errorf("CurrentScanID = %q, want %q", got, "fixed-id")
	}
}

func TestSchedulerRunNoHostsIsSuccess(t *testing.T) {
	prober := &fakeProber{fail: map[string]bool{}}
	s := newTestScheduler(prober, 10)

	ports, err := models.ParsePortRange("80")
	if err != nil {
		t.Fatalf("ParsePortRange: %v", err)
	}

	cfg := Config{ScanType: models.ScanSYN, Timing: models.TimingNormal, Parallelism: 1}

	_, status, err := s.Run(context.Background(), nil, ports, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if status != StatusSuccess {
		t.Errorf("status = %v, want %v", status, StatusSuccess)
	}

	if prober.callCount() != 0 {
		t.Errorf("probe call count = %d, want 0", prober.callCount())
	}
}

// alwaysOneMonitor reports room for exactly one in-flight probe
// regardless of the requested parallelism, so every dispatch after the
// first must wait for a slot to free up.
type alwaysOneMonitor struct{}

func (alwaysOneMonitor) AdjustParallelism(int) int { return 1 }

func TestSchedulerRunThrottlesOnResourceMonitor(t *testing.T) {
	prober := &fakeProber{fail: map[string]bool{}}
	s := newTestScheduler(prober, 100)

	ports, err := models.ParsePortRange("80-84")
	if err != nil {
		t.Fatalf("ParsePortRange: %v", err)
	}

	cfg := Config{
		ScanType: models.ScanSYN, Timing: models.TimingNormal,
		Parallelism: 10, ResourceMonitor: alwaysOneMonitor{},
	}

	// /30 yields 2 usable hosts x 5 ports = 10 probes.
	_, status, err := s.Run(context.Background(), []string{"192.0.2.1/30"}, ports, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if status != StatusSuccess {
		t.Errorf("status = %v, want %v", status, StatusSuccess)
	}

	if got := prober.callCount(); got != 10 {
		t.Errorf("probe call count = %d, want 10", got)
	}
}

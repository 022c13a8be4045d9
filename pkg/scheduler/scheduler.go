/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package scheduler implements the top-level scan state machine:
// target expansion, optional host discovery, rate-limited/circuit-
// broken probing, and aggregation into one end-to-end scan run.
package scheduler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/doublegate/prortip/pkg/aggregator"
	"github.com/doublegate/prortip/pkg/breaker"
	"github.com/doublegate/prortip/pkg/discovery"
	"github.com/doublegate/prortip/pkg/models"
	"github.com/doublegate/prortip/pkg/progress"
	"github.com/doublegate/prortip/pkg/ratelimit"
	"github.com/doublegate/prortip/pkg/targets"
)

// Status is the final disposition of one scan invocation.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Prober is the collaborator issuing one probe per (host, port) work
// item; pkg/probe's RawProber satisfies it directly, and a thin adapter
// can wrap ConnectProber for scan types that don't need a scanType arg.
type Prober interface {
	Probe(ctx context.Context, host string, port uint16, scanType models.ScanType, timeout time.Duration) (models.Result, error)
}

// ResourceMonitor reports system resource pressure so Run can throttle
// how many work items it keeps in flight without restarting the scan.
// *pkg/resources.Monitor satisfies this directly.
type ResourceMonitor interface {
	AdjustParallelism(parallelism int) int
}

// Config tunes one scan invocation.
type Config struct {
	ScanType        models.ScanType
	Timing          models.TimingTemplate
	DiscoveryEngine *discovery.Engine // nil disables discovery
	Parallelism     int
	ProbeTimeout    time.Duration // overrides the timing template's initial timeout when nonzero
	ScanID          string        // if set, used instead of minting a random one; lets a caller know the ID before Run returns
	ResourceMonitor ResourceMonitor // nil disables adaptive throttling
}

// resourceRecheckInterval is how often a dispatch stalled on resource
// pressure re-polls ResourceMonitor before trying again.
const resourceRecheckInterval = 200 * time.Millisecond

// Scheduler runs one scan invocation end to end: expand targets,
// optionally discover live hosts, probe every (host, port) work item
// under rate control and circuit breaking, and push results to the
// aggregator without ever blocking a worker on storage I/O.
type Scheduler struct {
	Prober   Prober
	RateCtl  *ratelimit.Controller
	Breaker  *breaker.Breaker
	Queue    *aggregator.Queue
	Counters *progress.Counters

	cancelled atomic.Bool
	scanID    atomic.Value // string, set at the start of Run
}

// New constructs a Scheduler with a fresh per-target circuit breaker and
// progress counters.
func New(prober Prober, rateCtl *ratelimit.Controller, queue *aggregator.Queue) *Scheduler {
	return &Scheduler{
		Prober:   prober,
		RateCtl:  rateCtl,
		Breaker:  breaker.New(breaker.DefaultConfig()),
		Queue:    queue,
		Counters: progress.NewCounters(),
	}
}

// Cancel requests cooperative shutdown: in-flight probes are allowed
// to complete or time out, but no new work items are dispatched.
func (s *Scheduler) Cancel() {
	s.cancelled.Store(true)
}

// CurrentScanID returns the identifier of the scan currently running,
// or "" if Run hasn't been called yet. Safe to call concurrently with
// Run, e.g. from a status-reporting HTTP handler.
func (s *Scheduler) CurrentScanID() string {
	id, _ := s.scanID.Load().(string)
	return id
}

// NewScanID mints an opaque scan identifier: random bytes, hex encoded.
func NewScanID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)

	return hex.EncodeToString(buf)
}

// Run expands hostSpecs x ports into work items, runs discovery if
// configured, and probes every surviving item, reporting outcomes to
// the rate controller, circuit breaker, and aggregator. It returns
// once every work item has been dispatched and either completed or
// abandoned due to cancellation.
func (s *Scheduler) Run(ctx context.Context, hostSpecs []string, ports *models.PortRange, cfg Config) (scanID string, status Status, err error) {
	scanID = cfg.ScanID
	if scanID == "" {
		scanID = NewScanID()
	}

	s.scanID.Store(scanID)

	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}

	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = cfg.Timing.Profile().InitialTimeout
	}

	hosts, err := s.expandHosts(ctx, hostSpecs, cfg)
	if err != nil {
		return scanID, StatusFailed, err
	}

	if len(hosts) == 0 {
		return scanID, StatusSuccess, nil
	}

	work := targets.WorkItems(ctx, toHostChannel(hosts), ports, cfg.ScanType)

	var wg sync.WaitGroup

	sem := make(chan struct{}, cfg.Parallelism)
	var inFlight atomic.Int32

	for item := range work {
		if s.shuttingDown(ctx) {
			break
		}

		if s.waitForCapacity(ctx, cfg, &inFlight) {
			break
		}

		sem <- struct{}{}
		inFlight.Add(1)
		wg.Add(1)

		go func(item models.HostPort) {
			defer wg.Done()
			defer func() { <-sem; inFlight.Add(-1) }()

			s.runOne(ctx, scanID, item, timeout)
		}(item)
	}

	wg.Wait()
	s.Queue.Shutdown()

	if s.cancelled.Load() {
		return scanID, StatusCancelled, nil
	}

	return scanID, StatusSuccess, nil
}

// shuttingDown folds an externally cancelled context into the
// cooperative shutdown flag the work-item loop checks every iteration.
func (s *Scheduler) shuttingDown(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		s.cancelled.Store(true)
	default:
	}

	return s.cancelled.Load()
}

// waitForCapacity blocks dispatch of the next work item while
// cfg.ResourceMonitor reports fewer in-flight slots than are currently
// occupied, re-polling until capacity frees up or ctx ends. Returns
// true if the caller should stop dispatching entirely.
func (s *Scheduler) waitForCapacity(ctx context.Context, cfg Config, inFlight *atomic.Int32) bool {
	if cfg.ResourceMonitor == nil {
		return false
	}

	for {
		allowed := cfg.ResourceMonitor.AdjustParallelism(cfg.Parallelism)
		if allowed <= 0 {
			allowed = 1
		}

		if int(inFlight.Load()) < allowed {
			return false
		}

		select {
		case <-ctx.Done():
			return true
		case <-time.After(resourceRecheckInterval):
		}
	}
}

func (s *Scheduler) expandHosts(ctx context.Context, hostSpecs []string, cfg Config) ([]string, error) {
	var resolved []string

	for _, spec := range hostSpecs {
		target, err := targets.ParseTarget(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("scheduler: parse target %q: %w", spec, err)
		}

		for host := range targets.Hosts(ctx, target) {
			resolved = append(resolved, host.String())
		}
	}

	if cfg.DiscoveryEngine == nil {
		return resolved, nil
	}

	return s.runDiscovery(ctx, resolved, cfg.DiscoveryEngine), nil
}

func (s *Scheduler) runDiscovery(ctx context.Context, hosts []string, engine *discovery.Engine) []string {
	in := make(chan string, len(hosts))
	for _, h := range hosts {
		in <- h
	}
	close(in)

	var live []string

	for result := range engine.Run(ctx, in) {
		if result.Live {
			live = append(live, result.Host)
		}
	}

	return live
}

func toHostChannel(hosts []string) <-chan net.IP {
	ch := make(chan net.IP, len(hosts))

	for _, h := range hosts {
		ip := net.ParseIP(h)
		if ip == nil {
			continue
		}

		ch <- ip
	}

	close(ch)

	return ch
}

// runOne executes one (host, port) work item: consult the circuit
// breaker and per-target backoff state, wait for a rate-control slot,
// probe, and report the outcome to the breaker, rate controller, and
// aggregator.
func (s *Scheduler) runOne(ctx context.Context, scanID string, item models.HostPort, timeout time.Duration) {
	if !s.Breaker.ShouldAttempt(item.Host) {
		return
	}

	if s.RateCtl.ShouldBackoff(item.Host) {
		return
	}

	s.RateCtl.NextBatch()

	if err := s.RateCtl.Wait(ctx, 1); err != nil {
		return
	}

	result, err := s.Prober.Probe(ctx, item.Host, item.Port, item.Type, timeout)
	if err != nil {
		s.Breaker.RecordFailure(item.Host)
		s.RateCtl.RecordTimeout()
		s.Counters.RecordError(errorCategory(err))

		return
	}

	result.ScanID = scanID

	s.Breaker.RecordSuccess(item.Host)
	s.RateCtl.RecordSuccess()
	s.RateCtl.RecordSent(1)
	s.Counters.RecordState(result.State)

	s.pushWithBackoff(ctx, result)
}

// pushWithBackoff retries a backpressured push with a small sleep that
// doubles up to a ceiling.
func (s *Scheduler) pushWithBackoff(ctx context.Context, result models.Result) {
	const maxBackoff = 50 * time.Millisecond

	backoff := time.Millisecond

	for {
		err := s.Queue.Push(result)
		if err == nil || err == aggregator.ErrShutdown {
			return
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}

		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

// errorCategory maps a probe's ErrorKind onto the coarser bucket the
// progress counters tally.
func errorCategory(err error) models.ErrorCategory {
	probeErr, ok := err.(*models.ProbeError)
	if !ok {
		return models.ErrOther
	}

	switch probeErr.Kind {
	case models.KindConnectionRefused:
		return models.ErrConnectionRefused
	case models.KindTimeout:
		return models.ErrTimeout
	case models.KindNetUnreachable:
		return models.ErrNetUnreachable
	case models.KindHostUnreachable:
		return models.ErrHostUnreachable
	case models.KindPermissionError:
		return models.ErrPermissionDenied
	case models.KindResourceExhausted:
		return models.ErrFDExhaustion
	default:
		return models.ErrOther
	}
}

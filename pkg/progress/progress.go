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

// Package progress tracks per-scan atomic counters (completed probes,
// port states, error categories) and a 60-bucket sliding-window
// throughput monitor.
package progress

import (
	"sync/atomic"
	"time"

	"github.com/doublegate/prortip/pkg/models"
)

// Counters holds the atomic totals a scan accumulates. All fields use
// relaxed ordering (plain atomic.Int64); only the aggregator shutdown
// flag and the ICMP monitor's running flag need release/acquire.
type Counters struct {
	Completed atomic.Int64
	Start     time.Time

	stateCounts map[models.PortState]*atomic.Int64
	errorCounts map[models.ErrorCategory]*atomic.Int64
}

// NewCounters constructs a Counters with its start timestamp set to now.
func NewCounters() *Counters {
	c := &Counters{
		Start:       time.Now(),
		stateCounts: make(map[models.PortState]*atomic.Int64),
		errorCounts: make(map[models.ErrorCategory]*atomic.Int64),
	}

	for _, s := range []models.PortState{models.StateOpen, models.StateClosed, models.StateFiltered, models.StateUnknown} {
		c.stateCounts[s] = new(atomic.Int64)
	}

	for _, e := range []models.ErrorCategory{
		models.ErrConnectionRefused, models.ErrTimeout, models.ErrNetUnreachable,
		models.ErrHostUnreachable, models.ErrPermissionDenied, models.ErrFDExhaustion, models.ErrOther,
	} {
		c.errorCounts[e] = new(atomic.Int64)
	}

	return c
}

// RecordState increments a port-state counter and the completed total.
func (c *Counters) RecordState(s models.PortState) {
	c.Completed.Add(1)

	if ctr, ok := c.stateCounts[s]; ok {
		ctr.Add(1)
	}
}

// RecordError increments an error-category counter.
func (c *Counters) RecordError(e models.ErrorCategory) {
	if ctr, ok := c.errorCounts[e]; ok {
		ctr.Add(1)
	}
}

// StateCount returns the current count for a port state.
func (c *Counters) StateCount(s models.PortState) int64 {
	if ctr, ok := c.stateCounts[s]; ok {
		return ctr.Load()
	}

	return 0
}

// ErrorCount returns the current count for an error category.
func (c *Counters) ErrorCount(e models.ErrorCategory) int64 {
	if ctr, ok := c.errorCounts[e]; ok {
		return ctr.Load()
	}

	return 0
}

// Snapshot is a point-in-time rendering of the counters, for the status
// API and rate/ETA calculations.
type Snapshot struct {
	Completed int64
	Elapsed   time.Duration
	States    map[models.PortState]int64
	Errors    map[models.ErrorCategory]int64
}

// Snapshot reads every counter once.
func (c *Counters) Snapshot() Snapshot {
	states := make(map[models.PortState]int64, len(c.stateCounts))
	for s, ctr := range c.stateCounts {
		states[s] = ctr.Load()
	}

	errs := make(map[models.ErrorCategory]int64, len(c.errorCounts))
	for e, ctr := range c.errorCounts {
		errs[e] = ctr.Load()
	}

	return Snapshot{
		Completed: c.Completed.Load(),
		Elapsed:   time.Since(c.Start),
		States:    states,
		Errors:    errs,
	}
}

// Rate returns completed probes per second averaged over the snapshot's
// whole elapsed window (Completed / Elapsed). It is a plain cumulative
// average; no EWMA smoothing is applied. A zero elapsed window returns 0.
func (s Snapshot) Rate() float64 {
	secs := s.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}

	return float64(s.Completed) / secs
}

// ETA estimates remaining time to reach total, given the snapshot's
// current rate. Returns 0 if the rate is 0 or total is already reached.
func (s Snapshot) ETA(total int64) time.Duration {
	rate := s.Rate()
	if rate <= 0 || s.Completed >= total {
		return 0
	}

	remaining := float64(total - s.Completed)

	return time.Duration(remaining/rate) * time.Second
}

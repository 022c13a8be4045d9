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

package ratelimit

import (
	"sync"
	"time"

	"github.com/doublegate/prortip/pkg/models"
)

const (
	aimdIncreaseWindow = 100 * time.Millisecond
	aimdIncreaseFactor = 1.01
	aimdDecreaseFactor = 0.5
	aimdDecreaseStreak = 3

	// minSoftRateFloor is the absolute floor a soft rate is never
	// clamped below, regardless of initialRate: a rate of 0 would make
	// Controller.NextBatch hand the token bucket a zero limit, and
	// Wait/WaitN would then block forever.
	minSoftRateFloor = 1.0

	// minSoftRateFraction derives a per-controller minimum from
	// initialRate so a controller started at a high rate still backs
	// off by orders of magnitude, not just down to the absolute floor.
	minSoftRateFraction = 0.01
)

// AIMD maintains a soft rate that climbs ~1%/100ms on success, up to max,
// and halves after three consecutive timeouts down to a configured
// minimum, plus the per-target exponential backoff layered underneath it.
type AIMD struct {
	mu            sync.Mutex
	softRate      float64
	minRate       float64
	maxRate       float64
	lastIncrease  time.Time
	timeoutStreak int
	targets       map[string]*models.BackoffState
	now           func() time.Time
}

// NewAIMD constructs an AIMD controller starting at initialRate,
// climbing toward maxRate and never decreasing below a floor derived
// from initialRate (see minSoftRateFraction/minSoftRateFloor).
func NewAIMD(initialRate, maxRate float64) *AIMD {
	minRate := initialRate * minSoftRateFraction
	if minRate < minSoftRateFloor {
		minRate = minSoftRateFloor
	}

	return &AIMD{
		softRate:     initialRate,
		minRate:      minRate,
		maxRate:      maxRate,
		lastIncrease: time.Now(),
		targets:      make(map[string]*models.BackoffState),
		now:          time.Now,
	}
}

// SoftRate returns the current soft rate in packets/sec.
func (a *AIMD) SoftRate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.softRate
}

// RecordSuccess raises the soft rate by ~1% once per 100ms window and
// resets the timeout streak.
func (a *AIMD) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.timeoutStreak = 0

	now := a.now()
	if now.Sub(a.lastIncrease) < aimdIncreaseWindow {
		return
	}

	a.lastIncrease = now
	a.softRate *= aimdIncreaseFactor

	if a.softRate > a.maxRate {
		a.softRate = a.maxRate
	}
}

// RecordTimeout increments the timeout streak; on the third consecutive
// timeout the soft rate is halved and the streak resets.
func (a *AIMD) RecordTimeout() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.timeoutStreak++

	if a.timeoutStreak >= aimdDecreaseStreak {
		a.softRate *= aimdDecreaseFactor
		if a.softRate < a.minRate {
			a.softRate = a.minRate
		}

		a.timeoutStreak = 0
	}
}

// RecordAdminProhibited bumps target's backoff level and backoff_until
// after the ICMP monitor publishes an admin-prohibited signal for it.
func (a *AIMD) RecordAdminProhibited(target string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.targets[target]
	if !ok {
		b = &models.BackoffState{}
		a.targets[target] = b
	}

	b.Bump(a.now())
}

// ShouldBackoff reports whether target is still within its backoff
// window; the scheduler refuses to emit further probes to it until false.
func (a *AIMD) ShouldBackoff(target string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.targets[target]
	if !ok {
		return false
	}

	return b.Blocked(a.now())
}

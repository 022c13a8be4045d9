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

// Package breaker implements a per-target circuit breaker: a concurrent
// map of Closed/Open/HalfOpen state machines keyed by target IP.
package breaker

import (
	"sync"
	"time"

	"github.com/doublegate/prortip/pkg/models"
)

// Config holds the breaker's tunable thresholds.
type Config struct {
	FailureThreshold int           // F: consecutive failures to open from Closed
	SuccessThreshold int           // S: successes in HalfOpen to close
	HalfOpenMax      int           // H: max attempts admitted while HalfOpen
	OpenTimeout      time.Duration // τ: cooldown before Open -> HalfOpen
}

// DefaultConfig mirrors common circuit-breaker defaults: 5 failures trip
// it, 2 successes in half-open close it, half-open admits 3 attempts,
// 30s cooldown.
func DefaultConfig() Config {
	return Config{FailureThreshold: 5, SuccessThreshold: 2, HalfOpenMax: 3, OpenTimeout: 30 * time.Second}
}

// Breaker is safe for concurrent use from many probe workers.
type Breaker struct {
	cfg Config

	mu      sync.Mutex
	records map[string]*models.CircuitRecord
	now     func() time.Time
}

// New constructs a Breaker with cfg's thresholds.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg, records: make(map[string]*models.CircuitRecord), now: time.Now}
}

func (b *Breaker) recordLocked(target string) *models.CircuitRecord {
	r, ok := b.records[target]
	if !ok {
		r = &models.CircuitRecord{State: models.CircuitClosed}
		b.records[target] = r
	}

	return r
}

// ShouldAttempt implements the per-target admission rule: Closed always
// admits, Open refuses until its cooldown elapses, and HalfOpen admits a
// bounded number of trial attempts.
func (b *Breaker) ShouldAttempt(target string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := b.recordLocked(target)

	switch r.State {
	case models.CircuitClosed:
		return true
	case models.CircuitOpen:
		if b.now().After(r.OpenedAt.Add(b.cfg.OpenTimeout)) || b.now().Equal(r.OpenedAt.Add(b.cfg.OpenTimeout)) {
			r.State = models.CircuitHalfOpen
			r.FailureCount = 0
			r.SuccessCount = 0

			return true
		}

		return false
	case models.CircuitHalfOpen:
		return r.SuccessCount+r.FailureCount < b.cfg.HalfOpenMax
	default:
		return false
	}
}

// RecordSuccess increments the success counter; in HalfOpen, reaching S
// successes closes the circuit; in Closed, it also resets the failure
// counter.
func (b *Breaker) RecordSuccess(target string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := b.recordLocked(target)
	r.SuccessCount++

	switch r.State {
	case models.CircuitHalfOpen:
		if r.SuccessCount >= b.cfg.SuccessThreshold {
			r.State = models.CircuitClosed
			r.FailureCount = 0
			r.SuccessCount = 0
		}
	case models.CircuitClosed:
		r.FailureCount = 0
	}
}

// RecordFailure increments the failure counter; in Closed, reaching F
// failures opens the circuit; in HalfOpen, any failure re-opens it.
func (b *Breaker) RecordFailure(target string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := b.recordLocked(target)
	r.FailureCount++
	r.LastFailure = b.now()

	switch r.State {
	case models.CircuitClosed:
		if r.FailureCount >= b.cfg.FailureThreshold {
			r.State = models.CircuitOpen
			r.OpenedAt = b.now()
		}
	case models.CircuitHalfOpen:
		r.State = models.CircuitOpen
		r.OpenedAt = b.now()
		r.FailureCount = 0
		r.SuccessCount = 0
	}
}

// State returns a target's current circuit state, Closed if unseen.
func (b *Breaker) State(target string) models.CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r, ok := b.records[target]; ok {
		return r.State
	}

	return models.CircuitClosed
}

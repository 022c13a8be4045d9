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

// Package ratelimit layers an adaptive batch sampler over a
// golang.org/x/time/rate token bucket: the sampler decides how many
// packets the caller may burst in one call, the token bucket enforces
// the instant admission rate underneath it.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

const (
	ringSize        = 256
	batchMin        = 1
	batchMax        = 10_000
	growFactor      = 1.005
	shrinkFactor    = 0.999
	resumeGapSecond = time.Second
	maxDampMillis   = 100
)

type ringSample struct {
	atMicros         int64
	cumulativePacket int64
}

// Sampler is an adaptive-batch sampler: a
// 256-entry ring of (timestamp, cumulative packet count) observations
// and a floating-point current batch size.
type Sampler struct {
	mu         sync.Mutex
	ring       [ringSize]ringSample
	idx        int
	filled     int
	batch      float64
	targetRate float64 // packets/sec
	now        func() time.Time
	sleep      func(time.Duration)
}

// NewSampler constructs a Sampler targeting targetRate packets/sec.
func NewSampler(targetRate float64) *Sampler {
	return &Sampler{
		batch:      1,
		targetRate: targetRate,
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// NextBatch implements the four-step algorithm: record the sample,
// compute observed rate from the oldest remaining sample, shrink on
// overshoot (with a capped damping sleep) or grow otherwise, and return
// floor(batch) clamped to [1, 10000].
func (s *Sampler) NextBatch(cumulativePackets int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		now := s.now()

		// The slot about to be overwritten holds the oldest sample that
		// will remain in the ring once this one is recorded.
		oldest := s.oldestBeforeOverwriteLocked()
		s.recordLocked(now, cumulativePackets)

		if oldest == nil {
			return s.clampedBatch()
		}

		elapsed := now.Sub(time.UnixMicro(oldest.atMicros))
		if elapsed > resumeGapSecond {
			s.batch = batchMin

			continue
		}

		if elapsed <= 0 {
			return s.clampedBatch()
		}

		deltaPackets := cumulativePackets - oldest.cumulativePacket
		observedRate := float64(deltaPackets) / elapsed.Seconds()

		if observedRate > s.targetRate {
			s.batch *= shrinkFactor

			overshoot := observedRate / s.targetRate
			damp := time.Duration(math.Min(float64(maxDampMillis), overshoot*10)) * time.Millisecond

			s.mu.Unlock()
			s.sleep(damp)
			s.mu.Lock()

			continue
		}

		s.batch *= growFactor

		return s.clampedBatch()
	}
}

// oldestBeforeOverwriteLocked returns the sample occupying the slot the
// next recordLocked call will overwrite: when the ring isn't full yet
// that slot is empty (no sample to report), otherwise it's the oldest
// entry currently held.
func (s *Sampler) oldestBeforeOverwriteLocked() *ringSample {
	if s.filled < ringSize {
		return nil
	}

	sample := s.ring[s.idx%ringSize]

	return &sample
}

func (s *Sampler) recordLocked(now time.Time, cumulativePackets int64) {
	s.ring[s.idx%ringSize] = ringSample{atMicros: now.UnixMicro(), cumulativePacket: cumulativePackets}
	s.idx++

	if s.filled < ringSize {
		s.filled++
	}
}

func (s *Sampler) clampedBatch() int {
	if s.batch < batchMin {
		s.batch = batchMin
	}

	if s.batch > batchMax {
		s.batch = batchMax
	}

	return int(math.Floor(s.batch))
}

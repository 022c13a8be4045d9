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

// Package bufpool provides a tiered buffer pool for packet construction:
// three fixed-capacity tiers (4K/16K/64K), lock-free acquire/release via
// buffered channels acting as bounded freelists, with atomic
// hit/miss/return/drop counters.
package bufpool

import "sync/atomic"

// Tier capacities, in bytes.
const (
	Tier4K  = 4 * 1024
	Tier16K = 16 * 1024
	Tier64K = 64 * 1024

	// tierDepth is the maximum number of buffers each tier retains.
	tierDepth = 64
)

var tierCapacities = [3]int{Tier4K, Tier16K, Tier64K}

// Stats are the pool's atomic hit/miss/return/drop counters.
type Stats struct {
	Hits    atomic.Int64
	Misses  atomic.Int64
	Returns atomic.Int64
	Drops   atomic.Int64
}

// HitRate returns hits/(hits+misses), or 0 if nothing has been acquired.
func (s *Stats) HitRate() float64 {
	hits := s.Hits.Load()
	misses := s.Misses.Load()

	total := hits + misses
	if total == 0 {
		return 0
	}

	return float64(hits) / float64(total)
}

// Pool is a tiered buffer pool safe for concurrent acquire/release.
type Pool struct {
	tiers [3]chan []byte
	stats Stats
}

// New constructs a Pool with empty freelists; the first acquire for each
// tier is always a miss (fresh allocation).
func New() *Pool {
	p := &Pool{}

	for i := range tierCapacities {
		p.tiers[i] = make(chan []byte, tierDepth)
	}

	return p
}

// classify returns the tier index and nominal capacity for a request of
// size n bytes, or (-1, 0) if n exceeds the largest tier.
func classify(n int) (tier int, capacity int) {
	for i, c := range tierCapacities {
		if n <= c {
			return i, c
		}
	}

	return -1, 0
}

// Handle is a scoped buffer: Release returns it to its tier (cleared) if
// the tier has room, otherwise it is dropped and left for GC.
type Handle struct {
	Buf  []byte
	tier int
	pool *Pool
}

// Acquire classifies n into a tier, pops a buffer from that tier's
// freelist on hit, or allocates a fresh one on miss. n larger than every
// tier allocates an exact-sized buffer outside the pool (never released
// back into a tier).
func (p *Pool) Acquire(n int) *Handle {
	tier, capacity := classify(n)

	if tier < 0 {
		p.stats.Misses.Add(1)

		return &Handle{Buf: make([]byte, n), tier: -1, pool: p}
	}

	select {
	case buf := <-p.tiers[tier]:
		p.stats.Hits.Add(1)

		return &Handle{Buf: buf[:n], tier: tier, pool: p}
	default:
		p.stats.Misses.Add(1)

		return &Handle{Buf: make([]byte, n, capacity), tier: tier, pool: p}
	}
}

// Release clears and returns the handle's buffer to its tier if there is
// room, otherwise drops it.
func (h *Handle) Release() {
	if h.tier < 0 {
		return
	}

	buf := h.Buf[:cap(h.Buf)]
	for i := range buf {
		buf[i] = 0
	}

	select {
	case h.pool.tiers[h.tier] <- buf:
		h.pool.stats.Returns.Add(1)
	default:
		h.pool.stats.Drops.Add(1)
	}
}

// Stats returns a snapshot accessor for the pool's atomic counters.
func (p *Pool) Stats() *Stats {
	return &p.stats
}

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

package idlescan

import (
	"errors"
	"sort"
	"sync"

	"github.com/doublegate/prortip/pkg/models"
)

// ErrNoQualifiedZombies is returned when no candidate in the pool
// clears models.ZombieQualityThreshold.
var ErrNoQualifiedZombies = errors.New("idlescan: no zombie candidate clears the quality threshold")

// ZombiePool tracks candidate zombie hosts and their current quality
// score, rotating out any candidate that falls below threshold.
type ZombiePool struct {
	mu         sync.RWMutex
	candidates map[string]models.ZombieCandidate
	threshold  float64
}

// NewZombiePool constructs an empty pool using the default quality
// threshold.
func NewZombiePool() *ZombiePool {
	return &ZombiePool{
		candidates: make(map[string]models.ZombieCandidate),
		threshold:  models.ZombieQualityThreshold,
	}
}

// Update records a fresh measurement for a candidate, replacing its
// prior quality score.
func (z *ZombiePool) Update(candidate models.ZombieCandidate) {
	z.mu.Lock()
	defer z.mu.Unlock()

	z.candidates[candidate.IP] = candidate
}

// Evict removes a candidate from the pool (e.g. it fell below
// threshold or became unreachable).
func (z *ZombiePool) Evict(ip string) {
	z.mu.Lock()
	defer z.mu.Unlock()

	delete(z.candidates, ip)
}

// Qualified returns every candidate currently at or above the quality
// threshold, sorted best-first.
func (z *ZombiePool) Qualified() []models.ZombieCandidate {
	z.mu.RLock()
	defer z.mu.RUnlock()

	out := make([]models.ZombieCandidate, 0, len(z.candidates))

	for _, c := range z.candidates {
		if c.QualityScore >= z.threshold {
			out = append(out, c)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].QualityScore > out[j].QualityScore })

	return out
}

// Best returns the highest-quality qualified candidate, or
// ErrNoQualifiedZombies if the pool has none.
func (z *ZombiePool) Best() (models.ZombieCandidate, error) {
	qualified := z.Qualified()
	if len(qualified) == 0 {
		return models.ZombieCandidate{}, ErrNoQualifiedZombies
	}

	return qualified[0], nil
}

// Sweep re-evaluates every candidate against the current threshold and
// evicts those that no longer qualify, returning the evicted IPs. A
// caller re-measures candidates (via Update) on some interval, then
// calls Sweep to drop any that have drifted below threshold —
// continuous zombie quality monitoring.
func (z *ZombiePool) Sweep() []string {
	z.mu.Lock()
	defer z.mu.Unlock()

	var evicted []string

	for ip, c := range z.candidates {
		if c.QualityScore < z.threshold {
			delete(z.candidates, ip)
			evicted = append(evicted, ip)
		}
	}

	return evicted
}

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

package models

import "time"

// MaxBackoffLevel is the highest per-target backoff level; level N waits
// 2^N seconds, capped here at 2^4 = 16s.
const MaxBackoffLevel = 4

// BackoffState is one target's per-target exponential backoff bookkeeping,
// advanced whenever the ICMP monitor publishes an admin-prohibited signal
// for that target.
type BackoffState struct {
	Level        int
	BackoffUntil time.Time
}

// Delay returns the wait duration for the state's current level.
func (b *BackoffState) Delay() time.Duration {
	level := b.Level
	if level > MaxBackoffLevel {
		level = MaxBackoffLevel
	}

	return (1 << uint(level)) * time.Second
}

// Bump advances the backoff level (capped) and recomputes BackoffUntil
// relative to now.
func (b *BackoffState) Bump(now time.Time) {
	if b.Level < MaxBackoffLevel {
		b.Level++
	}

	b.BackoffUntil = now.Add(b.Delay())
}

// Blocked reports whether now is still within the backoff window.
func (b *BackoffState) Blocked(now time.Time) bool {
	return now.Before(b.BackoffUntil)
}

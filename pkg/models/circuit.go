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

// CircuitState is the three-state circuit breaker machine: Closed lets
// attempts through, Open refuses them until the cooldown elapses, and
// HalfOpen admits a bounded trial before deciding which way to go.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// CircuitRecord is one target's breaker bookkeeping. Callers must hold
// the owning map's lock (see pkg/breaker) before mutating these fields;
// the struct itself carries no synchronization.
type CircuitRecord struct {
	State        CircuitState
	FailureCount int
	SuccessCount int
	OpenedAt     time.Time
	LastFailure  time.Time
}

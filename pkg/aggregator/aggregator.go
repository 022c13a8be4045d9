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

// Package aggregator implements the lock-free result queue that sits
// between scan workers and the async storage writer: push is O(1) and
// never blocks, producers back off on saturation, and a drain side
// pops in batches without taking a lock shared with producers.
package aggregator

import (
	"errors"
	"sync/atomic"

	"github.com/doublegate/prortip/pkg/models"
)

// ErrBackpressure is returned by Push when the queue is at capacity;
// the caller is expected to spin/yield briefly and retry rather than
// block, keeping the queue lock-free under normal load.
var ErrBackpressure = errors.New("aggregator: queue at capacity, backpressure")

// ErrShutdown is returned by Push once Shutdown has been called.
var ErrShutdown = errors.New("aggregator: queue is shut down")

// Queue is a bounded MPMC result queue. The channel underneath is
// Go's own lock-free ring buffer; Queue adds an approximate size
// counter and a shutdown flag so producers can make backpressure and
// shutdown decisions without ever blocking on a mutex.
type Queue struct {
	ch       chan models.Result
	size     atomic.Int64
	shutdown atomic.Bool
	cap      int64
}

// New constructs a Queue with the given capacity.
func New(capacity int) *Queue {
	return &Queue{ch: make(chan models.Result, capacity), cap: int64(capacity)}
}

// Push enqueues a result. It never blocks: on a full queue it returns
// ErrBackpressure immediately, and once Shutdown has been called it
// returns ErrShutdown.
func (q *Queue) Push(result models.Result) error {
	if q.shutdown.Load() {
		return ErrShutdown
	}

	if q.size.Load() >= q.cap {
		return ErrBackpressure
	}

	select {
	case q.ch <- result:
		q.size.Add(1)
		return nil
	default:
		return ErrBackpressure
	}
}

// Size returns the approximate number of queued results. It is a
// snapshot, not a transactionally consistent count: concurrent
// pushes/drains may race it, by design.
func (q *Queue) Size() int64 {
	return q.size.Load()
}

// Shutdown marks the queue closed to new pushes; already-queued
// results remain drainable.
func (q *Queue) Shutdown() {
	q.shutdown.Store(true)
}

// ShuttingDown reports whether Shutdown has been called.
func (q *Queue) ShuttingDown() bool {
	return q.shutdown.Load()
}

// DrainBatch pops up to n queued results without blocking, returning
// fewer than n if the queue empties first.
func (q *Queue) DrainBatch(n int) []models.Result {
	out := make([]models.Result, 0, n)

	for i := 0; i < n; i++ {
		select {
		case r := <-q.ch:
			q.size.Add(-1)
			out = append(out, r)
		default:
			return out
		}
	}

	return out
}

// DrainAll empties the queue entirely.
func (q *Queue) DrainAll() []models.Result {
	var out []models.Result

	for {
		select {
		case r := <-q.ch:
			q.size.Add(-1)
			out = append(out, r)
		default:
			return out
		}
	}
}

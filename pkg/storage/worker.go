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

package storage

import (
	"context"
	"log"
	"time"

	"github.com/doublegate/prortip/pkg/aggregator"
	"github.com/doublegate/prortip/pkg/models"
)

// DefaultFlushInterval is how often the worker drains the aggregator
// queue even if it hasn't reached DefaultBatchSize.
const DefaultFlushInterval = 500 * time.Millisecond

// DefaultBatchSize caps how many results one SaveResults call takes.
const DefaultBatchSize = 256

// ResourceMonitor reports system resource pressure so the worker can
// shrink its flush batch size without restarting. *pkg/resources.Monitor
// satisfies this directly.
type ResourceMonitor interface {
	AdjustBatch(batch int) int
}

// Worker drains an aggregator.Queue on its own goroutine and persists
// batches through one or more Sinks, so scan workers pushing results
// never block on disk or network I/O.
type Worker struct {
	Queue           *aggregator.Queue
	Sinks           []Sink
	BatchSize       int
	FlushInterval   time.Duration
	ResourceMonitor ResourceMonitor // nil disables adaptive batch sizing
}

// NewWorker constructs a Worker with the package's default batch size
// and flush interval.
func NewWorker(queue *aggregator.Queue, sinks ...Sink) *Worker {
	return &Worker{
		Queue:         queue,
		Sinks:         sinks,
		BatchSize:     DefaultBatchSize,
		FlushInterval: DefaultFlushInterval,
	}
}

// Run flushes up to BatchSize results (as adjusted by ResourceMonitor)
// on every FlushInterval tick; a full batch does not trigger an early
// flush. Run returns once the queue has been shut down (checked at the
// start and after every tick) or ctx is cancelled, persisting whatever
// is still queued before it returns. Callers should cancel ctx only
// after calling Queue.Shutdown() so the final DrainAll catches
// whatever was still in flight.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.FlushInterval)
	defer ticker.Stop()

	for {
		if w.Queue.ShuttingDown() {
			w.drainAndPersist(ctx)
			return
		}

		select {
		case <-ctx.Done():
			w.drainAndPersist(context.Background())
			return
		case <-ticker.C:
			w.drainBatchAndPersist()
		}
	}
}

func (w *Worker) drainBatchAndPersist() {
	size := w.BatchSize
	if w.ResourceMonitor != nil {
		size = w.ResourceMonitor.AdjustBatch(size)
	}

	batch := w.Queue.DrainBatch(size)
	if len(batch) == 0 {
		return
	}

	w.persist(context.Background(), batch)
}

func (w *Worker) drainAndPersist(ctx context.Context) {
	batch := w.Queue.DrainAll()
	if len(batch) == 0 {
		return
	}

	w.persist(ctx, batch)
}

func (w *Worker) persist(ctx context.Context, batch []models.Result) {
	for _, sink := range w.Sinks {
		if err := sink.SaveResults(ctx, batch); err != nil {
			log.Printf("storage: sink save failed: %v", err)
		}
	}
}

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

// Package storage implements the async storage worker and its two
// sinks: a local SQLite store and a gRPC forwarder, so that draining
// the result aggregator never blocks scan workers on disk or network
// I/O.
package storage

import (
	"context"

	"github.com/doublegate/prortip/pkg/models"
)

//go:generate mockgen -destination=mock_sink.go -package=storage github.com/doublegate/prortip/pkg/storage Sink

// Sink persists a batch of results. Implementations: SQLiteSink
// (local, mattn/go-sqlite3) and GRPCSink (forwards to a collector over
// a security-layered gRPC transport).
type Sink interface {
	SaveResults(ctx context.Context, results []models.Result) error
	GetResults(ctx context.Context, filter models.ResultFilter) ([]models.Result, error)
	Close() error
}

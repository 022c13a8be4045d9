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
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/doublegate/prortip/pkg/models"
)

const dbOperationTimeout = 5 * time.Second

var (
	errQueryResults = errors.New("storage: failed to query results")
	errScanRow      = errors.New("storage: failed to scan row")
	errSaveResult   = errors.New("storage: failed to save result")
)

const schema = `
CREATE TABLE IF NOT EXISTS scan_results (
	scan_id    TEXT NOT NULL,
	target_ip  TEXT NOT NULL,
	port       INTEGER NOT NULL,
	scan_type  TEXT NOT NULL,
	state      TEXT NOT NULL,
	resp_time_ns INTEGER NOT NULL,
	timestamp  DATETIME NOT NULL,
	banner     TEXT,
	service    TEXT,
	version    TEXT,
	PRIMARY KEY (scan_id, target_ip, port)
);
CREATE INDEX IF NOT EXISTS idx_scan_results_target ON scan_results(target_ip);
CREATE INDEX IF NOT EXISTS idx_scan_results_timestamp ON scan_results(timestamp);
`

// SQLiteSink persists results to a local SQLite database.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (creating if necessary) the database at path
// and ensures the schema exists.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: create schema: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

// SaveResults upserts a batch of results inside a single transaction.
func (s *SQLiteSink) SaveResults(ctx context.Context, results []models.Result) error {
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}

	const query = `
		INSERT INTO scan_results (
			scan_id, target_ip, port, scan_type, state, resp_time_ns,
			timestamp, banner, service, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scan_id, target_ip, port) DO UPDATE SET
			state = excluded.state,
			resp_time_ns = excluded.resp_time_ns,
			timestamp = excluded.timestamp,
			banner = excluded.banner,
			service = excluded.service,
			version = excluded.version
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("storage: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		_, err := stmt.ExecContext(ctx,
			r.ScanID, r.TargetIP, r.Port, string(r.Type), string(r.State),
			r.RespTime.Nanoseconds(), r.Timestamp, r.Banner, r.Service, r.Version,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: %w", errSaveResult, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}

	return nil
}

// GetResults queries results matching filter, most recent first.
func (s *SQLiteSink) GetResults(ctx context.Context, filter models.ResultFilter) ([]models.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	qb := newQueryBuilder()
	qb.addHostFilter(filter.Host)
	qb.addPortFilter(filter.Port)
	qb.addTimeRangeFilter(filter.StartTime, filter.EndTime)
	qb.addStateFilter(filter.State)

	query, args := qb.finalize()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errQueryResults, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("storage: error closing rows: %v", err)
		}
	}()

	var results []models.Result

	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}

		results = append(results, r)
	}

	return results, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func scanRow(rows *sql.Rows) (models.Result, error) {
	var (
		r               models.Result
		scanType, state string
		respTimeNanos   int64
		banner, svc, ver sql.NullString
	)

	err := rows.Scan(
		&r.ScanID, &r.TargetIP, &r.Port, &scanType, &state,
		&respTimeNanos, &r.Timestamp, &banner, &svc, &ver,
	)
	if err != nil {
		return models.Result{}, fmt.Errorf("%w: %w", errScanRow, err)
	}

	r.Type = models.ScanType(scanType)
	r.State = models.PortState(state)
	r.RespTime = time.Duration(respTimeNanos)
	r.Banner = banner.String
	r.Service = svc.String
	r.Version = ver.String

	return r, nil
}

var _ Sink = (*SQLiteSink)(nil)

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
	"time"

	"github.com/doublegate/prortip/pkg/models"
)

// queryBuilder incrementally assembles a filtered SELECT the way the
// result-query collaborator needs to, one optional predicate at a
// time.
type queryBuilder struct {
	query string
	args  []interface{}
}

func newQueryBuilder() *queryBuilder {
	return &queryBuilder{
		query: `
			SELECT scan_id, target_ip, port, scan_type, state, resp_time_ns,
			       timestamp, banner, service, version
			FROM scan_results
			WHERE 1=1
		`,
	}
}

func (qb *queryBuilder) addHostFilter(host string) {
	if host != "" {
		qb.query += " AND target_ip = ?"
		qb.args = append(qb.args, host)
	}
}

func (qb *queryBuilder) addPortFilter(port uint16) {
	if port != 0 {
		qb.query += " AND port = ?"
		qb.args = append(qb.args, port)
	}
}

func (qb *queryBuilder) addTimeRangeFilter(start, end time.Time) {
	if !start.IsZero() {
		qb.query += " AND timestamp >= ?"
		qb.args = append(qb.args, start)
	}

	if !end.IsZero() {
		qb.query += " AND timestamp <= ?"
		qb.args = append(qb.args, end)
	}
}

func (qb *queryBuilder) addStateFilter(state *models.PortState) {
	if state != nil {
		qb.query += " AND state = ?"
		qb.args = append(qb.args, string(*state))
	}
}

func (qb *queryBuilder) finalize() (query string, args []interface{}) {
	qb.query += " ORDER BY timestamp DESC"
	return qb.query, qb.args
}

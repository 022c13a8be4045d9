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

// Package models pkg/models/metrics.go
package models

import "time"

// ThroughputPoint is one sample of a throughput bucket: packets and bytes
// sent during the bucket's one-second window, plus hosts that completed
// scanning within it.
type ThroughputPoint struct {
	Timestamp      time.Time `json:"timestamp"`
	Packets        int64     `json:"packets"`
	Bytes          int64     `json:"bytes"`
	HostsCompleted int64     `json:"hosts_completed"`
}

// MetricsConfig controls retention of progress/throughput samples.
type MetricsConfig struct {
	Enabled   bool `json:"metrics_enabled"`
	Retention int  `json:"metrics_retention"`
}

const ThroughputPointSize = 32 // 8 bytes timestamp + 8 packets + 8 bytes + 8 hosts

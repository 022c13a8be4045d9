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

package progress

import (
	"sync"
	"time"

	"github.com/doublegate/prortip/pkg/models"
)

// throughputWindow is the fixed 60-bucket ring size.
const throughputWindow = 60

// ThroughputMonitor holds 60 one-second buckets plus an accumulating
// current bucket; queries sum the window. Unlike Counters this needs a
// mutex because a bucket roll-over mutates several fields together.
type ThroughputMonitor struct {
	mu      sync.Mutex
	buckets [throughputWindow]models.ThroughputPoint
	head    int
	filled  int

	current      models.ThroughputPoint
	currentStart time.Time

	now func() time.Time
}

// NewThroughputMonitor constructs a monitor with its current bucket
// starting now.
func NewThroughputMonitor() *ThroughputMonitor {
	return &ThroughputMonitor{now: time.Now, currentStart: time.Now()}
}

// Record folds packets/bytes/hostsCompleted into the current bucket,
// rolling it into the ring once a full second has elapsed.
func (m *ThroughputMonitor) Record(packets, bytes, hostsCompleted int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollIfDueLocked()

	m.current.Packets += packets
	m.current.Bytes += bytes
	m.current.HostsCompleted += hostsCompleted
}

func (m *ThroughputMonitor) rollIfDueLocked() {
	now := m.now()
	if now.Sub(m.currentStart) < time.Second {
		return
	}

	m.current.Timestamp = m.currentStart
	m.buckets[m.head] = m.current
	m.head = (m.head + 1) % throughputWindow

	if m.filled < throughputWindow {
		m.filled++
	}

	m.current = models.ThroughputPoint{}
	m.currentStart = now
}

// Sum returns the total packets/bytes/hosts across the filled window
// plus the in-progress current bucket.
func (m *ThroughputMonitor) Sum() models.ThroughputPoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollIfDueLocked()

	var total models.ThroughputPoint

	for i := 0; i < m.filled; i++ {
		total.Packets += m.buckets[i].Packets
		total.Bytes += m.buckets[i].Bytes
		total.HostsCompleted += m.buckets[i].HostsCompleted
	}

	total.Packets += m.current.Packets
	total.Bytes += m.current.Bytes
	total.HostsCompleted += m.current.HostsCompleted

	return total
}

// PacketsPerSecond reports the current window's observed packet rate.
func (m *ThroughputMonitor) PacketsPerSecond() float64 {
	m.mu.Lock()
	windowSeconds := m.filled
	m.mu.Unlock()

	if windowSeconds == 0 {
		return 0
	}

	sum := m.Sum()

	return float64(sum.Packets) / float64(windowSeconds)
}

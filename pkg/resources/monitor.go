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

// Package resources samples system memory and CPU on an interval and
// classifies the result so the scheduler can scale batch size and
// parallelism down under pressure.
package resources

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Status is a closed classification of system resource pressure.
type Status string

const (
	StatusNormal            Status = "normal"
	StatusMemoryConstrained Status = "memory_constrained"
	StatusCPUConstrained    Status = "cpu_constrained"
	StatusConstrained       Status = "constrained" // both
)

const (
	// DefaultInterval is the default sampling interval.
	DefaultInterval = 5 * time.Second

	memoryConstrainedPct = 90.0
	cpuConstrainedPct    = 90.0
)

type sampleDeps struct {
	virtualMemory func(context.Context) (*mem.VirtualMemoryStat, error)
	cpuPercent    func(context.Context, time.Duration, bool) ([]float64, error)
}

func defaultSampleDeps() sampleDeps {
	return sampleDeps{
		virtualMemory: mem.VirtualMemoryWithContext,
		cpuPercent:    cpu.PercentWithContext,
	}
}

// Monitor caches its last sample between ticks of Interval.
type Monitor struct {
	Interval time.Duration

	deps sampleDeps

	mu        sync.RWMutex
	memPct    float64
	cpuPct    float64
	lastError error
}

// New constructs a Monitor sampling every interval (DefaultInterval if 0).
func New(interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Monitor{Interval: interval, deps: defaultSampleDeps()}
}

// Run samples on Interval until ctx is cancelled. Intended to run in its
// own goroutine for the lifetime of a scan.
func (m *Monitor) Run(ctx context.Context) {
	m.sample(ctx)

	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample(ctx)
		}
	}
}

func (m *Monitor) sample(ctx context.Context) {
	vm, err := m.deps.virtualMemory(ctx)
	if err != nil {
		log.Printf("resources: memory sample failed: %v", err)

		m.mu.Lock()
		m.lastError = err
		m.mu.Unlock()

		return
	}

	cpuPercents, err := m.deps.cpuPercent(ctx, 0, false)
	if err != nil {
		log.Printf("resources: cpu sample failed: %v", err)

		m.mu.Lock()
		m.lastError = err
		m.mu.Unlock()

		return
	}

	cpuPct := 0.0
	if len(cpuPercents) > 0 {
		cpuPct = cpuPercents[0]
	}

	m.mu.Lock()
	m.memPct = vm.UsedPercent
	m.cpuPct = cpuPct
	m.lastError = nil
	m.mu.Unlock()
}

// Snapshot reads the last cached sample.
func (m *Monitor) Snapshot() (memPct, cpuPct float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.memPct, m.cpuPct
}

// Status classifies the last cached sample.
func (m *Monitor) Status() Status {
	memPct, cpuPct := m.Snapshot()

	memConstrained := memPct >= memoryConstrainedPct
	cpuConstrained := cpuPct >= cpuConstrainedPct

	switch {
	case memConstrained && cpuConstrained:
		return StatusConstrained
	case memConstrained:
		return StatusMemoryConstrained
	case cpuConstrained:
		return StatusCPUConstrained
	default:
		return StatusNormal
	}
}

// AdjustBatch halves batch under MemoryConstrained/Constrained.
func (m *Monitor) AdjustBatch(batch int) int {
	switch m.Status() {
	case StatusMemoryConstrained, StatusConstrained:
		return batch / 2
	default:
		return batch
	}
}

// AdjustParallelism halves parallelism under CpuConstrained/Constrained.
func (m *Monitor) AdjustParallelism(parallelism int) int {
	switch m.Status() {
	case StatusCPUConstrained, StatusConstrained:
		return parallelism / 2
	default:
		return parallelism
	}
}

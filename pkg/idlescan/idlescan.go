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

// Package idlescan implements zombie/idle scanning: inferring a
// target's port state by watching a third-party zombie host's IP-ID
// counter increment in response to a spoofed SYN, without the scanner
// ever receiving a packet from the target itself.
package idlescan

import (
	"context"
	"net"
	"time"

	"github.com/doublegate/prortip/pkg/models"
)

// ProbeMode selects how the spoofed SYN to the target (source address
// = zombie) is sent.
type ProbeMode int

const (
	// Layer3Socket is the default mode. RawZombieProber sends it through
	// the same IP_HDRINCL raw socket as RawIP, with a hand-built IPv4
	// header and TTL 64; the kernel does not fill in the IP header.
	Layer3Socket ProbeMode = iota
	// RawIP hand-builds the full IP header (IP_HDRINCL) with the
	// zombie's address as source; RawZombieProber sends it with TTL 128.
	RawIP
)

// ZombieProber is the collaborator that measures a zombie's IPID and
// sends the spoofed SYN on the idle-scan engine's behalf.
type ZombieProber interface {
	// MeasureIPID provokes a response from zombie (e.g. a SYN or ACK
	// to a closed/open port) and reads the IPID off the reply.
	MeasureIPID(ctx context.Context, zombie net.IP, timeout time.Duration) (models.IPIDMeasurement, error)
	// SpoofedSYN sends a SYN to (target, port) with source address
	// set to zombie, per the configured ProbeMode.
	SpoofedSYN(ctx context.Context, zombie, target net.IP, port uint16, mode ProbeMode) error
}

// Config tunes trial counts and backoff for noisy zombies.
type Config struct {
	Mode           ProbeMode
	Trials         int
	MeasureTimeout time.Duration
	InterTrialGap  time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns the engine's default tuning: 3 trials,
// majority-combined, 2s measurement timeout.
func DefaultConfig() Config {
	return Config{
		Mode:           Layer3Socket,
		Trials:         3,
		MeasureTimeout: 2 * time.Second,
		InterTrialGap:  100 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
	}
}

// Engine runs idle scans against a rotating pool of zombie candidates.
type Engine struct {
	Prober ZombieProber
	Config Config
	Pool   *ZombiePool
}

// New constructs an Engine bound to a prober and zombie pool.
func New(prober ZombieProber, cfg Config, pool *ZombiePool) *Engine {
	return &Engine{Prober: prober, Config: cfg, Pool: pool}
}

// TrialResult is one trial's raw measurement and its inference.
type TrialResult struct {
	Delta     uint16
	Inference models.IdleScanInference
}

// ScanPort runs Config.Trials trials of the idle-scan protocol against
// (target, port) using the best available zombie from the pool, and
// combines them by majority. Noisy trials are re-tested with
// exponential backoff up to Config.MaxBackoff.
func (e *Engine) ScanPort(ctx context.Context, target net.IP, port uint16) (models.IdleScanInference, error) {
	zombie, err := e.Pool.Best()
	if err != nil {
		return "", err
	}

	zombieIP := net.ParseIP(zombie.IP)

	trials := make([]TrialResult, 0, e.Config.Trials)
	backoff := 100 * time.Millisecond

	for i := 0; i < e.Config.Trials; i++ {
		trial, err := e.runTrial(ctx, zombieIP, zombie.Pattern, target, port)
		if err != nil {
			return "", err
		}

		if trial.Inference == models.InferenceNoisy {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}

			backoff *= 2
			if backoff > e.Config.MaxBackoff {
				backoff = e.Config.MaxBackoff
			}

			i-- // re-test this trial

			continue
		}

		trials = append(trials, trial)

		select {
		case <-time.After(e.Config.InterTrialGap):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return majority(trials), nil
}

func (e *Engine) runTrial(ctx context.Context, zombie net.IP, pattern models.IPIDPattern, target net.IP, port uint16) (TrialResult, error) {
	x0, err := e.Prober.MeasureIPID(ctx, zombie, e.Config.MeasureTimeout)
	if err != nil {
		return TrialResult{}, err
	}

	if err := e.Prober.SpoofedSYN(ctx, zombie, target, port, e.Config.Mode); err != nil {
		return TrialResult{}, err
	}

	x1, err := e.Prober.MeasureIPID(ctx, zombie, e.Config.MeasureTimeout)
	if err != nil {
		return TrialResult{}, err
	}

	delta := models.IPIDDelta(x0.IPID, x1.IPID)
	inference := models.InferPortState(pattern, delta)

	return TrialResult{Delta: delta, Inference: inference}, nil
}

// majority combines non-noisy trial inferences; ties favor
// ClosedFiltered, the conservative verdict.
func majority(trials []TrialResult) models.IdleScanInference {
	var openCount, closedCount int

	for _, t := range trials {
		switch t.Inference {
		case models.InferenceOpen:
			openCount++
		case models.InferenceClosedFiltered:
			closedCount++
		}
	}

	if openCount > closedCount {
		return models.InferenceOpen
	}

	return models.InferenceClosedFiltered
}

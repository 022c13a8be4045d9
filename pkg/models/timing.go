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

// TimingTemplate is a closed enum of the six named timing presets, the
// same shape as an nmap -T level.
type TimingTemplate int

const (
	TimingParanoid TimingTemplate = iota
	TimingSneaky
	TimingPolite
	TimingNormal
	TimingAggressive
	TimingInsane
)

func (t TimingTemplate) String() string {
	switch t {
	case TimingParanoid:
		return "paranoid"
	case TimingSneaky:
		return "sneaky"
	case TimingPolite:
		return "polite"
	case TimingNormal:
		return "normal"
	case TimingAggressive:
		return "aggressive"
	case TimingInsane:
		return "insane"
	default:
		return "unknown"
	}
}

// TimingProfile is the tuple a TimingTemplate maps to.
type TimingProfile struct {
	InitialTimeout time.Duration
	MinTimeout     time.Duration
	MaxTimeout     time.Duration
	MaxRetries     int
	ScanDelay      time.Duration
	MaxParallelism int
	Jitter         float64 // 0 disables; otherwise factor in [1-j, 1+j]
}

// timingProfiles holds the fixed (initial, min, max timeout, retries,
// delay, parallelism, jitter) tuple for each template.
var timingProfiles = map[TimingTemplate]TimingProfile{
	TimingParanoid: {
		InitialTimeout: 5 * time.Second, MinTimeout: 100 * time.Millisecond,
		MaxTimeout: 30 * time.Second, MaxRetries: 5,
		ScanDelay: 5 * time.Second, MaxParallelism: 1, Jitter: 0.2,
	},
	TimingSneaky: {
		InitialTimeout: 3 * time.Second, MinTimeout: 100 * time.Millisecond,
		MaxTimeout: 20 * time.Second, MaxRetries: 4,
		ScanDelay: 1500 * time.Millisecond, MaxParallelism: 5, Jitter: 0.15,
	},
	TimingPolite: {
		InitialTimeout: 2 * time.Second, MinTimeout: 100 * time.Millisecond,
		MaxTimeout: 10 * time.Second, MaxRetries: 3,
		ScanDelay: 400 * time.Millisecond, MaxParallelism: 20, Jitter: 0.1,
	},
	TimingNormal: {
		InitialTimeout: time.Second, MinTimeout: 100 * time.Millisecond,
		MaxTimeout: 5 * time.Second, MaxRetries: 2,
		ScanDelay: 0, MaxParallelism: 100, Jitter: 0,
	},
	TimingAggressive: {
		InitialTimeout: 500 * time.Millisecond, MinTimeout: 50 * time.Millisecond,
		MaxTimeout: 2 * time.Second, MaxRetries: 1,
		ScanDelay: 0, MaxParallelism: 500, Jitter: 0,
	},
	TimingInsane: {
		InitialTimeout: 250 * time.Millisecond, MinTimeout: 25 * time.Millisecond,
		MaxTimeout: time.Second, MaxRetries: 0,
		ScanDelay: 0, MaxParallelism: 2000, Jitter: 0,
	},
}

// Profile returns the fixed tuple for the template, or TimingNormal's if
// the value is out of range.
func (t TimingTemplate) Profile() TimingProfile {
	if p, ok := timingProfiles[t]; ok {
		return p
	}

	return timingProfiles[TimingNormal]
}

const (
	rttAlpha         = 0.125 // 1/8
	rttBeta          = 0.25  // 1/4
	rttGranularity   = 10 * time.Millisecond
	rttVarMultiplier = 4
)

// RTTEstimator smooths per-scan round-trip samples the way a TCP
// retransmission-timeout estimator does: srtt/rttvar exponentially
// weighted, RTO derived and clamped to the active template's bounds.
type RTTEstimator struct {
	srtt    time.Duration
	rttvar  time.Duration
	primed  bool
	Profile TimingProfile
}

// NewRTTEstimator seeds the estimator with a template's initial timeout
// as its first RTO before any sample has arrived.
func NewRTTEstimator(profile TimingProfile) *RTTEstimator {
	return &RTTEstimator{Profile: profile}
}

// Sample folds one observed round-trip time into the running estimate.
func (e *RTTEstimator) Sample(rtt time.Duration) {
	if !e.primed {
		e.srtt = rtt
		e.rttvar = rtt / 2
		e.primed = true

		return
	}

	diff := e.srtt - rtt
	if diff < 0 {
		diff = -diff
	}

	e.srtt = time.Duration((1-rttAlpha)*float64(e.srtt) + rttAlpha*float64(rtt))
	e.rttvar = time.Duration((1-rttBeta)*float64(e.rttvar) + rttBeta*float64(diff))
}

// Timeout returns the current probe timeout (RTO), clamped to the
// template's [min_timeout, max_timeout].
func (e *RTTEstimator) Timeout() time.Duration {
	if !e.primed {
		return e.Profile.InitialTimeout
	}

	margin := rttVarMultiplier * e.rttvar
	if margin < rttGranularity {
		margin = rttGranularity
	}

	rto := e.srtt + margin

	if rto < e.Profile.MinTimeout {
		return e.Profile.MinTimeout
	}

	if rto > e.Profile.MaxTimeout {
		return e.Profile.MaxTimeout
	}

	return rto
}

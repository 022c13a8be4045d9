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

// Package timing applies the scheduling-delay side of a timing
// template: jittering the scan_delay each timing profile carries, and
// handing out per-scan RTT estimators seeded from the active profile.
package timing

import (
	"math/rand"
	"time"

	"github.com/doublegate/prortip/pkg/models"
)

// Jitter multiplies delay by a random factor in [1-j, 1+j], where j is
// the active profile's Jitter. j == 0 returns delay unchanged.
func Jitter(delay time.Duration, profile models.TimingProfile, r *rand.Rand) time.Duration {
	if profile.Jitter <= 0 {
		return delay
	}

	factor := 1 - profile.Jitter + r.Float64()*2*profile.Jitter

	return time.Duration(float64(delay) * factor)
}

// ScanDelay returns the template's jittered inter-probe delay.
func ScanDelay(template models.TimingTemplate, r *rand.Rand) time.Duration {
	profile := template.Profile()

	return Jitter(profile.ScanDelay, profile, r)
}

// NewEstimator constructs an RTT estimator seeded from template's profile.
func NewEstimator(template models.TimingTemplate) *models.RTTEstimator {
	return models.NewRTTEstimator(template.Profile())
}

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

package ratelimit

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Controller is a two-layer rate controller:
// the Sampler decides how many packets the caller may emit per
// NextBatch call, and an x/time/rate.Limiter, re-tuned to the AIMD soft
// rate on every NextBatch, enforces that soft rate at the granularity
// of individual sends so a caller can't burst past it between
// NextBatch calls.
type Controller struct {
	sampler    *Sampler
	aimd       *AIMD
	limiter    atomic.Pointer[rate.Limiter]
	cumulative atomic.Int64
}

// NewController builds a Controller targeting initialRate packets/sec,
// climbing toward maxRate under AIMD, burst-capped at burst tokens.
func NewController(initialRate, maxRate float64, burst int) *Controller {
	c := &Controller{
		sampler: NewSampler(initialRate),
		aimd:    NewAIMD(initialRate, maxRate),
	}

	c.limiter.Store(rate.NewLimiter(rate.Limit(initialRate), burst))

	return c
}

// NextBatch returns how many packets the caller may emit immediately,
// per the adaptive sampler, then re-tunes the underlying token bucket to
// the AIMD soft rate so instant bursts stay bounded between calls.
func (c *Controller) NextBatch() int {
	cumulative := c.cumulative.Load()
	n := c.sampler.NextBatch(cumulative)

	c.limiter.Load().SetLimit(rate.Limit(c.aimd.SoftRate()))

	return n
}

// Wait blocks until the token bucket admits n packets or ctx is done.
func (c *Controller) Wait(ctx context.Context, n int) error {
	return c.limiter.Load().WaitN(ctx, n)
}

// RecordSent advances the cumulative packet counter the sampler uses to
// compute observed rate.
func (c *Controller) RecordSent(n int) {
	c.cumulative.Add(int64(n))
}

// RecordSuccess, RecordTimeout, RecordAdminProhibited, and ShouldBackoff
// delegate to the embedded AIMD controller.
func (c *Controller) RecordSuccess()                { c.aimd.RecordSuccess() }
func (c *Controller) RecordTimeout()                { c.aimd.RecordTimeout() }
func (c *Controller) RecordAdminProhibited(t string) { c.aimd.RecordAdminProhibited(t) }
func (c *Controller) ShouldBackoff(t string) bool    { return c.aimd.ShouldBackoff(t) }

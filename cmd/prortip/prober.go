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

package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/doublegate/prortip/pkg/idlescan"
	"github.com/doublegate/prortip/pkg/models"
	"github.com/doublegate/prortip/pkg/probe"
	"github.com/doublegate/prortip/pkg/tlsprobe"
)

// connectProberAdapter makes *probe.ConnectProber satisfy
// scheduler.Prober: a full TCP handshake is the same operation
// regardless of the nominally configured scan type, so scanType is
// accepted and ignored. An open port additionally gets a TLS probe, so
// a connect scan's results carry service identification for free.
type connectProberAdapter struct {
	*probe.ConnectProber
	tls *tlsprobe.Prober
}

func newConnectProberAdapter() connectProberAdapter {
	return connectProberAdapter{
		ConnectProber: probe.NewConnectProber(),
		tls:           tlsprobe.New(tlsprobe.DefaultConfig()),
	}
}

func (a connectProberAdapter) Probe(ctx context.Context, host string, port uint16, _ models.ScanType, timeout time.Duration) (models.Result, error) {
	result, err := a.ConnectProber.Probe(ctx, host, port, timeout)
	if err != nil || result.State != models.StateOpen {
		return result, err
	}

	if info, tlsErr := a.tls.Probe(ctx, host, port); tlsErr == nil {
		result.TLS = info
	}

	return result, nil
}

// idleProberAdapter makes *idlescan.Engine satisfy scheduler.Prober:
// host is the target being idle-scanned, port is the port under test,
// and the zombie is whichever candidate the engine's pool currently
// rates best.
type idleProberAdapter struct {
	engine *idlescan.Engine
}

func (a idleProberAdapter) Probe(ctx context.Context, host string, port uint16, _ models.ScanType, _ time.Duration) (models.Result, error) {
	target := net.ParseIP(host)
	if target == nil {
		return models.Result{}, fmt.Errorf("prortip: idle scan: invalid target %q", host)
	}

	inference, err := a.engine.ScanPort(ctx, target, port)
	if err != nil {
		return models.Result{}, models.NewProbeError(models.KindTimeout, host, port, err)
	}

	state := models.StateFiltered
	if inference == models.InferenceOpen {
		state = models.StateOpen
	}

	return models.Result{
		TargetIP:  host,
		Port:      port,
		Type:      models.ScanIdle,
		State:     state,
		Timestamp: time.Now(),
	}, nil
}

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

// Package discovery implements host-liveness probing that precedes
// port scanning: a pluggable set of TCP SYN, ICMP echo, and UDP probes
// run in parallel per host, bounded by the scheduler's parallelism.
package discovery

import (
	"context"
	"sync"
	"time"
)

// DefaultSYNPort is the well-known port pinged for TCP SYN liveness.
const DefaultSYNPort = 80

// DefaultUDPPort is the well-known port probed for UDP liveness.
const DefaultUDPPort = 40125

// Prober is one liveness-probe method. It returns true if the host
// answered with anything that classifies it as live, false if the
// probe timed out or otherwise produced no signal.
type Prober interface {
	Name() string
	Probe(ctx context.Context, host string, timeout time.Duration) (bool, error)
}

// Engine runs a configured set of Probers against each host in
// parallel, bounded by Parallelism, and reports liveness.
type Engine struct {
	Probers     []Prober
	Timeout     time.Duration
	Parallelism int
}

// New constructs a discovery Engine with the given probers.
func New(probers []Prober, timeout time.Duration, parallelism int) *Engine {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	if parallelism <= 0 {
		parallelism = 1
	}

	return &Engine{Probers: probers, Timeout: timeout, Parallelism: parallelism}
}

// Result is the liveness verdict for one host.
type Result struct {
	Host string
	Live bool
}

// Run probes every host in hosts and streams a Result per host,
// closing the returned channel once every host has been classified
// or ctx is cancelled. Hosts are bounded by Parallelism in-flight at
// once, mirroring a scanner worker pool.
func (e *Engine) Run(ctx context.Context, hosts <-chan string) <-chan Result {
	out := make(chan Result, e.Parallelism*2)

	var wg sync.WaitGroup

	for i := 0; i < e.Parallelism; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for {
				select {
				case <-ctx.Done():
					return
				case host, ok := <-hosts:
					if !ok {
						return
					}

					live := e.probeHost(ctx, host)

					select {
					case out <- Result{Host: host, Live: live}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// probeHost fires every configured prober concurrently against host
// and returns true as soon as any one of them classifies the host as
// live; it waits for all of them only when none do (all time out).
func (e *Engine) probeHost(ctx context.Context, host string) bool {
	if len(e.Probers) == 0 {
		return false
	}

	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	liveCh := make(chan bool, len(e.Probers))

	var wg sync.WaitGroup

	for _, prober := range e.Probers {
		wg.Add(1)

		go func(p Prober) {
			defer wg.Done()

			live, err := p.Probe(probeCtx, host, e.Timeout)
			if err == nil && live {
				select {
				case liveCh <- true:
				default:
				}
			}
		}(prober)
	}

	done := make(chan struct{})

	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-liveCh:
		return true
	case <-done:
		select {
		case <-liveCh:
			return true
		default:
			return false
		}
	case <-ctx.Done():
		return false
	}
}

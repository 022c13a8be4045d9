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

// Package probe implements the non-privileged TCP-connect prober and
// the raw-socket probers built on pkg/packet.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/doublegate/prortip/pkg/models"
)

// ConnectProber establishes a full TCP handshake per port; this is the
// non-privileged path that requires no raw socket.
type ConnectProber struct {
	Dialer net.Dialer
}

// NewConnectProber constructs a ConnectProber.
func NewConnectProber() *ConnectProber {
	return &ConnectProber{}
}

// Probe dials host:port within timeout and classifies the outcome:
// success -> Open; connection-refused -> Closed; timeout/net-unreachable
// -> Filtered; permission-denied/too-many-open-files are reported as
// errors, not port states.
func (p *ConnectProber) Probe(ctx context.Context, host string, port uint16, timeout time.Duration) (models.Result, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	start := time.Now()

	conn, err := p.Dialer.DialContext(dialCtx, "tcp", addr)
	if err == nil {
		respTime := time.Since(start)
		_ = conn.Close()

		return models.Result{
			TargetIP: host, Port: port, Type: models.ScanConnect,
			State: models.StateOpen, RespTime: respTime, Timestamp: time.Now(),
		}, nil
	}

	kind, state, probeErr := classifyDialError(err)
	if probeErr != nil {
		return models.Result{}, models.NewProbeError(kind, host, port, probeErr)
	}

	return models.Result{
		TargetIP: host, Port: port, Type: models.ScanConnect,
		State: state, RespTime: time.Since(start), Timestamp: time.Now(),
	}, nil
}

// classifyDialError maps a dial error to either a port state (the
// connection was refused, or nothing answered) or a non-state
// ProbeError (permission denied, fd exhaustion).
func classifyDialError(err error) (models.ErrorKind, models.PortState, error) {
	if errors.Is(err, context.DeadlineExceeded) {
		return "", models.StateFiltered, nil
	}

	var sysErr syscall.Errno

	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ECONNREFUSED:
			return "", models.StateClosed, nil
		case syscall.ENETUNREACH, syscall.EHOSTUNREACH:
			return "", models.StateFiltered, nil
		case syscall.EACCES, syscall.EPERM:
			return models.KindPermissionError, "", err
		case syscall.EMFILE, syscall.ENFILE:
			return models.KindResourceExhausted, "", err
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "", models.StateFiltered, nil
	}

	return models.KindNetUnreachable, "", fmt.Errorf("connect: %w", err)
}

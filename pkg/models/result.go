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

// PortState is a closed set of port classifications.
type PortState string

const (
	StateOpen     PortState = "open"
	StateClosed   PortState = "closed"
	StateFiltered PortState = "filtered"
	StateUnknown  PortState = "unknown"
)

// Result is the final, immutable outcome of probing one (target, port)
// pair. Invariant: a scheduler emits at most one Result per
// (scan_id, target_ip, port) triple.
type Result struct {
	ScanID      string
	TargetIP    string
	Port        uint16
	Type        ScanType
	State       PortState
	RespTime    time.Duration
	Timestamp   time.Time
	Banner      string
	Service     string
	Version     string
	RawResponse []byte   // nil unless a raw prober captured the reply payload
	TLS         *TLSInfo // nil unless a TLS probe ran
}

// TLSInfo carries the service-identification data gathered by the
// optional TLS handshake step (see pkg/tlsprobe).
type TLSInfo struct {
	Version     string
	CipherSuite string
	Subject     string
	Issuer      string
	NotAfter    time.Time
	DNSNames    []string
}

// ResultFilter narrows a query over persisted results. The scheduler
// itself never filters; this exists for the externalized storage
// interface's query collaborator.
type ResultFilter struct {
	Host      string
	Port      uint16
	StartTime time.Time
	EndTime   time.Time
	State     *PortState
}

// ErrorCategory buckets probe failures the way progress counters tally
// them.
type ErrorCategory string

const (
	ErrConnectionRefused ErrorCategory = "connection_refused"
	ErrTimeout           ErrorCategory = "timeout"
	ErrNetUnreachable    ErrorCategory = "net_unreachable"
	ErrHostUnreachable   ErrorCategory = "host_unreachable"
	ErrPermissionDenied  ErrorCategory = "permission_denied"
	ErrFDExhaustion      ErrorCategory = "fd_exhaustion"
	ErrOther             ErrorCategory = "other"
)

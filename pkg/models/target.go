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

// Package models holds the data model shared by every scan component.
package models

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
)

// ScanType is a closed set of probe techniques, represented as an
// enumeration rather than a bare string so callers can't typo their way
// past a switch statement.
type ScanType string

const (
	ScanConnect ScanType = "connect"
	ScanSYN     ScanType = "syn"
	ScanFIN     ScanType = "fin"
	ScanNULL    ScanType = "null"
	ScanXmas    ScanType = "xmas"
	ScanACK     ScanType = "ack"
	ScanUDP     ScanType = "udp"
	ScanICMP    ScanType = "icmp" // host discovery only, not a port scan type
	ScanIdle    ScanType = "idle" // zombie/idle scan; see pkg/idlescan
)

// Target is a single scan input: a CIDR network (IPv4 or IPv6), with an
// optional hostname that resolved to it and the original textual form
// the user typed, kept for reporting.
type Target struct {
	CIDR     *net.IPNet
	Hostname string
	Original string
}

// HostPort is one (host, port) work item produced by target expansion.
// Port is meaningless for ICMP discovery/echo probes and is left zero.
type HostPort struct {
	Host string
	Port uint16
	Type ScanType
}

// PortRange is a parsed `p[-q](,p[-q])*` specification. Ranges are kept
// sorted and non-overlapping after Parse so Contains and Count are O(log n)
// and O(1) respectively.
type PortRange struct {
	spans []portSpan
	count int
}

type portSpan struct {
	lo, hi uint16 // inclusive
}

var errEmptyPortSpec = fmt.Errorf("empty port specification")

// ParsePortRange parses the `p[-q](,p[-q])*` grammar: comma-separated
// items, each a single port 0..65535 or a `lo-hi` span with lo <= hi.
// Malformed input fails with an error identifying the offending span.
func ParsePortRange(spec string) (*PortRange, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errEmptyPortSpec
	}

	items := strings.Split(spec, ",")
	spans := make([]portSpan, 0, len(items))

	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			return nil, fmt.Errorf("malformed port span %q: empty item", item)
		}

		span, err := parsePortSpan(item)
		if err != nil {
			return nil, fmt.Errorf("malformed port span %q: %w", item, err)
		}

		spans = append(spans, span)
	}

	return newPortRange(spans), nil
}

func parsePortSpan(item string) (portSpan, error) {
	lo, hi, found := strings.Cut(item, "-")
	if !found {
		p, err := parsePort(lo)
		if err != nil {
			return portSpan{}, err
		}

		return portSpan{lo: p, hi: p}, nil
	}

	loPort, err := parsePort(lo)
	if err != nil {
		return portSpan{}, err
	}

	hiPort, err := parsePort(hi)
	if err != nil {
		return portSpan{}, err
	}

	if loPort > hiPort {
		return portSpan{}, fmt.Errorf("lo (%d) > hi (%d)", loPort, hiPort)
	}

	return portSpan{lo: loPort, hi: hiPort}, nil
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}

	return uint16(n), nil
}

// newPortRange sorts and merges overlapping/adjacent spans so Contains
// can binary-search and Count is precomputed once.
func newPortRange(spans []portSpan) *PortRange {
	sort.Slice(spans, func(i, j int) bool { return spans[i].lo < spans[j].lo })

	merged := make([]portSpan, 0, len(spans))

	for _, s := range spans {
		n := len(merged)
		adjacent := n > 0 && merged[n-1].hi < 65535 && s.lo <= merged[n-1].hi+1
		overlapping := n > 0 && s.lo <= merged[n-1].hi

		if adjacent || overlapping {
			if s.hi > merged[n-1].hi {
				merged[n-1].hi = s.hi
			}

			continue
		}

		merged = append(merged, s)
	}

	count := 0
	for _, s := range merged {
		count += int(s.hi) - int(s.lo) + 1
	}

	return &PortRange{spans: merged, count: count}
}

// Contains reports whether p falls within the range.
func (r *PortRange) Contains(p uint16) bool {
	spans := r.spans
	i := sort.Search(len(spans), func(i int) bool { return spans[i].hi >= p })

	return i < len(spans) && spans[i].lo <= p
}

// Count returns the total number of distinct ports in the range.
func (r *PortRange) Count() int {
	return r.count
}

// Iter calls yield for every port in the range, in ascending order,
// stopping early if yield returns false.
func (r *PortRange) Iter(yield func(uint16) bool) {
	for _, s := range r.spans {
		for p := int(s.lo); p <= int(s.hi); p++ {
			if !yield(uint16(p)) {
				return
			}
		}
	}
}

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

// Package targets expands CIDR/hostname target specifications and port
// specifications into the (host, port) work items a scheduler dispatches.
package targets

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/doublegate/prortip/pkg/models"
)

var errInvalidIP = fmt.Errorf("not a parseable IPv4 or IPv6 address")

// StreamThreshold caps the address count ExpandedCount reports for wide
// IPv6 networks. Hosts and WorkItems always stream, whatever the size.
const StreamThreshold = 1_000_000

// ParseTarget accepts a bare IP, a CIDR, or a hostname and returns the
// models.Target describing it. Hostnames are resolved to a /32 (or /128)
// CIDR via net.LookupIP; CIDRs and bare IPs parse directly.
func ParseTarget(ctx context.Context, spec string) (*models.Target, error) {
	spec = strings.TrimSpace(spec)

	if strings.Contains(spec, "/") {
		ip, ipnet, err := net.ParseCIDR(spec)
		if err != nil {
			return nil, fmt.Errorf("parse CIDR %q: %w", spec, err)
		}

		ipnet.IP = ip

		return &models.Target{CIDR: ipnet, Original: spec}, nil
	}

	if ip := net.ParseIP(spec); ip != nil {
		return &models.Target{CIDR: hostCIDR(ip), Original: spec}, nil
	}

	resolver := net.DefaultResolver

	addrs, err := resolver.LookupIP(ctx, "ip", spec)
	if err != nil {
		return nil, fmt.Errorf("resolve hostname %q: %w", spec, err)
	}

	if len(addrs) == 0 {
		return nil, fmt.Errorf("resolve hostname %q: no addresses", spec)
	}

	return &models.Target{CIDR: hostCIDR(addrs[0]), Hostname: spec, Original: spec}, nil
}

// hostCIDR wraps a single address as a /32 or /128 network.
func hostCIDR(ip net.IP) *net.IPNet {
	if v4 := ip.To4(); v4 != nil {
		return &net.IPNet{IP: v4, Mask: net.CIDRMask(32, 32)}
	}

	return &net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)}
}

// ExpandedCount returns the number of scannable addresses in t's network:
// for IPv4 /n with n < 32, the network and broadcast addresses are
// excluded; /32 and /31 (point-to-point, both addresses usable) are
// special-cased. IPv6 networks exclude no addresses (/128 counts 1,
// /127 counts 2), and an IPv6 count above StreamThreshold is reported
// as StreamThreshold.
func ExpandedCount(t *models.Target) int64 {
	ones, bits := t.CIDR.Mask.Size()
	if ones >= bits {
		return 1
	}

	size := int64(1) << uint(bits-ones)

	if bits == 32 && ones == 31 {
		return 2 // RFC 3021 point-to-point: no network/broadcast exclusion
	}

	if bits == 128 && ones == 127 {
		return 2
	}

	if bits == 32 {
		return size - 2
	}

	// IPv6: no addresses are excluded; wide IPv6 ranges get a capped
	// estimate, so anything larger than the stream threshold is
	// reported as the threshold.
	if size > StreamThreshold {
		return StreamThreshold
	}

	return size
}

// Hosts streams every scannable host address in t's network to the
// returned channel, honoring ctx cancellation. For IPv4 non-/31 networks
// the first (network) and last (broadcast) addresses are skipped.
func Hosts(ctx context.Context, t *models.Target) <-chan net.IP {
	out := make(chan net.IP)

	go func() {
		defer close(out)

		ones, bits := t.CIDR.Mask.Size()
		isV4 := bits == 32
		pointToPoint := (isV4 && ones == 31) || (!isV4 && ones == 127)

		ip := cloneIP(t.CIDR.IP.Mask(t.CIDR.Mask))
		first := true

		for t.CIDR.Contains(ip) {
			select {
			case <-ctx.Done():
				return
			default:
			}

			skip := false
			if isV4 && ones < 32 && !pointToPoint {
				if first || isLastAddress(ip, t.CIDR) {
					skip = true
				}
			}

			first = false

			if !skip {
				emit := cloneIP(ip)

				select {
				case out <- emit:
				case <-ctx.Done():
					return
				}
			}

			incIP(ip)
		}
	}()

	return out
}

func cloneIP(ip net.IP) net.IP {
	out := make(net.IP, len(ip))
	copy(out, ip)

	return out
}

// incIP increments an IP address in place, big-endian, with carry.
func incIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			return
		}
	}
}

// isLastAddress reports whether ip is the broadcast (all-ones host bits)
// address of net.
func isLastAddress(ip net.IP, ipnet *net.IPNet) bool {
	network := ipnet.IP.Mask(ipnet.Mask)
	if len(network) != len(ip) {
		return false
	}

	last := make(net.IP, len(ip))

	for i := range ip {
		last[i] = network[i] | ^ipnet.Mask[i]
	}

	return ip.Equal(last)
}

// WorkItems fuses a host stream and a parsed port range into HostPort
// work items of the given scan type, streaming the full Cartesian
// product without materializing it.
func WorkItems(ctx context.Context, hosts <-chan net.IP, ports *models.PortRange, st models.ScanType) <-chan models.HostPort {
	out := make(chan models.HostPort)

	go func() {
		defer close(out)

		for ip := range hosts {
			host := ip.String()
			stop := false

			ports.Iter(func(p uint16) bool {
				select {
				case out <- models.HostPort{Host: host, Port: p, Type: st}:
				case <-ctx.Done():
					stop = true

					return false
				}

				return true
			})

			if stop {
				return
			}
		}
	}()

	return out
}

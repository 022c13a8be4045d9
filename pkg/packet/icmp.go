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

package packet

import (
	"fmt"
	"net"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	protocolICMP   = 1
	protocolTCP    = 6
	protocolUDP    = 17
	protocolICMPv6 = 58

	// icmpDestUnreachable / codeAdminProhibited identify the ICMP
	// message the monitor (pkg/icmpmon) watches for.
	icmpDestUnreachable   = 3
	icmpCodeAdminProhib   = 13
	icmpv6DestUnreachable = 1
	icmpv6CodeAdminProhib = 1
)

// ICMPEchoSpec describes an echo request/reply this package can build.
type ICMPEchoSpec struct {
	ID      int
	Seq     int
	Payload []byte
	SrcIP   net.IP // only used for the ICMPv6 pseudo-header checksum
	DstIP   net.IP
}

// BuildICMPEcho produces an ICMPv4 type-8 echo request using
// golang.org/x/net/icmp's message framing.
func BuildICMPEcho(spec *ICMPEchoSpec, opts BuildOptions) ([]byte, error) {
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   spec.ID,
			Seq:  spec.Seq,
			Data: spec.Payload,
		},
	}

	b, err := msg.Marshal(nil)
	if err != nil {
		return nil, fmt.Errorf("build icmp echo: %w", err)
	}

	if opts.BadChecksum && len(b) >= 4 {
		sum := uint16(b[2])<<8 | uint16(b[3])
		sum = corruptChecksum(sum)
		b[2], b[3] = byte(sum>>8), byte(sum)
	}

	return b, nil
}

// BuildICMPv6Echo produces an ICMPv6 type-128 echo request. ICMPv6
// checksums always cover the IPv6 pseudo-header, so the marshal must be
// checksummed against src/dst explicitly.
func BuildICMPv6Echo(spec *ICMPEchoSpec, opts BuildOptions) ([]byte, error) {
	if spec.SrcIP == nil || spec.DstIP == nil {
		return nil, fmt.Errorf("build icmpv6 echo: src/dst IP required for pseudo-header checksum")
	}

	msg := icmp.Message{
		Type: ipv6.ICMPTypeEchoRequest,
		Code: 0,
		Body: &icmp.Echo{
			ID:   spec.ID,
			Seq:  spec.Seq,
			Data: spec.Payload,
		},
	}

	var src, dst [16]byte

	copy(src[:], spec.SrcIP.To16())
	copy(dst[:], spec.DstIP.To16())

	b, err := msg.Marshal(icmp.IPv6PseudoHeader(net.IP(src[:]), net.IP(dst[:])))
	if err != nil {
		return nil, fmt.Errorf("build icmpv6 echo: %w", err)
	}

	if opts.BadChecksum && len(b) >= 4 {
		sum := uint16(b[2])<<8 | uint16(b[3])
		sum = corruptChecksum(sum)
		b[2], b[3] = byte(sum>>8), byte(sum)
	}

	return b, nil
}

// IsAdminProhibited reports whether an IPv4 ICMP (type, code) pair is the
// destination-unreachable/admin-prohibited signal the rate controller's
// AIMD backoff reacts to.
func IsAdminProhibited(typ, code int) bool {
	return typ == icmpDestUnreachable && code == icmpCodeAdminProhib
}

// IsAdminProhibitedV6 is IsAdminProhibited's ICMPv6 equivalent.
func IsAdminProhibitedV6(typ, code int) bool {
	return typ == icmpv6DestUnreachable && code == icmpv6CodeAdminProhib
}

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
	"encoding/binary"
	"fmt"
	"net"
)

const ipv4HeaderLen = 20

// IPv4HeaderSpec describes a header to prepend onto an already-built
// transport segment when a caller needs IP_HDRINCL control over fields
// a normal (non-HDRINCL) socket would fill in itself — chiefly the
// Identification field an idle scan reads back, and the source address
// a spoofed packet sends from.
type IPv4HeaderSpec struct {
	SrcIP    net.IP
	DstIP    net.IP
	ID       uint16
	TTL      uint8
	Protocol uint8
	// PayloadLen is the length of the segment that follows this header.
	PayloadLen int
}

// BuildIPv4Header produces a 20-byte IPv4 header (no options) with a
// correct header checksum. TTL defaults to 64 if unset.
func BuildIPv4Header(spec IPv4HeaderSpec) ([]byte, error) {
	src := spec.SrcIP.To4()
	dst := spec.DstIP.To4()

	if src == nil || dst == nil {
		return nil, fmt.Errorf("ipv4 header: src/dst must be IPv4")
	}

	ttl := spec.TTL
	if ttl == 0 {
		ttl = 64
	}

	h := make([]byte, ipv4HeaderLen)

	const version4 = 4
	const ihlWords = ipv4HeaderLen / 4

	h[0] = version4<<4 | ihlWords
	h[1] = 0 // TOS

	binary.BigEndian.PutUint16(h[2:4], uint16(ipv4HeaderLen+spec.PayloadLen))
	binary.BigEndian.PutUint16(h[4:6], spec.ID)
	binary.BigEndian.PutUint16(h[6:8], 0) // flags/fragment offset: don't fragment, not set here
	h[8] = ttl
	h[9] = spec.Protocol
	binary.BigEndian.PutUint16(h[10:12], 0) // checksum placeholder

	copy(h[12:16], src)
	copy(h[16:20], dst)

	binary.BigEndian.PutUint16(h[10:12], checksum(h))

	return h, nil
}

// IPv4Header is the subset of an incoming IPv4 header an idle scan's
// zombie measurement needs.
type IPv4Header struct {
	ID       uint16
	Protocol uint8
	SrcIP    net.IP
	DstIP    net.IP
	HeaderLen int
}

// ParseIPv4Header reads the header fields off a raw IPv4 packet. It
// does not validate the checksum; the caller already trusts the kernel
// delivered a well-formed packet.
func ParseIPv4Header(b []byte) (IPv4Header, error) {
	if len(b) < ipv4HeaderLen {
		return IPv4Header{}, fmt.Errorf("ipv4 header: short packet: %d bytes", len(b))
	}

	ihl := int(b[0]&0x0f) * 4
	if ihl < ipv4HeaderLen || ihl > len(b) {
		return IPv4Header{}, fmt.Errorf("ipv4 header: invalid IHL: %d", ihl)
	}

	return IPv4Header{
		ID:        binary.BigEndian.Uint16(b[4:6]),
		Protocol:  b[9],
		SrcIP:     net.IP(append([]byte(nil), b[12:16]...)),
		DstIP:     net.IP(append([]byte(nil), b[16:20]...)),
		HeaderLen: ihl,
	}, nil
}

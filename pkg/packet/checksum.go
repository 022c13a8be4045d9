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

// Package packet builds raw TCP/UDP/ICMP/ICMPv6 segments with correct
// one's-complement checksums over the appropriate pseudo-header. It does
// no I/O; callers hand the returned bytes to a sender.
package packet

import "encoding/binary"

// checksum computes the 16-bit one's-complement sum of data, the same
// algorithm IP/TCP/UDP/ICMP all share.
func checksum(data []byte) uint16 {
	var sum uint32

	n := len(data)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i : i+2]))
	}

	if n%2 == 1 {
		sum += uint32(data[n-1]) << 8
	}

	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}

	return ^uint16(sum)
}

// ipv4PseudoHeader builds the 12-byte IPv4 pseudo-header TCP/UDP
// checksums are computed over: src, dst, zero, protocol, upper-layer length.
func ipv4PseudoHeader(src, dst [4]byte, protocol uint8, length uint16) []byte {
	h := make([]byte, 12)
	copy(h[0:4], src[:])
	copy(h[4:8], dst[:])
	h[8] = 0
	h[9] = protocol
	binary.BigEndian.PutUint16(h[10:12], length)

	return h
}

// ipv6PseudoHeader builds the 40-byte IPv6 pseudo-header: src, dst,
// upper-layer length (4 bytes), 3 zero bytes, next-header.
func ipv6PseudoHeader(src, dst [16]byte, nextHeader uint8, length uint32) []byte {
	h := make([]byte, 40)
	copy(h[0:16], src[:])
	copy(h[16:32], dst[:])
	binary.BigEndian.PutUint32(h[32:36], length)
	h[36], h[37], h[38] = 0, 0, 0
	h[39] = nextHeader

	return h
}

// pseudoChecksum computes the checksum over pseudoHeader concatenated
// with segment, the shape every TCP/UDP/ICMPv6 checksum in this package
// needs.
func pseudoChecksum(pseudoHeader, segment []byte) uint16 {
	combined := make([]byte, 0, len(pseudoHeader)+len(segment))
	combined = append(combined, pseudoHeader...)
	combined = append(combined, segment...)

	return checksum(combined)
}

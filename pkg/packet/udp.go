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

const udpHeaderLen = 8

// DefaultUDPPayloadBytes is the conservative MTU-safe UDP payload cap:
// 1472 bytes (1500 Ethernet MTU - 20 IPv4 - 8 UDP).
const DefaultUDPPayloadBytes = 1472

// UDPSpec describes the datagram a UDP builder should produce.
type UDPSpec struct {
	SrcIP   net.IP
	DstIP   net.IP
	SrcPort uint16
	DstPort uint16
	Payload []byte
}

func (s *UDPSpec) Validate() error {
	if s.SrcIP == nil || s.DstIP == nil {
		return fmt.Errorf("udp builder: src/dst IP required")
	}

	if len(s.Payload) > DefaultUDPPayloadBytes {
		return fmt.Errorf("udp builder: payload exceeds conservative MTU bound: %d bytes", len(s.Payload))
	}

	bothV4 := s.SrcIP.To4() != nil && s.DstIP.To4() != nil
	bothV6 := s.SrcIP.To4() == nil && s.DstIP.To4() == nil

	if !bothV4 && !bothV6 {
		return fmt.Errorf("udp builder: src/dst IP family mismatch")
	}

	return nil
}

// BuildUDP produces a complete UDP datagram. For IPv4 the checksum is
// optional — the wire value of 0 means "not computed" — but this
// builder always computes it, since correctness costs nothing here. For
// IPv6 the checksum is mandatory and is always computed.
func BuildUDP(spec *UDPSpec, opts BuildOptions) ([]byte, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	datagram := make([]byte, udpHeaderLen+len(spec.Payload))

	binary.BigEndian.PutUint16(datagram[0:2], spec.SrcPort)
	binary.BigEndian.PutUint16(datagram[2:4], spec.DstPort)
	binary.BigEndian.PutUint16(datagram[4:6], uint16(len(datagram)))
	binary.BigEndian.PutUint16(datagram[6:8], 0) // checksum placeholder

	copy(datagram[udpHeaderLen:], spec.Payload)

	var sum uint16

	if v4 := spec.SrcIP.To4(); v4 != nil {
		var src, dst [4]byte

		copy(src[:], v4)
		copy(dst[:], spec.DstIP.To4())

		pseudo := ipv4PseudoHeader(src, dst, protocolUDP, uint16(len(datagram)))
		sum = pseudoChecksum(pseudo, datagram)
	} else {
		var src, dst [16]byte

		copy(src[:], spec.SrcIP.To16())
		copy(dst[:], spec.DstIP.To16())

		pseudo := ipv6PseudoHeader(src, dst, protocolUDP, uint32(len(datagram)))
		sum = pseudoChecksum(pseudo, datagram)
	}

	// RFC 768: a computed checksum of exactly 0 is transmitted as all-ones.
	if sum == 0 {
		sum = 0xffff
	}

	if opts.BadChecksum {
		sum = corruptChecksum(sum)
	}

	binary.BigEndian.PutUint16(datagram[6:8], sum)

	return datagram, nil
}

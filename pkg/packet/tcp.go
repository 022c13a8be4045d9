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

// TCP flag bits, as they sit in the 13th byte of a TCP header.
const (
	FlagFIN uint8 = 1 << 0
	FlagSYN uint8 = 1 << 1
	FlagRST uint8 = 1 << 2
	FlagPSH uint8 = 1 << 3
	FlagACK uint8 = 1 << 4
	FlagURG uint8 = 1 << 5
)

const tcpHeaderLen = 20

// TCPSpec describes the segment a TCP builder should produce.
type TCPSpec struct {
	SrcIP   net.IP
	DstIP   net.IP
	SrcPort uint16
	DstPort uint16
	Seq     uint32
	Ack     uint32
	Flags   uint8
	Window  uint16
	Payload []byte
}

// Validate rejects specs that would produce an invalid segment: missing
// addresses, a payload too large for a 16-bit length, and a source and
// destination of different address families.
func (s *TCPSpec) Validate() error {
	if s.SrcIP == nil || s.DstIP == nil {
		return fmt.Errorf("tcp builder: src/dst IP required")
	}

	if len(s.Payload) > 65535-tcpHeaderLen {
		return fmt.Errorf("tcp builder: payload too large: %d bytes", len(s.Payload))
	}

	bothV4 := s.SrcIP.To4() != nil && s.DstIP.To4() != nil
	bothV6 := s.SrcIP.To4() == nil && s.DstIP.To4() == nil

	if !bothV4 && !bothV6 {
		return fmt.Errorf("tcp builder: src/dst IP family mismatch")
	}

	return nil
}

// BuildTCP produces a complete TCP segment (header + payload) with a
// correct checksum over the IPv4 or IPv6 pseudo-header, for whichever
// family spec's addresses belong to.
func BuildTCP(spec *TCPSpec, opts BuildOptions) ([]byte, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	seg := make([]byte, tcpHeaderLen+len(spec.Payload))

	binary.BigEndian.PutUint16(seg[0:2], spec.SrcPort)
	binary.BigEndian.PutUint16(seg[2:4], spec.DstPort)
	binary.BigEndian.PutUint32(seg[4:8], spec.Seq)
	binary.BigEndian.PutUint32(seg[8:12], spec.Ack)

	const dataOffsetWords = 5 // no options, 5 x 32-bit words = 20 bytes
	seg[12] = dataOffsetWords << 4
	seg[13] = spec.Flags

	window := spec.Window
	if window == 0 {
		window = 65535
	}

	binary.BigEndian.PutUint16(seg[14:16], window)
	binary.BigEndian.PutUint16(seg[16:18], 0) // checksum placeholder
	binary.BigEndian.PutUint16(seg[18:20], 0) // urgent pointer

	copy(seg[tcpHeaderLen:], spec.Payload)

	var sum uint16

	if v4 := spec.SrcIP.To4(); v4 != nil {
		var src, dst [4]byte

		copy(src[:], v4)
		copy(dst[:], spec.DstIP.To4())

		pseudo := ipv4PseudoHeader(src, dst, protocolTCP, uint16(len(seg)))
		sum = pseudoChecksum(pseudo, seg)
	} else {
		var src, dst [16]byte

		copy(src[:], spec.SrcIP.To16())
		copy(dst[:], spec.DstIP.To16())

		pseudo := ipv6PseudoHeader(src, dst, protocolTCP, uint32(len(seg)))
		sum = pseudoChecksum(pseudo, seg)
	}

	if opts.BadChecksum {
		sum = corruptChecksum(sum)
	}

	binary.BigEndian.PutUint16(seg[16:18], sum)

	return seg, nil
}

// BuildSYN, BuildFIN, BuildNULL, BuildXmas, and BuildACK are named
// convenience wrappers over BuildTCP for each raw-prober scan type.
func BuildSYN(spec *TCPSpec, opts BuildOptions) ([]byte, error) {
	spec.Flags = FlagSYN
	return BuildTCP(spec, opts)
}

func BuildFIN(spec *TCPSpec, opts BuildOptions) ([]byte, error) {
	spec.Flags = FlagFIN
	return BuildTCP(spec, opts)
}

func BuildNULL(spec *TCPSpec, opts BuildOptions) ([]byte, error) {
	spec.Flags = 0
	return BuildTCP(spec, opts)
}

func BuildXmas(spec *TCPSpec, opts BuildOptions) ([]byte, error) {
	spec.Flags = FlagFIN | FlagPSH | FlagURG
	return BuildTCP(spec, opts)
}

func BuildACK(spec *TCPSpec, opts BuildOptions) ([]byte, error) {
	spec.Flags = FlagACK
	return BuildTCP(spec, opts)
}

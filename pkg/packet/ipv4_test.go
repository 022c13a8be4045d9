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
	"net"
	"testing"
)

func TestBuildIPv4HeaderRoundTrip(t *testing.T) {
	spec := IPv4HeaderSpec{
		SrcIP:      net.ParseIP("198.51.100.7"),
		DstIP:      net.ParseIP("203.0.113.9"),
		ID:         0xBEEF,
		Protocol:   6,
		PayloadLen: 20,
	}

	hdr, err := BuildIPv4Header(spec)
	if err != nil {
		t.Fatalf("BuildIPv4Header error = %v", err)
	}

	if len(hdr) != ipv4HeaderLen {
		t.Fatalf("len(hdr) = %d, want %d", len(hdr), ipv4HeaderLen)
	}

	if hdr[8] != 64 {
		t.Errorf("TTL = %d, want default 64", hdr[8])
	}

	parsed, err := ParseIPv4Header(hdr)
	if err != nil {
		t.Fatalf("ParseIPv4Header error = %v", err)
	}

	if parsed.ID != spec.ID {
		t.Errorf("ID = %#x, want %#x", parsed.ID, spec.ID)
	}

	if parsed.Protocol != spec.Protocol {
		t.Errorf("Protocol = %d, want %d", parsed.Protocol, spec.Protocol)
	}

	if !parsed.SrcIP.Equal(spec.SrcIP) {
		t.Errorf("SrcIP = %v, want %v", parsed.SrcIP, spec.SrcIP)
	}

	if !parsed.DstIP.Equal(spec.DstIP) {
		t.Errorf("DstIP = %v, want %v", parsed.DstIP, spec.DstIP)
	}

	if parsed.HeaderLen != ipv4HeaderLen {
		t.Errorf("HeaderLen = %d, want %d", parsed.HeaderLen, ipv4HeaderLen)
	}
}

func TestBuildIPv4HeaderCustomTTL(t *testing.T) {
	hdr, err := BuildIPv4Header(IPv4HeaderSpec{
		SrcIP: net.ParseIP("10.0.0.1"), DstIP: net.ParseIP("10.0.0.2"),
		TTL: 128, Protocol: 6,
	})
	if err != nil {
		t.Fatalf("BuildIPv4Header error = %v", err)
	}

	if hdr[8] != 128 {
		t.Errorf("TTL = %d, want 128", hdr[8])
	}
}

func TestBuildIPv4HeaderRejectsIPv6Addresses(t *testing.T) {
	_, err := BuildIPv4Header(IPv4HeaderSpec{
		SrcIP: net.ParseIP("2001:db8::1"), DstIP: net.ParseIP("10.0.0.2"),
	})
	if err == nil {
		t.Fatal("BuildIPv4Header did not reject an IPv6 source address")
	}
}

func TestParseIPv4HeaderRejectsShortPacket(t *testing.T) {
	_, err := ParseIPv4Header(make([]byte, 10))
	if err == nil {
		t.Fatal("ParseIPv4Header did not reject a short packet")
	}
}

package packet

import (
	"net"
	"testing"
)

func TestBuildUDP(t *testing.T) {
	spec := &UDPSpec{
		SrcIP:   net.ParseIP("10.0.0.1"),
		DstIP:   net.ParseIP("10.0.0.2"),
		SrcPort: 33333,
		DstPort: 53,
		Payload: []byte("probe"),
	}

	datagram, err := BuildUDP(spec, BuildOptions{})
	if err != nil {
		t.Fatalf("BuildUDP error = %v", err)
	}

	wantLen := udpHeaderLen + len(spec.Payload)
	if len(datagram) != wantLen {
		t.Fatalf("len(datagram) = %d, want %d", len(datagram), wantLen)
	}

	var src, dst [4]byte

	copy(src[:], spec.SrcIP.To4())
	copy(dst[:], spec.DstIP.To4())

	pseudo := ipv4PseudoHeader(src, dst, protocolUDP, uint16(len(datagram)))
	if got := pseudoChecksum(pseudo, datagram); got != 0 {
		t.Errorf("checksum verification = %x, want 0", got)
	}
}

func TestBuildUDPRejectsOversizedPayload(t *testing.T) {
	spec := &UDPSpec{
		SrcIP:   net.ParseIP("10.0.0.1"),
		DstIP:   net.ParseIP("10.0.0.2"),
		SrcPort: 1,
		DstPort: 2,
		Payload: make([]byte, DefaultUDPPayloadBytes+1),
	}

	if _, err := BuildUDP(spec, BuildOptions{}); err == nil {
		t.Error("BuildUDP with oversized payload = nil error, want error")
	}
}

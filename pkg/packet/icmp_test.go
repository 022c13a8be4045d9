package packet

import (
	"net"
	"testing"
)

func TestBuildICMPEcho(t *testing.T) {
	spec := &ICMPEchoSpec{ID: 1234, Seq: 1, Payload: []byte("ping")}

	b, err := BuildICMPEcho(spec, BuildOptions{})
	if err != nil {
		t.Fatalf("BuildICMPEcho error = %v", err)
	}

	if b[0] != 8 {
		t.Errorf("type byte = %d, want 8 (echo request)", b[0])
	}

	if got := checksum(b); got != 0 {
		t.Errorf("checksum over self-checksummed message = %x, want 0", got)
	}
}

func TestBuildICMPv6Echo(t *testing.T) {
	spec := &ICMPEchoSpec{
		ID: 1, Seq: 1, Payload: []byte("ping6"),
		SrcIP: net.ParseIP("fe80::1"), DstIP: net.ParseIP("fe80::2"),
	}

	b, err := BuildICMPv6Echo(spec, BuildOptions{})
	if err != nil {
		t.Fatalf("BuildICMPv6Echo error = %v", err)
	}

	if b[0] != 128 {
		t.Errorf("type byte = %d, want 128 (echo request)", b[0])
	}
}

func TestIsAdminProhibited(t *testing.T) {
	if !IsAdminProhibited(3, 13) {
		t.Error("IsAdminProhibited(3, 13) = false, want true")
	}

	if IsAdminProhibited(3, 1) {
		t.Error("IsAdminProhibited(3, 1) = true, want false")
	}
}

package icmpmon

import (
	"testing"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

func TestDestUnreachableTypeCode(t *testing.T) {
	tests := []struct {
		name string
		msg  *icmp.Message
		v6   bool
		ok   bool
	}{
		{
			name: "v4 dest unreachable admin prohibited",
			msg:  &icmp.Message{Type: ipv4.ICMPTypeDestinationUnreachable, Code: 13},
			v6:   false, ok: true,
		},
		{
			name: "v4 echo reply is not dest unreachable",
			msg:  &icmp.Message{Type: ipv4.ICMPTypeEchoReply, Code: 0},
			v6:   false, ok: false,
		},
		{
			name: "v6 dest unreachable admin prohibited",
			msg:  &icmp.Message{Type: ipv6.ICMPTypeDestinationUnreachable, Code: 1},
			v6:   true, ok: true,
		},
		{
			name: "wrong family type assertion",
			msg:  &icmp.Message{Type: ipv4.ICMPTypeDestinationUnreachable, Code: 13},
			v6:   true, ok: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, ok := destUnreachableTypeCode(tt.msg, tt.v6)
			if ok != tt.ok {
				t.Errorf("destUnreachableTypeCode() ok = %v, want %v", ok, tt.ok)
			}
		})
	}
}

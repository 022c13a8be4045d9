package targets

import (
	"context"
	"testing"

	"github.com/doublegate/prortip/pkg/models"
)

func TestExpandedCount(t *testing.T) {
	tests := []struct {
		name string
		cidr string
		want int64
	}{
		{name: "/32 single host", cidr: "10.0.0.1/32", want: 1},
		{name: "/31 point-to-point", cidr: "10.0.0.0/31", want: 2},
		{name: "/30 excludes net+broadcast", cidr: "10.0.0.0/30", want: 2},
		{name: "/24 excludes net+broadcast", cidr: "10.0.0.0/24", want: 254},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := ParseTarget(context.Background(), tt.cidr)
			if err != nil {
				t.Fatalf("ParseTarget(%q) error = %v", tt.cidr, err)
			}

			if got := ExpandedCount(target); got != tt.want {
				t.Errorf("ExpandedCount(%q) = %d, want %d", tt.cidr, got, tt.want)
			}
		})
	}
}

func TestHostsExcludesNetworkAndBroadcast(t *testing.T) {
	target, err := ParseTarget(context.Background(), "192.168.1.0/29")
	if err != nil {
		t.Fatalf("ParseTarget error = %v", err)
	}

	var got []string
	for ip := range Hosts(context.Background(), target) {
		got = append(got, ip.String())
	}

	want := []string{
		"192.168.1.1", "192.168.1.2", "192.168.1.3",
		"192.168.1.4", "192.168.1.5", "192.168.1.6",
	}

	if len(got) != len(want) {
		t.Fatalf("Hosts() yielded %d addresses, want %d: %v", len(got), len(want), got)
	}

	for i, ip := range want {
		if got[i] != ip {
			t.Errorf("Hosts()[%d] = %s, want %s", i, got[i], ip)
		}
	}
}

func TestHostsPointToPointIncludesBoth(t *testing.T) {
	target, err := ParseTarget(context.Background(), "10.0.0.0/31")
	if err != nil {
		t.Fatalf("ParseTarget error = %v", err)
	}

	var got []string
	for ip := range Hosts(context.Background(), target) {
		got = append(got, ip.String())
	}

	if len(got) != 2 {
		t.Fatalf("Hosts() on /31 yielded %d addresses, want 2: %v", len(got), got)
	}
}

func TestWorkItemsCartesianProduct(t *testing.T) {
	target, err := ParseTarget(context.Background(), "10.0.0.0/30")
	if err != nil {
		t.Fatalf("ParseTarget error = %v", err)
	}

	ports, err := models.ParsePortRange("80,443")
	if err != nil {
		t.Fatalf("ParsePortRange error = %v", err)
	}

	ctx := context.Background()
	items := WorkItems(ctx, Hosts(ctx, target), ports, models.ScanConnect)

	count := 0
	for range items {
		count++
	}

	// /30 yields 2 usable hosts x 2 ports.
	if count != 4 {
		t.Errorf("WorkItems produced %d items, want 4", count)
	}
}

func TestParseTargetBareIP(t *testing.T) {
	target, err := ParseTarget(context.Background(), "127.0.0.1")
	if err != nil {
		t.Fatalf("ParseTarget error = %v", err)
	}

	if target.CIDR.String() != "127.0.0.1/32" {
		t.Errorf("CIDR = %s, want 127.0.0.1/32", target.CIDR.String())
	}
}

func TestParseTargetMalformedCIDR(t *testing.T) {
	if _, err := ParseTarget(context.Background(), "10.0.0.0/abc"); err == nil {
		t.Error("ParseTarget(malformed CIDR) = nil error, want error")
	}
}

package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/doublegate/prortip/pkg/packet"
	"github.com/doublegate/prortip/pkg/probe"
)

type fakeTransport struct {
	resp   probe.Response
	echoOK bool
}

func (f *fakeTransport) SendTCP(context.Context, *packet.TCPSpec, packet.BuildOptions) error { return nil }
func (f *fakeTransport) SendUDP(context.Context, *packet.UDPSpec, packet.BuildOptions) error { return nil }
func (f *fakeTransport) SendICMPEcho(context.Context, net.IP, *packet.ICMPEchoSpec) error    { return nil }

func (f *fakeTransport) Await(context.Context, string, uint16, time.Duration) (probe.Response, error) {
	return f.resp, nil
}

func (f *fakeTransport) AwaitICMPEcho(context.Context, string, time.Duration) (bool, error) {
	return f.echoOK, nil
}

func TestSYNProberLiveOnSYNACK(t *testing.T) {
	ft := &fakeTransport{resp: probe.Response{TCPFlags: packet.FlagSYN | packet.FlagACK}}
	raw := probe.NewRawProber(ft, net.ParseIP("10.0.0.1"), 1234)
	p := NewSYNProber(raw)

	live, err := p.Probe(context.Background(), "10.0.0.2", time.Second)
	if err != nil {
		t.Fatalf("Probe error = %v", err)
	}

	if !live {
		t.Error("live = false, want true")
	}
}

func TestSYNProberDeadOnTimeout(t *testing.T) {
	ft := &fakeTransport{resp: probe.Response{TimedOut: true}}
	raw := probe.NewRawProber(ft, net.ParseIP("10.0.0.1"), 1234)
	p := NewSYNProber(raw)

	live, err := p.Probe(context.Background(), "10.0.0.2", time.Second)
	if err != nil {
		t.Fatalf("Probe error = %v", err)
	}

	if live {
		t.Error("live = true, want false")
	}
}

func TestICMPProberLiveOnEchoReply(t *testing.T) {
	ft := &fakeTransport{echoOK: true}
	raw := probe.NewRawProber(ft, net.ParseIP("10.0.0.1"), 0)
	p := NewICMPProber(raw)

	live, err := p.Probe(context.Background(), "10.0.0.2", time.Second)
	if err != nil {
		t.Fatalf("Probe error = %v", err)
	}

	if !live {
		t.Error("live = false, want true")
	}
}

func TestUDPProberLiveOnICMPUnreachable(t *testing.T) {
	ft := &fakeTransport{resp: probe.Response{ICMPUnreach: true}}
	raw := probe.NewRawProber(ft, net.ParseIP("10.0.0.1"), 1234)
	p := NewUDPProber(raw)

	live, err := p.Probe(context.Background(), "10.0.0.2", time.Second)
	if err != nil {
		t.Fatalf("Probe error = %v", err)
	}

	if !live {
		t.Error("live = false, want true")
	}
}

func TestUDPProberDeadOnTimeout(t *testing.T) {
	ft := &fakeTransport{resp: probe.Response{TimedOut: true}}
	raw := probe.NewRawProber(ft, net.ParseIP("10.0.0.1"), 1234)
	p := NewUDPProber(raw)

	live, err := p.Probe(context.Background(), "10.0.0.2", time.Second)
	if err != nil {
		t.Fatalf("Probe error = %v", err)
	}

	if live {
		t.Error("live = true, want false")
	}
}

func TestUDPProberInvalidHost(t *testing.T) {
	ft := &fakeTransport{}
	raw := probe.NewRawProber(ft, net.ParseIP("10.0.0.1"), 1234)
	p := NewUDPProber(raw)

	live, err := p.Probe(context.Background(), "not-an-ip", time.Second)
	if err != nil {
		t.Fatalf("Probe error = %v", err)
	}

	if live {
		t.Error("live = true, want false")
	}
}

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

package discovery

import (
	"context"
	"math/rand"
	"net"
	"time"

	"github.com/doublegate/prortip/pkg/models"
	"github.com/doublegate/prortip/pkg/packet"
	"github.com/doublegate/prortip/pkg/probe"
)

// SYNProber pings a well-known TCP port with a raw SYN; any SYN-ACK or
// RST classifies the host as live, a timeout does not.
type SYNProber struct {
	Raw  *probe.RawProber
	Port uint16
}

// NewSYNProber constructs a SYNProber against DefaultSYNPort.
func NewSYNProber(raw *probe.RawProber) *SYNProber {
	return &SYNProber{Raw: raw, Port: DefaultSYNPort}
}

func (p *SYNProber) Name() string { return "syn" }

func (p *SYNProber) Probe(ctx context.Context, host string, timeout time.Duration) (bool, error) {
	result, err := p.Raw.Probe(ctx, host, p.Port, models.ScanSYN, timeout)
	if err != nil {
		return false, err
	}

	return result.State == models.StateOpen || result.State == models.StateClosed, nil
}

// ICMPProber sends an ICMP echo request; any echo reply classifies
// the host as live.
type ICMPProber struct {
	Raw *probe.RawProber
}

// NewICMPProber constructs an ICMPProber.
func NewICMPProber(raw *probe.RawProber) *ICMPProber {
	return &ICMPProber{Raw: raw}
}

func (p *ICMPProber) Name() string { return "icmp" }

func (p *ICMPProber) Probe(ctx context.Context, host string, timeout time.Duration) (bool, error) {
	id := int(rand.Uint32() & 0xffff)
	return p.Raw.EchoProbe(ctx, host, timeout, id, 1)
}

// UDPProber sends a UDP probe to a well-known port; any reply or ICMP
// port-unreachable classifies the host as live (both prove something
// answered at the IP layer). Unlike port scanning — where an
// unanswered UDP probe is conservatively reported Open|Filtered — a
// bare timeout here does NOT classify the host as live, matching
// discovery's "all probes timed out" skip rule.
type UDPProber struct {
	Raw  *probe.RawProber
	Port uint16
}

// NewUDPProber constructs a UDPProber against DefaultUDPPort.
func NewUDPProber(raw *probe.RawProber) *UDPProber {
	return &UDPProber{Raw: raw, Port: DefaultUDPPort}
}

func (p *UDPProber) Name() string { return "udp" }

func (p *UDPProber) Probe(ctx context.Context, host string, timeout time.Duration) (bool, error) {
	dstIP := net.ParseIP(host)
	if dstIP == nil {
		return false, nil
	}

	udpSpec := &packet.UDPSpec{SrcIP: p.Raw.SrcIP, DstIP: dstIP, SrcPort: p.Raw.SrcPort, DstPort: p.Port}

	if err := p.Raw.Transport.SendUDP(ctx, udpSpec, p.Raw.Opts); err != nil {
		return false, err
	}

	resp, err := p.Raw.Transport.Await(ctx, host, p.Port, timeout)
	if err != nil {
		return false, nil
	}

	if resp.TimedOut {
		return false, nil
	}

	return resp.ICMPUnreach || len(resp.UDPPayload) > 0, nil
}

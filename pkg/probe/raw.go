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

package probe

import (
	"context"
	"net"
	"time"

	"github.com/doublegate/prortip/pkg/models"
	"github.com/doublegate/prortip/pkg/packet"
)

// Response is a single matched reply a Transport hands back to a raw
// prober: the TCP flags observed (for TCP probes) or a classification
// hint (for UDP/ICMP), keyed by whatever (host,port) the caller awaited.
type Response struct {
	TCPFlags    uint8
	ICMPUnreach bool // ICMP port-unreachable, for the UDP prober
	UDPPayload  []byte
	TimedOut    bool
}

// Transport is the collaborator a raw prober sends packets through and
// awaits matching replies from. pkg/sender provides the concrete
// implementation over a batch-sending raw socket; tests inject a fake.
type Transport interface {
	SendTCP(ctx context.Context, spec *packet.TCPSpec, opts packet.BuildOptions) error
	SendUDP(ctx context.Context, spec *packet.UDPSpec, opts packet.BuildOptions) error
	SendICMPEcho(ctx context.Context, dst net.IP, spec *packet.ICMPEchoSpec) error
	Await(ctx context.Context, host string, port uint16, timeout time.Duration) (Response, error)
	AwaitICMPEcho(ctx context.Context, host string, timeout time.Duration) (bool, error)
}

// RawProber issues SYN/FIN/NULL/Xmas/ACK/UDP probes and classifies the
// response per scan type.
type RawProber struct {
	Transport Transport
	SrcIP     net.IP
	SrcPort   uint16
	Opts      packet.BuildOptions
}

// NewRawProber constructs a RawProber bound to a transport and the
// scanner's chosen source address/port.
func NewRawProber(t Transport, srcIP net.IP, srcPort uint16) *RawProber {
	return &RawProber{Transport: t, SrcIP: srcIP, SrcPort: srcPort}
}

func (p *RawProber) tcpSpec(dstIP net.IP, dstPort uint16) *packet.TCPSpec {
	return &packet.TCPSpec{
		SrcIP: p.SrcIP, DstIP: dstIP,
		SrcPort: p.SrcPort, DstPort: dstPort,
		Seq: randSeq(), Window: 65535,
	}
}

// Probe issues one probe of scanType against host:port and classifies
// the result.
func (p *RawProber) Probe(ctx context.Context, host string, port uint16, scanType models.ScanType, timeout time.Duration) (models.Result, error) {
	dstIP := net.ParseIP(host)
	if dstIP == nil {
		return models.Result{}, models.NewProbeError(models.KindProbeBuildError, host, port, errInvalidHost)
	}

	switch scanType {
	case models.ScanSYN, models.ScanFIN, models.ScanNULL, models.ScanXmas, models.ScanACK:
		return p.probeTCPFlags(ctx, dstIP, host, port, scanType, timeout)
	case models.ScanUDP:
		return p.probeUDP(ctx, dstIP, host, port, timeout)
	default:
		return models.Result{}, models.NewProbeError(models.KindProbeBuildError, host, port, errUnsupportedScanType)
	}
}

func (p *RawProber) probeTCPFlags(ctx context.Context, dstIP net.IP, host string, port uint16, scanType models.ScanType, timeout time.Duration) (models.Result, error) {
	spec := p.tcpSpec(dstIP, port)

	switch scanType {
	case models.ScanSYN:
		spec.Flags = packet.FlagSYN
	case models.ScanFIN:
		spec.Flags = packet.FlagFIN
	case models.ScanNULL:
		spec.Flags = 0
	case models.ScanXmas:
		spec.Flags = packet.FlagFIN | packet.FlagPSH | packet.FlagURG
	case models.ScanACK:
		spec.Flags = packet.FlagACK
	}

	if err := p.Transport.SendTCP(ctx, spec, p.Opts); err != nil {
		return models.Result{}, models.NewProbeError(models.KindBackpressureError, host, port, err)
	}

	resp, err := p.Transport.Await(ctx, host, port, timeout)
	if err != nil {
		return models.Result{}, models.NewProbeError(models.KindTimeout, host, port, err)
	}

	state := classifyTCPFlagsResponse(scanType, resp)

	return models.Result{
		TargetIP: host, Port: port, Type: scanType,
		State: state, Timestamp: time.Now(),
	}, nil
}

// classifyTCPFlagsResponse applies the per-scan-type raw-prober
// classification table.
func classifyTCPFlagsResponse(scanType models.ScanType, resp Response) models.PortState {
	switch scanType {
	case models.ScanSYN:
		switch {
		case resp.TimedOut:
			return models.StateFiltered
		case resp.TCPFlags&packet.FlagRST != 0:
			return models.StateClosed
		case resp.TCPFlags&packet.FlagSYN != 0 && resp.TCPFlags&packet.FlagACK != 0:
			return models.StateOpen
		default:
			return models.StateFiltered
		}
	case models.ScanFIN, models.ScanNULL, models.ScanXmas:
		if !resp.TimedOut && resp.TCPFlags&packet.FlagRST != 0 {
			return models.StateClosed
		}
		// No response is ambiguous between open and filtered; report Open by convention.
		return models.StateOpen
	case models.ScanACK:
		if !resp.TimedOut && resp.TCPFlags&packet.FlagRST != 0 {
			return models.StateOpen // "Unfiltered" has no distinct PortState, so it's encoded as Open
		}

		return models.StateFiltered
	default:
		return models.StateUnknown
	}
}

func (p *RawProber) probeUDP(ctx context.Context, dstIP net.IP, host string, port uint16, timeout time.Duration) (models.Result, error) {
	spec := &packet.UDPSpec{SrcIP: p.SrcIP, DstIP: dstIP, SrcPort: p.SrcPort, DstPort: port}

	if err := p.Transport.SendUDP(ctx, spec, p.Opts); err != nil {
		return models.Result{}, models.NewProbeError(models.KindBackpressureError, host, port, err)
	}

	resp, err := p.Transport.Await(ctx, host, port, timeout)
	if err != nil {
		return models.Result{}, models.NewProbeError(models.KindTimeout, host, port, err)
	}

	state := models.StateOpen // "Open|Filtered" ambiguity defaults to Open

	switch {
	case resp.ICMPUnreach:
		state = models.StateClosed
	case len(resp.UDPPayload) > 0:
		state = models.StateOpen
	}

	return models.Result{
		TargetIP: host, Port: port, Type: models.ScanUDP,
		State: state, Timestamp: time.Now(), RawResponse: resp.UDPPayload,
	}, nil
}

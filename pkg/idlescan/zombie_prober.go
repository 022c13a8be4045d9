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

package idlescan

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/doublegate/prortip/pkg/models"
	"github.com/doublegate/prortip/pkg/packet"
)

const tcpProtocol = 6

// zombieProbePort is the destination port MeasureIPID's own-address
// probe targets; any port works since the goal is only to elicit an
// RST carrying the zombie's current IPID, not to classify the port.
const zombieProbePort = 80

var errZombieTimeout = fmt.Errorf("idlescan: zombie did not respond before timeout")

// RawZombieProber is the concrete ZombieProber: it measures a zombie's
// IPID by probing it from the scanner's own address and reading the
// Identification field off the reply's IP header on a raw receive
// socket, and emits the spoofed SYN through a raw IP_HDRINCL socket
// with the zombie's address in the source field.
//
// Both ProbeMode values send through the same IP_HDRINCL socket;
// RawIP additionally pins a distinct TTL, the one field this prober
// can vary without a second non-HDRINCL send path. A from-scratch
// IP_FREEBIND-bound socket for Layer3Socket (letting the kernel itself
// fill in most header fields while still honoring a spoofed bind
// address) is the higher-fidelity alternative but needs a capability
// beyond CAP_NET_RAW on some kernels; documented as a simplification
// rather than silently assumed.
type RawZombieProber struct {
	SrcIP   net.IP
	SrcPort uint16

	mu     sync.Mutex
	sendFD int
	recvFD int
	nextID uint16
}

var _ ZombieProber = (*RawZombieProber)(nil)

// NewRawZombieProber opens the raw send/receive sockets idle scanning
// needs. Callers need CAP_NET_RAW, the same as every other raw prober
// in this module.
func NewRawZombieProber(srcIP net.IP, srcPort uint16) (*RawZombieProber, error) {
	sendFD, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_RAW, syscall.IPPROTO_RAW)
	if err != nil {
		return nil, fmt.Errorf("idlescan: open raw send socket: %w", err)
	}

	if err := syscall.SetsockoptInt(sendFD, syscall.IPPROTO_IP, syscall.IP_HDRINCL, 1); err != nil {
		_ = syscall.Close(sendFD)
		return nil, fmt.Errorf("idlescan: set IP_HDRINCL: %w", err)
	}

	recvFD, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_RAW, syscall.IPPROTO_TCP)
	if err != nil {
		_ = syscall.Close(sendFD)
		return nil, fmt.Errorf("idlescan: open raw receive socket: %w", err)
	}

	return &RawZombieProber{SrcIP: srcIP, SrcPort: srcPort, sendFD: sendFD, recvFD: recvFD}, nil
}

// Close releases the underlying sockets.
func (p *RawZombieProber) Close() error {
	_ = syscall.Close(p.recvFD)
	return syscall.Close(p.sendFD)
}

// MeasureIPID sends zombie a TCP ACK from the scanner's own address,
// which draws an RST regardless of the probed port's state, and reads
// the Identification field off that reply's IP header.
func (p *RawZombieProber) MeasureIPID(ctx context.Context, zombie net.IP, timeout time.Duration) (models.IPIDMeasurement, error) {
	if err := p.sendProbe(zombie, p.newID()); err != nil {
		return models.IPIDMeasurement{}, err
	}

	return p.awaitReply(ctx, zombie, timeout)
}

// SpoofedSYN sends a SYN to target:port with source address set to
// zombie, per mode.
func (p *RawZombieProber) SpoofedSYN(_ context.Context, zombie, target net.IP, port uint16, mode ProbeMode) error {
	ttl := uint8(64)
	if mode == RawIP {
		ttl = 128
	}

	return p.sendSpoofed(zombie, target, port, p.newID(), ttl)
}

func (p *RawZombieProber) newID() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++

	return p.nextID
}

func (p *RawZombieProber) sendProbe(dst net.IP, id uint16) error {
	seg, err := packet.BuildTCP(&packet.TCPSpec{
		SrcIP: p.SrcIP, DstIP: dst,
		SrcPort: p.SrcPort, DstPort: zombieProbePort,
		Seq: randSeq(), Flags: packet.FlagACK, Window: 1024,
	}, packet.BuildOptions{})
	if err != nil {
		return fmt.Errorf("idlescan: build probe segment: %w", err)
	}

	hdr, err := packet.BuildIPv4Header(packet.IPv4HeaderSpec{
		SrcIP: p.SrcIP, DstIP: dst, ID: id, Protocol: tcpProtocol, PayloadLen: len(seg),
	})
	if err != nil {
		return fmt.Errorf("idlescan: build probe header: %w", err)
	}

	return p.sendTo(dst, append(hdr, seg...))
}

func (p *RawZombieProber) sendSpoofed(zombie, target net.IP, port uint16, id uint16, ttl uint8) error {
	seg, err := packet.BuildTCP(&packet.TCPSpec{
		SrcIP: zombie, DstIP: target,
		SrcPort: p.SrcPort, DstPort: port,
		Seq: randSeq(), Flags: packet.FlagSYN, Window: 1024,
	}, packet.BuildOptions{})
	if err != nil {
		return fmt.Errorf("idlescan: build spoofed segment: %w", err)
	}

	hdr, err := packet.BuildIPv4Header(packet.IPv4HeaderSpec{
		SrcIP: zombie, DstIP: target, ID: id, TTL: ttl, Protocol: tcpProtocol, PayloadLen: len(seg),
	})
	if err != nil {
		return fmt.Errorf("idlescan: build spoofed header: %w", err)
	}

	return p.sendTo(target, append(hdr, seg...))
}

func (p *RawZombieProber) sendTo(dst net.IP, datagram []byte) error {
	var addr syscall.SockaddrInet4

	copy(addr.Addr[:], dst.To4())

	return syscall.Sendto(p.sendFD, datagram, 0, &addr)
}

// awaitReply polls the raw receive socket until a packet whose IP
// header names zombie as source arrives, or timeout elapses.
func (p *RawZombieProber) awaitReply(ctx context.Context, zombie net.IP, timeout time.Duration) (models.IPIDMeasurement, error) {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 128)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return models.IPIDMeasurement{}, errZombieTimeout
		}

		select {
		case <-ctx.Done():
			return models.IPIDMeasurement{}, ctx.Err()
		default:
		}

		tv := syscall.NsecToTimeval(remaining.Nanoseconds())
		if err := syscall.SetsockoptTimeval(p.recvFD, syscall.SOL_SOCKET, syscall.SO_RCVTIMEO, &tv); err != nil {
			return models.IPIDMeasurement{}, fmt.Errorf("idlescan: set recv timeout: %w", err)
		}

		n, _, err := syscall.Recvfrom(p.recvFD, buf, 0)
		if err != nil {
			continue // includes the read-timeout case: loop to re-check the deadline
		}

		hdr, err := packet.ParseIPv4Header(buf[:n])
		if err != nil || !hdr.SrcIP.Equal(zombie) {
			continue
		}

		return models.IPIDMeasurement{IPID: hdr.ID, Timestamp: time.Now()}, nil
	}
}

// randSeq picks an initial sequence number; any 32-bit value works
// since this prober never completes a handshake.
func randSeq() uint32 {
	return rand.Uint32()
}

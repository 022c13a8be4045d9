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

package sender

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/doublegate/prortip/pkg/bufpool"
	"github.com/doublegate/prortip/pkg/packet"
	"github.com/doublegate/prortip/pkg/probe"
)

// RawTransport is the concrete probe.Transport: it builds packets via
// pkg/packet, queues them onto a Batch, and demultiplexes replies read
// off a raw IP listening socket (and a parallel ICMP listener) back to
// whichever goroutine is awaiting them.
type RawTransport struct {
	sendFD4 int
	icmp4   *icmp.PacketConn

	pool *bufpool.Pool

	batch *Batch

	mu      sync.Mutex
	pending map[pendingKey]chan probe.Response
	echoes  map[int]chan bool

	closeOnce sync.Once
	stop      chan struct{}
}

type pendingKey struct {
	host string
	port uint16
}

var _ probe.Transport = (*RawTransport)(nil)

// New opens the raw send/receive sockets this transport needs.
// Callers need CAP_NET_RAW (or an equivalent capability/privilege).
func New() (*RawTransport, error) {
	sendFD, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_RAW, syscall.IPPROTO_RAW)
	if err != nil {
		return nil, fmt.Errorf("sender: open raw send socket: %w", err)
	}

	if err := syscall.SetsockoptInt(sendFD, syscall.IPPROTO_IP, syscall.IP_HDRINCL, 1); err != nil {
		_ = syscall.Close(sendFD)
		return nil, fmt.Errorf("sender: set IP_HDRINCL: %w", err)
	}

	icmpConn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		_ = syscall.Close(sendFD)
		return nil, fmt.Errorf("sender: listen icmp: %w", err)
	}

	t := &RawTransport{
		sendFD4: sendFD,
		icmp4:   icmpConn,
		pool:    bufpool.New(),
		pending: make(map[pendingKey]chan probe.Response),
		echoes:  make(map[int]chan bool),
		stop:    make(chan struct{}),
	}

	t.batch = NewBatch(func(pkts []outboundPacket) (int, error) {
		return sendmmsgBatch(t.sendFD4, pkts)
	})

	go t.readICMPLoop()

	return t, nil
}

// Close releases the underlying sockets.
func (t *RawTransport) Close() error {
	t.closeOnce.Do(func() { close(t.stop) })

	_ = t.icmp4.Close()

	return syscall.Close(t.sendFD4)
}

func (t *RawTransport) SendTCP(ctx context.Context, spec *packet.TCPSpec, opts packet.BuildOptions) error {
	raw, err := packet.BuildTCP(spec, opts)
	if err != nil {
		return err
	}

	return t.enqueue(spec.DstIP, raw)
}

func (t *RawTransport) SendUDP(ctx context.Context, spec *packet.UDPSpec, opts packet.BuildOptions) error {
	raw, err := packet.BuildUDP(spec, opts)
	if err != nil {
		return err
	}

	return t.enqueue(spec.DstIP, raw)
}

func (t *RawTransport) SendICMPEcho(ctx context.Context, dst net.IP, spec *packet.ICMPEchoSpec) error {
	raw, err := packet.BuildICMPEcho(spec, packet.BuildOptions{})
	if err != nil {
		return err
	}

	t.registerEcho(spec.ID)

	return t.enqueue(dst, raw)
}

func (t *RawTransport) enqueue(dst net.IP, raw []byte) error {
	handle := t.pool.Acquire(len(raw))
	copy(handle.Buf, raw)

	return t.batch.Add(dst, handle.Buf[:len(raw)])
}

// Await blocks until a reply matching (host, port) arrives or timeout
// elapses.
func (t *RawTransport) Await(ctx context.Context, host string, port uint16, timeout time.Duration) (probe.Response, error) {
	ch := t.registerPending(host, port)
	defer t.unregisterPending(host, port)

	select {
	case resp := <-ch:
		return resp, nil
	case <-time.After(timeout):
		return probe.Response{TimedOut: true}, nil
	case <-ctx.Done():
		return probe.Response{}, ctx.Err()
	}
}

func (t *RawTransport) AwaitICMPEcho(ctx context.Context, host string, timeout time.Duration) (bool, error) {
	// The echo-reply reader matches by ID, registered in SendICMPEcho;
	// here we just wait for whichever registration fires next, since
	// one EchoProbe call owns exactly one ID at a time.
	t.mu.Lock()
	var ch chan bool
	for _, c := range t.echoes {
		ch = c
	}
	t.mu.Unlock()

	if ch == nil {
		return false, nil
	}

	select {
	case alive := <-ch:
		return alive, nil
	case <-time.After(timeout):
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (t *RawTransport) registerPending(host string, port uint16) chan probe.Response {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan probe.Response, 1)
	t.pending[pendingKey{host, port}] = ch

	return ch
}

func (t *RawTransport) unregisterPending(host string, port uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.pending, pendingKey{host, port})
}

func (t *RawTransport) registerEcho(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.echoes[id] = make(chan bool, 1)
}

// readICMPLoop reads incoming ICMP packets (echo replies and
// destination-unreachable notifications) and routes them to whichever
// goroutine is awaiting that (host, port) or echo ID.
func (t *RawTransport) readICMPLoop() {
	buf := make([]byte, 1500)

	for {
		select {
		case <-t.stop:
			return
		default:
		}

		_ = t.icmp4.SetReadDeadline(time.Now().Add(200 * time.Millisecond))

		n, peer, err := t.icmp4.ReadFrom(buf)
		if err != nil {
			continue
		}

		msg, err := icmp.ParseMessage(1, buf[:n])
		if err != nil {
			continue
		}

		t.routeICMP(peer, msg)
	}
}

func (t *RawTransport) routeICMP(peer net.Addr, msg *icmp.Message) {
	host, _, _ := net.SplitHostPort(peer.String())
	if host == "" {
		host = peer.String()
	}

	switch body := msg.Body.(type) {
	case *icmp.Echo:
		if msg.Type == ipv4.ICMPTypeEchoReply {
			t.mu.Lock()
			ch, ok := t.echoes[body.ID]
			if ok {
				delete(t.echoes, body.ID)
			}
			t.mu.Unlock()

			if ok {
				select {
				case ch <- true:
				default:
				}
			}
		}
	case *icmp.DstUnreach:
		t.mu.Lock()
		for key, ch := range t.pending {
			if key.host == host {
				select {
				case ch <- probe.Response{ICMPUnreach: true}:
				default:
				}
			}
		}
		t.mu.Unlock()
	}
}

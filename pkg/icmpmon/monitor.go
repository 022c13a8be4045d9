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

// Package icmpmon opens raw ICMP and ICMPv6 listening sockets and
// broadcasts destination-unreachable/admin-prohibited signals to
// subscribers, the way the rate controller's AIMD backoff needs.
package icmpmon

import (
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/doublegate/prortip/pkg/packet"
)

var errAlreadyStarted = fmt.Errorf("icmp monitor: already started")

// readTimeout bounds each blocking read so shutdown can be observed
// promptly.
const readTimeout = 100 * time.Millisecond

// Signal is one admin-prohibited (or equivalent ICMPv6 destination
// unreachable) notification broadcast to every subscriber.
type Signal struct {
	TargetIP  string
	Type      int
	Code      int
	Timestamp time.Time
}

// Monitor is created -> started (spawns a listener task per family) ->
// subscribed by N consumers -> shutdown (atomic flag observed on the
// listener's next read timeout).
type Monitor struct {
	conn4   *icmp.PacketConn
	conn6   *icmp.PacketConn
	running atomic.Bool // needs release/acquire ordering, not relaxed
	started atomic.Bool

	mu   sync.Mutex
	subs []chan Signal

	wg sync.WaitGroup
}

// New opens IPv4 and IPv6 raw ICMP listening sockets. IPv6 is optional:
// its absence (no IPv6 support on the host) does not fail construction.
func New() (*Monitor, error) {
	conn4, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("icmp monitor: listen ipv4: %w", err)
	}

	conn6, err := icmp.ListenPacket("ip6:ipv6-icmp", "::")
	if err != nil {
		log.Printf("icmp monitor: ipv6 listener unavailable: %v", err)
		conn6 = nil
	}

	return &Monitor{conn4: conn4, conn6: conn6}, nil
}

// Subscribe registers a new consumer channel. Must be called before Start
// for the subscriber to see every signal from the beginning.
func (m *Monitor) Subscribe() <-chan Signal {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Signal, 64)
	m.subs = append(m.subs, ch)

	return ch
}

// Start spawns the listener task(s). A double-start returns an error.
func (m *Monitor) Start() error {
	if !m.started.CompareAndSwap(false, true) {
		return errAlreadyStarted
	}

	m.running.Store(true)

	m.wg.Add(1)
	go m.listen(m.conn4, false)

	if m.conn6 != nil {
		m.wg.Add(1)
		go m.listen(m.conn6, true)
	}

	return nil
}

// Shutdown sets the atomic running flag; the listener task observes it
// on its next read timeout and exits. Shutdown blocks until both
// listener tasks have returned.
func (m *Monitor) Shutdown() {
	m.running.Store(false)
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ch := range m.subs {
		close(ch)
	}

	m.subs = nil
}

func (m *Monitor) listen(conn *icmp.PacketConn, v6 bool) {
	defer m.wg.Done()

	buf := make([]byte, 1500)

	for m.running.Load() {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			log.Printf("icmp monitor: set read deadline: %v", err)
			return
		}

		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			continue // includes the read-timeout case: loop to re-check running
		}

		m.handlePacket(buf[:n], peer, v6)
	}
}

func (m *Monitor) handlePacket(b []byte, peer net.Addr, v6 bool) {
	proto := protoICMPv4
	if v6 {
		proto = protoICMPv6
	}

	msg, err := icmp.ParseMessage(proto, b)
	if err != nil {
		return
	}

	typ, code, ok := destUnreachableTypeCode(msg, v6)
	if !ok {
		return
	}

	if v6 {
		if !packet.IsAdminProhibitedV6(typ, code) {
			return
		}
	} else if !packet.IsAdminProhibited(typ, code) {
		return
	}

	host := ""
	if udpAddr, ok := peer.(*net.IPAddr); ok {
		host = udpAddr.IP.String()
	}

	m.broadcast(Signal{TargetIP: host, Type: typ, Code: code, Timestamp: time.Now()})
}

func destUnreachableTypeCode(msg *icmp.Message, v6 bool) (typ, code int, ok bool) {
	if v6 {
		t, isV6Type := msg.Type.(ipv6.ICMPType)
		if !isV6Type || t != ipv6.ICMPTypeDestinationUnreachable {
			return 0, 0, false
		}

		return int(t), msg.Code, true
	}

	t, isV4Type := msg.Type.(ipv4.ICMPType)
	if !isV4Type || t != ipv4.ICMPTypeDestinationUnreachable {
		return 0, 0, false
	}

	return int(t), msg.Code, true
}

func (m *Monitor) broadcast(sig Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ch := range m.subs {
		select {
		case ch <- sig:
		default: // slow subscriber: drop rather than block the listener
		}
	}
}

const (
	protoICMPv4 = 1
	protoICMPv6 = 58
)

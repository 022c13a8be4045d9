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

// Package sender implements the batch raw-socket transport that
// pkg/probe's raw probers send through: packets accumulate into a
// batch (capped at 1024) and flush via the platform's multi-message
// send primitive where available, falling back to sequential sends
// with an identical (count-sent, error) contract elsewhere.
package sender

import (
	"log"
	"net"
	"sync"
)

// MaxBatchSize is the largest number of packets accumulated before a
// flush is forced.
const MaxBatchSize = 1024

// outboundPacket is one queued send: a raw IP datagram addressed to
// dst, already fully built (headers, checksums) by pkg/packet.
type outboundPacket struct {
	dst     net.IP
	payload []byte
}

// Batch accumulates outbound packets and flushes them through a
// platform sendFunc, retrying partial sends on the unsent tail.
type Batch struct {
	mu       sync.Mutex
	packets  []outboundPacket
	sendFunc func([]outboundPacket) (int, error)
}

// NewBatch constructs a Batch bound to a platform send function.
func NewBatch(sendFunc func([]outboundPacket) (int, error)) *Batch {
	return &Batch{sendFunc: sendFunc}
}

// Add queues one packet, flushing immediately if the batch is full.
func (b *Batch) Add(dst net.IP, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.packets = append(b.packets, outboundPacket{dst: dst, payload: payload})

	if len(b.packets) >= MaxBatchSize {
		return b.flushLocked(3)
	}

	return nil
}

// Flush sends everything queued, retrying the unsent tail up to
// retries times; on exhaustion it logs and returns the count actually
// sent.
func (b *Batch) Flush(retries int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.flushAndCount(retries)
}

func (b *Batch) flushLocked(retries int) error {
	_, err := b.flushAndCount(retries)
	return err
}

func (b *Batch) flushAndCount(retries int) (int, error) {
	pending := b.packets
	b.packets = nil

	totalSent := 0

	for attempt := 0; attempt <= retries && len(pending) > 0; attempt++ {
		sent, err := b.sendFunc(pending)
		totalSent += sent

		if sent >= len(pending) {
			return totalSent, err
		}

		pending = pending[sent:]

		if err != nil && attempt == retries {
			log.Printf("sender: batch flush exhausted retries, %d packets unsent: %v", len(pending), err)
			return totalSent, err
		}
	}

	if len(pending) > 0 {
		log.Printf("sender: batch flush gave up on %d packets", len(pending))
	}

	return totalSent, nil
}

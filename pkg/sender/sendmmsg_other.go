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

//go:build !linux

package sender

import "golang.org/x/sys/unix"

// sendmmsgBatch falls back to sequential unix.Sendto calls on
// platforms without a multi-message send syscall. The contract —
// count actually sent, first error encountered — matches the Linux
// path exactly.
func sendmmsgBatch(fd int, pending []outboundPacket) (int, error) {
	sent := 0

	for _, pkt := range pending {
		addr := &unix.SockaddrInet4{}
		copy(addr.Addr[:], pkt.dst.To4())

		if err := unix.Sendto(fd, pkt.payload, 0, addr); err != nil {
			return sent, err
		}

		sent++
	}

	return sent, nil
}

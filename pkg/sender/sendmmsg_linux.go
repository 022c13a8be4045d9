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

//go:build linux

package sender

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// sendmmsgBatch sends pending over a raw IPv4 socket fd using one
// unix.Sendmmsg syscall, invoking the OS multi-message send primitive
// once per batch. Returns the count actually sent.
func sendmmsgBatch(fd int, pending []outboundPacket) (int, error) {
	if len(pending) == 0 {
		return 0, nil
	}

	msgs := make([]unix.Mmsghdr, len(pending))
	iovecs := make([]unix.Iovec, len(pending))
	addrs := make([]unix.RawSockaddrInet4, len(pending))

	for i, pkt := range pending {
		iovecs[i].Base = &pkt.payload[0]
		iovecs[i].SetLen(len(pkt.payload))

		addrs[i].Family = unix.AF_INET
		copy(addrs[i].Addr[:], pkt.dst.To4())

		msgs[i].Hdr.Name = (*byte)(unsafe.Pointer(&addrs[i]))
		msgs[i].Hdr.Namelen = unix.SizeofSockaddrInet4
		msgs[i].Hdr.Iov = &iovecs[i]
		msgs[i].Hdr.Iovlen = 1
	}

	return unix.Sendmmsg(fd, msgs, 0)
}

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

	"github.com/doublegate/prortip/pkg/packet"
)

// EchoProbe sends an ICMP echo request and awaits a matching echo
// reply, for host discovery only — it never yields a port state.
func (p *RawProber) EchoProbe(ctx context.Context, host string, timeout time.Duration, id, seq int) (bool, error) {
	dstIP := net.ParseIP(host)
	if dstIP == nil {
		return false, errInvalidHost
	}

	spec := &packet.ICMPEchoSpec{ID: id, Seq: seq, SrcIP: p.SrcIP, DstIP: dstIP}

	if err := p.Transport.SendICMPEcho(ctx, dstIP, spec); err != nil {
		return false, err
	}

	return p.Transport.AwaitICMPEcho(ctx, host, timeout)
}

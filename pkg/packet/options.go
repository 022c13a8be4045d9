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

package packet

import "net"

// BuildOptions composes the evasion techniques a builder may apply. The
// zero value builds a plain, correct packet. Of its fields only
// BadChecksum changes what the builders produce.
type BuildOptions struct {
	// FragmentMTU names a tiny-fragment size in bytes. No builder or
	// sender in this module reads it; packets are never fragmented.
	FragmentMTU uint16

	// Decoys lists additional source addresses for the same probe. No
	// builder or sender in this module reads it; no decoy packets are
	// emitted.
	Decoys []net.IP

	// BadChecksum, if true, deliberately corrupts the transport checksum
	// after computing the correct one, for stacks that drop on checksum
	// failure (a negative test of firewall/IDS checksum validation).
	BadChecksum bool
}

// corruptChecksum flips the low bit of a checksum field that already
// holds the correct value, guaranteeing a detectably wrong checksum
// without risking an accidental correct one.
func corruptChecksum(c uint16) uint16 {
	return c ^ 1
}

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
	"fmt"
	"math/rand"
)

var (
	errInvalidHost         = fmt.Errorf("not a parseable IP address")
	errUnsupportedScanType = fmt.Errorf("scan type not handled by the raw prober")
)

// randSeq picks an initial sequence number the way a real stack would:
// any 32-bit value works since this scanner never completes a full
// handshake, so a process-local PRNG is sufficient.
func randSeq() uint32 {
	return rand.Uint32()
}

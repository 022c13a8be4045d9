//go:build raw_socket_integration_test

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
	"net"
	"os"
	"testing"
	"time"
)

// skipIfNotIntegration mirrors the raw-socket integration gate used
// throughout this repo: these tests need CAP_NET_RAW and a real
// network path, so they are opt-in only.
func skipIfNotIntegration(t *testing.T) {
	t.Helper()

	if os.Getenv("INTEGRATION_TESTS") == "" {
		t.Skip("Skipping integration test - set INTEGRATION_TESTS=1 to run")
	}
}

func TestRawZombieProberMeasuresLocalhostIPID(t *testing.T) {
	skipIfNotIntegration(t)

	prober, err := NewRawZombieProber(net.ParseIP("127.0.0.1"), 40123)
	if err != nil {
		t.Fatalf("NewRawZombieProber: %v", err)
	}
	defer prober.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := prober.MeasureIPID(ctx, net.ParseIP("127.0.0.1"), 2*time.Second); err != nil {
		t.Fatalf("MeasureIPID: %v", err)
	}
}

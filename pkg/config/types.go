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

package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/doublegate/prortip/pkg/models"
)

type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

// OutputFormat is the closed set of result renderings the CLI supports.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputXML  OutputFormat = "xml"
)

// ScanConfig is the full configuration for one scan invocation: CLI
// flags, security settings for the optional gRPC storage sink, and
// resource-monitor tuning, loaded from JSON and/or populated from flags.
type ScanConfig struct {
	Targets []string `json:"targets"`

	Ports        string              `json:"ports"`          // e.g. "1-1000" or "22,80,443"
	ScanType     models.ScanType     `json:"scan_type"`
	Timing       models.TimingTemplate `json:"timing"`
	Timeout      Duration            `json:"timeout"`        // per-probe timeout override; 0 uses the timing template's default
	MaxRate      float64             `json:"max_rate"`       // packets/sec ceiling
	MaxConcurrent int                `json:"max_concurrent"` // bounded-parallelism cap
	Retries      int                 `json:"retries"`
	ScanDelay    Duration            `json:"scan_delay"`

	OutputFormat OutputFormat `json:"output_format"`
	OutputFile   string       `json:"output_file,omitempty"`

	Discovery bool   `json:"discovery"`
	Interface string `json:"interface,omitempty"`
	Verbosity int    `json:"verbosity"`

	DBPath   string                 `json:"db_path,omitempty"`
	GRPCSink string                 `json:"grpc_sink,omitempty"` // collector address; empty disables forwarding
	Security *models.SecurityConfig `json:"security,omitempty"`

	Zombie string `json:"zombie,omitempty"` // third-party host to idle-scan through; required when ScanType is ScanIdle
}

// Validate enforces the CLI's documented bounds, returning the first
// violation found.
func (c *ScanConfig) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("config: at least one target is required")
	}

	timeoutMS := time.Duration(c.Timeout).Milliseconds()
	if c.Timeout != 0 && (timeoutMS < 1 || timeoutMS > 3_600_000) {
		return fmt.Errorf("config: timeout %dms out of range [1, 3600000]", timeoutMS)
	}

	if c.MaxRate != 0 && (c.MaxRate < 1 || c.MaxRate > 1e8) {
		return fmt.Errorf("config: max_rate %g out of range [1, 1e8]", c.MaxRate)
	}

	if c.MaxConcurrent != 0 && (c.MaxConcurrent < 1 || c.MaxConcurrent > 100_000) {
		return fmt.Errorf("config: max_concurrent %d out of range [1, 100000]", c.MaxConcurrent)
	}

	if c.Retries < 0 || c.Retries > 10 {
		return fmt.Errorf("config: retries %d out of range [0, 10]", c.Retries)
	}

	if c.Timing < models.TimingParanoid || c.Timing > models.TimingInsane {
		return fmt.Errorf("config: timing template %d out of range [0, 5]", c.Timing)
	}

	switch c.ScanType {
	case models.ScanConnect, models.ScanSYN, models.ScanFIN, models.ScanNULL,
		models.ScanXmas, models.ScanACK, models.ScanUDP, models.ScanIdle:
	default:
		return fmt.Errorf("config: unknown scan type %q", c.ScanType)
	}

	if c.ScanType == models.ScanIdle && c.Zombie == "" {
		return fmt.Errorf("config: idle scan requires a zombie host")
	}

	switch c.OutputFormat {
	case "", OutputText, OutputJSON, OutputXML:
	default:
		return fmt.Errorf("config: unknown output format %q", c.OutputFormat)
	}

	return nil
}

var _ Validator = (*ScanConfig)(nil)

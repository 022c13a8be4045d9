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

// Package output renders a finished scan's results as text, JSON, or
// XML, to either a file or stdout.
package output

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/doublegate/prortip/pkg/config"
	"github.com/doublegate/prortip/pkg/models"
)

// xmlResults is the root element wrapping a result batch for XML
// rendering; models.Result has no XML tags of its own since JSON is
// the primary wire format.
type xmlResults struct {
	XMLName xml.Name     `xml:"scan"`
	Results []xmlResult  `xml:"result"`
}

type xmlResult struct {
	TargetIP string `xml:"target_ip,attr"`
	Port     uint16 `xml:"port,attr"`
	Type     string `xml:"type,attr"`
	State    string `xml:"state,attr"`
	Service  string `xml:"service,omitempty"`
	Banner   string `xml:"banner,omitempty"`
}

// Write renders results in format to w. Results are sorted by
// (TargetIP, Port) so output is stable across runs regardless of the
// order the aggregator drained them in.
func Write(w io.Writer, format config.OutputFormat, results []models.Result) error {
	sorted := make([]models.Result, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].TargetIP != sorted[j].TargetIP {
			return sorted[i].TargetIP < sorted[j].TargetIP
		}
		return sorted[i].Port < sorted[j].Port
	})

	switch format {
	case config.OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sorted)
	case config.OutputXML:
		doc := xmlResults{Results: make([]xmlResult, len(sorted))}
		for i, r := range sorted {
			doc.Results[i] = xmlResult{
				TargetIP: r.TargetIP,
				Port:     r.Port,
				Type:     string(r.Type),
				State:    string(r.State),
				Service:  r.Service,
				Banner:   r.Banner,
			}
		}

		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")
		return enc.Encode(doc)
	default:
		return writeText(w, sorted)
	}
}

func writeText(w io.Writer, results []models.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "HOST\tPORT\tTYPE\tSTATE\tSERVICE")

	for _, r := range results {
		service := r.Service
		if service == "" {
			service = "-"
		}

		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", r.TargetIP, r.Port, r.Type, r.State, service)
	}

	return tw.Flush()
}

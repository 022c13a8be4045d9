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

// Package statusapi exposes a running scan's progress and throughput
// counters over HTTP: a one-shot JSON snapshot and a WebSocket stream
// pushing the same snapshot once a second.
package statusapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	httpx "github.com/doublegate/prortip/pkg/http"
	"github.com/doublegate/prortip/pkg/models"
	"github.com/doublegate/prortip/pkg/progress"
)

// pushInterval is how often the stream endpoint sends a fresh snapshot.
const pushInterval = time.Second

// StatusReport is the JSON body both endpoints serve.
type StatusReport struct {
	ScanID        string                           `json:"scan_id"`
	Completed     int64                            `json:"completed"`
	ElapsedMS     int64                            `json:"elapsed_ms"`
	RatePerSecond float64                           `json:"rate_per_second"`
	PacketsPerSec float64                           `json:"packets_per_second"`
	States        map[models.PortState]int64        `json:"states"`
	Errors        map[models.ErrorCategory]int64    `json:"errors"`
}

// Server serves a single scan's status over HTTP and WebSocket.
type Server struct {
	ScanID     string
	Counters   *progress.Counters
	Throughput *progress.ThroughputMonitor

	router   *mux.Router
	upgrader websocket.Upgrader
}

// New constructs a Server wired to counters and throughput, both owned
// by the scheduler running the scan.
func New(scanID string, counters *progress.Counters, throughput *progress.ThroughputMonitor) *Server {
	s := &Server{
		ScanID:     scanID,
		Counters:   counters,
		Throughput: throughput,
		router:     mux.NewRouter(),
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(httpx.CommonMiddleware)

	s.router.HandleFunc("/status", s.getStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/status/stream", s.streamStatus).Methods(http.MethodGet)
}

// Handler returns the composed http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) snapshot() StatusReport {
	snap := s.Counters.Snapshot()

	var pps float64
	if s.Throughput != nil {
		pps = s.Throughput.PacketsPerSecond()
	}

	return StatusReport{
		ScanID:        s.ScanID,
		Completed:     snap.Completed,
		ElapsedMS:     snap.Elapsed.Milliseconds(),
		RatePerSecond: snap.Rate(),
		PacketsPerSec: pps,
		States:        snap.States,
		Errors:        snap.Errors,
	}
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(s.snapshot()); err != nil {
		log.Printf("statusapi: encode status: %v", err)
	}
}

// streamStatus upgrades to a WebSocket and pushes a fresh snapshot once
// a second until the client disconnects or the request context is done.
func (s *Server) streamStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("statusapi: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	ctx := r.Context()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteJSON(s.snapshot()); err != nil {
				return
			}
		}
	}
}

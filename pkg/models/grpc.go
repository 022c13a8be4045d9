/*-
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

package models

// ServerConfig holds the gRPC sink server configuration.
type ServerConfig struct {
	ListenAddr string          `json:"listen_addr"`
	Security   *SecurityConfig `json:"security"`
}

// ServiceRole identifies which side of the sink connection a process plays.
type ServiceRole string

const (
	RoleScanner   ServiceRole = "scanner"   // dials out with result batches
	RoleCollector ServiceRole = "collector" // accepts result batches
)

// SecurityConfig holds the transport security configuration for the
// storage sink's gRPC channel.
type SecurityConfig struct {
	Mode           SecurityMode `json:"mode"`
	CertDir        string       `json:"cert_dir"`
	ServerName     string       `json:"server_name,omitempty"`
	Role           ServiceRole  `json:"role"`
	TrustDomain    string       `json:"trust_domain,omitempty"`    // For SPIFFE
	WorkloadSocket string       `json:"workload_socket,omitempty"` // For SPIFFE
	S2AAddress     string       `json:"s2a_address,omitempty"`     // For S2A
}

// SecurityMode selects the transport security scheme for the sink channel.
type SecurityMode string

const (
	SecurityNone   SecurityMode = "none"
	SecurityMTLS   SecurityMode = "mtls"
	SecuritySpiffe SecurityMode = "spiffe"
	SecurityS2A    SecurityMode = "s2a"
)

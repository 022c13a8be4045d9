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

// Package tlsprobe performs an optional TLS handshake against a port
// already classified Open, and extracts the leaf certificate's
// service-identification fields. Like the mTLS and SPIFFE gRPC
// transport security in pkg/storage, it uses crypto/tls directly.
package tlsprobe

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"time"

	"github.com/doublegate/prortip/pkg/models"
)

// Config tunes the handshake: whether to verify the peer certificate
// chain (off by default, since scanning arbitrary hosts means the
// scanner usually has no trust anchor for them) and the SNI name to
// present.
type Config struct {
	ServerName        string
	InsecureSkipVerify bool
	HandshakeTimeout   time.Duration
}

// DefaultConfig skips verification (this is a recon tool, not a
// trust decision) and allows 3s for the handshake.
func DefaultConfig() Config {
	return Config{InsecureSkipVerify: true, HandshakeTimeout: 3 * time.Second}
}

// Prober performs the handshake and extracts TLSInfo.
type Prober struct {
	Config Config
}

// New constructs a Prober.
func New(cfg Config) *Prober {
	return &Prober{Config: cfg}
}

// Probe dials host:port, performs a TLS handshake, and returns the
// peer's identification metadata. Callers are expected to call this
// only against ports already classified Open by a port scan.
func (p *Prober) Probe(ctx context.Context, host string, port uint16) (*models.TLSInfo, error) {
	dialCtx, cancel := context.WithTimeout(ctx, p.Config.HandshakeTimeout)
	defer cancel()

	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))

	serverName := p.Config.ServerName
	if serverName == "" {
		serverName = host
	}

	dialer := tls.Dialer{
		Config: &tls.Config{
			ServerName:         serverName,
			InsecureSkipVerify: p.Config.InsecureSkipVerify,
			MinVersion:         tls.VersionTLS10,
		},
	}

	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return nil, errNotTLSConn
	}

	state := tlsConn.ConnectionState()

	info := &models.TLSInfo{
		Version:     versionName(state.Version),
		CipherSuite: tls.CipherSuiteName(state.CipherSuite),
	}

	if len(state.PeerCertificates) > 0 {
		leaf := state.PeerCertificates[0]
		info.Subject = leaf.Subject.String()
		info.Issuer = leaf.Issuer.String()
		info.NotAfter = leaf.NotAfter
		info.DNSNames = leaf.DNSNames
	}

	return info, nil
}

func versionName(v uint16) string {
	switch v {
	case tls.VersionTLS10:
		return "TLS1.0"
	case tls.VersionTLS11:
		return "TLS1.1"
	case tls.VersionTLS12:
		return "TLS1.2"
	case tls.VersionTLS13:
		return "TLS1.3"
	default:
		return "unknown"
	}
}

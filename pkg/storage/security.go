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

package storage

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	s2a "github.com/google/s2a-go"
	"github.com/spiffe/go-spiffe/v2/spiffeid"
	"github.com/spiffe/go-spiffe/v2/spiffetls/tlsconfig"
	"github.com/spiffe/go-spiffe/v2/workloadapi"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/doublegate/prortip/pkg/models"
)

var (
	errSecurityConfigRequired = errors.New("storage: security config required")
	errInvalidServiceRole     = errors.New("storage: invalid service role")
	errServiceNotClient       = errors.New("storage: provider not configured for client credentials")
	errServiceNotServer       = errors.New("storage: provider not configured for server credentials")
)

// SecurityProvider produces the gRPC transport credentials the sink's
// client and server sides need, selected by models.SecurityMode.
type SecurityProvider interface {
	GetClientCredentials(ctx context.Context) (grpc.DialOption, error)
	GetServerCredentials(ctx context.Context) (grpc.ServerOption, error)
	Close() error
}

// NewSecurityProvider picks the provider implementation for
// config.Mode. A nil config (or an empty mode) falls back to no
// security, logged loudly since that is almost never what a
// production deployment wants.
func NewSecurityProvider(ctx context.Context, config *models.SecurityConfig) (SecurityProvider, error) {
	if config == nil || config.Mode == "" {
		log.Printf("storage: SECURITY WARNING: no security config, using insecure transport")
		return &NoSecurityProvider{}, nil
	}

	switch models.SecurityMode(strings.ToLower(string(config.Mode))) {
	case models.SecurityNone:
		return &NoSecurityProvider{}, nil
	case models.SecurityMTLS:
		return NewMTLSProvider(config)
	case models.SecuritySpiffe:
		return NewSpiffeProvider(ctx, config)
	case models.SecurityS2A:
		return NewS2AProvider(config)
	default:
		return nil, fmt.Errorf("storage: unknown security mode %q", config.Mode)
	}
}

// NoSecurityProvider is plaintext gRPC, for local development only.
type NoSecurityProvider struct{}

func (*NoSecurityProvider) GetClientCredentials(context.Context) (grpc.DialOption, error) {
	return grpc.WithTransportCredentials(insecure.NewCredentials()), nil
}

func (*NoSecurityProvider) GetServerCredentials(context.Context) (grpc.ServerOption, error) {
	return grpc.Creds(insecure.NewCredentials()), nil
}

func (*NoSecurityProvider) Close() error { return nil }

// MTLSProvider implements mutual TLS between scanner and collector,
// loading certs/keys from config.CertDir.
type MTLSProvider struct {
	config      *models.SecurityConfig
	clientCreds credentials.TransportCredentials
	serverCreds credentials.TransportCredentials
	needsClient bool
	needsServer bool
	closeOnce   sync.Once
}

// NewMTLSProvider loads only the credentials config.Role actually
// needs: a scanner only ever dials out, a collector only ever accepts.
func NewMTLSProvider(config *models.SecurityConfig) (*MTLSProvider, error) {
	if config == nil {
		return nil, errSecurityConfigRequired
	}

	p := &MTLSProvider{config: config}

	switch config.Role {
	case models.RoleScanner:
		p.needsClient = true
	case models.RoleCollector:
		p.needsServer = true
	default:
		return nil, fmt.Errorf("%w: %s", errInvalidServiceRole, config.Role)
	}

	var err error

	if p.needsClient {
		if p.clientCreds, err = loadTLSCredentials(config, "client.pem", "client-key.pem", false); err != nil {
			return nil, fmt.Errorf("storage: load client credentials: %w", err)
		}
	}

	if p.needsServer {
		if p.serverCreds, err = loadTLSCredentials(config, "server.pem", "server-key.pem", true); err != nil {
			return nil, fmt.Errorf("storage: load server credentials: %w", err)
		}
	}

	return p, nil
}

func loadTLSCredentials(config *models.SecurityConfig, certFile, keyFile string, isServer bool) (credentials.TransportCredentials, error) {
	certPath := filepath.Join(config.CertDir, certFile)
	keyPath := filepath.Join(config.CertDir, keyFile)

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load keypair: %w", err)
	}

	caCert, err := os.ReadFile(filepath.Join(config.CertDir, "root.pem"))
	if err != nil {
		return nil, fmt.Errorf("read CA cert: %w", err)
	}

	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("append CA cert to pool")
	}

	tlsConfig := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS13}

	if isServer {
		tlsConfig.ClientCAs = caPool
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	} else {
		tlsConfig.RootCAs = caPool
		tlsConfig.ServerName = config.ServerName
	}

	return credentials.NewTLS(tlsConfig), nil
}

func (p *MTLSProvider) GetClientCredentials(context.Context) (grpc.DialOption, error) {
	if !p.needsClient {
		return nil, errServiceNotClient
	}

	return grpc.WithTransportCredentials(p.clientCreds), nil
}

func (p *MTLSProvider) GetServerCredentials(context.Context) (grpc.ServerOption, error) {
	if !p.needsServer {
		return nil, errServiceNotServer
	}

	return grpc.Creds(p.serverCreds), nil
}

func (p *MTLSProvider) Close() error {
	p.closeOnce.Do(func() {})
	return nil
}

// SpiffeProvider implements mTLS identity via the SPIFFE workload API,
// for deployments with a SPIRE agent already running alongside the
// scanner.
type SpiffeProvider struct {
	config    *models.SecurityConfig
	client    *workloadapi.Client
	source    *workloadapi.X509Source
	closeOnce sync.Once
}

// NewSpiffeProvider connects to the SPIRE workload API socket and
// establishes an auto-rotating X.509 source.
func NewSpiffeProvider(ctx context.Context, config *models.SecurityConfig) (*SpiffeProvider, error) {
	socket := config.WorkloadSocket
	if socket == "" {
		socket = "unix:/run/spire/sockets/agent.sock"
	}

	client, err := workloadapi.New(ctx, workloadapi.WithAddr(socket))
	if err != nil {
		return nil, fmt.Errorf("storage: connect workload API: %w", err)
	}

	source, err := workloadapi.NewX509Source(ctx, workloadapi.WithClient(client))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("storage: create X509 source: %w", err)
	}

	return &SpiffeProvider{config: config, client: client, source: source}, nil
}

func (p *SpiffeProvider) GetClientCredentials(context.Context) (grpc.DialOption, error) {
	serverID, err := spiffeid.FromString(p.config.TrustDomain)
	if err != nil {
		return nil, fmt.Errorf("storage: invalid server SPIFFE ID: %w", err)
	}

	tlsConfig := tlsconfig.MTLSClientConfig(p.source, p.source, tlsconfig.AuthorizeID(serverID))

	return grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)), nil
}

func (p *SpiffeProvider) GetServerCredentials(context.Context) (grpc.ServerOption, error) {
	authorizer := tlsconfig.AuthorizeAny()

	if p.config.TrustDomain != "" {
		trustDomain, err := spiffeid.TrustDomainFromString(p.config.TrustDomain)
		if err != nil {
			return nil, fmt.Errorf("storage: invalid trust domain: %w", err)
		}

		authorizer = tlsconfig.AuthorizeMemberOf(trustDomain)
	}

	tlsConfig := tlsconfig.MTLSServerConfig(p.source, p.source, authorizer)

	return grpc.Creds(credentials.NewTLS(tlsConfig)), nil
}

func (p *SpiffeProvider) Close() error {
	p.closeOnce.Do(func() {
		if p.source != nil {
			if err := p.source.Close(); err != nil {
				log.Printf("storage: closing X509 source: %v", err)
			}
		}

		if p.client != nil {
			if err := p.client.Close(); err != nil {
				log.Printf("storage: closing workload client: %v", err)
			}
		}
	})

	return nil
}

// S2AProvider uses Google's Secure Session Agent as an alternative to
// locally managed certificates, for deployments running inside a
// mesh that already speaks S2A.
type S2AProvider struct {
	config *models.SecurityConfig
}

// NewS2AProvider validates the config names an S2A address; the
// actual handshaker connection is established lazily per credential
// request, matching s2a-go's own client/server constructors.
func NewS2AProvider(config *models.SecurityConfig) (*S2AProvider, error) {
	if config.S2AAddress == "" {
		return nil, errors.New("storage: s2a security mode requires an S2A address")
	}

	return &S2AProvider{config: config}, nil
}

func (p *S2AProvider) GetClientCredentials(context.Context) (grpc.DialOption, error) {
	creds, err := s2a.NewClientCreds(&s2a.ClientOptions{S2AAddress: p.config.S2AAddress})
	if err != nil {
		return nil, fmt.Errorf("storage: s2a client credentials: %w", err)
	}

	return grpc.WithTransportCredentials(creds), nil
}

func (p *S2AProvider) GetServerCredentials(context.Context) (grpc.ServerOption, error) {
	creds, err := s2a.NewServerCreds(&s2a.ServerOptions{S2AAddress: p.config.S2AAddress})
	if err != nil {
		return nil, fmt.Errorf("storage: s2a server credentials: %w", err)
	}

	return grpc.Creds(creds), nil
}

func (p *S2AProvider) Close() error { return nil }

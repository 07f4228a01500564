// Package mcp exposes the registry's read surface as MCP tools so
// agent clients can discover services, keys, and offers without
// speaking gRPC themselves. Mutations stay on the authenticated gRPC
// API.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/louisbranch/keybazaar/internal/api/grpc/registryv1"
	platformgrpc "github.com/louisbranch/keybazaar/internal/platform/grpc"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "keybazaar Registry MCP"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP serves MCP over an HTTP listener.
	TransportHTTP TransportKind = "http"
)

// Config configures the MCP server.
type Config struct {
	RegistryAddr string
	Transport    TransportKind
	HTTPAddr     string
}

// Server hosts the MCP server.
type Server struct {
	mcpServer *mcp.Server
	conn      *grpc.ClientConn
}

// New creates a configured MCP server backed by the registry gRPC API.
func New(registryAddr string) (*Server, error) {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)

	conn, err := grpc.NewClient(registryAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to registry at %s: %w", registryAddr, err)
	}
	client := registryv1.NewClient(conn)

	registerRegistryTools(mcpServer, client)

	return &Server{mcpServer: mcpServer, conn: conn}, nil
}

// registerRegistryTools binds the read-only registry tools.
func registerRegistryTools(server *mcp.Server, client *registryv1.Client) {
	mcp.AddTool(server, ServiceGetTool(), ServiceGetHandler(client))
	mcp.AddTool(server, ServiceListTool(), ServiceListHandler(client))
	mcp.AddTool(server, KeyGetTool(), KeyGetHandler(client))
	mcp.AddTool(server, KeyListTool(), KeyListHandler(client))
	mcp.AddTool(server, OffersGetTool(), OffersGetHandler(client))
	mcp.AddTool(server, OwnershipCheckTool(), OwnershipCheckHandler(client))
	mcp.AddTool(server, InfoTool(), InfoHandler(client))
}

// Run creates and serves the MCP server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}

	switch cfg.Transport {
	case TransportStdio:
		return runWithTransport(ctx, cfg.RegistryAddr, &mcp.StdioTransport{})
	case TransportHTTP:
		return runWithHTTPTransport(ctx, cfg)
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
}

// runWithTransport creates a server and serves it over the provided transport.
func runWithTransport(ctx context.Context, registryAddr string, transport mcp.Transport) error {
	server, err := New(registryAddr)
	if err != nil {
		return err
	}
	if err := platformgrpc.WaitForHealth(ctx, server.conn, "", log.Printf); err != nil {
		closeErr := server.Close()
		if closeErr != nil {
			return fmt.Errorf("wait for registry health: %v; close connection: %w", err, closeErr)
		}
		return err
	}
	return server.serveWithTransport(ctx, transport)
}

// runWithHTTPTransport creates a server and serves it over HTTP transport.
func runWithHTTPTransport(ctx context.Context, cfg Config) error {
	httpAddr := cfg.HTTPAddr
	if httpAddr == "" {
		httpAddr = "localhost:8085"
	}

	server, err := New(cfg.RegistryAddr)
	if err != nil {
		return err
	}
	defer server.Close()

	if err := platformgrpc.WaitForHealth(ctx, server.conn, "", log.Printf); err != nil {
		return err
	}

	healthCtx, healthCancel := context.WithCancel(ctx)
	defer healthCancel()
	go server.monitorHealth(healthCtx)

	transport := NewHTTPTransport(httpAddr, server.mcpServer)
	return transport.Start(ctx)
}

// monitorHealth periodically checks the registry connection. Failures
// are logged but do not terminate the HTTP server; individual tool
// calls surface their own errors.
func (s *Server) monitorHealth(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.conn == nil {
				continue
			}
			healthClient := grpc_health_v1.NewHealthClient(s.conn)
			callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			response, err := healthClient.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: ""})
			cancel()
			if err != nil {
				log.Printf("registry health check failed: %v", err)
			} else if response.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
				log.Printf("registry health check status: %s", response.GetStatus().String())
			}
		}
	}
}

// Serve starts the MCP server on stdio and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// Close releases the gRPC connection held by the server.
func (s *Server) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return err
	}
	s.conn = nil
	return nil
}

// serveWithTransport starts the MCP server using the provided transport.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	closeErr := s.Close()
	if closeErr != nil {
		if err == nil {
			return fmt.Errorf("close registry connection: %w", closeErr)
		}
		return fmt.Errorf("serve MCP: %v; close registry connection: %w", err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// Package app composes the standalone settlement-ledger process: an
// in-memory balance book behind the Ledger gRPC service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	ledgerapi "github.com/louisbranch/keybazaar/internal/api/grpc/ledger"
	"github.com/louisbranch/keybazaar/internal/api/grpc/ledgerv1"
	grpcmeta "github.com/louisbranch/keybazaar/internal/api/grpc/metadata"
	"github.com/louisbranch/keybazaar/internal/ledger"
)

// Config holds ledger server configuration.
type Config struct {
	// GRPCAddr is the gRPC listen address.
	GRPCAddr string
	// Mint seeds initial balances, account id to base-unit amount.
	Mint map[string]uint64
}

// Server hosts the ledger gRPC service. Balances live in memory; the
// process is a settlement counterparty for local and test deployments.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	book       *ledger.Book
}

// New creates a configured ledger server.
func New(cfg Config) (*Server, error) {
	listener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
	}

	book := ledger.NewBook()
	for account, amount := range cfg.Mint {
		if err := book.Mint(context.Background(), account, amount); err != nil {
			_ = listener.Close()
			return nil, fmt.Errorf("mint %s: %w", account, err)
		}
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(grpcmeta.UnaryServerInterceptor(nil)),
	)
	healthServer := health.NewServer()
	ledgerv1.RegisterLedgerServer(grpcServer, ledgerapi.NewServer(book))
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ledgerv1.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		book:       book,
	}, nil
}

// Addr returns the listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Book exposes the balance book for in-process composition.
func (s *Server) Book() *ledger.Book {
	return s.book
}

// Run creates and serves a ledger server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the ledger server and blocks until it stops or the
// context ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log.Printf("ledger server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	handleErr := func(err error) error {
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve ledger: %w", err)
	}

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		return handleErr(<-serveErr)
	case err := <-serveErr:
		return handleErr(err)
	}
}

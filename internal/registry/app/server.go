// Package app composes the registry service process: store, engine,
// gRPC transport with auth and metadata interceptors, health, and the
// optional debug listener with the live audit feed.
package app

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/louisbranch/keybazaar/internal/api/grpc/auth"
	"github.com/louisbranch/keybazaar/internal/api/grpc/ledgerv1"
	grpcmeta "github.com/louisbranch/keybazaar/internal/api/grpc/metadata"
	registryapi "github.com/louisbranch/keybazaar/internal/api/grpc/registry"
	"github.com/louisbranch/keybazaar/internal/api/grpc/registryv1"
	"github.com/louisbranch/keybazaar/internal/audit"
	"github.com/louisbranch/keybazaar/internal/ledger"
	platformgrpc "github.com/louisbranch/keybazaar/internal/platform/grpc"
	"github.com/louisbranch/keybazaar/internal/registry"
	"github.com/louisbranch/keybazaar/internal/registry/storage"
	"github.com/louisbranch/keybazaar/internal/registry/storage/memory"
	"github.com/louisbranch/keybazaar/internal/registry/storage/sqlite"
)

// Config holds registry server configuration.
type Config struct {
	// GRPCAddr is the gRPC listen address.
	GRPCAddr string
	// DebugAddr enables the debug HTTP listener (health page plus the
	// /watch audit feed) when non-empty.
	DebugAddr string
	// DBPath locates the SQLite database. Empty keeps all state in
	// memory, which suits local runs and tests.
	DBPath string
	// Admin is the account allowed to call administrative RPCs.
	Admin string
	// Account is the registry's own ledger identity.
	Account string
	// TokenPublicKey verifies access tokens. Authenticated RPCs are
	// rejected while it is unset.
	TokenPublicKey ed25519.PublicKey
	// LedgerAddr is the initial settlement-ledger address. A target
	// persisted by SetLedgerTarget takes precedence.
	LedgerAddr string
	// DialTimeout bounds ledger dialing.
	DialTimeout time.Duration
}

// Server hosts the registry gRPC service.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	store      storage.Store
	hub        *audit.Hub
	engine     *registry.Registry
	debug      *http.Server
	debugLst   net.Listener
}

// New creates a configured registry server.
func New(ctx context.Context, cfg Config) (*Server, error) {
	listener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	hub := audit.NewHub()
	dialer := ledgerDialer(cfg.DialTimeout)
	engine, err := registry.New(registry.Options{
		Store:        store,
		Hub:          hub,
		Admin:        cfg.Admin,
		Account:      cfg.Account,
		LedgerDialer: dialer,
	})
	if err != nil {
		_ = store.Close()
		_ = listener.Close()
		return nil, err
	}

	if err := connectLedger(ctx, engine, store, dialer, cfg.LedgerAddr); err != nil {
		_ = store.Close()
		_ = listener.Close()
		return nil, err
	}

	var verifier *auth.Verifier
	if len(cfg.TokenPublicKey) > 0 {
		verifier, err = auth.NewVerifier(auth.VerifierConfig{Key: cfg.TokenPublicKey})
		if err != nil {
			_ = store.Close()
			_ = listener.Close()
			return nil, fmt.Errorf("token verifier: %w", err)
		}
	} else {
		log.Print("registry: no token public key configured, authenticated RPCs will be rejected")
	}

	open := registryapi.OpenMethods()
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcmeta.UnaryServerInterceptor(nil),
			auth.UnaryServerInterceptor(verifier, open),
		),
		grpc.ChainStreamInterceptor(
			grpcmeta.StreamServerInterceptor(nil),
			auth.StreamServerInterceptor(verifier, open),
		),
	)
	healthServer := health.NewServer()
	registryv1.RegisterRegistryServer(grpcServer, registryapi.NewServer(engine))
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(registryv1.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	server := &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		store:      store,
		hub:        hub,
		engine:     engine,
	}

	if cfg.DebugAddr != "" {
		debugLst, err := net.Listen("tcp", cfg.DebugAddr)
		if err != nil {
			server.close()
			return nil, fmt.Errorf("listen on debug addr %s: %w", cfg.DebugAddr, err)
		}
		server.debugLst = debugLst
		server.debug = &http.Server{Handler: NewDebugHandler(hub)}
	}

	return server, nil
}

// Addr returns the gRPC listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// DebugAddr returns the debug listener address, or empty when disabled.
func (s *Server) DebugAddr() string {
	if s == nil || s.debugLst == nil {
		return ""
	}
	return s.debugLst.Addr().String()
}

// Run creates and serves a registry server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the registry server and blocks until it stops or the
// context ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.close()

	log.Printf("registry server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 2)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()
	if s.debug != nil {
		log.Printf("registry debug listener at %v", s.debugLst.Addr())
		go func() {
			serveErr <- s.debug.Serve(s.debugLst)
		}()
	}

	handleErr := func(err error) error {
		if err == nil || errors.Is(err, grpc.ErrServerStopped) || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve registry: %w", err)
	}

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		if s.debug != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = s.debug.Shutdown(shutdownCtx)
			cancel()
		}
		s.grpcServer.GracefulStop()
		return handleErr(<-serveErr)
	case err := <-serveErr:
		return handleErr(err)
	}
}

func (s *Server) close() {
	if s == nil {
		return
	}
	if s.debugLst != nil {
		_ = s.debugLst.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close registry store: %v", err)
		}
		s.store = nil
	}
}

func openStore(path string) (storage.Store, error) {
	if path == "" {
		log.Print("registry: no db path configured, state is in-memory only")
		return memory.New(), nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return store, nil
}

// ledgerDialer dials a settlement-ledger service, waiting for its health
// check before handing the connection to the engine.
func ledgerDialer(timeout time.Duration) registry.LedgerDialer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return func(ctx context.Context, target string) (ledger.Ledger, error) {
		conn, err := platformgrpc.DialWithHealth(ctx, nil, target, timeout, log.Printf,
			platformgrpc.DefaultClientDialOptions()...)
		if err != nil {
			return nil, fmt.Errorf("dial ledger %s: %w", target, err)
		}
		return ledgerv1.NewClient(conn), nil
	}
}

// connectLedger dials the persisted ledger target when one exists, the
// configured address otherwise. A missing address leaves settlement
// unconfigured, which only blocks purchases.
func connectLedger(ctx context.Context, engine *registry.Registry, store storage.Store, dial registry.LedgerDialer, configured string) error {
	target := configured
	err := store.View(ctx, func(tx storage.ReadTx) error {
		persisted, err := tx.Meta(storage.MetaLedgerTarget)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			return err
		}
		if persisted != "" {
			target = persisted
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("read ledger target: %w", err)
	}
	if target == "" {
		log.Print("registry: no settlement ledger configured, purchases are disabled")
		return nil
	}
	client, err := dial(ctx, target)
	if err != nil {
		return err
	}
	engine.SetLedger(client)
	return nil
}

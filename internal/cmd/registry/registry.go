// Package registry parses registry command flags and starts the
// registry gRPC service.
package registry

import (
	"context"
	"crypto/ed25519"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/louisbranch/keybazaar/internal/platform/cmd"
	"github.com/louisbranch/keybazaar/internal/registry/app"
	"github.com/louisbranch/keybazaar/internal/tools/accountkey"
)

// Config holds registry command configuration.
type Config struct {
	GRPCAddr       string        `env:"KEYBAZAAR_REGISTRY_GRPC_ADDR"  envDefault:":8080"`
	DebugAddr      string        `env:"KEYBAZAAR_REGISTRY_DEBUG_ADDR"`
	DBPath         string        `env:"KEYBAZAAR_REGISTRY_DB_PATH"`
	Admin          string        `env:"KEYBAZAAR_REGISTRY_ADMIN"`
	Account        string        `env:"KEYBAZAAR_REGISTRY_ACCOUNT"    envDefault:"acc1registry"`
	TokenPublicKey string        `env:"KEYBAZAAR_TOKEN_PUBLIC_KEY"`
	LedgerAddr     string        `env:"KEYBAZAAR_LEDGER_ADDR"`
	DialTimeout    time.Duration `env:"KEYBAZAAR_DIAL_TIMEOUT"        envDefault:"10s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "registry gRPC listen address")
	fs.StringVar(&cfg.DebugAddr, "debug-addr", cfg.DebugAddr, "debug HTTP listen address (empty disables)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path (empty keeps state in memory)")
	fs.StringVar(&cfg.Admin, "admin", cfg.Admin, "administrator account id")
	fs.StringVar(&cfg.Account, "account", cfg.Account, "registry ledger account id")
	fs.StringVar(&cfg.TokenPublicKey, "token-public-key", cfg.TokenPublicKey, "base64 access token public key")
	fs.StringVar(&cfg.LedgerAddr, "ledger-addr", cfg.LedgerAddr, "settlement ledger gRPC address")
	fs.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "ledger dial timeout")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the registry service and blocks until the context ends.
func Run(ctx context.Context, cfg Config) error {
	var tokenKey ed25519.PublicKey
	if cfg.TokenPublicKey != "" {
		key, err := accountkey.DecodePublicKey(cfg.TokenPublicKey)
		if err != nil {
			return fmt.Errorf("decode token public key: %w", err)
		}
		tokenKey = key
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRegistry, func(context.Context) error {
		if err := app.Run(ctx, app.Config{
			GRPCAddr:       cfg.GRPCAddr,
			DebugAddr:      cfg.DebugAddr,
			DBPath:         cfg.DBPath,
			Admin:          cfg.Admin,
			Account:        cfg.Account,
			TokenPublicKey: tokenKey,
			LedgerAddr:     cfg.LedgerAddr,
			DialTimeout:    cfg.DialTimeout,
		}); err != nil {
			return fmt.Errorf("serve registry: %w", err)
		}
		return nil
	})
}

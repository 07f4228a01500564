// Package seed parses seed command flags and replays a manifest
// against a running registry and ledger.
package seed

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/keybazaar/internal/api/grpc/auth"
	"github.com/louisbranch/keybazaar/internal/api/grpc/ledgerv1"
	"github.com/louisbranch/keybazaar/internal/api/grpc/registryv1"
	entrypoint "github.com/louisbranch/keybazaar/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/keybazaar/internal/platform/grpc"
	"github.com/louisbranch/keybazaar/internal/seed"
	"github.com/louisbranch/keybazaar/internal/tools/accountkey"
)

// Config holds seed command configuration.
type Config struct {
	RegistryAddr    string        `env:"KEYBAZAAR_REGISTRY_ADDR"     envDefault:"localhost:8080"`
	LedgerAddr      string        `env:"KEYBAZAAR_LEDGER_ADDR"       envDefault:"localhost:8081"`
	Manifest        string        `env:"KEYBAZAAR_SEED_MANIFEST"     envDefault:"seed.toml"`
	TokenPrivateKey string        `env:"KEYBAZAAR_TOKEN_PRIVATE_KEY"`
	RegistryAccount string        `env:"KEYBAZAAR_REGISTRY_ACCOUNT"  envDefault:"acc1registry"`
	DialTimeout     time.Duration `env:"KEYBAZAAR_DIAL_TIMEOUT"      envDefault:"10s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.RegistryAddr, "registry-addr", cfg.RegistryAddr, "registry gRPC address")
	fs.StringVar(&cfg.LedgerAddr, "ledger-addr", cfg.LedgerAddr, "ledger gRPC address (empty skips funding)")
	fs.StringVar(&cfg.Manifest, "manifest", cfg.Manifest, "seed manifest path")
	fs.StringVar(&cfg.TokenPrivateKey, "token-private-key", cfg.TokenPrivateKey, "base64 access token private key")
	fs.StringVar(&cfg.RegistryAccount, "registry-account", cfg.RegistryAccount, "registry ledger account id")
	fs.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "gRPC dial timeout")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run replays the manifest and exits.
func Run(ctx context.Context, cfg Config) error {
	manifest, err := seed.LoadManifest(cfg.Manifest)
	if err != nil {
		return err
	}

	if cfg.TokenPrivateKey == "" {
		return fmt.Errorf("seeding mutates the registry and needs KEYBAZAAR_TOKEN_PRIVATE_KEY")
	}
	key, err := accountkey.DecodePrivateKey(cfg.TokenPrivateKey)
	if err != nil {
		return fmt.Errorf("decode token private key: %w", err)
	}
	minter, err := auth.NewMinter(auth.MinterConfig{Key: key})
	if err != nil {
		return err
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSeed, func(context.Context) error {
		registryConn, err := platformgrpc.DialWithHealth(ctx, nil, cfg.RegistryAddr, cfg.DialTimeout, log.Printf,
			platformgrpc.DefaultClientDialOptions()...)
		if err != nil {
			return fmt.Errorf("dial registry at %s: %w", cfg.RegistryAddr, err)
		}
		defer registryConn.Close()

		runner := &seed.Runner{
			Registry:        registryv1.NewClient(registryConn),
			Minter:          minter,
			RegistryAccount: cfg.RegistryAccount,
			Logf:            log.Printf,
		}

		if cfg.LedgerAddr != "" {
			ledgerConn, err := platformgrpc.DialWithHealth(ctx, nil, cfg.LedgerAddr, cfg.DialTimeout, log.Printf,
				platformgrpc.DefaultClientDialOptions()...)
			if err != nil {
				return fmt.Errorf("dial ledger at %s: %w", cfg.LedgerAddr, err)
			}
			defer ledgerConn.Close()
			runner.Ledger = ledgerv1.NewClient(ledgerConn)
		}

		return runner.Apply(ctx, manifest)
	})
}

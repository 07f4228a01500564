// Package ledger parses ledger command flags and starts the
// standalone fungible-balance service.
package ledger

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/louisbranch/keybazaar/internal/ledger/app"
	entrypoint "github.com/louisbranch/keybazaar/internal/platform/cmd"
)

// Config holds ledger command configuration.
type Config struct {
	GRPCAddr string `env:"KEYBAZAAR_LEDGER_GRPC_ADDR" envDefault:":8081"`
	// Mint seeds balances at startup as comma-separated account=amount
	// pairs, e.g. "acc1alice=100,acc1bob=50".
	Mint string `env:"KEYBAZAAR_LEDGER_MINT"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "ledger gRPC listen address")
	fs.StringVar(&cfg.Mint, "mint", cfg.Mint, "startup balances as account=amount pairs")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseMint parses the startup balance list.
func ParseMint(spec string) (map[string]uint64, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	mint := make(map[string]uint64)
	for _, pair := range strings.Split(spec, ",") {
		account, amount, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || account == "" {
			return nil, fmt.Errorf("mint entry %q must be account=amount", pair)
		}
		value, err := strconv.ParseUint(amount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("mint amount for %s: %w", account, err)
		}
		mint[account] = value
	}
	return mint, nil
}

// Run starts the ledger service and blocks until the context ends.
func Run(ctx context.Context, cfg Config) error {
	mint, err := ParseMint(cfg.Mint)
	if err != nil {
		return err
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceLedger, func(context.Context) error {
		if err := app.Run(ctx, app.Config{
			GRPCAddr: cfg.GRPCAddr,
			Mint:     mint,
		}); err != nil {
			return fmt.Errorf("serve ledger: %w", err)
		}
		return nil
	})
}

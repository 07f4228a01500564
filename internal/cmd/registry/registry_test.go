package registry

import (
	"context"
	"flag"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("registry", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.GRPCAddr != ":8080" {
		t.Fatalf("expected default grpc addr, got %q", cfg.GRPCAddr)
	}
	if cfg.Account != "acc1registry" {
		t.Fatalf("expected default registry account, got %q", cfg.Account)
	}
	if cfg.DialTimeout != 10*time.Second {
		t.Fatalf("expected default dial timeout, got %v", cfg.DialTimeout)
	}
	if cfg.DBPath != "" {
		t.Fatalf("expected in-memory default, got %q", cfg.DBPath)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("KEYBAZAAR_REGISTRY_GRPC_ADDR", "env-grpc")
	t.Setenv("KEYBAZAAR_REGISTRY_ADMIN", "env-admin")
	t.Setenv("KEYBAZAAR_LEDGER_ADDR", "env-ledger")

	fs := flag.NewFlagSet("registry", flag.ContinueOnError)
	args := []string{
		"-grpc-addr", "flag-grpc",
		"-db-path", "flag-db",
	}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.GRPCAddr != "flag-grpc" {
		t.Fatalf("expected flag grpc addr, got %q", cfg.GRPCAddr)
	}
	if cfg.Admin != "env-admin" {
		t.Fatalf("expected env admin, got %q", cfg.Admin)
	}
	if cfg.LedgerAddr != "env-ledger" {
		t.Fatalf("expected env ledger addr, got %q", cfg.LedgerAddr)
	}
	if cfg.DBPath != "flag-db" {
		t.Fatalf("expected flag db path, got %q", cfg.DBPath)
	}
}

func TestRunRejectsBadTokenKey(t *testing.T) {
	err := Run(context.Background(), Config{
		GRPCAddr:       "127.0.0.1:0",
		TokenPublicKey: "not-base64!",
	})
	if err == nil {
		t.Fatal("expected error for malformed token public key")
	}
}

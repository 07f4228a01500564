package ledger

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.GRPCAddr != ":8081" {
		t.Fatalf("expected default grpc addr, got %q", cfg.GRPCAddr)
	}
	if cfg.Mint != "" {
		t.Fatalf("expected no default mint, got %q", cfg.Mint)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("KEYBAZAAR_LEDGER_GRPC_ADDR", "env-addr")
	t.Setenv("KEYBAZAAR_LEDGER_MINT", "acc1alice=100")

	fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-grpc-addr", "flag-addr"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.GRPCAddr != "flag-addr" {
		t.Fatalf("expected flag addr, got %q", cfg.GRPCAddr)
	}
	if cfg.Mint != "acc1alice=100" {
		t.Fatalf("expected env mint, got %q", cfg.Mint)
	}
}

func TestParseMint(t *testing.T) {
	mint, err := ParseMint("acc1alice=100, acc1bob=50")
	if err != nil {
		t.Fatalf("parse mint: %v", err)
	}
	if mint["acc1alice"] != 100 || mint["acc1bob"] != 50 {
		t.Fatalf("mint = %v", mint)
	}

	if _, err := ParseMint("acc1alice"); err == nil {
		t.Fatal("expected error for entry without amount")
	}
	if _, err := ParseMint("acc1alice=ten"); err == nil {
		t.Fatal("expected error for non-numeric amount")
	}
	if mint, err := ParseMint(""); err != nil || mint != nil {
		t.Fatalf("empty spec = %v, %v, want nil map", mint, err)
	}
}

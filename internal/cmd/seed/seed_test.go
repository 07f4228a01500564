package seed

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.RegistryAddr != "localhost:8080" {
		t.Fatalf("expected default registry addr, got %q", cfg.RegistryAddr)
	}
	if cfg.LedgerAddr != "localhost:8081" {
		t.Fatalf("expected default ledger addr, got %q", cfg.LedgerAddr)
	}
	if cfg.Manifest != "seed.toml" {
		t.Fatalf("expected default manifest, got %q", cfg.Manifest)
	}
	if cfg.DialTimeout != 10*time.Second {
		t.Fatalf("expected default dial timeout, got %v", cfg.DialTimeout)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("KEYBAZAAR_SEED_MANIFEST", "env.toml")
	t.Setenv("KEYBAZAAR_REGISTRY_ADDR", "env-registry")

	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-manifest", "flag.toml"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Manifest != "flag.toml" {
		t.Fatalf("expected flag manifest, got %q", cfg.Manifest)
	}
	if cfg.RegistryAddr != "env-registry" {
		t.Fatalf("expected env registry addr, got %q", cfg.RegistryAddr)
	}
}

func TestRunRequiresTokenKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.toml")
	if err := os.WriteFile(path, []byte("name = \"empty\"\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	err := Run(context.Background(), Config{Manifest: path})
	if err == nil {
		t.Fatal("expected error without token private key")
	}
}

func TestRunRejectsMissingManifest(t *testing.T) {
	err := Run(context.Background(), Config{Manifest: filepath.Join(t.TempDir(), "absent.toml")})
	if err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

package registryctl

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/keybazaar/internal/api/grpc/auth"
	"github.com/louisbranch/keybazaar/internal/registry/app"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("registryctl", flag.ContinueOnError)
	cfg, rest, err := ParseConfig(fs, []string{"info"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.RegistryAddr != "localhost:8080" {
		t.Fatalf("expected default registry addr, got %q", cfg.RegistryAddr)
	}
	if len(rest) != 1 || rest[0] != "info" {
		t.Fatalf("expected remaining command args, got %v", rest)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("KEYBAZAAR_REGISTRY_ADDR", "env-registry:1")
	t.Setenv("KEYBAZAAR_ACCESS_TOKEN", "env-token")

	fs := flag.NewFlagSet("registryctl", flag.ContinueOnError)
	cfg, _, err := ParseConfig(fs, []string{"-registry-addr", "flag-registry:1", "info"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.RegistryAddr != "flag-registry:1" {
		t.Fatalf("expected flag registry addr, got %q", cfg.RegistryAddr)
	}
	if cfg.Token != "env-token" {
		t.Fatalf("expected env token, got %q", cfg.Token)
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	out := &bytes.Buffer{}
	err := Run(context.Background(), Config{}, []string{"frobnicate"}, out)
	if err == nil {
		t.Fatal("expected unknown command error")
	}
	if !strings.Contains(out.String(), "usage: registryctl") {
		t.Fatalf("expected usage output, got %q", out.String())
	}
}

func TestRunRequiresCommand(t *testing.T) {
	err := Run(context.Background(), Config{}, nil, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected missing command error")
	}
}

func TestCommandsAgainstLiveRegistry(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate token key: %v", err)
	}

	server, err := app.New(context.Background(), app.Config{
		GRPCAddr:       "127.0.0.1:0",
		Admin:          "acc1admin",
		Account:        "acc1registry",
		TokenPublicKey: pub,
	})
	if err != nil {
		t.Fatalf("new registry server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-serveErr:
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	minter, err := auth.NewMinter(auth.MinterConfig{Key: priv})
	if err != nil {
		t.Fatalf("new minter: %v", err)
	}
	token, err := minter.Mint("acc1alice", "ctl-test", time.Minute)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	cfg := Config{
		RegistryAddr: server.Addr(),
		Token:        token,
		DialTimeout:  5 * time.Second,
	}

	out := &bytes.Buffer{}
	if err := Run(context.Background(), cfg, []string{"service-create", "https://ctl.example"}, out); err != nil {
		t.Fatalf("service-create: %v", err)
	}
	line := strings.TrimSpace(out.String())
	if !strings.Contains(line, "https://ctl.example") || !strings.Contains(line, "owner=acc1alice") {
		t.Fatalf("unexpected service-create output %q", line)
	}
	serviceID := strings.Fields(line)[0]

	out.Reset()
	if err := Run(context.Background(), cfg, []string{"key-issue", serviceID, "acc1bob"}, out); err != nil {
		t.Fatalf("key-issue: %v", err)
	}
	if !strings.Contains(out.String(), "owner=acc1bob") {
		t.Fatalf("unexpected key-issue output %q", out.String())
	}

	out.Reset()
	if err := Run(context.Background(), cfg, []string{"info"}, out); err != nil {
		t.Fatalf("info: %v", err)
	}
	if !strings.Contains(out.String(), "services\t1") || !strings.Contains(out.String(), "keys\t1") {
		t.Fatalf("unexpected info output %q", out.String())
	}
}

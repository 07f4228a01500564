package seed

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/louisbranch/keybazaar/internal/api/grpc/auth"
	"github.com/louisbranch/keybazaar/internal/api/grpc/ledgerv1"
	"github.com/louisbranch/keybazaar/internal/api/grpc/registryv1"
	ledgerapp "github.com/louisbranch/keybazaar/internal/ledger/app"
	registryapp "github.com/louisbranch/keybazaar/internal/registry/app"
)

const manifestTOML = `
name = "local"

[[accounts]]
id = "acc1buyer"
balance = 100
approve = 40

[[services]]
owner = "acc1alice"
url = "https://seeded.example/v1"
shared_with = ["acc1carol"]

  [[services.keys]]
  label = "alpha"
  recipient = "acc1bob"
  can_share = true
  can_sell = true
  shared_with = ["acc1carol"]

    [services.keys.sale]
    buyer = "acc1buyer"
    price = 40
    resellable = false

    [services.keys.data]
    tier = "gold"
`

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	manifest, err := LoadManifest(writeManifest(t, manifestTOML))
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if len(manifest.Accounts) != 1 || manifest.Accounts[0].Balance != 100 {
		t.Fatalf("accounts = %+v, want one funded account", manifest.Accounts)
	}
	if len(manifest.Services) != 1 || len(manifest.Services[0].Keys) != 1 {
		t.Fatalf("services = %+v, want one service with one key", manifest.Services)
	}
	key := manifest.Services[0].Keys[0]
	if key.Sale == nil || key.Sale.Price != 40 {
		t.Fatalf("key sale = %+v, want price 40", key.Sale)
	}
	if key.Data["tier"] != "gold" {
		t.Fatalf("key data = %v, want tier=gold", key.Data)
	}
}

func TestValidateRejectsSaleWithoutSellFlag(t *testing.T) {
	manifest := Manifest{Services: []Service{{
		Owner: "acc1alice",
		URL:   "https://x.example",
		Keys: []Key{{
			Label:     "alpha",
			Recipient: "acc1bob",
			Sale:      &Sale{Buyer: "acc1buyer", Price: 1},
		}},
	}}}
	if err := manifest.Validate(); err == nil {
		t.Fatal("expected validation error for sale without can_sell")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate token key: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 2)
	running := 0
	t.Cleanup(func() {
		cancel()
		for range running {
			select {
			case <-errs:
			case <-time.After(5 * time.Second):
				t.Error("server did not stop")
				return
			}
		}
	})

	ledgerServer, err := ledgerapp.New(ledgerapp.Config{GRPCAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("new ledger server: %v", err)
	}
	go func() { errs <- ledgerServer.Serve(ctx) }()
	running++

	// The registry dials the ledger during startup, so the ledger must
	// already be serving.
	registryServer, err := registryapp.New(ctx, registryapp.Config{
		GRPCAddr:       "127.0.0.1:0",
		Admin:          "acc1admin",
		Account:        "acc1registry",
		TokenPublicKey: pub,
		LedgerAddr:     ledgerServer.Addr(),
	})
	if err != nil {
		t.Fatalf("new registry server: %v", err)
	}
	go func() { errs <- registryServer.Serve(ctx) }()
	running++

	dial := func(addr string) *grpc.ClientConn {
		conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			t.Fatalf("dial %s: %v", addr, err)
		}
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	}
	minter, err := auth.NewMinter(auth.MinterConfig{Key: priv})
	if err != nil {
		t.Fatalf("new minter: %v", err)
	}

	registryClient := registryv1.NewClient(dial(registryServer.Addr()))
	ledgerClient := ledgerv1.NewClient(dial(ledgerServer.Addr()))
	runner := &Runner{
		Registry:        registryClient,
		Ledger:          ledgerClient,
		Minter:          minter,
		RegistryAccount: "acc1registry",
		Logf:            t.Logf,
	}

	manifest, err := LoadManifest(writeManifest(t, manifestTOML))
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}

	for run := range 2 {
		if err := runner.Apply(context.Background(), manifest); err != nil {
			t.Fatalf("apply run %d: %v", run+1, err)
		}
	}

	info, err := registryClient.GetRegistryInfo(context.Background())
	if err != nil {
		t.Fatalf("registry info: %v", err)
	}
	if info.ServiceCount != 1 || info.KeyCount != 1 {
		t.Fatalf("info = %+v, want exactly one service and one key after two runs", info)
	}

	keys, _, err := registryClient.ListKeys(context.Background(), registryv1.ListPage{})
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("got %d keys, want 1", len(keys))
	}
	key := keys[0]
	if !key.CanShare || key.CanTrade || !key.CanSell {
		t.Fatalf("key flags = %+v, want share and sell", key)
	}

	offer, live, err := registryClient.GetSalesOffer(context.Background(), key.ID)
	if err != nil {
		t.Fatalf("get sales offer: %v", err)
	}
	if !live || offer.Buyer != "acc1buyer" || offer.Price != 40 {
		t.Fatalf("offer = %+v live=%v, want the declared sale", offer, live)
	}

	value, err := registryClient.GetKeyData(context.Background(), key.ID, "tier")
	if err != nil {
		t.Fatalf("get key data: %v", err)
	}
	if value != "gold" {
		t.Fatalf("tier = %q, want gold", value)
	}

	balance, err := ledgerClient.BalanceOf(context.Background(), "acc1buyer")
	if err != nil {
		t.Fatalf("balance of: %v", err)
	}
	if balance != 100 {
		t.Fatalf("buyer balance = %d, want the declared 100 after both runs", balance)
	}
}

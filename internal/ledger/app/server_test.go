package app

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/louisbranch/keybazaar/internal/api/grpc/ledgerv1"
)

func TestServeAndSettleOverWire(t *testing.T) {
	server, err := New(Config{
		GRPCAddr: "127.0.0.1:0",
		Mint:     map[string]uint64{"acc1alice": 100},
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ctx)
	}()
	defer func() {
		cancel()
		select {
		case err := <-serveErr:
			if err != nil {
				t.Errorf("serve: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	}()

	conn, err := grpc.NewClient(server.Addr(),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	client := ledgerv1.NewClient(conn)

	balance, err := client.BalanceOf(context.Background(), "acc1alice")
	if err != nil {
		t.Fatalf("balance of: %v", err)
	}
	if balance != 100 {
		t.Fatalf("balance = %d, want the minted 100", balance)
	}

	if err := client.Approve(context.Background(), "acc1alice", "acc1registry", 40); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := client.TransferFrom(context.Background(), "acc1alice", "acc1bob", "acc1registry", 40); err != nil {
		t.Fatalf("transfer from: %v", err)
	}

	balance, err = client.BalanceOf(context.Background(), "acc1bob")
	if err != nil {
		t.Fatalf("balance of: %v", err)
	}
	if balance != 40 {
		t.Fatalf("balance = %d, want the transferred 40", balance)
	}

	err = client.TransferFrom(context.Background(), "acc1alice", "acc1bob", "acc1registry", 40)
	if err == nil {
		t.Fatal("expected transfer beyond allowance to fail")
	}
}

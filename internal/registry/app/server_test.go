package app

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"github.com/louisbranch/keybazaar/internal/audit"
)

func startServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.GRPCAddr == "" {
		cfg.GRPCAddr = "127.0.0.1:0"
	}
	server, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-serveErr:
			if err != nil {
				t.Errorf("serve: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return server
}

func TestServeStopsOnContextCancel(t *testing.T) {
	server := startServer(t, Config{Admin: "acc1admin", Account: "acc1registry"})
	if server.Addr() == "" {
		t.Fatal("server has no address")
	}
	if server.DebugAddr() != "" {
		t.Fatal("debug listener enabled without an address")
	}
}

func TestSQLiteStateSurvivesRestart(t *testing.T) {
	dbPath := t.TempDir() + "/registry.db"

	ctx := context.Background()
	first, err := New(ctx, Config{GRPCAddr: "127.0.0.1:0", DBPath: dbPath})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if _, err := first.engine.CreateService(ctx, "acc1alice", "https://svc.example"); err != nil {
		t.Fatalf("create service: %v", err)
	}
	first.grpcServer.Stop()
	first.close()

	second, err := New(ctx, Config{GRPCAddr: "127.0.0.1:0", DBPath: dbPath})
	if err != nil {
		t.Fatalf("reopen server: %v", err)
	}
	defer func() {
		second.grpcServer.Stop()
		second.close()
	}()
	info, err := second.engine.Info(ctx)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.ServiceCount != 1 {
		t.Fatalf("service count = %d, want 1 after restart", info.ServiceCount)
	}
}

func TestWatchStreamsCommittedEvents(t *testing.T) {
	server := startServer(t, Config{DebugAddr: "127.0.0.1:0"})

	url := fmt.Sprintf("ws://%s/watch", server.DebugAddr())
	conn, err := websocket.Dial(url, "", "http://"+server.DebugAddr())
	if err != nil {
		t.Fatalf("dial watch: %v", err)
	}
	defer conn.Close()

	// The subscription registers when the handler runs; give it a moment
	// before publishing.
	deadline := time.Now().Add(2 * time.Second)
	var frame watchFrame
	for {
		server.hub.Publish(audit.Event{
			ID:   "evt0001",
			Type: audit.EventServiceCreated,
			Time: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		})
		_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		var payload string
		if err := websocket.Message.Receive(conn, &payload); err == nil {
			if err := json.Unmarshal([]byte(payload), &frame); err != nil {
				t.Fatalf("decode frame: %v", err)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no watch frame before deadline")
		}
	}

	if frame.ID != "evt0001" || frame.Type != string(audit.EventServiceCreated) {
		t.Fatalf("frame = %+v, want the published event", frame)
	}
}

package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/louisbranch/keybazaar/internal/audit"
	"github.com/louisbranch/keybazaar/internal/registry/filter"
	"github.com/louisbranch/keybazaar/internal/registry/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestServiceRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	want := storage.Service{ID: "svc1a", URL: "https://a", Owner: "acc1x", CreatedAt: now, UpdatedAt: now}
	err := store.Update(ctx, func(tx storage.Tx) error {
		return tx.PutService(want)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	err = store.View(ctx, func(tx storage.ReadTx) error {
		got, err := tx.Service("svc1a")
		if err != nil {
			return err
		}
		want.Seq = got.Seq
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("service mismatch (-want +got):\n%s", diff)
		}
		if _, err := tx.Service("svc1missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected NotFound, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	boom := fmt.Errorf("boom")
	err := store.Update(ctx, func(tx storage.Tx) error {
		if err := tx.PutService(storage.Service{ID: "svc1a", URL: "https://a", Owner: "acc1x", CreatedAt: now, UpdatedAt: now}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	err = store.View(ctx, func(tx storage.ReadTx) error {
		if _, err := tx.Service("svc1a"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected rollback, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestKeyFlagsAndEnumeration(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	err := store.Update(ctx, func(tx storage.Tx) error {
		if err := tx.PutService(storage.Service{ID: "svc1a", URL: "https://a", Owner: "acc1x", CreatedAt: now, UpdatedAt: now}); err != nil {
			return err
		}
		for i := 0; i < 3; i++ {
			key := storage.Key{
				ID:        fmt.Sprintf("key1%c", 'a'+i),
				ServiceID: "svc1a",
				Owner:     "acc1x",
				CanTrade:  i == 1,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.PutKey(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	err = store.View(ctx, func(tx storage.ReadTx) error {
		count, err := tx.KeyCount()
		if err != nil {
			return err
		}
		if count != 3 {
			t.Fatalf("expected 3 keys, got %d", count)
		}
		middle, err := tx.KeyAt(1)
		if err != nil {
			return err
		}
		if middle.ID != "key1b" || !middle.CanTrade {
			t.Fatalf("unexpected key at index 1: %+v", middle)
		}
		if _, err := tx.KeyAt(5); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected NotFound for out-of-range index, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestListKeysWithFilter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	err := store.Update(ctx, func(tx storage.Tx) error {
		if err := tx.PutService(storage.Service{ID: "svc1a", URL: "https://a", Owner: "acc1x", CreatedAt: now, UpdatedAt: now}); err != nil {
			return err
		}
		for i := 0; i < 4; i++ {
			owner := "acc1a"
			if i%2 == 1 {
				owner = "acc1b"
			}
			key := storage.Key{ID: fmt.Sprintf("key1%d", i), ServiceID: "svc1a", Owner: owner, CreatedAt: now, UpdatedAt: now}
			if err := tx.PutKey(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	conds := []filter.Condition{{Field: "owner", Op: filter.OpEqual, Value: "acc1b"}}
	err = store.View(ctx, func(tx storage.ReadTx) error {
		keys, err := tx.ListKeys(0, 0, conds)
		if err != nil {
			return err
		}
		if len(keys) != 2 {
			t.Fatalf("expected 2 keys, got %d", len(keys))
		}
		for _, key := range keys {
			if key.Owner != "acc1b" {
				t.Fatalf("filter leaked key %+v", key)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestSharedOwnersReplace(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	err := store.Update(ctx, func(tx storage.Tx) error {
		return tx.SetSharedOwners("key1a", []string{"acc1b", "acc1c"})
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	err = store.Update(ctx, func(tx storage.Tx) error {
		return tx.SetSharedOwners("key1a", []string{"acc1c"})
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	err = store.View(ctx, func(tx storage.ReadTx) error {
		owners, err := tx.SharedOwners("key1a")
		if err != nil {
			return err
		}
		if diff := cmp.Diff([]string{"acc1c"}, owners); diff != "" {
			t.Fatalf("shared owners mismatch (-want +got):\n%s", diff)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestOffersLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	err := store.Update(ctx, func(tx storage.Tx) error {
		if err := tx.PutSalesOffer(storage.SalesOffer{KeyID: "key1a", Buyer: "acc1b", Price: 5, Resellable: true}); err != nil {
			return err
		}
		// Overwrite follows last-writer-wins.
		return tx.PutSalesOffer(storage.SalesOffer{KeyID: "key1a", Buyer: "acc1b", Price: 50})
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	err = store.Update(ctx, func(tx storage.Tx) error {
		offer, err := tx.SalesOffer("key1a")
		if err != nil {
			return err
		}
		if offer.Price != 50 || offer.Resellable {
			t.Fatalf("expected overwritten offer, got %+v", offer)
		}
		if err := tx.DeleteSalesOffer("key1a"); err != nil {
			return err
		}
		if _, err := tx.SalesOffer("key1a"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected NotFound after delete, got %v", err)
		}
		if err := tx.PutTradeOffer(storage.TradeOffer{KeyID: "key1a", WantKeyID: "key1b"}); err != nil {
			return err
		}
		trade, err := tx.TradeOffer("key1a")
		if err != nil {
			return err
		}
		if trade.WantKeyID != "key1b" {
			t.Fatalf("unexpected trade offer %+v", trade)
		}
		return tx.DeleteTradeOffer("key1a")
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
}

func TestNextKeySeqPersistsAcrossTransactions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var first uint64
	if err := store.Update(ctx, func(tx storage.Tx) error {
		var err error
		first, err = tx.NextKeySeq()
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	var second uint64
	if err := store.Update(ctx, func(tx storage.Tx) error {
		var err error
		second, err = tx.NextKeySeq()
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("expected 1,2 got %d,%d", first, second)
	}
}

func TestAuditEventsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	err := store.Update(ctx, func(tx storage.Tx) error {
		seq, err := tx.AppendAuditEvent(audit.Event{
			ID: "evt1", Type: audit.EventKeySold, Time: now,
			KeyID: "key1a", Seller: "acc1a", Buyer: "acc1b", Price: 5,
		})
		if err != nil {
			return err
		}
		if seq != 1 {
			t.Fatalf("expected seq 1, got %d", seq)
		}
		_, err = tx.AppendAuditEvent(audit.Event{ID: "evt2", Type: audit.EventLog, Time: now, Owner: "acc1a", Data: "hello"})
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	conds := []filter.Condition{{Field: "type", Op: filter.OpEqual, Value: string(audit.EventKeySold)}}
	err = store.View(ctx, func(tx storage.ReadTx) error {
		events, err := tx.ListAuditEvents(0, 0, conds)
		if err != nil {
			return err
		}
		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}
		evt := events[0]
		if evt.KeyID != "key1a" || evt.Seller != "acc1a" || evt.Buyer != "acc1b" || evt.Price != 5 {
			t.Fatalf("unexpected event %+v", evt)
		}
		if !evt.Time.Equal(now) {
			t.Fatalf("expected time %v, got %v", now, evt.Time)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestKeyDataAndMeta(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	err := store.Update(ctx, func(tx storage.Tx) error {
		if err := tx.PutKeyData("key1a", "note", "v1"); err != nil {
			return err
		}
		if err := tx.PutKeyData("key1a", "note", "v2"); err != nil {
			return err
		}
		return tx.SetMeta(storage.MetaSuccessor, "registry-2")
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	err = store.View(ctx, func(tx storage.ReadTx) error {
		value, err := tx.KeyData("key1a", "note")
		if err != nil {
			return err
		}
		if value != "v2" {
			t.Fatalf("expected v2, got %q", value)
		}
		meta, err := tx.Meta(storage.MetaSuccessor)
		if err != nil {
			return err
		}
		if meta != "registry-2" {
			t.Fatalf("unexpected meta %q", meta)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestUpdateBlocksSecondHandleUntilCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("open first handle: %v", err)
	}
	defer first.Close()
	second, err := Open(path)
	if err != nil {
		t.Fatalf("open second handle: %v", err)
	}
	defer second.Close()

	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	firstErr := make(chan error, 1)
	go func() {
		firstErr <- first.Update(ctx, func(tx storage.Tx) error {
			if _, err := tx.NextKeySeq(); err != nil {
				return err
			}
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	secondErr := make(chan error, 1)
	go func() {
		secondErr <- second.Update(ctx, func(tx storage.Tx) error {
			_, err := tx.NextKeySeq()
			return err
		})
	}()

	select {
	case err := <-secondErr:
		t.Fatalf("second writer finished while the first held the lock: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	close(release)
	if err := <-firstErr; err != nil {
		t.Fatalf("first update: %v", err)
	}
	if err := <-secondErr; err != nil {
		t.Fatalf("second update: %v", err)
	}

	var seq uint64
	err = first.Update(ctx, func(tx storage.Tx) error {
		var err error
		seq, err = tx.NextKeySeq()
		return err
	})
	if err != nil {
		t.Fatalf("verify counter: %v", err)
	}
	if seq != 3 {
		t.Fatalf("counter = %d, want 3 after two committed allocations", seq)
	}
}

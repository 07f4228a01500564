package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/louisbranch/keybazaar/internal/audit"
	"github.com/louisbranch/keybazaar/internal/registry/filter"
	"github.com/louisbranch/keybazaar/internal/registry/storage"
)

func TestUpdateCommitsOnSuccess(t *testing.T) {
	store := New()
	ctx := context.Background()

	err := store.Update(ctx, func(tx storage.Tx) error {
		return tx.PutService(storage.Service{ID: "svc1a", URL: "https://a", Owner: "acc1x"})
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	err = store.View(ctx, func(tx storage.ReadTx) error {
		svc, err := tx.Service("svc1a")
		if err != nil {
			return err
		}
		if svc.URL != "https://a" || svc.Owner != "acc1x" {
			t.Fatalf("unexpected record %+v", svc)
		}
		if svc.Seq != 1 {
			t.Fatalf("expected seq 1, got %d", svc.Seq)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestUpdateDiscardsOnError(t *testing.T) {
	store := New()
	ctx := context.Background()

	boom := fmt.Errorf("boom")
	err := store.Update(ctx, func(tx storage.Tx) error {
		if err := tx.PutService(storage.Service{ID: "svc1a", URL: "https://a", Owner: "acc1x"}); err != nil {
			return err
		}
		if err := tx.PutKey(storage.Key{ID: "key1a", ServiceID: "svc1a", Owner: "acc1x"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	err = store.View(ctx, func(tx storage.ReadTx) error {
		if _, err := tx.Service("svc1a"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected service rollback, got %v", err)
		}
		if _, err := tx.Key("key1a"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected key rollback, got %v", err)
		}
		count, err := tx.KeyCount()
		if err != nil {
			return err
		}
		if count != 0 {
			t.Fatalf("expected 0 keys, got %d", count)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestEnumerationByIndex(t *testing.T) {
	store := New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("key1%c", 'a'+i)
		err := store.Update(ctx, func(tx storage.Tx) error {
			return tx.PutKey(storage.Key{ID: id, ServiceID: "svc1a", Owner: "acc1x"})
		})
		if err != nil {
			t.Fatalf("put key %d: %v", i, err)
		}
	}

	err := store.View(ctx, func(tx storage.ReadTx) error {
		for i := 0; i < 3; i++ {
			key, err := tx.KeyAt(i)
			if err != nil {
				return err
			}
			want := fmt.Sprintf("key1%c", 'a'+i)
			if key.ID != want {
				t.Fatalf("index %d: expected %s, got %s", i, want, key.ID)
			}
		}
		if _, err := tx.KeyAt(3); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected out-of-range index to be NotFound, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestListKeysFilterAndPaging(t *testing.T) {
	store := New()
	ctx := context.Background()

	err := store.Update(ctx, func(tx storage.Tx) error {
		for i := 0; i < 5; i++ {
			owner := "acc1a"
			if i%2 == 1 {
				owner = "acc1b"
			}
			key := storage.Key{ID: fmt.Sprintf("key1%d", i), ServiceID: "svc1a", Owner: owner}
			if err := tx.PutKey(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	conds := []filter.Condition{{Field: "owner", Op: filter.OpEqual, Value: "acc1a"}}
	err = store.View(ctx, func(tx storage.ReadTx) error {
		page, err := tx.ListKeys(0, 2, conds)
		if err != nil {
			return err
		}
		if len(page) != 2 {
			t.Fatalf("expected 2 keys, got %d", len(page))
		}
		rest, err := tx.ListKeys(page[1].Seq, 2, conds)
		if err != nil {
			return err
		}
		if len(rest) != 1 {
			t.Fatalf("expected 1 remaining key, got %d", len(rest))
		}
		for _, key := range append(page, rest...) {
			if key.Owner != "acc1a" {
				t.Fatalf("filter leaked key %+v", key)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestSharedOwnersIsolation(t *testing.T) {
	store := New()
	ctx := context.Background()

	err := store.Update(ctx, func(tx storage.Tx) error {
		return tx.SetSharedOwners("key1a", []string{"acc1b", "acc1c"})
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	err = store.View(ctx, func(tx storage.ReadTx) error {
		owners, err := tx.SharedOwners("key1a")
		if err != nil {
			return err
		}
		// Mutating the returned slice must not touch stored state.
		owners[0] = "acc1evil"
		again, err := tx.SharedOwners("key1a")
		if err != nil {
			return err
		}
		if again[0] != "acc1b" {
			t.Fatalf("stored shared owners were mutated: %v", again)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestNextKeySeqMonotonic(t *testing.T) {
	store := New()
	ctx := context.Background()

	var first, second uint64
	err := store.Update(ctx, func(tx storage.Tx) error {
		var err error
		if first, err = tx.NextKeySeq(); err != nil {
			return err
		}
		second, err = tx.NextKeySeq()
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("expected 1,2 got %d,%d", first, second)
	}

	// A failed transaction must not consume sequence numbers.
	boom := fmt.Errorf("boom")
	_ = store.Update(ctx, func(tx storage.Tx) error {
		if _, err := tx.NextKeySeq(); err != nil {
			return err
		}
		return boom
	})
	var third uint64
	err = store.Update(ctx, func(tx storage.Tx) error {
		var err error
		third, err = tx.NextKeySeq()
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if third != 3 {
		t.Fatalf("expected 3 after rollback, got %d", third)
	}
}

func TestOffersAndKeyData(t *testing.T) {
	store := New()
	ctx := context.Background()

	err := store.Update(ctx, func(tx storage.Tx) error {
		if err := tx.PutSalesOffer(storage.SalesOffer{KeyID: "key1a", Buyer: "acc1b", Price: 5}); err != nil {
			return err
		}
		if err := tx.PutTradeOffer(storage.TradeOffer{KeyID: "key1b", WantKeyID: "key1a"}); err != nil {
			return err
		}
		return tx.PutKeyData("key1a", "note", "hello")
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	err = store.Update(ctx, func(tx storage.Tx) error {
		offer, err := tx.SalesOffer("key1a")
		if err != nil {
			return err
		}
		if offer.Buyer != "acc1b" || offer.Price != 5 {
			t.Fatalf("unexpected offer %+v", offer)
		}
		if err := tx.DeleteSalesOffer("key1a"); err != nil {
			return err
		}
		if _, err := tx.SalesOffer("key1a"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected deleted offer to be NotFound, got %v", err)
		}
		value, err := tx.KeyData("key1a", "note")
		if err != nil {
			return err
		}
		if value != "hello" {
			t.Fatalf("unexpected key data %q", value)
		}
		if _, err := tx.KeyData("key1a", "missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected missing sub-key to be NotFound, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
}

func TestAuditEventsSequencedAndFiltered(t *testing.T) {
	store := New()
	ctx := context.Background()

	err := store.Update(ctx, func(tx storage.Tx) error {
		for i, evtType := range []audit.EventType{audit.EventKeyCreated, audit.EventKeySold, audit.EventKeyCreated} {
			seq, err := tx.AppendAuditEvent(audit.Event{Type: evtType, KeyID: fmt.Sprintf("key1%d", i)})
			if err != nil {
				return err
			}
			if seq != uint64(i+1) {
				t.Fatalf("expected seq %d, got %d", i+1, seq)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	conds := []filter.Condition{{Field: "type", Op: filter.OpEqual, Value: string(audit.EventKeyCreated)}}
	err = store.View(ctx, func(tx storage.ReadTx) error {
		events, err := tx.ListAuditEvents(0, 0, conds)
		if err != nil {
			return err
		}
		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(events))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestMetaRoundTrip(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.View(ctx, func(tx storage.ReadTx) error {
		if _, err := tx.Meta(storage.MetaLedgerTarget); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected unset meta to be NotFound, got %v", err)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}

	if err := store.Update(ctx, func(tx storage.Tx) error {
		return tx.SetMeta(storage.MetaLedgerTarget, "localhost:8091")
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := store.View(ctx, func(tx storage.ReadTx) error {
		value, err := tx.Meta(storage.MetaLedgerTarget)
		if err != nil {
			return err
		}
		if value != "localhost:8091" {
			t.Fatalf("unexpected meta %q", value)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

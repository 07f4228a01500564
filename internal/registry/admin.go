package registry

import (
	"context"

	"github.com/louisbranch/keybazaar/internal/audit"
	"github.com/louisbranch/keybazaar/internal/platform/errors"
	"github.com/louisbranch/keybazaar/internal/registry/storage"
)

// Info is the registry's public read model.
type Info struct {
	ServiceCount int
	KeyCount     int
	LedgerTarget string
	Successor    string
}

// Info returns counts and the registry-level pointers.
func (r *Registry) Info(ctx context.Context) (Info, error) {
	var info Info
	err := r.store.View(ctx, func(tx storage.ReadTx) error {
		var err error
		if info.ServiceCount, err = tx.ServiceCount(); err != nil {
			return err
		}
		if info.KeyCount, err = tx.KeyCount(); err != nil {
			return err
		}
		if info.LedgerTarget, err = metaOrEmpty(tx, storage.MetaLedgerTarget); err != nil {
			return err
		}
		info.Successor, err = metaOrEmpty(tx, storage.MetaSuccessor)
		return err
	})
	return info, err
}

func metaOrEmpty(tx storage.ReadTx, name string) (string, error) {
	value, err := tx.Meta(name)
	if err == storage.ErrNotFound {
		return "", nil
	}
	return value, err
}

func (r *Registry) requireAdmin(caller string) error {
	if err := validateAccount(caller); err != nil {
		return err
	}
	if r.admin == "" || caller != r.admin {
		return errUnauthorized(caller, "registry")
	}
	return nil
}

// SetLedgerTarget re-points the settlement ledger at a new address. The
// new target is persisted and, when a dialer is configured, dialed and
// swapped in before the old reference is dropped. Admin only.
func (r *Registry) SetLedgerTarget(ctx context.Context, caller, target string) error {
	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	if target == "" {
		return errors.New(errors.CodeEntityIDEmpty, "ledger target is required")
	}
	next := r.settlementLedger()
	if r.dial != nil {
		dialed, err := r.dial(ctx, target)
		if err != nil {
			return errors.Wrap(errors.CodeTransferFailed, "dial ledger target", err)
		}
		next = dialed
	}
	err := r.update(ctx, func(tx storage.Tx, emit func(audit.Event) error) error {
		return tx.SetMeta(storage.MetaLedgerTarget, target)
	})
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.ledger = next
	r.mu.Unlock()
	return nil
}

// SetSuccessorAddress records where the currently-authoritative
// deployment of this registry lives. Admin only; readable by everyone
// through Info.
func (r *Registry) SetSuccessorAddress(ctx context.Context, caller, address string) error {
	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	return r.update(ctx, func(tx storage.Tx, emit func(audit.Event) error) error {
		return tx.SetMeta(storage.MetaSuccessor, address)
	})
}

// ReclaimLedgerBalance moves balance mistakenly approved to the registry
// account from the given holder back to the administrator. Admin only.
func (r *Registry) ReclaimLedgerBalance(ctx context.Context, caller, from string, amount uint64) error {
	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	if err := validateAccount(from); err != nil {
		return err
	}
	if amount == 0 {
		return errors.WithMetadata(errors.CodeAmountInvalid, "reclaim amount must be positive",
			map[string]string{"Amount": "0"})
	}
	book := r.settlementLedger()
	if book == nil {
		return errors.New(errors.CodeTransferFailed, "settlement ledger is not configured")
	}
	if err := book.TransferFrom(ctx, from, r.admin, r.account, amount); err != nil {
		return errors.Wrap(errors.CodeTransferFailed, "reclaim transfer", err)
	}
	return nil
}

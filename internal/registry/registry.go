// Package registry implements the capability-key registry: services that
// issue keys, shared ownership, per-key capability flags, and the sale and
// barter offer protocols.
//
// Every public operation runs as one store transaction. Validations, reads,
// the external settlement call, and writes all happen inside Update, so a
// failure at any point leaves the store exactly as it was. Audit events are
// appended in the same transaction and fanned out to live subscribers only
// after commit.
package registry

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/louisbranch/keybazaar/internal/audit"
	"github.com/louisbranch/keybazaar/internal/ledger"
	"github.com/louisbranch/keybazaar/internal/platform/errors"
	"github.com/louisbranch/keybazaar/internal/platform/id"
	"github.com/louisbranch/keybazaar/internal/registry/ident"
	"github.com/louisbranch/keybazaar/internal/registry/storage"
)

// LedgerDialer connects to a settlement ledger at a target address. The
// engine uses it when an administrator re-points the ledger at runtime.
type LedgerDialer func(ctx context.Context, target string) (ledger.Ledger, error)

// Options configures a Registry.
type Options struct {
	// Store holds all registry state. Required.
	Store storage.Store
	// Ledger settles purchases. Purchases fail when unset.
	Ledger ledger.Ledger
	// LedgerDialer reconnects the ledger when SetLedgerTarget is called.
	LedgerDialer LedgerDialer
	// Hub receives committed audit events. Optional.
	Hub *audit.Hub
	// Admin is the account allowed to call administrative operations.
	Admin string
	// Account is the registry's own ledger identity, the spender callers
	// approve purchase balances to.
	Account string

	// Clock and NewID override time and event-id generation in tests.
	Clock func() time.Time
	NewID func() (string, error)
}

// Registry executes every public registry operation.
type Registry struct {
	store   storage.Store
	hub     *audit.Hub
	admin   string
	account string
	clock   func() time.Time
	newID   func() (string, error)

	mu     sync.RWMutex
	ledger ledger.Ledger
	dial   LedgerDialer
}

// New creates a Registry over the given store.
func New(opts Options) (*Registry, error) {
	if opts.Store == nil {
		return nil, errors.New(errors.CodeUnknown, "registry store is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = id.NewID
	}
	return &Registry{
		store:   opts.Store,
		hub:     opts.Hub,
		admin:   opts.Admin,
		account: opts.Account,
		clock:   clock,
		newID:   newID,
		ledger:  opts.Ledger,
		dial:    opts.LedgerDialer,
	}, nil
}

// Account returns the registry's own ledger identity.
func (r *Registry) Account() string {
	return r.account
}

// SetLedger swaps the settlement ledger in place. The process composing
// the registry uses it after dialing the persisted ledger target.
func (r *Registry) SetLedger(book ledger.Ledger) {
	r.mu.Lock()
	r.ledger = book
	r.mu.Unlock()
}

func (r *Registry) settlementLedger() ledger.Ledger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ledger
}

func (r *Registry) now() time.Time {
	return r.clock().UTC().Truncate(time.Millisecond)
}

// update runs fn as one store transaction and publishes the audit events
// fn appended once the transaction has committed.
func (r *Registry) update(ctx context.Context, fn func(tx storage.Tx, emit func(audit.Event) error) error) error {
	var committed []audit.Event
	err := r.store.Update(ctx, func(tx storage.Tx) error {
		committed = committed[:0]
		emit := func(evt audit.Event) error {
			eventID, err := r.newID()
			if err != nil {
				return errors.Wrap(errors.CodeUnknown, "generate event id", err)
			}
			evt.ID = eventID
			evt.Time = r.now()
			seq, err := tx.AppendAuditEvent(evt)
			if err != nil {
				return err
			}
			evt.Seq = seq
			committed = append(committed, evt)
			return nil
		}
		return fn(tx, emit)
	})
	if err != nil {
		return err
	}
	for _, evt := range committed {
		r.hub.Publish(evt)
	}
	return nil
}

func errEntityNotFound(entity, entityID string) error {
	return errors.WithMetadata(errors.CodeNotFound, entity+" "+entityID+" not found",
		map[string]string{"Entity": entity, "ID": entityID})
}

func errUnauthorized(account, entityID string) error {
	return errors.WithMetadata(errors.CodeUnauthorized, "account "+account+" does not own "+entityID,
		map[string]string{"Account": account, "ID": entityID})
}

func errCapability(keyID, capability string) error {
	return errors.WithMetadata(errors.CodePermissionDenied, "key "+keyID+" does not allow "+capability,
		map[string]string{"ID": keyID, "Capability": capability})
}

// getService wraps the store lookup with the domain not-found error.
func getService(tx storage.ReadTx, serviceID string) (storage.Service, error) {
	svc, err := tx.Service(serviceID)
	if err != nil {
		if err == storage.ErrNotFound {
			return storage.Service{}, errEntityNotFound("service", serviceID)
		}
		return storage.Service{}, err
	}
	return svc, nil
}

func getKey(tx storage.ReadTx, keyID string) (storage.Key, error) {
	key, err := tx.Key(keyID)
	if err != nil {
		if err == storage.ErrNotFound {
			return storage.Key{}, errEntityNotFound("key", keyID)
		}
		return storage.Key{}, err
	}
	return key, nil
}

// ownsService reports whether account is the service's owner or in its
// shared-owner set. Service sharing is unconditional.
func ownsService(tx storage.ReadTx, svc storage.Service, account string) (bool, error) {
	if svc.Owner == account {
		return true, nil
	}
	shared, err := tx.SharedOwners(svc.ID)
	if err != nil {
		return false, err
	}
	return slices.Contains(shared, account), nil
}

// ownsKey reports whether account effectively owns the key. Shared-owner
// membership only counts while the key's share flag is set.
func ownsKey(tx storage.ReadTx, key storage.Key, account string) (bool, error) {
	if key.Owner == account {
		return true, nil
	}
	if !key.CanShare {
		return false, nil
	}
	shared, err := tx.SharedOwners(key.ID)
	if err != nil {
		return false, err
	}
	return slices.Contains(shared, account), nil
}

// requireServiceOwner resolves the service and fails with Unauthorized
// unless account owns or shares it.
func requireServiceOwner(tx storage.ReadTx, serviceID, account string) (storage.Service, error) {
	svc, err := getService(tx, serviceID)
	if err != nil {
		return storage.Service{}, err
	}
	owns, err := ownsService(tx, svc, account)
	if err != nil {
		return storage.Service{}, err
	}
	if !owns {
		return storage.Service{}, errUnauthorized(account, serviceID)
	}
	return svc, nil
}

func requireKeyOwner(tx storage.ReadTx, keyID, account string) (storage.Key, error) {
	key, err := getKey(tx, keyID)
	if err != nil {
		return storage.Key{}, err
	}
	owns, err := ownsKey(tx, key, account)
	if err != nil {
		return storage.Key{}, err
	}
	if !owns {
		return storage.Key{}, errUnauthorized(account, keyID)
	}
	return key, nil
}

func validateAccount(account string) error {
	if account == "" {
		return errors.New(errors.CodeAccountEmpty, "account is required")
	}
	return nil
}

func validateEntityID(entityID string) error {
	if entityID == "" {
		return errors.New(errors.CodeEntityIDEmpty, "entity id is required")
	}
	return nil
}

// IsOwner answers whether account effectively owns the entity, routing by
// the id's type prefix.
func (r *Registry) IsOwner(ctx context.Context, entityID, account string) (bool, error) {
	if err := validateEntityID(entityID); err != nil {
		return false, err
	}
	if err := validateAccount(account); err != nil {
		return false, err
	}
	var owns bool
	err := r.store.View(ctx, func(tx storage.ReadTx) error {
		switch {
		case ident.IsService(entityID):
			svc, err := getService(tx, entityID)
			if err != nil {
				return err
			}
			owns, err = ownsService(tx, svc, account)
			return err
		case ident.IsKey(entityID):
			key, err := getKey(tx, entityID)
			if err != nil {
				return err
			}
			owns, err = ownsKey(tx, key, account)
			return err
		default:
			return errEntityNotFound("entity", entityID)
		}
	})
	return owns, err
}

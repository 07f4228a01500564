package registry

import (
	"context"
	"slices"

	"github.com/louisbranch/keybazaar/internal/audit"
	"github.com/louisbranch/keybazaar/internal/registry/ident"
	"github.com/louisbranch/keybazaar/internal/registry/storage"
)

// SharedOwners returns the shared-owner set for a service or key id.
func (r *Registry) SharedOwners(ctx context.Context, entityID string) ([]string, error) {
	if err := validateEntityID(entityID); err != nil {
		return nil, err
	}
	var owners []string
	err := r.store.View(ctx, func(tx storage.ReadTx) error {
		if err := requireEntity(tx, entityID); err != nil {
			return err
		}
		var err error
		owners, err = tx.SharedOwners(entityID)
		return err
	})
	return owners, err
}

// Share grants account co-ownership of a service or key. The caller must
// already own or share the entity. Keys additionally require their share
// flag; services are shareable unconditionally. Sharing an account that
// is already present is a no-op.
func (r *Registry) Share(ctx context.Context, caller, entityID, account string) error {
	if err := validateAccount(caller); err != nil {
		return err
	}
	if err := validateEntityID(entityID); err != nil {
		return err
	}
	if err := validateAccount(account); err != nil {
		return err
	}
	return r.update(ctx, func(tx storage.Tx, emit func(audit.Event) error) error {
		if err := requireShareRights(tx, entityID, caller); err != nil {
			return err
		}
		shared, err := tx.SharedOwners(entityID)
		if err != nil {
			return err
		}
		if slices.Contains(shared, account) {
			return nil
		}
		return tx.SetSharedOwners(entityID, append(shared, account))
	})
}

// Unshare removes account from the entity's shared-owner set. Removing
// an absent account is a no-op.
func (r *Registry) Unshare(ctx context.Context, caller, entityID, account string) error {
	if err := validateAccount(caller); err != nil {
		return err
	}
	if err := validateEntityID(entityID); err != nil {
		return err
	}
	if err := validateAccount(account); err != nil {
		return err
	}
	return r.update(ctx, func(tx storage.Tx, emit func(audit.Event) error) error {
		// Unlike Share, removal is not gated on the key share flag: an
		// owner can always shrink the set.
		if err := requireOwnerRights(tx, entityID, caller); err != nil {
			return err
		}
		shared, err := tx.SharedOwners(entityID)
		if err != nil {
			return err
		}
		index := slices.Index(shared, account)
		if index < 0 {
			return nil
		}
		return tx.SetSharedOwners(entityID, slices.Delete(shared, index, index+1))
	})
}

// requireEntity checks an id resolves to a known service or key.
func requireEntity(tx storage.ReadTx, entityID string) error {
	switch {
	case ident.IsService(entityID):
		_, err := getService(tx, entityID)
		return err
	case ident.IsKey(entityID):
		_, err := getKey(tx, entityID)
		return err
	default:
		return errEntityNotFound("entity", entityID)
	}
}

// requireOwnerRights checks the caller effectively owns the entity.
func requireOwnerRights(tx storage.ReadTx, entityID, caller string) error {
	switch {
	case ident.IsService(entityID):
		_, err := requireServiceOwner(tx, entityID, caller)
		return err
	case ident.IsKey(entityID):
		_, err := requireKeyOwner(tx, entityID, caller)
		return err
	default:
		return errEntityNotFound("entity", entityID)
	}
}

// requireShareRights enforces who may grow an entity's shared set:
// an effective owner, with the key share flag gating key additions.
func requireShareRights(tx storage.ReadTx, entityID, caller string) error {
	switch {
	case ident.IsService(entityID):
		_, err := requireServiceOwner(tx, entityID, caller)
		return err
	case ident.IsKey(entityID):
		key, err := requireKeyOwner(tx, entityID, caller)
		if err != nil {
			return err
		}
		if !key.CanShare {
			return errCapability(entityID, "sharing")
		}
		return nil
	default:
		return errEntityNotFound("entity", entityID)
	}
}

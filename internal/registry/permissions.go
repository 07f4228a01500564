package registry

import (
	"context"

	"github.com/louisbranch/keybazaar/internal/audit"
	"github.com/louisbranch/keybazaar/internal/registry/storage"
)

// SetKeyPermissions applies all three capability flags to a key at once
// and cascades the clears: dropping share empties the shared-owner set,
// dropping trade removes a pending trade offer, dropping sell removes a
// live sales offer. The caller must own or share the key's issuing
// service; the issuing service, not the current key owner, controls
// transferability. Cascades run whether or not the flag changed.
func (r *Registry) SetKeyPermissions(ctx context.Context, caller, keyID string, canShare, canTrade, canSell bool) (storage.Key, error) {
	if err := validateAccount(caller); err != nil {
		return storage.Key{}, err
	}
	if err := validateEntityID(keyID); err != nil {
		return storage.Key{}, err
	}

	var updated storage.Key
	err := r.update(ctx, func(tx storage.Tx, emit func(audit.Event) error) error {
		key, err := getKey(tx, keyID)
		if err != nil {
			return err
		}
		if _, err := requireServiceOwner(tx, key.ServiceID, caller); err != nil {
			return err
		}

		key.CanShare = canShare
		key.CanTrade = canTrade
		key.CanSell = canSell
		key.UpdatedAt = r.now()
		if err := tx.PutKey(key); err != nil {
			return err
		}

		if !canShare {
			if err := tx.SetSharedOwners(keyID, nil); err != nil {
				return err
			}
		}
		if !canTrade {
			if err := tx.DeleteTradeOffer(keyID); err != nil {
				return err
			}
		}
		if !canSell {
			if err := tx.DeleteSalesOffer(keyID); err != nil {
				return err
			}
		}
		updated = key
		return nil
	})
	if err != nil {
		return storage.Key{}, err
	}
	return updated, nil
}

package registry

import (
	"context"

	"github.com/louisbranch/keybazaar/internal/audit"
	"github.com/louisbranch/keybazaar/internal/platform/errors"
	"github.com/louisbranch/keybazaar/internal/registry/storage"
)

// SetKeyData stores an opaque value under a key's sub-key. The caller
// must own or share the named service, and the key must actually have
// been issued under it.
func (r *Registry) SetKeyData(ctx context.Context, caller, serviceID, keyID, subKey, value string) error {
	if err := validateAccount(caller); err != nil {
		return err
	}
	if err := validateEntityID(serviceID); err != nil {
		return err
	}
	if err := validateEntityID(keyID); err != nil {
		return err
	}
	if subKey == "" {
		return errors.New(errors.CodeSubKeyEmpty, "annotation sub-key is required")
	}
	return r.update(ctx, func(tx storage.Tx, emit func(audit.Event) error) error {
		if _, err := requireServiceOwner(tx, serviceID, caller); err != nil {
			return err
		}
		key, err := getKey(tx, keyID)
		if err != nil {
			return err
		}
		if key.ServiceID != serviceID {
			return errUnauthorized(caller, keyID)
		}
		return tx.PutKeyData(keyID, subKey, value)
	})
}

// GetKeyData returns the value stored under a key's sub-key. An absent
// sub-key reads as an empty value.
func (r *Registry) GetKeyData(ctx context.Context, keyID, subKey string) (string, error) {
	if err := validateEntityID(keyID); err != nil {
		return "", err
	}
	if subKey == "" {
		return "", errors.New(errors.CodeSubKeyEmpty, "annotation sub-key is required")
	}
	var value string
	err := r.store.View(ctx, func(tx storage.ReadTx) error {
		if _, err := getKey(tx, keyID); err != nil {
			return err
		}
		stored, err := tx.KeyData(keyID, subKey)
		if err == storage.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		value = stored
		return nil
	})
	return value, err
}

package registry

import (
	"context"

	"github.com/louisbranch/keybazaar/internal/audit"
	"github.com/louisbranch/keybazaar/internal/platform/errors"
	"github.com/louisbranch/keybazaar/internal/registry/ident"
	"github.com/louisbranch/keybazaar/internal/registry/storage"
)

// CreateService registers a new service for url owned by caller. The id
// is derived from the url, so registering the same url twice fails with
// DUPLICATE_ENTITY.
func (r *Registry) CreateService(ctx context.Context, caller, url string) (storage.Service, error) {
	if err := validateAccount(caller); err != nil {
		return storage.Service{}, err
	}
	if url == "" {
		return storage.Service{}, errors.New(errors.CodeServiceURLEmpty, "service url is required")
	}
	serviceID, err := ident.ServiceID(url)
	if err != nil {
		return storage.Service{}, errors.Wrap(errors.CodeUnknown, "derive service id", err)
	}

	now := r.now()
	svc := storage.Service{ID: serviceID, URL: url, Owner: caller, CreatedAt: now, UpdatedAt: now}
	err = r.update(ctx, func(tx storage.Tx, emit func(audit.Event) error) error {
		if _, err := tx.Service(serviceID); err == nil {
			return errors.WithMetadata(errors.CodeDuplicateEntity, "service "+serviceID+" already exists",
				map[string]string{"Entity": "service", "ID": serviceID})
		} else if err != storage.ErrNotFound {
			return err
		}
		if err := tx.PutService(svc); err != nil {
			return err
		}
		return emit(audit.Event{Type: audit.EventServiceCreated, Owner: caller, ServiceID: serviceID})
	})
	if err != nil {
		return storage.Service{}, err
	}
	return svc, nil
}

// UpdateServiceURL changes a service's url in place. The id is not
// re-derived and uniqueness is not re-checked, so two services may end up
// pointing at the same url.
func (r *Registry) UpdateServiceURL(ctx context.Context, caller, serviceID, newURL string) (storage.Service, error) {
	if err := validateAccount(caller); err != nil {
		return storage.Service{}, err
	}
	if err := validateEntityID(serviceID); err != nil {
		return storage.Service{}, err
	}
	if newURL == "" {
		return storage.Service{}, errors.New(errors.CodeServiceURLEmpty, "service url is required")
	}

	var updated storage.Service
	err := r.update(ctx, func(tx storage.Tx, emit func(audit.Event) error) error {
		svc, err := requireServiceOwner(tx, serviceID, caller)
		if err != nil {
			return err
		}
		svc.URL = newURL
		svc.UpdatedAt = r.now()
		if err := tx.PutService(svc); err != nil {
			return err
		}
		updated = svc
		return nil
	})
	if err != nil {
		return storage.Service{}, err
	}
	return updated, nil
}

// IssueKey creates a key under serviceID owned by recipient with every
// capability flag off. The caller must own or share the service.
func (r *Registry) IssueKey(ctx context.Context, caller, serviceID, recipient string) (storage.Key, error) {
	if err := validateAccount(caller); err != nil {
		return storage.Key{}, err
	}
	if err := validateEntityID(serviceID); err != nil {
		return storage.Key{}, err
	}
	if recipient == "" {
		return storage.Key{}, errors.New(errors.CodeAccountEmpty, "recipient account is required")
	}

	var issued storage.Key
	err := r.update(ctx, func(tx storage.Tx, emit func(audit.Event) error) error {
		if _, err := requireServiceOwner(tx, serviceID, caller); err != nil {
			return err
		}
		seq, err := tx.NextKeySeq()
		if err != nil {
			return err
		}
		keyID, err := ident.KeyID(serviceID, recipient, seq)
		if err != nil {
			return errors.Wrap(errors.CodeUnknown, "derive key id", err)
		}
		// The monotonic sequence makes collisions impossible in practice;
		// the guard preserves the uniqueness invariant anyway.
		if _, err := tx.Key(keyID); err == nil {
			return errors.WithMetadata(errors.CodeDuplicateEntity, "key "+keyID+" already exists",
				map[string]string{"Entity": "key", "ID": keyID})
		} else if err != storage.ErrNotFound {
			return err
		}
		now := r.now()
		issued = storage.Key{ID: keyID, ServiceID: serviceID, Owner: recipient, CreatedAt: now, UpdatedAt: now}
		if err := tx.PutKey(issued); err != nil {
			return err
		}
		return emit(audit.Event{Type: audit.EventKeyCreated, Owner: recipient, ServiceID: serviceID, KeyID: keyID})
	})
	if err != nil {
		return storage.Key{}, err
	}
	return issued, nil
}

// GetService returns the service record for id.
func (r *Registry) GetService(ctx context.Context, serviceID string) (storage.Service, error) {
	if err := validateEntityID(serviceID); err != nil {
		return storage.Service{}, err
	}
	var svc storage.Service
	err := r.store.View(ctx, func(tx storage.ReadTx) error {
		var err error
		svc, err = getService(tx, serviceID)
		return err
	})
	return svc, err
}

// GetKey returns the key record for id.
func (r *Registry) GetKey(ctx context.Context, keyID string) (storage.Key, error) {
	if err := validateEntityID(keyID); err != nil {
		return storage.Key{}, err
	}
	var key storage.Key
	err := r.store.View(ctx, func(tx storage.ReadTx) error {
		var err error
		key, err = getKey(tx, keyID)
		return err
	})
	return key, err
}

// ServiceCount returns the number of registered services.
func (r *Registry) ServiceCount(ctx context.Context) (int, error) {
	var count int
	err := r.store.View(ctx, func(tx storage.ReadTx) error {
		var err error
		count, err = tx.ServiceCount()
		return err
	})
	return count, err
}

// KeyCount returns the number of issued keys.
func (r *Registry) KeyCount(ctx context.Context) (int, error) {
	var count int
	err := r.store.View(ctx, func(tx storage.ReadTx) error {
		var err error
		count, err = tx.KeyCount()
		return err
	})
	return count, err
}

// ServiceAt returns the service at the 0-based registration index.
func (r *Registry) ServiceAt(ctx context.Context, index int) (storage.Service, error) {
	var svc storage.Service
	err := r.store.View(ctx, func(tx storage.ReadTx) error {
		var err error
		svc, err = tx.ServiceAt(index)
		if err == storage.ErrNotFound {
			return errEntityNotFound("service index", formatIndex(index))
		}
		return err
	})
	return svc, err
}

// KeyAt returns the key at the 0-based issuance index.
func (r *Registry) KeyAt(ctx context.Context, index int) (storage.Key, error) {
	var key storage.Key
	err := r.store.View(ctx, func(tx storage.ReadTx) error {
		var err error
		key, err = tx.KeyAt(index)
		if err == storage.ErrNotFound {
			return errEntityNotFound("key index", formatIndex(index))
		}
		return err
	})
	return key, err
}

package registry

import (
	"context"

	"github.com/louisbranch/keybazaar/internal/audit"
	"github.com/louisbranch/keybazaar/internal/registry/storage"
)

// LogAccess appends a caller-attributed access event. From and to are
// caller-chosen correlation ids and are not validated against the store.
func (r *Registry) LogAccess(ctx context.Context, caller, fromID, toID, data string) error {
	if err := validateAccount(caller); err != nil {
		return err
	}
	return r.update(ctx, func(tx storage.Tx, emit func(audit.Event) error) error {
		return emit(audit.Event{Type: audit.EventAccess, Owner: caller, FromID: fromID, ToID: toID, Data: data})
	})
}

// LogMessage appends a caller-attributed message event under a category.
func (r *Registry) LogMessage(ctx context.Context, caller, fromID, toID, category, data string) error {
	if err := validateAccount(caller); err != nil {
		return err
	}
	return r.update(ctx, func(tx storage.Tx, emit func(audit.Event) error) error {
		return emit(audit.Event{Type: audit.EventMessage, Owner: caller, FromID: fromID, ToID: toID, Category: category, Data: data})
	})
}

// LogEntry appends a caller-attributed free-form log event.
func (r *Registry) LogEntry(ctx context.Context, caller, fromID, data string) error {
	if err := validateAccount(caller); err != nil {
		return err
	}
	return r.update(ctx, func(tx storage.Tx, emit func(audit.Event) error) error {
		return emit(audit.Event{Type: audit.EventLog, Owner: caller, FromID: fromID, Data: data})
	})
}

// Package audit defines the append-only event record the registry emits
// alongside every committed mutation, plus a fan-out hub for live feeds.
package audit

import "time"

// EventType identifies the kind of audit event.
type EventType string

const (
	EventServiceCreated EventType = "SERVICE_CREATED"
	EventKeyCreated     EventType = "KEY_CREATED"
	EventKeySold        EventType = "KEY_SOLD"
	EventKeysTraded     EventType = "KEYS_TRADED"
	EventAccess         EventType = "ACCESS"
	EventMessage        EventType = "MESSAGE"
	EventLog            EventType = "LOG"
)

// Event is one append-only audit record. Seq is assigned by storage at
// append time and orders the log; ID is a platform id for correlation.
// Only the fields relevant to the event type are populated.
type Event struct {
	Seq  uint64
	ID   string
	Type EventType
	Time time.Time

	// Owner is the account the event is attributed to.
	Owner string
	// ServiceID is set for service lifecycle events.
	ServiceID string
	// KeyID is set for key lifecycle and transfer events.
	KeyID string
	// CounterKeyID is the second key of a barter trade.
	CounterKeyID string
	// Seller and Buyer are set for sales.
	Seller string
	Buyer  string
	// Price is the settled amount in ledger base units.
	Price uint64
	// FromID and ToID are caller-chosen key ids on messaging events.
	FromID string
	ToID   string
	// Category is the caller-chosen message category.
	Category string
	// Data is an opaque caller payload.
	Data string
}

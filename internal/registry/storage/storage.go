// Package storage defines persistence contracts for registry state.
//
// Every registry operation runs inside a single store transaction: Update
// executes its function against a writable view and commits all-or-nothing,
// View executes against a read-only snapshot. Both backends serialize
// writers, which is what makes each public registry operation indivisible.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/keybazaar/internal/audit"
	"github.com/louisbranch/keybazaar/internal/registry/filter"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// Service is a registered resource authorized to issue keys. Seq is the
// 1-based insertion order used for enumeration and paging.
type Service struct {
	Seq       uint64
	ID        string
	URL       string
	Owner     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key is a capability token issued under a service. ServiceID is immutable
// once set. The three flags gate sharing, bartering, and selling.
type Key struct {
	Seq       uint64
	ID        string
	ServiceID string
	Owner     string
	CanShare  bool
	CanTrade  bool
	CanSell   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SalesOffer is the single live priced offer on a key. A stored offer is
// live by definition; cancelling deletes the record.
type SalesOffer struct {
	KeyID      string
	Buyer      string
	Price      uint64
	Resellable bool
}

// TradeOffer is the single live one-sided barter proposal on a key, keyed
// by the key that wants another.
type TradeOffer struct {
	KeyID     string
	WantKeyID string
}

// Meta names for registry-level settings.
const (
	MetaLedgerTarget = "ledger_target"
	MetaSuccessor    = "successor_address"
)

// Store provides transactional access to registry state.
type Store interface {
	// Update runs fn against a writable transaction. All mutations commit
	// together when fn returns nil and are discarded when it errors.
	Update(ctx context.Context, fn func(Tx) error) error
	// View runs fn against a read-only snapshot.
	View(ctx context.Context, fn func(ReadTx) error) error
	Close() error
}

// ReadTx reads registry state. Lookups return ErrNotFound for absent ids.
type ReadTx interface {
	Service(id string) (Service, error)
	Key(id string) (Key, error)

	ServiceCount() (int, error)
	KeyCount() (int, error)
	// ServiceAt and KeyAt return records by 0-based insertion index.
	ServiceAt(index int) (Service, error)
	KeyAt(index int) (Key, error)

	// ListServices and ListKeys page forward over Seq; conditions are
	// AND-combined filter comparisons.
	ListServices(afterSeq uint64, limit int, conds []filter.Condition) ([]Service, error)
	ListKeys(afterSeq uint64, limit int, conds []filter.Condition) ([]Key, error)
	ListAuditEvents(afterSeq uint64, limit int, conds []filter.Condition) ([]audit.Event, error)

	// SharedOwners returns the shared-owner set for a service or key id.
	// Unknown ids yield an empty set.
	SharedOwners(entityID string) ([]string, error)

	SalesOffer(keyID string) (SalesOffer, error)
	TradeOffer(keyID string) (TradeOffer, error)

	KeyData(keyID, subKey string) (string, error)

	Meta(name string) (string, error)
}

// Tx extends ReadTx with mutations. Put methods upsert; sequence numbers
// are assigned on first insert.
type Tx interface {
	ReadTx

	PutService(svc Service) error
	PutKey(key Key) error

	// NextKeySeq allocates the next value of the persistent key issuance
	// counter.
	NextKeySeq() (uint64, error)

	SetSharedOwners(entityID string, accounts []string) error

	PutSalesOffer(offer SalesOffer) error
	DeleteSalesOffer(keyID string) error

	PutTradeOffer(offer TradeOffer) error
	DeleteTradeOffer(keyID string) error

	PutKeyData(keyID, subKey, value string) error

	SetMeta(name, value string) error

	// AppendAuditEvent persists an event and returns its assigned sequence.
	AppendAuditEvent(evt audit.Event) (uint64, error)
}

// Package sqlite provides a SQLite-backed registry storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/keybazaar/internal/audit"
	sqlitemigrate "github.com/louisbranch/keybazaar/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/keybazaar/internal/registry/filter"
	"github.com/louisbranch/keybazaar/internal/registry/storage"
	"github.com/louisbranch/keybazaar/internal/registry/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists registry state in SQLite. A store-level mutex on Update
// keeps one writer at a time, matching the memory backend's serialization.
type Store struct {
	sqlDB   *sql.DB
	writeMu chan struct{}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func boolToInt(value bool) int64 {
	if value {
		return 1
	}
	return 0
}

// Open opens a SQLite registry store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, writeMu: make(chan struct{}, 1)}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Update runs fn inside one BEGIN IMMEDIATE transaction, serialized with
// other writers. Taking the write lock up front keeps a second process on
// the same database file from interleaving between our reads and writes.
func (s *Store) Update(ctx context.Context, fn func(storage.Tx) error) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	select {
	case s.writeMu <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.writeMu }()

	conn, err := s.sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	// The timeout is a per-connection setting; a contended BEGIN IMMEDIATE
	// waits for the other writer instead of failing with SQLITE_BUSY.
	if _, err := conn.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&tx{ctx: ctx, q: conn}); err != nil {
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// View runs fn against a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(storage.ReadTx) error) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	sqlTx, err := s.sqlDB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin read transaction: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()
	return fn(&tx{ctx: ctx, q: sqlTx})
}

// querier covers the shared query surface of *sql.Tx and *sql.Conn.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type tx struct {
	ctx context.Context
	q   querier
}

const serviceColumns = "seq, id, url, owner_account, created_at, updated_at"

func scanService(row interface{ Scan(...any) error }) (storage.Service, error) {
	var svc storage.Service
	var createdAt, updatedAt int64
	err := row.Scan(&svc.Seq, &svc.ID, &svc.URL, &svc.Owner, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Service{}, storage.ErrNotFound
		}
		return storage.Service{}, fmt.Errorf("scan service: %w", err)
	}
	svc.CreatedAt = fromMillis(createdAt)
	svc.UpdatedAt = fromMillis(updatedAt)
	return svc, nil
}

const keyColumns = "seq, id, service_id, owner_account, can_share, can_trade, can_sell, created_at, updated_at"

func scanKey(row interface{ Scan(...any) error }) (storage.Key, error) {
	var key storage.Key
	var canShare, canTrade, canSell int64
	var createdAt, updatedAt int64
	err := row.Scan(&key.Seq, &key.ID, &key.ServiceID, &key.Owner, &canShare, &canTrade, &canSell, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Key{}, storage.ErrNotFound
		}
		return storage.Key{}, fmt.Errorf("scan key: %w", err)
	}
	key.CanShare = canShare != 0
	key.CanTrade = canTrade != 0
	key.CanSell = canSell != 0
	key.CreatedAt = fromMillis(createdAt)
	key.UpdatedAt = fromMillis(updatedAt)
	return key, nil
}

func (t *tx) Service(id string) (storage.Service, error) {
	row := t.q.QueryRowContext(t.ctx, "SELECT "+serviceColumns+" FROM services WHERE id = ?", id)
	return scanService(row)
}

func (t *tx) Key(id string) (storage.Key, error) {
	row := t.q.QueryRowContext(t.ctx, "SELECT "+keyColumns+" FROM keys WHERE id = ?", id)
	return scanKey(row)
}

func (t *tx) ServiceCount() (int, error) {
	var count int
	if err := t.q.QueryRowContext(t.ctx, "SELECT COUNT(*) FROM services").Scan(&count); err != nil {
		return 0, fmt.Errorf("count services: %w", err)
	}
	return count, nil
}

func (t *tx) KeyCount() (int, error) {
	var count int
	if err := t.q.QueryRowContext(t.ctx, "SELECT COUNT(*) FROM keys").Scan(&count); err != nil {
		return 0, fmt.Errorf("count keys: %w", err)
	}
	return count, nil
}

func (t *tx) ServiceAt(index int) (storage.Service, error) {
	if index < 0 {
		return storage.Service{}, storage.ErrNotFound
	}
	row := t.q.QueryRowContext(t.ctx,
		"SELECT "+serviceColumns+" FROM services ORDER BY seq LIMIT 1 OFFSET ?", index)
	return scanService(row)
}

func (t *tx) KeyAt(index int) (storage.Key, error) {
	if index < 0 {
		return storage.Key{}, storage.ErrNotFound
	}
	row := t.q.QueryRowContext(t.ctx,
		"SELECT "+keyColumns+" FROM keys ORDER BY seq LIMIT 1 OFFSET ?", index)
	return scanKey(row)
}

var serviceFilterColumns = map[string]string{
	"id":    "id",
	"url":   "url",
	"owner": "owner_account",
}

var keyFilterColumns = map[string]string{
	"id":         "id",
	"service_id": "service_id",
	"owner":      "owner_account",
	"can_share":  "can_share",
	"can_trade":  "can_trade",
	"can_sell":   "can_sell",
}

var eventFilterColumns = map[string]string{
	"type":       "type",
	"owner":      "owner",
	"key_id":     "key_id",
	"service_id": "service_id",
	"category":   "category",
}

func listQuery(table, columns string, afterSeq uint64, limit int, conds []filter.Condition, filterColumns map[string]string) (string, []any, error) {
	where := "seq > ?"
	params := []any{int64(afterSeq)}
	if len(conds) > 0 {
		sqlCond, err := filter.SQL(conds, filterColumns)
		if err != nil {
			return "", nil, err
		}
		where += " AND " + sqlCond.Clause
		params = append(params, sqlCond.Params...)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY seq", columns, table, where)
	if limit > 0 {
		query += " LIMIT ?"
		params = append(params, limit)
	}
	return query, params, nil
}

func (t *tx) ListServices(afterSeq uint64, limit int, conds []filter.Condition) ([]storage.Service, error) {
	query, params, err := listQuery("services", serviceColumns, afterSeq, limit, conds, serviceFilterColumns)
	if err != nil {
		return nil, err
	}
	rows, err := t.q.QueryContext(t.ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var out []storage.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

func (t *tx) ListKeys(afterSeq uint64, limit int, conds []filter.Condition) ([]storage.Key, error) {
	query, params, err := listQuery("keys", keyColumns, afterSeq, limit, conds, keyFilterColumns)
	if err != nil {
		return nil, err
	}
	rows, err := t.q.QueryContext(t.ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var out []storage.Key
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

const eventColumns = "seq, id, type, ts, owner, service_id, key_id, counter_key_id, seller, buyer, price, from_id, to_id, category, data"

func (t *tx) ListAuditEvents(afterSeq uint64, limit int, conds []filter.Condition) ([]audit.Event, error) {
	query, params, err := listQuery("audit_events", eventColumns, afterSeq, limit, conds, eventFilterColumns)
	if err != nil {
		return nil, err
	}
	rows, err := t.q.QueryContext(t.ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var evt audit.Event
		var evtType string
		var ts, price int64
		err := rows.Scan(&evt.Seq, &evt.ID, &evtType, &ts, &evt.Owner, &evt.ServiceID, &evt.KeyID,
			&evt.CounterKeyID, &evt.Seller, &evt.Buyer, &price, &evt.FromID, &evt.ToID, &evt.Category, &evt.Data)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		evt.Type = audit.EventType(evtType)
		evt.Time = fromMillis(ts)
		evt.Price = uint64(price)
		out = append(out, evt)
	}
	return out, rows.Err()
}

func (t *tx) SharedOwners(entityID string) ([]string, error) {
	rows, err := t.q.QueryContext(t.ctx,
		"SELECT account FROM shared_owners WHERE entity_id = ? ORDER BY position", entityID)
	if err != nil {
		return nil, fmt.Errorf("list shared owners: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var account string
		if err := rows.Scan(&account); err != nil {
			return nil, fmt.Errorf("scan shared owner: %w", err)
		}
		out = append(out, account)
	}
	return out, rows.Err()
}

func (t *tx) SalesOffer(keyID string) (storage.SalesOffer, error) {
	row := t.q.QueryRowContext(t.ctx,
		"SELECT key_id, buyer, price, resellable FROM sales_offers WHERE key_id = ?", keyID)
	var offer storage.SalesOffer
	var price, resellable int64
	err := row.Scan(&offer.KeyID, &offer.Buyer, &price, &resellable)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SalesOffer{}, storage.ErrNotFound
		}
		return storage.SalesOffer{}, fmt.Errorf("get sales offer: %w", err)
	}
	offer.Price = uint64(price)
	offer.Resellable = resellable != 0
	return offer, nil
}

func (t *tx) TradeOffer(keyID string) (storage.TradeOffer, error) {
	row := t.q.QueryRowContext(t.ctx,
		"SELECT key_id, want_key_id FROM trade_offers WHERE key_id = ?", keyID)
	var offer storage.TradeOffer
	err := row.Scan(&offer.KeyID, &offer.WantKeyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.TradeOffer{}, storage.ErrNotFound
		}
		return storage.TradeOffer{}, fmt.Errorf("get trade offer: %w", err)
	}
	return offer, nil
}

func (t *tx) KeyData(keyID, subKey string) (string, error) {
	row := t.q.QueryRowContext(t.ctx,
		"SELECT value FROM key_data WHERE key_id = ? AND sub_key = ?", keyID, subKey)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("get key data: %w", err)
	}
	return value, nil
}

func (t *tx) Meta(name string) (string, error) {
	row := t.q.QueryRowContext(t.ctx, "SELECT value FROM registry_meta WHERE name = ?", name)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("get meta: %w", err)
	}
	return value, nil
}

func (t *tx) PutService(svc storage.Service) error {
	_, err := t.q.ExecContext(t.ctx,
		`INSERT INTO services (id, url, owner_account, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   url = excluded.url,
		   owner_account = excluded.owner_account,
		   updated_at = excluded.updated_at`,
		svc.ID, svc.URL, svc.Owner, toMillis(svc.CreatedAt), toMillis(svc.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put service: %w", err)
	}
	return nil
}

func (t *tx) PutKey(key storage.Key) error {
	_, err := t.q.ExecContext(t.ctx,
		`INSERT INTO keys (id, service_id, owner_account, can_share, can_trade, can_sell, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   owner_account = excluded.owner_account,
		   can_share = excluded.can_share,
		   can_trade = excluded.can_trade,
		   can_sell = excluded.can_sell,
		   updated_at = excluded.updated_at`,
		key.ID, key.ServiceID, key.Owner,
		boolToInt(key.CanShare), boolToInt(key.CanTrade), boolToInt(key.CanSell),
		toMillis(key.CreatedAt), toMillis(key.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put key: %w", err)
	}
	return nil
}

func (t *tx) NextKeySeq() (uint64, error) {
	_, err := t.q.ExecContext(t.ctx,
		`INSERT INTO counters (name, value) VALUES ('key_seq', 1)
		 ON CONFLICT(name) DO UPDATE SET value = value + 1`)
	if err != nil {
		return 0, fmt.Errorf("advance key counter: %w", err)
	}
	var value int64
	if err := t.q.QueryRowContext(t.ctx, "SELECT value FROM counters WHERE name = 'key_seq'").Scan(&value); err != nil {
		return 0, fmt.Errorf("read key counter: %w", err)
	}
	return uint64(value), nil
}

func (t *tx) SetSharedOwners(entityID string, accounts []string) error {
	if _, err := t.q.ExecContext(t.ctx, "DELETE FROM shared_owners WHERE entity_id = ?", entityID); err != nil {
		return fmt.Errorf("clear shared owners: %w", err)
	}
	for position, account := range accounts {
		_, err := t.q.ExecContext(t.ctx,
			"INSERT INTO shared_owners (entity_id, account, position) VALUES (?, ?, ?)",
			entityID, account, position)
		if err != nil {
			return fmt.Errorf("put shared owner: %w", err)
		}
	}
	return nil
}

func (t *tx) PutSalesOffer(offer storage.SalesOffer) error {
	_, err := t.q.ExecContext(t.ctx,
		`INSERT INTO sales_offers (key_id, buyer, price, resellable)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key_id) DO UPDATE SET
		   buyer = excluded.buyer,
		   price = excluded.price,
		   resellable = excluded.resellable`,
		offer.KeyID, offer.Buyer, int64(offer.Price), boolToInt(offer.Resellable))
	if err != nil {
		return fmt.Errorf("put sales offer: %w", err)
	}
	return nil
}

func (t *tx) DeleteSalesOffer(keyID string) error {
	if _, err := t.q.ExecContext(t.ctx, "DELETE FROM sales_offers WHERE key_id = ?", keyID); err != nil {
		return fmt.Errorf("delete sales offer: %w", err)
	}
	return nil
}

func (t *tx) PutTradeOffer(offer storage.TradeOffer) error {
	_, err := t.q.ExecContext(t.ctx,
		`INSERT INTO trade_offers (key_id, want_key_id)
		 VALUES (?, ?)
		 ON CONFLICT(key_id) DO UPDATE SET want_key_id = excluded.want_key_id`,
		offer.KeyID, offer.WantKeyID)
	if err != nil {
		return fmt.Errorf("put trade offer: %w", err)
	}
	return nil
}

func (t *tx) DeleteTradeOffer(keyID string) error {
	if _, err := t.q.ExecContext(t.ctx, "DELETE FROM trade_offers WHERE key_id = ?", keyID); err != nil {
		return fmt.Errorf("delete trade offer: %w", err)
	}
	return nil
}

func (t *tx) PutKeyData(keyID, subKey, value string) error {
	_, err := t.q.ExecContext(t.ctx,
		`INSERT INTO key_data (key_id, sub_key, value)
		 VALUES (?, ?, ?)
		 ON CONFLICT(key_id, sub_key) DO UPDATE SET value = excluded.value`,
		keyID, subKey, value)
	if err != nil {
		return fmt.Errorf("put key data: %w", err)
	}
	return nil
}

func (t *tx) SetMeta(name, value string) error {
	_, err := t.q.ExecContext(t.ctx,
		`INSERT INTO registry_meta (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		name, value)
	if err != nil {
		return fmt.Errorf("set meta: %w", err)
	}
	return nil
}

func (t *tx) AppendAuditEvent(evt audit.Event) (uint64, error) {
	result, err := t.q.ExecContext(t.ctx,
		`INSERT INTO audit_events (id, type, ts, owner, service_id, key_id, counter_key_id, seller, buyer, price, from_id, to_id, category, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.ID, string(evt.Type), toMillis(evt.Time), evt.Owner, evt.ServiceID, evt.KeyID,
		evt.CounterKeyID, evt.Seller, evt.Buyer, int64(evt.Price), evt.FromID, evt.ToID, evt.Category, evt.Data)
	if err != nil {
		return 0, fmt.Errorf("append audit event: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("audit event seq: %w", err)
	}
	return uint64(seq), nil
}

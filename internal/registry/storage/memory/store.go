// Package memory provides an in-memory transactional registry store.
//
// Update clones the entire state, runs the transaction function against the
// clone, and swaps the clone in only when the function succeeds, so a failed
// operation leaves no trace. The store mutex serializes writers.
package memory

import (
	"context"
	"sync"

	"github.com/louisbranch/keybazaar/internal/audit"
	"github.com/louisbranch/keybazaar/internal/registry/filter"
	"github.com/louisbranch/keybazaar/internal/registry/storage"
)

// Store keeps all registry state in process memory.
type Store struct {
	mu    sync.RWMutex
	state state
}

type state struct {
	services     map[string]storage.Service
	serviceOrder []string
	keys         map[string]storage.Key
	keyOrder     []string
	shared       map[string][]string
	salesOffers  map[string]storage.SalesOffer
	tradeOffers  map[string]storage.TradeOffer
	keyData      map[string]map[string]string
	meta         map[string]string
	keySeq       uint64
	events       []audit.Event
}

func newState() state {
	return state{
		services:    map[string]storage.Service{},
		keys:        map[string]storage.Key{},
		shared:      map[string][]string{},
		salesOffers: map[string]storage.SalesOffer{},
		tradeOffers: map[string]storage.TradeOffer{},
		keyData:     map[string]map[string]string{},
		meta:        map[string]string{},
	}
}

func (s state) clone() state {
	next := state{
		services:     make(map[string]storage.Service, len(s.services)),
		serviceOrder: append([]string(nil), s.serviceOrder...),
		keys:         make(map[string]storage.Key, len(s.keys)),
		keyOrder:     append([]string(nil), s.keyOrder...),
		shared:       make(map[string][]string, len(s.shared)),
		salesOffers:  make(map[string]storage.SalesOffer, len(s.salesOffers)),
		tradeOffers:  make(map[string]storage.TradeOffer, len(s.tradeOffers)),
		keyData:      make(map[string]map[string]string, len(s.keyData)),
		meta:         make(map[string]string, len(s.meta)),
		keySeq:       s.keySeq,
		events:       append([]audit.Event(nil), s.events...),
	}
	for id, svc := range s.services {
		next.services[id] = svc
	}
	for id, key := range s.keys {
		next.keys[id] = key
	}
	for id, accounts := range s.shared {
		next.shared[id] = append([]string(nil), accounts...)
	}
	for id, offer := range s.salesOffers {
		next.salesOffers[id] = offer
	}
	for id, offer := range s.tradeOffers {
		next.tradeOffers[id] = offer
	}
	for id, data := range s.keyData {
		values := make(map[string]string, len(data))
		for subKey, value := range data {
			values[subKey] = value
		}
		next.keyData[id] = values
	}
	for name, value := range s.meta {
		next.meta[name] = value
	}
	return next
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{state: newState()}
}

// Update runs fn against a clone of the state and commits it on success.
func (s *Store) Update(ctx context.Context, fn func(storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.clone()
	if err := fn(&tx{state: &next}); err != nil {
		return err
	}
	s.state = next
	return nil
}

// View runs fn against the current state under a read lock.
func (s *Store) View(ctx context.Context, fn func(storage.ReadTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&tx{state: &s.state})
}

// Close releases nothing; it exists to satisfy the Store contract.
func (s *Store) Close() error {
	return nil
}

// tx serves reads and writes against one state value. The same type backs
// both Update and View; View callers only see the ReadTx subset.
type tx struct {
	state *state
}

func (t *tx) Service(id string) (storage.Service, error) {
	svc, ok := t.state.services[id]
	if !ok {
		return storage.Service{}, storage.ErrNotFound
	}
	return svc, nil
}

func (t *tx) Key(id string) (storage.Key, error) {
	key, ok := t.state.keys[id]
	if !ok {
		return storage.Key{}, storage.ErrNotFound
	}
	return key, nil
}

func (t *tx) ServiceCount() (int, error) {
	return len(t.state.serviceOrder), nil
}

func (t *tx) KeyCount() (int, error) {
	return len(t.state.keyOrder), nil
}

func (t *tx) ServiceAt(index int) (storage.Service, error) {
	if index < 0 || index >= len(t.state.serviceOrder) {
		return storage.Service{}, storage.ErrNotFound
	}
	return t.Service(t.state.serviceOrder[index])
}

func (t *tx) KeyAt(index int) (storage.Key, error) {
	if index < 0 || index >= len(t.state.keyOrder) {
		return storage.Key{}, storage.ErrNotFound
	}
	return t.Key(t.state.keyOrder[index])
}

func serviceField(svc storage.Service, field string) (any, bool) {
	switch field {
	case "id":
		return svc.ID, true
	case "url":
		return svc.URL, true
	case "owner":
		return svc.Owner, true
	default:
		return nil, false
	}
}

func keyField(key storage.Key, field string) (any, bool) {
	switch field {
	case "id":
		return key.ID, true
	case "service_id":
		return key.ServiceID, true
	case "owner":
		return key.Owner, true
	case "can_share":
		return key.CanShare, true
	case "can_trade":
		return key.CanTrade, true
	case "can_sell":
		return key.CanSell, true
	default:
		return nil, false
	}
}

func eventField(evt audit.Event, field string) (any, bool) {
	switch field {
	case "type":
		return string(evt.Type), true
	case "owner":
		return evt.Owner, true
	case "key_id":
		return evt.KeyID, true
	case "service_id":
		return evt.ServiceID, true
	case "category":
		return evt.Category, true
	default:
		return nil, false
	}
}

func (t *tx) ListServices(afterSeq uint64, limit int, conds []filter.Condition) ([]storage.Service, error) {
	var out []storage.Service
	for _, id := range t.state.serviceOrder {
		svc := t.state.services[id]
		if svc.Seq <= afterSeq {
			continue
		}
		if !filter.Match(conds, func(field string) (any, bool) { return serviceField(svc, field) }) {
			continue
		}
		out = append(out, svc)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *tx) ListKeys(afterSeq uint64, limit int, conds []filter.Condition) ([]storage.Key, error) {
	var out []storage.Key
	for _, id := range t.state.keyOrder {
		key := t.state.keys[id]
		if key.Seq <= afterSeq {
			continue
		}
		if !filter.Match(conds, func(field string) (any, bool) { return keyField(key, field) }) {
			continue
		}
		out = append(out, key)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *tx) ListAuditEvents(afterSeq uint64, limit int, conds []filter.Condition) ([]audit.Event, error) {
	var out []audit.Event
	for _, evt := range t.state.events {
		if evt.Seq <= afterSeq {
			continue
		}
		if !filter.Match(conds, func(field string) (any, bool) { return eventField(evt, field) }) {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *tx) SharedOwners(entityID string) ([]string, error) {
	return append([]string(nil), t.state.shared[entityID]...), nil
}

func (t *tx) SalesOffer(keyID string) (storage.SalesOffer, error) {
	offer, ok := t.state.salesOffers[keyID]
	if !ok {
		return storage.SalesOffer{}, storage.ErrNotFound
	}
	return offer, nil
}

func (t *tx) TradeOffer(keyID string) (storage.TradeOffer, error) {
	offer, ok := t.state.tradeOffers[keyID]
	if !ok {
		return storage.TradeOffer{}, storage.ErrNotFound
	}
	return offer, nil
}

func (t *tx) KeyData(keyID, subKey string) (string, error) {
	values, ok := t.state.keyData[keyID]
	if !ok {
		return "", storage.ErrNotFound
	}
	value, ok := values[subKey]
	if !ok {
		return "", storage.ErrNotFound
	}
	return value, nil
}

func (t *tx) Meta(name string) (string, error) {
	value, ok := t.state.meta[name]
	if !ok {
		return "", storage.ErrNotFound
	}
	return value, nil
}

func (t *tx) PutService(svc storage.Service) error {
	if _, exists := t.state.services[svc.ID]; !exists {
		svc.Seq = uint64(len(t.state.serviceOrder) + 1)
		t.state.serviceOrder = append(t.state.serviceOrder, svc.ID)
	} else if svc.Seq == 0 {
		svc.Seq = t.state.services[svc.ID].Seq
	}
	t.state.services[svc.ID] = svc
	return nil
}

func (t *tx) PutKey(key storage.Key) error {
	if _, exists := t.state.keys[key.ID]; !exists {
		key.Seq = uint64(len(t.state.keyOrder) + 1)
		t.state.keyOrder = append(t.state.keyOrder, key.ID)
	} else if key.Seq == 0 {
		key.Seq = t.state.keys[key.ID].Seq
	}
	t.state.keys[key.ID] = key
	return nil
}

func (t *tx) NextKeySeq() (uint64, error) {
	t.state.keySeq++
	return t.state.keySeq, nil
}

func (t *tx) SetSharedOwners(entityID string, accounts []string) error {
	if len(accounts) == 0 {
		delete(t.state.shared, entityID)
		return nil
	}
	t.state.shared[entityID] = append([]string(nil), accounts...)
	return nil
}

func (t *tx) PutSalesOffer(offer storage.SalesOffer) error {
	t.state.salesOffers[offer.KeyID] = offer
	return nil
}

func (t *tx) DeleteSalesOffer(keyID string) error {
	delete(t.state.salesOffers, keyID)
	return nil
}

func (t *tx) PutTradeOffer(offer storage.TradeOffer) error {
	t.state.tradeOffers[offer.KeyID] = offer
	return nil
}

func (t *tx) DeleteTradeOffer(keyID string) error {
	delete(t.state.tradeOffers, keyID)
	return nil
}

func (t *tx) PutKeyData(keyID, subKey, value string) error {
	values, ok := t.state.keyData[keyID]
	if !ok {
		values = map[string]string{}
		t.state.keyData[keyID] = values
	}
	values[subKey] = value
	return nil
}

func (t *tx) SetMeta(name, value string) error {
	t.state.meta[name] = value
	return nil
}

func (t *tx) AppendAuditEvent(evt audit.Event) (uint64, error) {
	evt.Seq = uint64(len(t.state.events) + 1)
	t.state.events = append(t.state.events, evt)
	return evt.Seq, nil
}

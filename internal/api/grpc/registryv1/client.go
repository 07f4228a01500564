package registryv1

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/louisbranch/keybazaar/internal/api/grpc/wire"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Service is a registered service as returned by the Registry API.
type Service struct {
	ID        string
	URL       string
	Owner     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key is an issued key as returned by the Registry API.
type Key struct {
	ID        string
	ServiceID string
	Owner     string
	CanShare  bool
	CanTrade  bool
	CanSell   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SalesOffer is a live sale listing.
type SalesOffer struct {
	KeyID      string
	Buyer      string
	Price      uint64
	Resellable bool
}

// TradeOffer is a pending barter proposal.
type TradeOffer struct {
	KeyID     string
	WantKeyID string
}

// Event is one audit log entry.
type Event struct {
	ID           string
	Type         string
	Time         time.Time
	Owner        string
	ServiceID    string
	KeyID        string
	CounterKeyID string
	Seller       string
	Buyer        string
	Price        uint64
	FromID       string
	ToID         string
	Category     string
	Data         string
}

// Info describes the registry deployment.
type Info struct {
	ServiceCount int
	KeyCount     int
	LedgerTarget string
	Successor    string
}

// ListPage carries pagination inputs for the list RPCs.
type ListPage struct {
	PageSize  int32
	PageToken string
	Filter    string
}

// Client calls the Registry service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a Registry client over an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeTime(msg *structpb.Struct, field string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, wire.String(msg, field))
	if err != nil {
		return time.Time{}
	}
	return t
}

func decodeService(msg *structpb.Struct) Service {
	return Service{
		ID:        wire.String(msg, "id"),
		URL:       wire.String(msg, "url"),
		Owner:     wire.String(msg, "owner"),
		CreatedAt: decodeTime(msg, "created_at"),
		UpdatedAt: decodeTime(msg, "updated_at"),
	}
}

func decodeKey(msg *structpb.Struct) Key {
	return Key{
		ID:        wire.String(msg, "id"),
		ServiceID: wire.String(msg, "service_id"),
		Owner:     wire.String(msg, "owner"),
		CanShare:  wire.Bool(msg, "can_share"),
		CanTrade:  wire.Bool(msg, "can_trade"),
		CanSell:   wire.Bool(msg, "can_sell"),
		CreatedAt: decodeTime(msg, "created_at"),
		UpdatedAt: decodeTime(msg, "updated_at"),
	}
}

func decodeEvent(msg *structpb.Struct) Event {
	evt := Event{
		ID:           wire.String(msg, "id"),
		Type:         wire.String(msg, "type"),
		Time:         decodeTime(msg, "time"),
		Owner:        wire.String(msg, "owner"),
		ServiceID:    wire.String(msg, "service_id"),
		KeyID:        wire.String(msg, "key_id"),
		CounterKeyID: wire.String(msg, "counter_key_id"),
		Seller:       wire.String(msg, "seller"),
		Buyer:        wire.String(msg, "buyer"),
		FromID:       wire.String(msg, "from_id"),
		ToID:         wire.String(msg, "to_id"),
		Category:     wire.String(msg, "category"),
		Data:         wire.String(msg, "data"),
	}
	if price, err := wire.Amount(msg, "price"); err == nil {
		evt.Price = price
	}
	return evt
}

func embeddedStruct(msg *structpb.Struct, field string) (*structpb.Struct, error) {
	value, ok := msg.Fields[field]
	if !ok {
		return nil, fmt.Errorf("response is missing %q", field)
	}
	embedded := value.GetStructValue()
	if embedded == nil {
		return nil, fmt.Errorf("response field %q is not a message", field)
	}
	return embedded, nil
}

func (c *Client) invokeService(ctx context.Context, method string, in *structpb.Struct) (Service, error) {
	out, err := c.invoke(ctx, method, in)
	if err != nil {
		return Service{}, err
	}
	msg, err := embeddedStruct(out, "service")
	if err != nil {
		return Service{}, err
	}
	return decodeService(msg), nil
}

func (c *Client) invokeKey(ctx context.Context, method string, in *structpb.Struct) (Key, error) {
	out, err := c.invoke(ctx, method, in)
	if err != nil {
		return Key{}, err
	}
	msg, err := embeddedStruct(out, "key")
	if err != nil {
		return Key{}, err
	}
	return decodeKey(msg), nil
}

func pageMessage(page ListPage) *structpb.Struct {
	return wire.Message(map[string]any{
		"page_size":  int(page.PageSize),
		"page_token": page.PageToken,
		"filter":     page.Filter,
	})
}

// CreateService registers a service owned by the caller.
func (c *Client) CreateService(ctx context.Context, url string) (Service, error) {
	return c.invokeService(ctx, MethodCreateService, wire.Message(map[string]any{"url": url}))
}

// GetService looks up a service by id.
func (c *Client) GetService(ctx context.Context, serviceID string) (Service, error) {
	return c.invokeService(ctx, MethodGetService, wire.Message(map[string]any{"service_id": serviceID}))
}

// ListServices returns one page of services plus the next page token.
func (c *Client) ListServices(ctx context.Context, page ListPage) ([]Service, string, error) {
	out, err := c.invoke(ctx, MethodListServices, pageMessage(page))
	if err != nil {
		return nil, "", err
	}
	var services []Service
	for _, msg := range wire.List(out, "services") {
		services = append(services, decodeService(msg))
	}
	return services, wire.String(out, "next_page_token"), nil
}

// UpdateServiceURL changes a service's url in place.
func (c *Client) UpdateServiceURL(ctx context.Context, serviceID, url string) (Service, error) {
	return c.invokeService(ctx, MethodUpdateServiceURL, wire.Message(map[string]any{
		"service_id": serviceID,
		"url":        url,
	}))
}

// IssueKey creates a key under a service for a recipient.
func (c *Client) IssueKey(ctx context.Context, serviceID, recipient string) (Key, error) {
	return c.invokeKey(ctx, MethodIssueKey, wire.Message(map[string]any{
		"service_id": serviceID,
		"recipient":  recipient,
	}))
}

// GetKey looks up a key by id.
func (c *Client) GetKey(ctx context.Context, keyID string) (Key, error) {
	return c.invokeKey(ctx, MethodGetKey, wire.Message(map[string]any{"key_id": keyID}))
}

// ListKeys returns one page of keys plus the next page token.
func (c *Client) ListKeys(ctx context.Context, page ListPage) ([]Key, string, error) {
	out, err := c.invoke(ctx, MethodListKeys, pageMessage(page))
	if err != nil {
		return nil, "", err
	}
	var keys []Key
	for _, msg := range wire.List(out, "keys") {
		keys = append(keys, decodeKey(msg))
	}
	return keys, wire.String(out, "next_page_token"), nil
}

// SetKeyPermissions applies a key's capability flags.
func (c *Client) SetKeyPermissions(ctx context.Context, keyID string, canShare, canTrade, canSell bool) (Key, error) {
	return c.invokeKey(ctx, MethodSetKeyPermissions, wire.Message(map[string]any{
		"key_id":    keyID,
		"can_share": canShare,
		"can_trade": canTrade,
		"can_sell":  canSell,
	}))
}

// ShareService grants an account co-ownership of a service.
func (c *Client) ShareService(ctx context.Context, serviceID, account string) error {
	_, err := c.invoke(ctx, MethodShareService, wire.Message(map[string]any{
		"service_id": serviceID,
		"account":    account,
	}))
	return err
}

// UnshareService removes an account's co-ownership of a service.
func (c *Client) UnshareService(ctx context.Context, serviceID, account string) error {
	_, err := c.invoke(ctx, MethodUnshareService, wire.Message(map[string]any{
		"service_id": serviceID,
		"account":    account,
	}))
	return err
}

// ShareKey grants an account co-ownership of a key.
func (c *Client) ShareKey(ctx context.Context, keyID, account string) error {
	_, err := c.invoke(ctx, MethodShareKey, wire.Message(map[string]any{
		"key_id":  keyID,
		"account": account,
	}))
	return err
}

// UnshareKey removes an account's co-ownership of a key.
func (c *Client) UnshareKey(ctx context.Context, keyID, account string) error {
	_, err := c.invoke(ctx, MethodUnshareKey, wire.Message(map[string]any{
		"key_id":  keyID,
		"account": account,
	}))
	return err
}

// CheckOwnership answers whether an account effectively owns an entity.
func (c *Client) CheckOwnership(ctx context.Context, entityID, account string) (bool, error) {
	out, err := c.invoke(ctx, MethodCheckOwnership, wire.Message(map[string]any{
		"entity_id": entityID,
		"account":   account,
	}))
	if err != nil {
		return false, err
	}
	return wire.Bool(out, "owner"), nil
}

// CreateSalesOffer puts a key up for sale.
func (c *Client) CreateSalesOffer(ctx context.Context, keyID, buyer string, price uint64, resellable bool) error {
	_, err := c.invoke(ctx, MethodCreateSalesOffer, wire.Message(map[string]any{
		"key_id":     keyID,
		"buyer":      buyer,
		"price":      wire.FormatAmount(price),
		"resellable": resellable,
	}))
	return err
}

// CancelSalesOffer withdraws a key's sales offer.
func (c *Client) CancelSalesOffer(ctx context.Context, keyID string) error {
	_, err := c.invoke(ctx, MethodCancelSalesOffer, wire.Message(map[string]any{"key_id": keyID}))
	return err
}

// GetSalesOffer reads a key's sales offer; live reports whether one exists.
func (c *Client) GetSalesOffer(ctx context.Context, keyID string) (SalesOffer, bool, error) {
	out, err := c.invoke(ctx, MethodGetSalesOffer, wire.Message(map[string]any{"key_id": keyID}))
	if err != nil {
		return SalesOffer{}, false, err
	}
	if !wire.Bool(out, "live") {
		return SalesOffer{}, false, nil
	}
	msg, err := embeddedStruct(out, "offer")
	if err != nil {
		return SalesOffer{}, false, err
	}
	price, err := wire.Amount(msg, "price")
	if err != nil {
		return SalesOffer{}, false, fmt.Errorf("sales offer response: %w", err)
	}
	return SalesOffer{
		KeyID:      wire.String(msg, "key_id"),
		Buyer:      wire.String(msg, "buyer"),
		Price:      price,
		Resellable: wire.Bool(msg, "resellable"),
	}, true, nil
}

// PurchaseKey settles a sales offer and returns the transferred key.
func (c *Client) PurchaseKey(ctx context.Context, keyID string, amount uint64) (Key, error) {
	return c.invokeKey(ctx, MethodPurchaseKey, wire.Message(map[string]any{
		"key_id": keyID,
		"amount": wire.FormatAmount(amount),
	}))
}

// TradeKey proposes or completes a barter between two keys. matched
// reports whether the keys swapped owners.
func (c *Client) TradeKey(ctx context.Context, keyID, wantKeyID string) (bool, error) {
	out, err := c.invoke(ctx, MethodTradeKey, wire.Message(map[string]any{
		"key_id":      keyID,
		"want_key_id": wantKeyID,
	}))
	if err != nil {
		return false, err
	}
	return wire.Bool(out, "matched"), nil
}

// GetTradeOffer reads a key's trade offer; pending reports whether one exists.
func (c *Client) GetTradeOffer(ctx context.Context, keyID string) (TradeOffer, bool, error) {
	out, err := c.invoke(ctx, MethodGetTradeOffer, wire.Message(map[string]any{"key_id": keyID}))
	if err != nil {
		return TradeOffer{}, false, err
	}
	if !wire.Bool(out, "pending") {
		return TradeOffer{}, false, nil
	}
	msg, err := embeddedStruct(out, "offer")
	if err != nil {
		return TradeOffer{}, false, err
	}
	return TradeOffer{
		KeyID:     wire.String(msg, "key_id"),
		WantKeyID: wire.String(msg, "want_key_id"),
	}, true, nil
}

// SetKeyData stores an annotation under a key's sub-key.
func (c *Client) SetKeyData(ctx context.Context, serviceID, keyID, subKey, value string) error {
	_, err := c.invoke(ctx, MethodSetKeyData, wire.Message(map[string]any{
		"service_id": serviceID,
		"key_id":     keyID,
		"sub_key":    subKey,
		"value":      value,
	}))
	return err
}

// GetKeyData reads an annotation under a key's sub-key.
func (c *Client) GetKeyData(ctx context.Context, keyID, subKey string) (string, error) {
	out, err := c.invoke(ctx, MethodGetKeyData, wire.Message(map[string]any{
		"key_id":  keyID,
		"sub_key": subKey,
	}))
	if err != nil {
		return "", err
	}
	return wire.String(out, "value"), nil
}

// RecoverSigner recovers the account that produced a compact signature
// over a 32-byte message hash.
func (c *Client) RecoverSigner(ctx context.Context, messageHash [32]byte, signature []byte) (string, error) {
	out, err := c.invoke(ctx, MethodRecoverSigner, wire.Message(map[string]any{
		"message_hash": hex.EncodeToString(messageHash[:]),
		"signature":    hex.EncodeToString(signature),
	}))
	if err != nil {
		return "", err
	}
	return wire.String(out, "account"), nil
}

// LogAccess appends an access event attributed to the caller.
func (c *Client) LogAccess(ctx context.Context, fromID, toID, data string) error {
	_, err := c.invoke(ctx, MethodLogAccess, wire.Message(map[string]any{
		"from_id": fromID,
		"to_id":   toID,
		"data":    data,
	}))
	return err
}

// LogMessage appends a message event attributed to the caller.
func (c *Client) LogMessage(ctx context.Context, fromID, toID, category, data string) error {
	_, err := c.invoke(ctx, MethodLogMessage, wire.Message(map[string]any{
		"from_id":  fromID,
		"to_id":    toID,
		"category": category,
		"data":     data,
	}))
	return err
}

// LogEntry appends a log event attributed to the caller.
func (c *Client) LogEntry(ctx context.Context, fromID, data string) error {
	_, err := c.invoke(ctx, MethodLogEntry, wire.Message(map[string]any{
		"from_id": fromID,
		"data":    data,
	}))
	return err
}

// ListAuditEvents returns one page of the audit log plus the next page token.
func (c *Client) ListAuditEvents(ctx context.Context, page ListPage) ([]Event, string, error) {
	out, err := c.invoke(ctx, MethodListAuditEvents, pageMessage(page))
	if err != nil {
		return nil, "", err
	}
	var events []Event
	for _, msg := range wire.List(out, "events") {
		events = append(events, decodeEvent(msg))
	}
	return events, wire.String(out, "next_page_token"), nil
}

// GetRegistryInfo returns counts and registry-level pointers.
func (c *Client) GetRegistryInfo(ctx context.Context) (Info, error) {
	out, err := c.invoke(ctx, MethodGetRegistryInfo, wire.Empty())
	if err != nil {
		return Info{}, err
	}
	return Info{
		ServiceCount: wire.Number(out, "service_count"),
		KeyCount:     wire.Number(out, "key_count"),
		LedgerTarget: wire.String(out, "ledger_target"),
		Successor:    wire.String(out, "successor_address"),
	}, nil
}

// SetLedgerTarget re-points the settlement ledger. Admin only.
func (c *Client) SetLedgerTarget(ctx context.Context, target string) error {
	_, err := c.invoke(ctx, MethodSetLedgerTarget, wire.Message(map[string]any{"target": target}))
	return err
}

// SetSuccessorAddress records the authoritative deployment. Admin only.
func (c *Client) SetSuccessorAddress(ctx context.Context, address string) error {
	_, err := c.invoke(ctx, MethodSetSuccessorAddress, wire.Message(map[string]any{"address": address}))
	return err
}

// ReclaimLedgerBalance moves approved balance back to the administrator.
// Admin only.
func (c *Client) ReclaimLedgerBalance(ctx context.Context, from string, amount uint64) error {
	_, err := c.invoke(ctx, MethodReclaimLedgerBalance, wire.Message(map[string]any{
		"from":   from,
		"amount": wire.FormatAmount(amount),
	}))
	return err
}

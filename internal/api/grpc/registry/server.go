// Package registry implements the Registry gRPC service. Every RPC
// resolves the caller from verified token metadata, delegates to one
// engine operation, and converts domain errors to localized gRPC status.
package registry

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/louisbranch/keybazaar/internal/accountsig"
	"github.com/louisbranch/keybazaar/internal/api/grpc/auth"
	"github.com/louisbranch/keybazaar/internal/api/grpc/metadata"
	"github.com/louisbranch/keybazaar/internal/api/grpc/registryv1"
	"github.com/louisbranch/keybazaar/internal/api/grpc/wire"
	"github.com/louisbranch/keybazaar/internal/audit"
	apperrors "github.com/louisbranch/keybazaar/internal/platform/errors"
	"github.com/louisbranch/keybazaar/internal/registry"
	"github.com/louisbranch/keybazaar/internal/registry/storage"
	"google.golang.org/protobuf/types/known/structpb"
)

// OpenMethods lists the Registry RPCs reachable without an access token:
// the read-only surface plus the stateless signer recovery.
func OpenMethods() map[string]bool {
	open := map[string]bool{}
	for _, method := range []string{
		registryv1.MethodGetService,
		registryv1.MethodListServices,
		registryv1.MethodGetKey,
		registryv1.MethodListKeys,
		registryv1.MethodCheckOwnership,
		registryv1.MethodGetSalesOffer,
		registryv1.MethodGetTradeOffer,
		registryv1.MethodGetKeyData,
		registryv1.MethodRecoverSigner,
		registryv1.MethodListAuditEvents,
		registryv1.MethodGetRegistryInfo,
	} {
		open[registryv1.FullMethod(method)] = true
	}
	return open
}

// Server serves the Registry API over the domain engine.
type Server struct {
	registryv1.UnimplementedRegistryServer
	engine *registry.Registry
}

// NewServer creates a Registry server.
func NewServer(engine *registry.Registry) *Server {
	return &Server{engine: engine}
}

func (s *Server) fail(ctx context.Context, err error) error {
	return apperrors.HandleError(err, metadata.LocaleFromContext(ctx))
}

func (s *Server) caller(ctx context.Context) (string, error) {
	account := auth.AccountFromContext(ctx)
	if account == "" {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "caller account is missing")
	}
	return account, nil
}

func serviceMessage(svc storage.Service) *structpb.Struct {
	return wire.Message(map[string]any{
		"id":         svc.ID,
		"url":        svc.URL,
		"owner":      svc.Owner,
		"created_at": svc.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": svc.UpdatedAt.Format(time.RFC3339Nano),
	})
}

func keyMessage(key storage.Key) *structpb.Struct {
	return wire.Message(map[string]any{
		"id":         key.ID,
		"service_id": key.ServiceID,
		"owner":      key.Owner,
		"can_share":  key.CanShare,
		"can_trade":  key.CanTrade,
		"can_sell":   key.CanSell,
		"created_at": key.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": key.UpdatedAt.Format(time.RFC3339Nano),
	})
}

func salesOfferMessage(offer storage.SalesOffer) *structpb.Struct {
	return wire.Message(map[string]any{
		"key_id":     offer.KeyID,
		"buyer":      offer.Buyer,
		"price":      wire.FormatAmount(offer.Price),
		"resellable": offer.Resellable,
	})
}

func tradeOfferMessage(offer storage.TradeOffer) *structpb.Struct {
	return wire.Message(map[string]any{
		"key_id":      offer.KeyID,
		"want_key_id": offer.WantKeyID,
	})
}

func eventMessage(evt audit.Event) *structpb.Struct {
	msg := wire.Message(map[string]any{
		"id":   evt.ID,
		"type": string(evt.Type),
		"time": evt.Time.Format(time.RFC3339Nano),
	})
	optional := map[string]string{
		"owner":          evt.Owner,
		"service_id":     evt.ServiceID,
		"key_id":         evt.KeyID,
		"counter_key_id": evt.CounterKeyID,
		"seller":         evt.Seller,
		"buyer":          evt.Buyer,
		"from_id":        evt.FromID,
		"to_id":          evt.ToID,
		"category":       evt.Category,
		"data":           evt.Data,
	}
	for field, value := range optional {
		if value != "" {
			msg.Fields[field] = structpb.NewStringValue(value)
		}
	}
	if evt.Price > 0 {
		msg.Fields["price"] = structpb.NewStringValue(wire.FormatAmount(evt.Price))
	}
	return msg
}

func listRequest(in *structpb.Struct) registry.ListRequest {
	return registry.ListRequest{
		PageSize:  int32(wire.Number(in, "page_size")),
		PageToken: wire.String(in, "page_token"),
		Filter:    wire.String(in, "filter"),
	}
}

// CreateService registers a service owned by the caller.
func (s *Server) CreateService(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	svc, err := s.engine.CreateService(ctx, caller, wire.String(in, "url"))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	out := wire.Empty()
	out.Fields["service"] = structpb.NewStructValue(serviceMessage(svc))
	return out, nil
}

// GetService looks up a service by id.
func (s *Server) GetService(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	svc, err := s.engine.GetService(ctx, wire.String(in, "service_id"))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	out := wire.Empty()
	out.Fields["service"] = structpb.NewStructValue(serviceMessage(svc))
	return out, nil
}

// ListServices returns a page of services.
func (s *Server) ListServices(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	services, nextToken, err := s.engine.ListServices(ctx, listRequest(in))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	elements := make([]*structpb.Struct, 0, len(services))
	for _, svc := range services {
		elements = append(elements, serviceMessage(svc))
	}
	out := wire.Empty()
	out.Fields["services"] = structpb.NewListValue(wire.StructList(elements))
	out.Fields["next_page_token"] = structpb.NewStringValue(nextToken)
	return out, nil
}

// UpdateServiceURL changes a service's url in place.
func (s *Server) UpdateServiceURL(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	svc, err := s.engine.UpdateServiceURL(ctx, caller, wire.String(in, "service_id"), wire.String(in, "url"))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	out := wire.Empty()
	out.Fields["service"] = structpb.NewStructValue(serviceMessage(svc))
	return out, nil
}

// IssueKey creates a key under a service for a recipient.
func (s *Server) IssueKey(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	key, err := s.engine.IssueKey(ctx, caller, wire.String(in, "service_id"), wire.String(in, "recipient"))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	out := wire.Empty()
	out.Fields["key"] = structpb.NewStructValue(keyMessage(key))
	return out, nil
}

// GetKey looks up a key by id.
func (s *Server) GetKey(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	key, err := s.engine.GetKey(ctx, wire.String(in, "key_id"))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	out := wire.Empty()
	out.Fields["key"] = structpb.NewStructValue(keyMessage(key))
	return out, nil
}

// ListKeys returns a page of keys.
func (s *Server) ListKeys(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	keys, nextToken, err := s.engine.ListKeys(ctx, listRequest(in))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	elements := make([]*structpb.Struct, 0, len(keys))
	for _, key := range keys {
		elements = append(elements, keyMessage(key))
	}
	out := wire.Empty()
	out.Fields["keys"] = structpb.NewListValue(wire.StructList(elements))
	out.Fields["next_page_token"] = structpb.NewStringValue(nextToken)
	return out, nil
}

// SetKeyPermissions applies a key's capability flags.
func (s *Server) SetKeyPermissions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	key, err := s.engine.SetKeyPermissions(ctx, caller, wire.String(in, "key_id"),
		wire.Bool(in, "can_share"), wire.Bool(in, "can_trade"), wire.Bool(in, "can_sell"))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	out := wire.Empty()
	out.Fields["key"] = structpb.NewStructValue(keyMessage(key))
	return out, nil
}

func (s *Server) share(ctx context.Context, entityID, account string) (*structpb.Struct, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	if err := s.engine.Share(ctx, caller, entityID, account); err != nil {
		return nil, s.fail(ctx, err)
	}
	return wire.Empty(), nil
}

func (s *Server) unshare(ctx context.Context, entityID, account string) (*structpb.Struct, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	if err := s.engine.Unshare(ctx, caller, entityID, account); err != nil {
		return nil, s.fail(ctx, err)
	}
	return wire.Empty(), nil
}

// ShareService grants an account co-ownership of a service.
func (s *Server) ShareService(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.share(ctx, wire.String(in, "service_id"), wire.String(in, "account"))
}

// UnshareService removes an account's co-ownership of a service.
func (s *Server) UnshareService(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.unshare(ctx, wire.String(in, "service_id"), wire.String(in, "account"))
}

// ShareKey grants an account co-ownership of a key.
func (s *Server) ShareKey(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.share(ctx, wire.String(in, "key_id"), wire.String(in, "account"))
}

// UnshareKey removes an account's co-ownership of a key.
func (s *Server) UnshareKey(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.unshare(ctx, wire.String(in, "key_id"), wire.String(in, "account"))
}

// CheckOwnership answers whether an account effectively owns an entity.
func (s *Server) CheckOwnership(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	owns, err := s.engine.IsOwner(ctx, wire.String(in, "entity_id"), wire.String(in, "account"))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return wire.Message(map[string]any{"owner": owns}), nil
}

// CreateSalesOffer puts a key up for sale.
func (s *Server) CreateSalesOffer(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	price, err := wire.Amount(in, "price")
	if err != nil {
		return nil, s.fail(ctx, apperrors.Wrap(apperrors.CodeAmountInvalid, "parse price", err))
	}
	err = s.engine.CreateSalesOffer(ctx, caller, wire.String(in, "key_id"),
		wire.String(in, "buyer"), price, wire.Bool(in, "resellable"))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return wire.Empty(), nil
}

// CancelSalesOffer withdraws a key's sales offer.
func (s *Server) CancelSalesOffer(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	if err := s.engine.CancelSalesOffer(ctx, caller, wire.String(in, "key_id")); err != nil {
		return nil, s.fail(ctx, err)
	}
	return wire.Empty(), nil
}

// GetSalesOffer reads a key's live sales offer.
func (s *Server) GetSalesOffer(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	offer, live, err := s.engine.SalesOffer(ctx, wire.String(in, "key_id"))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	out := wire.Message(map[string]any{"live": live})
	if live {
		out.Fields["offer"] = structpb.NewStructValue(salesOfferMessage(offer))
	}
	return out, nil
}

// PurchaseKey settles a sales offer and returns the transferred key.
func (s *Server) PurchaseKey(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	offered, err := wire.Amount(in, "amount")
	if err != nil {
		return nil, s.fail(ctx, apperrors.Wrap(apperrors.CodeAmountInvalid, "parse amount", err))
	}
	keyID := wire.String(in, "key_id")
	if err := s.engine.PurchaseKey(ctx, caller, keyID, offered); err != nil {
		return nil, s.fail(ctx, err)
	}
	key, err := s.engine.GetKey(ctx, keyID)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	out := wire.Empty()
	out.Fields["key"] = structpb.NewStructValue(keyMessage(key))
	return out, nil
}

// TradeKey proposes or completes a barter between two keys.
func (s *Server) TradeKey(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	matched, err := s.engine.TradeKey(ctx, caller, wire.String(in, "key_id"), wire.String(in, "want_key_id"))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return wire.Message(map[string]any{"matched": matched}), nil
}

// GetTradeOffer reads a key's pending trade offer.
func (s *Server) GetTradeOffer(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	offer, pending, err := s.engine.TradeOffer(ctx, wire.String(in, "key_id"))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	out := wire.Message(map[string]any{"pending": pending})
	if pending {
		out.Fields["offer"] = structpb.NewStructValue(tradeOfferMessage(offer))
	}
	return out, nil
}

// SetKeyData stores an annotation under a key's sub-key.
func (s *Server) SetKeyData(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	err = s.engine.SetKeyData(ctx, caller, wire.String(in, "service_id"),
		wire.String(in, "key_id"), wire.String(in, "sub_key"), wire.String(in, "value"))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return wire.Empty(), nil
}

// GetKeyData reads an annotation under a key's sub-key.
func (s *Server) GetKeyData(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	value, err := s.engine.GetKeyData(ctx, wire.String(in, "key_id"), wire.String(in, "sub_key"))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return wire.Message(map[string]any{"value": value}), nil
}

// RecoverSigner recovers the account that signed a message hash. Both
// fields travel hex-encoded.
func (s *Server) RecoverSigner(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	hashBytes, err := hex.DecodeString(wire.String(in, "message_hash"))
	if err != nil || len(hashBytes) != 32 {
		return nil, s.fail(ctx, apperrors.New(apperrors.CodeSignatureInvalid, "message hash must be 32 hex-encoded bytes"))
	}
	signature, err := hex.DecodeString(wire.String(in, "signature"))
	if err != nil {
		return nil, s.fail(ctx, apperrors.Wrap(apperrors.CodeSignatureInvalid, "decode signature", err))
	}
	var hash [32]byte
	copy(hash[:], hashBytes)
	account, err := accountsig.Recover(hash, signature)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return wire.Message(map[string]any{"account": account}), nil
}

// LogAccess appends an access event attributed to the caller.
func (s *Server) LogAccess(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	err = s.engine.LogAccess(ctx, caller, wire.String(in, "from_id"), wire.String(in, "to_id"), wire.String(in, "data"))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return wire.Empty(), nil
}

// LogMessage appends a message event attributed to the caller.
func (s *Server) LogMessage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	err = s.engine.LogMessage(ctx, caller, wire.String(in, "from_id"), wire.String(in, "to_id"),
		wire.String(in, "category"), wire.String(in, "data"))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return wire.Empty(), nil
}

// LogEntry appends a log event attributed to the caller.
func (s *Server) LogEntry(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	err = s.engine.LogEntry(ctx, caller, wire.String(in, "from_id"), wire.String(in, "data"))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return wire.Empty(), nil
}

// ListAuditEvents returns a page of the audit log.
func (s *Server) ListAuditEvents(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	events, nextToken, err := s.engine.ListAuditEvents(ctx, listRequest(in))
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	elements := make([]*structpb.Struct, 0, len(events))
	for _, evt := range events {
		elements = append(elements, eventMessage(evt))
	}
	out := wire.Empty()
	out.Fields["events"] = structpb.NewListValue(wire.StructList(elements))
	out.Fields["next_page_token"] = structpb.NewStringValue(nextToken)
	return out, nil
}

// GetRegistryInfo returns counts and registry-level pointers.
func (s *Server) GetRegistryInfo(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	info, err := s.engine.Info(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return wire.Message(map[string]any{
		"service_count":     info.ServiceCount,
		"key_count":         info.KeyCount,
		"ledger_target":     info.LedgerTarget,
		"successor_address": info.Successor,
	}), nil
}

// SetLedgerTarget re-points the settlement ledger. Admin only.
func (s *Server) SetLedgerTarget(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	if err := s.engine.SetLedgerTarget(ctx, caller, wire.String(in, "target")); err != nil {
		return nil, s.fail(ctx, err)
	}
	return wire.Empty(), nil
}

// SetSuccessorAddress records the authoritative deployment. Admin only.
func (s *Server) SetSuccessorAddress(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	if err := s.engine.SetSuccessorAddress(ctx, caller, wire.String(in, "address")); err != nil {
		return nil, s.fail(ctx, err)
	}
	return wire.Empty(), nil
}

// ReclaimLedgerBalance moves mistakenly approved balance back to the
// administrator. Admin only.
func (s *Server) ReclaimLedgerBalance(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.caller(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	amount, err := wire.Amount(in, "amount")
	if err != nil {
		return nil, s.fail(ctx, apperrors.Wrap(apperrors.CodeAmountInvalid, "parse amount", err))
	}
	if err := s.engine.ReclaimLedgerBalance(ctx, caller, wire.String(in, "from"), amount); err != nil {
		return nil, s.fail(ctx, err)
	}
	return wire.Empty(), nil
}

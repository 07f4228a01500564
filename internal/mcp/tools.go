package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/keybazaar/internal/api/grpc/registryv1"
)

// grpcCallTimeout bounds each registry call made on behalf of a tool.
const grpcCallTimeout = 10 * time.Second

// ServiceResult is the MCP tool output describing a registered service.
type ServiceResult struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Owner     string `json:"owner"`
	CanShare  bool   `json:"can_share"`
	CanTrade  bool   `json:"can_trade"`
	CanSell   bool   `json:"can_sell"`
	CreatedAt string `json:"created_at"`
}

// KeyResult is the MCP tool output describing an issued key.
type KeyResult struct {
	ID        string `json:"id"`
	ServiceID string `json:"service_id"`
	Owner     string `json:"owner"`
	CanShare  bool   `json:"can_share"`
	CanTrade  bool   `json:"can_trade"`
	CanSell   bool   `json:"can_sell"`
	CreatedAt string `json:"created_at"`
}

// OffersResult reports the live offers attached to a key.
type OffersResult struct {
	KeyID      string `json:"key_id"`
	ForSale    bool   `json:"for_sale"`
	Buyer      string `json:"buyer,omitempty"`
	Price      uint64 `json:"price,omitempty"`
	Resellable bool   `json:"resellable,omitempty"`
	TradeOpen  bool   `json:"trade_open"`
	WantKeyID  string `json:"want_key_id,omitempty"`
}

// InfoResult summarizes the registry for discovery clients.
type InfoResult struct {
	ServiceCount int    `json:"service_count"`
	KeyCount     int    `json:"key_count"`
	LedgerTarget string `json:"ledger_target,omitempty"`
	Successor    string `json:"successor_address,omitempty"`
}

// OwnershipResult reports whether an account owns a service or key.
type OwnershipResult struct {
	EntityID string `json:"entity_id"`
	Account  string `json:"account"`
	Owner    bool   `json:"owner"`
}

// ServiceGetInput identifies a service by id.
type ServiceGetInput struct {
	ID string `json:"id"`
}

// ServiceListInput narrows the service listing.
type ServiceListInput struct {
	Filter   string `json:"filter,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}

// ServiceListResult pages through registered services.
type ServiceListResult struct {
	Services      []ServiceResult `json:"services"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

// KeyGetInput identifies a key by id.
type KeyGetInput struct {
	ID string `json:"id"`
}

// KeyListInput narrows the key listing.
type KeyListInput struct {
	Filter   string `json:"filter,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}

// KeyListResult pages through issued keys.
type KeyListResult struct {
	Keys          []KeyResult `json:"keys"`
	NextPageToken string      `json:"next_page_token,omitempty"`
}

// OffersGetInput identifies the key whose offers are requested.
type OffersGetInput struct {
	KeyID string `json:"key_id"`
}

// OwnershipCheckInput names the entity and account to test.
type OwnershipCheckInput struct {
	EntityID string `json:"entity_id"`
	Account  string `json:"account"`
}

// InfoInput carries no arguments.
type InfoInput struct{}

func serviceResult(svc registryv1.Service) ServiceResult {
	return ServiceResult{
		ID:        svc.ID,
		URL:       svc.URL,
		Owner:     svc.Owner,
		CreatedAt: svc.CreatedAt.Format(time.RFC3339),
	}
}

func keyResult(key registryv1.Key) KeyResult {
	return KeyResult{
		ID:        key.ID,
		ServiceID: key.ServiceID,
		Owner:     key.Owner,
		CanShare:  key.CanShare,
		CanTrade:  key.CanTrade,
		CanSell:   key.CanSell,
		CreatedAt: key.CreatedAt.Format(time.RFC3339),
	}
}

// ServiceGetTool defines the MCP tool schema for fetching a service.
func ServiceGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "registry_service_get",
		Description: "Fetches a registered service by id",
	}
}

// ServiceGetHandler fetches a service from the registry.
func ServiceGetHandler(client *registryv1.Client) mcp.ToolHandlerFor[ServiceGetInput, ServiceResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ServiceGetInput) (*mcp.CallToolResult, ServiceResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()

		svc, err := client.GetService(callCtx, input.ID)
		if err != nil {
			return nil, ServiceResult{}, fmt.Errorf("get service: %w", err)
		}
		return nil, serviceResult(svc), nil
	}
}

// ServiceListTool defines the MCP tool schema for listing services.
func ServiceListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "registry_service_list",
		Description: "Lists registered services, optionally filtered by url or owner",
	}
}

// ServiceListHandler lists services from the registry.
func ServiceListHandler(client *registryv1.Client) mcp.ToolHandlerFor[ServiceListInput, ServiceListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ServiceListInput) (*mcp.CallToolResult, ServiceListResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()

		services, next, err := client.ListServices(callCtx, registryv1.ListPage{
			PageSize: int32(input.PageSize),
			Filter:   input.Filter,
		})
		if err != nil {
			return nil, ServiceListResult{}, fmt.Errorf("list services: %w", err)
		}
		result := ServiceListResult{NextPageToken: next}
		for _, svc := range services {
			result.Services = append(result.Services, serviceResult(svc))
		}
		return nil, result, nil
	}
}

// KeyGetTool defines the MCP tool schema for fetching a key.
func KeyGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "registry_key_get",
		Description: "Fetches an issued key by id",
	}
}

// KeyGetHandler fetches a key from the registry.
func KeyGetHandler(client *registryv1.Client) mcp.ToolHandlerFor[KeyGetInput, KeyResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input KeyGetInput) (*mcp.CallToolResult, KeyResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()

		key, err := client.GetKey(callCtx, input.ID)
		if err != nil {
			return nil, KeyResult{}, fmt.Errorf("get key: %w", err)
		}
		return nil, keyResult(key), nil
	}
}

// KeyListTool defines the MCP tool schema for listing keys.
func KeyListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "registry_key_list",
		Description: "Lists issued keys, optionally filtered by service or owner",
	}
}

// KeyListHandler lists keys from the registry.
func KeyListHandler(client *registryv1.Client) mcp.ToolHandlerFor[KeyListInput, KeyListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input KeyListInput) (*mcp.CallToolResult, KeyListResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()

		keys, next, err := client.ListKeys(callCtx, registryv1.ListPage{
			PageSize: int32(input.PageSize),
			Filter:   input.Filter,
		})
		if err != nil {
			return nil, KeyListResult{}, fmt.Errorf("list keys: %w", err)
		}
		result := KeyListResult{NextPageToken: next}
		for _, key := range keys {
			result.Keys = append(result.Keys, keyResult(key))
		}
		return nil, result, nil
	}
}

// OffersGetTool defines the MCP tool schema for reading a key's offers.
func OffersGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "registry_offers_get",
		Description: "Reports the live sales and trade offers attached to a key",
	}
}

// OffersGetHandler reads both offer kinds for a key.
func OffersGetHandler(client *registryv1.Client) mcp.ToolHandlerFor[OffersGetInput, OffersResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input OffersGetInput) (*mcp.CallToolResult, OffersResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()

		sale, forSale, err := client.GetSalesOffer(callCtx, input.KeyID)
		if err != nil {
			return nil, OffersResult{}, fmt.Errorf("get sales offer: %w", err)
		}
		trade, tradeOpen, err := client.GetTradeOffer(callCtx, input.KeyID)
		if err != nil {
			return nil, OffersResult{}, fmt.Errorf("get trade offer: %w", err)
		}

		result := OffersResult{KeyID: input.KeyID, ForSale: forSale, TradeOpen: tradeOpen}
		if forSale {
			result.Buyer = sale.Buyer
			result.Price = sale.Price
			result.Resellable = sale.Resellable
		}
		if tradeOpen {
			result.WantKeyID = trade.WantKeyID
		}
		return nil, result, nil
	}
}

// OwnershipCheckTool defines the MCP tool schema for ownership checks.
func OwnershipCheckTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "registry_ownership_check",
		Description: "Reports whether an account owns a service or key",
	}
}

// OwnershipCheckHandler tests ownership of a service or key.
func OwnershipCheckHandler(client *registryv1.Client) mcp.ToolHandlerFor[OwnershipCheckInput, OwnershipResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input OwnershipCheckInput) (*mcp.CallToolResult, OwnershipResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()

		owner, err := client.CheckOwnership(callCtx, input.EntityID, input.Account)
		if err != nil {
			return nil, OwnershipResult{}, fmt.Errorf("check ownership: %w", err)
		}
		return nil, OwnershipResult{EntityID: input.EntityID, Account: input.Account, Owner: owner}, nil
	}
}

// InfoTool defines the MCP tool schema for registry discovery.
func InfoTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "registry_info",
		Description: "Summarizes the registry: entity counts, ledger target, successor",
	}
}

// InfoHandler reads the registry summary.
func InfoHandler(client *registryv1.Client) mcp.ToolHandlerFor[InfoInput, InfoResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ InfoInput) (*mcp.CallToolResult, InfoResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()

		info, err := client.GetRegistryInfo(callCtx)
		if err != nil {
			return nil, InfoResult{}, fmt.Errorf("get registry info: %w", err)
		}
		return nil, InfoResult{
			ServiceCount: info.ServiceCount,
			KeyCount:     info.KeyCount,
			LedgerTarget: info.LedgerTarget,
			Successor:    info.Successor,
		}, nil
	}
}

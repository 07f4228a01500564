package ledgerv1

import (
	"context"
	"fmt"

	"github.com/louisbranch/keybazaar/internal/api/grpc/wire"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the Ledger service. It satisfies the registry's
// settlement contract, so a dialed connection can be handed straight to
// the registry engine.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a Ledger client over an established connection.
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

// Mint credits amount to account.
func (c *Client) Mint(ctx context.Context, account string, amount uint64) error {
	_, err := c.invoke(ctx, MethodMint, wire.Message(map[string]any{
		"account": account,
		"amount":  wire.FormatAmount(amount),
	}))
	return err
}

// Approve authorizes spender to move up to amount of owner's balance.
func (c *Client) Approve(ctx context.Context, owner, spender string, amount uint64) error {
	_, err := c.invoke(ctx, MethodApprove, wire.Message(map[string]any{
		"owner":   owner,
		"spender": spender,
		"amount":  wire.FormatAmount(amount),
	}))
	return err
}

// Allowance returns how much spender may move on owner's behalf.
func (c *Client) Allowance(ctx context.Context, owner, spender string) (uint64, error) {
	out, err := c.invoke(ctx, MethodAllowance, wire.Message(map[string]any{
		"owner":   owner,
		"spender": spender,
	}))
	if err != nil {
		return 0, err
	}
	amount, err := wire.Amount(out, "amount")
	if err != nil {
		return 0, fmt.Errorf("allowance response: %w", err)
	}
	return amount, nil
}

// BalanceOf returns account's balance.
func (c *Client) BalanceOf(ctx context.Context, account string) (uint64, error) {
	out, err := c.invoke(ctx, MethodBalanceOf, wire.Message(map[string]any{
		"account": account,
	}))
	if err != nil {
		return 0, err
	}
	amount, err := wire.Amount(out, "amount")
	if err != nil {
		return 0, fmt.Errorf("balance response: %w", err)
	}
	return amount, nil
}

// Transfer moves amount from from to to.
func (c *Client) Transfer(ctx context.Context, from, to string, amount uint64) error {
	_, err := c.invoke(ctx, MethodTransfer, wire.Message(map[string]any{
		"from":   from,
		"to":     to,
		"amount": wire.FormatAmount(amount),
	}))
	return err
}

// TransferFrom moves amount from from to to on spender's authority.
func (c *Client) TransferFrom(ctx context.Context, from, to, spender string, amount uint64) error {
	_, err := c.invoke(ctx, MethodTransferFrom, wire.Message(map[string]any{
		"from":    from,
		"to":      to,
		"spender": spender,
		"amount":  wire.FormatAmount(amount),
	}))
	return err
}

package ledger

import (
	"context"
	"fmt"
	"sync"
)

// Book is an in-memory fungible-balance ledger with approve/allowance
// semantics. It backs the standalone ledger service and in-process
// registry tests.
type Book struct {
	mu         sync.Mutex
	balances   map[string]uint64
	allowances map[string]map[string]uint64
}

// NewBook creates an empty book.
func NewBook() *Book {
	return &Book{
		balances:   map[string]uint64{},
		allowances: map[string]map[string]uint64{},
	}
}

// Mint credits amount to account.
func (b *Book) Mint(ctx context.Context, account string, amount uint64) error {
	if account == "" {
		return fmt.Errorf("account is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] += amount
	return nil
}

// BalanceOf returns the balance held by account.
func (b *Book) BalanceOf(ctx context.Context, account string) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[account], nil
}

// Approve sets the amount spender may move on owner's behalf. The value
// replaces any prior approval.
func (b *Book) Approve(ctx context.Context, owner, spender string, amount uint64) error {
	if owner == "" || spender == "" {
		return fmt.Errorf("owner and spender are required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	approvals := b.allowances[owner]
	if approvals == nil {
		approvals = map[string]uint64{}
		b.allowances[owner] = approvals
	}
	approvals[spender] = amount
	return nil
}

// Allowance returns how much spender may still move on owner's behalf.
func (b *Book) Allowance(ctx context.Context, owner, spender string) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allowances[owner][spender], nil
}

// Transfer moves amount from from to to. It fails without moving
// anything when from's balance is short.
func (b *Book) Transfer(ctx context.Context, from, to string, amount uint64) error {
	if from == "" || to == "" {
		return fmt.Errorf("from and to are required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.move(from, to, amount)
}

// TransferFrom moves amount from from to to on spender's authority,
// consuming allowance. Balance and allowance are checked before any
// mutation so a failed transfer changes nothing.
func (b *Book) TransferFrom(ctx context.Context, from, to, spender string, amount uint64) error {
	if from == "" || to == "" || spender == "" {
		return fmt.Errorf("from, to and spender are required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.allowances[from][spender] < amount {
		return ErrInsufficientAllowance
	}
	if err := b.move(from, to, amount); err != nil {
		return err
	}
	b.allowances[from][spender] -= amount
	return nil
}

func (b *Book) move(from, to string, amount uint64) error {
	if b.balances[from] < amount {
		return ErrInsufficientBalance
	}
	b.balances[from] -= amount
	b.balances[to] += amount
	return nil
}

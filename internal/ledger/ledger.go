// Package ledger defines the settlement-ledger contract the registry
// settles key sales against, plus an in-memory implementation for local
// deployments and tests.
package ledger

import (
	"context"
	"errors"
)

// Settlement errors. Transfers are all-or-nothing: a failed transfer
// moves no balance and consumes no allowance.
var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// Ledger is the fungible-balance contract the registry requires to
// settle purchases. Allowance reports how much owner has pre-authorized
// spender to move; TransferFrom moves amount from from to to on
// spender's authority.
type Ledger interface {
	Allowance(ctx context.Context, owner, spender string) (uint64, error)
	TransferFrom(ctx context.Context, from, to, spender string, amount uint64) error
}

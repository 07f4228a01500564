// Package ledger implements the Ledger gRPC service over the in-memory
// balance book. It is deliberately unauthenticated: the service exists
// for local settlement, seeding, and tests.
package ledger

import (
	"context"
	"errors"

	ledgerv1 "github.com/louisbranch/keybazaar/internal/api/grpc/ledgerv1"
	"github.com/louisbranch/keybazaar/internal/api/grpc/wire"
	book "github.com/louisbranch/keybazaar/internal/ledger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server serves the Ledger API over a balance book.
type Server struct {
	ledgerv1.UnimplementedLedgerServer
	book *book.Book
}

// NewServer creates a Ledger server.
func NewServer(b *book.Book) *Server {
	return &Server{book: b}
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, book.ErrInsufficientBalance),
		errors.Is(err, book.ErrInsufficientAllowance):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.InvalidArgument, err.Error())
	}
}

func amountField(in *structpb.Struct) (uint64, error) {
	amount, err := wire.Amount(in, "amount")
	if err != nil {
		return 0, status.Error(codes.InvalidArgument, err.Error())
	}
	return amount, nil
}

// Mint credits an account.
func (s *Server) Mint(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	amount, err := amountField(in)
	if err != nil {
		return nil, err
	}
	if err := s.book.Mint(ctx, wire.String(in, "account"), amount); err != nil {
		return nil, mapError(err)
	}
	return wire.Empty(), nil
}

// Approve sets a spender allowance.
func (s *Server) Approve(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	amount, err := amountField(in)
	if err != nil {
		return nil, err
	}
	if err := s.book.Approve(ctx, wire.String(in, "owner"), wire.String(in, "spender"), amount); err != nil {
		return nil, mapError(err)
	}
	return wire.Empty(), nil
}

// Allowance reads a spender allowance.
func (s *Server) Allowance(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	amount, err := s.book.Allowance(ctx, wire.String(in, "owner"), wire.String(in, "spender"))
	if err != nil {
		return nil, mapError(err)
	}
	return wire.Message(map[string]any{"amount": wire.FormatAmount(amount)}), nil
}

// BalanceOf reads an account balance.
func (s *Server) BalanceOf(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	amount, err := s.book.BalanceOf(ctx, wire.String(in, "account"))
	if err != nil {
		return nil, mapError(err)
	}
	return wire.Message(map[string]any{"amount": wire.FormatAmount(amount)}), nil
}

// Transfer moves balance between accounts.
func (s *Server) Transfer(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	amount, err := amountField(in)
	if err != nil {
		return nil, err
	}
	if err := s.book.Transfer(ctx, wire.String(in, "from"), wire.String(in, "to"), amount); err != nil {
		return nil, mapError(err)
	}
	return wire.Empty(), nil
}

// TransferFrom moves balance on a spender's authority.
func (s *Server) TransferFrom(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	amount, err := amountField(in)
	if err != nil {
		return nil, err
	}
	err = s.book.TransferFrom(ctx,
		wire.String(in, "from"), wire.String(in, "to"), wire.String(in, "spender"), amount)
	if err != nil {
		return nil, mapError(err)
	}
	return wire.Empty(), nil
}

// Package ledgerv1 hand-writes the settlement Ledger gRPC service
// surface. Wire messages are protobuf Struct values with amounts as
// decimal strings, matching the registry surface.
//
// Proto definition: ledger.proto.
package ledgerv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified Ledger service name.
const ServiceName = "keybazaar.ledger.v1.Ledger"

// Method names of the Ledger service.
const (
	MethodMint         = "Mint"
	MethodApprove      = "Approve"
	MethodAllowance    = "Allowance"
	MethodBalanceOf    = "BalanceOf"
	MethodTransfer     = "Transfer"
	MethodTransferFrom = "TransferFrom"
)

// FullMethod returns the full gRPC method path for a Ledger method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// LedgerServer is the server API for the Ledger gRPC service.
type LedgerServer interface {
	Mint(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Approve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Allowance(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BalanceOf(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Transfer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TransferFrom(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedLedgerServer can be embedded for forward compatibility.
type UnimplementedLedgerServer struct{}

func unimplemented(method string) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (UnimplementedLedgerServer) Mint(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodMint)
}
func (UnimplementedLedgerServer) Approve(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodApprove)
}
func (UnimplementedLedgerServer) Allowance(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodAllowance)
}
func (UnimplementedLedgerServer) BalanceOf(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodBalanceOf)
}
func (UnimplementedLedgerServer) Transfer(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodTransfer)
}
func (UnimplementedLedgerServer) TransferFrom(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodTransferFrom)
}

// RegisterLedgerServer registers the Ledger service on a gRPC server.
func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&Ledger_ServiceDesc, srv)
}

type ledgerMethod struct {
	name   string
	invoke func(srv LedgerServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var ledgerMethods = []ledgerMethod{
	{MethodMint, func(srv LedgerServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.Mint(ctx, in)
	}},
	{MethodApprove, func(srv LedgerServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.Approve(ctx, in)
	}},
	{MethodAllowance, func(srv LedgerServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.Allowance(ctx, in)
	}},
	{MethodBalanceOf, func(srv LedgerServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.BalanceOf(ctx, in)
	}},
	{MethodTransfer, func(srv LedgerServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.Transfer(ctx, in)
	}},
	{MethodTransferFrom, func(srv LedgerServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.TransferFrom(ctx, in)
	}},
}

func ledgerHandler(m ledgerMethod) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := FullMethod(m.name)
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return m.invoke(srv.(LedgerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return m.invoke(srv.(LedgerServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Ledger_ServiceDesc is the grpc.ServiceDesc for the Ledger service.
var Ledger_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods:     ledgerMethodDescs(),
	Streams:     []grpc.StreamDesc{},
	Metadata:    "ledger.proto",
}

func ledgerMethodDescs() []grpc.MethodDesc {
	descs := make([]grpc.MethodDesc, 0, len(ledgerMethods))
	for _, m := range ledgerMethods {
		descs = append(descs, grpc.MethodDesc{MethodName: m.name, Handler: ledgerHandler(m)})
	}
	return descs
}

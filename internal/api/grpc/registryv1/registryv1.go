// Package registryv1 hand-writes the Registry gRPC service surface.
//
// Wire messages are protobuf Struct values so the repo needs no protoc
// toolchain: field names are the wire contract, ledger amounts travel as
// decimal strings, and the field helpers in this package keep encoding
// consistent between servers and clients.
//
// Proto definition: registry.proto.
package registryv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified Registry service name.
const ServiceName = "keybazaar.registry.v1.Registry"

// Method names of the Registry service.
const (
	MethodCreateService        = "CreateService"
	MethodGetService           = "GetService"
	MethodListServices         = "ListServices"
	MethodUpdateServiceURL     = "UpdateServiceURL"
	MethodIssueKey             = "IssueKey"
	MethodGetKey               = "GetKey"
	MethodListKeys             = "ListKeys"
	MethodSetKeyPermissions    = "SetKeyPermissions"
	MethodShareService         = "ShareService"
	MethodUnshareService       = "UnshareService"
	MethodShareKey             = "ShareKey"
	MethodUnshareKey           = "UnshareKey"
	MethodCheckOwnership       = "CheckOwnership"
	MethodCreateSalesOffer     = "CreateSalesOffer"
	MethodCancelSalesOffer     = "CancelSalesOffer"
	MethodGetSalesOffer        = "GetSalesOffer"
	MethodPurchaseKey          = "PurchaseKey"
	MethodTradeKey             = "TradeKey"
	MethodGetTradeOffer        = "GetTradeOffer"
	MethodSetKeyData           = "SetKeyData"
	MethodGetKeyData           = "GetKeyData"
	MethodRecoverSigner        = "RecoverSigner"
	MethodLogAccess            = "LogAccess"
	MethodLogMessage           = "LogMessage"
	MethodLogEntry             = "LogEntry"
	MethodListAuditEvents      = "ListAuditEvents"
	MethodGetRegistryInfo      = "GetRegistryInfo"
	MethodSetLedgerTarget      = "SetLedgerTarget"
	MethodSetSuccessorAddress  = "SetSuccessorAddress"
	MethodReclaimLedgerBalance = "ReclaimLedgerBalance"
)

// FullMethod returns the full gRPC method path for a Registry method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// RegistryServer is the server API for the Registry gRPC service. Every
// method takes and returns a Struct message.
type RegistryServer interface {
	CreateService(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetService(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListServices(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateServiceURL(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IssueKey(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetKey(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListKeys(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetKeyPermissions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ShareService(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UnshareService(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ShareKey(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UnshareKey(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckOwnership(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateSalesOffer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelSalesOffer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSalesOffer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PurchaseKey(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TradeKey(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTradeOffer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetKeyData(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetKeyData(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecoverSigner(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LogAccess(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LogMessage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LogEntry(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAuditEvents(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRegistryInfo(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetLedgerTarget(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetSuccessorAddress(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReclaimLedgerBalance(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedRegistryServer can be embedded for forward compatibility.
type UnimplementedRegistryServer struct{}

func unimplemented(method string) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (UnimplementedRegistryServer) CreateService(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodCreateService)
}
func (UnimplementedRegistryServer) GetService(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodGetService)
}
func (UnimplementedRegistryServer) ListServices(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodListServices)
}
func (UnimplementedRegistryServer) UpdateServiceURL(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodUpdateServiceURL)
}
func (UnimplementedRegistryServer) IssueKey(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodIssueKey)
}
func (UnimplementedRegistryServer) GetKey(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodGetKey)
}
func (UnimplementedRegistryServer) ListKeys(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodListKeys)
}
func (UnimplementedRegistryServer) SetKeyPermissions(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodSetKeyPermissions)
}
func (UnimplementedRegistryServer) ShareService(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodShareService)
}
func (UnimplementedRegistryServer) UnshareService(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodUnshareService)
}
func (UnimplementedRegistryServer) ShareKey(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodShareKey)
}
func (UnimplementedRegistryServer) UnshareKey(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodUnshareKey)
}
func (UnimplementedRegistryServer) CheckOwnership(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodCheckOwnership)
}
func (UnimplementedRegistryServer) CreateSalesOffer(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodCreateSalesOffer)
}
func (UnimplementedRegistryServer) CancelSalesOffer(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodCancelSalesOffer)
}
func (UnimplementedRegistryServer) GetSalesOffer(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodGetSalesOffer)
}
func (UnimplementedRegistryServer) PurchaseKey(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodPurchaseKey)
}
func (UnimplementedRegistryServer) TradeKey(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodTradeKey)
}
func (UnimplementedRegistryServer) GetTradeOffer(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodGetTradeOffer)
}
func (UnimplementedRegistryServer) SetKeyData(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodSetKeyData)
}
func (UnimplementedRegistryServer) GetKeyData(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodGetKeyData)
}
func (UnimplementedRegistryServer) RecoverSigner(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodRecoverSigner)
}
func (UnimplementedRegistryServer) LogAccess(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodLogAccess)
}
func (UnimplementedRegistryServer) LogMessage(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodLogMessage)
}
func (UnimplementedRegistryServer) LogEntry(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodLogEntry)
}
func (UnimplementedRegistryServer) ListAuditEvents(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodListAuditEvents)
}
func (UnimplementedRegistryServer) GetRegistryInfo(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodGetRegistryInfo)
}
func (UnimplementedRegistryServer) SetLedgerTarget(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodSetLedgerTarget)
}
func (UnimplementedRegistryServer) SetSuccessorAddress(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodSetSuccessorAddress)
}
func (UnimplementedRegistryServer) ReclaimLedgerBalance(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return unimplemented(MethodReclaimLedgerBalance)
}

// RegisterRegistryServer registers the Registry service on a gRPC server.
func RegisterRegistryServer(s grpc.ServiceRegistrar, srv RegistryServer) {
	s.RegisterService(&Registry_ServiceDesc, srv)
}

// registryMethod binds a method name to its dispatch function. Every
// method shares the Struct-in/Struct-out shape, so one generic handler
// covers the whole service.
type registryMethod struct {
	name   string
	invoke func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var registryMethods = []registryMethod{
	{MethodCreateService, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.CreateService(ctx, in)
	}},
	{MethodGetService, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.GetService(ctx, in)
	}},
	{MethodListServices, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.ListServices(ctx, in)
	}},
	{MethodUpdateServiceURL, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.UpdateServiceURL(ctx, in)
	}},
	{MethodIssueKey, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.IssueKey(ctx, in)
	}},
	{MethodGetKey, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.GetKey(ctx, in)
	}},
	{MethodListKeys, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.ListKeys(ctx, in)
	}},
	{MethodSetKeyPermissions, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.SetKeyPermissions(ctx, in)
	}},
	{MethodShareService, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.ShareService(ctx, in)
	}},
	{MethodUnshareService, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.UnshareService(ctx, in)
	}},
	{MethodShareKey, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.ShareKey(ctx, in)
	}},
	{MethodUnshareKey, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.UnshareKey(ctx, in)
	}},
	{MethodCheckOwnership, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.CheckOwnership(ctx, in)
	}},
	{MethodCreateSalesOffer, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.CreateSalesOffer(ctx, in)
	}},
	{MethodCancelSalesOffer, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.CancelSalesOffer(ctx, in)
	}},
	{MethodGetSalesOffer, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.GetSalesOffer(ctx, in)
	}},
	{MethodPurchaseKey, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.PurchaseKey(ctx, in)
	}},
	{MethodTradeKey, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.TradeKey(ctx, in)
	}},
	{MethodGetTradeOffer, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.GetTradeOffer(ctx, in)
	}},
	{MethodSetKeyData, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.SetKeyData(ctx, in)
	}},
	{MethodGetKeyData, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.GetKeyData(ctx, in)
	}},
	{MethodRecoverSigner, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.RecoverSigner(ctx, in)
	}},
	{MethodLogAccess, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.LogAccess(ctx, in)
	}},
	{MethodLogMessage, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.LogMessage(ctx, in)
	}},
	{MethodLogEntry, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.LogEntry(ctx, in)
	}},
	{MethodListAuditEvents, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.ListAuditEvents(ctx, in)
	}},
	{MethodGetRegistryInfo, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.GetRegistryInfo(ctx, in)
	}},
	{MethodSetLedgerTarget, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.SetLedgerTarget(ctx, in)
	}},
	{MethodSetSuccessorAddress, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.SetSuccessorAddress(ctx, in)
	}},
	{MethodReclaimLedgerBalance, func(srv RegistryServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		return srv.ReclaimLedgerBalance(ctx, in)
	}},
}

func registryHandler(m registryMethod) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := FullMethod(m.name)
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return m.invoke(srv.(RegistryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return m.invoke(srv.(RegistryServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Registry_ServiceDesc is the grpc.ServiceDesc for the Registry service.
var Registry_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RegistryServer)(nil),
	Methods:     registryMethodDescs(),
	Streams:     []grpc.StreamDesc{},
	Metadata:    "registry.proto",
}

func registryMethodDescs() []grpc.MethodDesc {
	descs := make([]grpc.MethodDesc, 0, len(registryMethods))
	for _, m := range registryMethods {
		descs = append(descs, grpc.MethodDesc{MethodName: m.name, Handler: registryHandler(m)})
	}
	return descs
}

// Package api contains API service implementations.
//
// This package organizes API handlers by transport and concern:
//
// # gRPC Services
//
// The grpc subpackage contains the hand-written gRPC surfaces:
//
//   - grpc/registryv1, grpc/ledgerv1: wire contracts — service
//     descriptors, method names, and typed clients over
//     structpb.Struct messages, so no protoc toolchain is needed.
//   - grpc/registry, grpc/ledger: server implementations delegating to
//     the domain engines.
//   - grpc/auth: access token minting/verification and the
//     interceptors enforcing it.
//   - grpc/metadata: request-id and locale propagation.
//   - grpc/wire: struct encode/decode helpers shared by both sides.
//
// # Service Boundaries
//
// The registry service owns services, keys, sharing, offers, and the
// audit log. Settlement is delegated to the ledger service through the
// ledger contract; the registry never holds balances itself.
//
// # MCP Integration
//
// MCP tools (internal/mcp) call the registry's read RPCs through the
// typed client. Mutations are only reachable over authenticated gRPC.
package api

package auth

import (
	"context"
	"strings"

	"github.com/louisbranch/keybazaar/internal/api/grpc/metadata"
	apperrors "github.com/louisbranch/keybazaar/internal/platform/errors"
	"google.golang.org/grpc"
	grpcmetadata "google.golang.org/grpc/metadata"
)

// AuthorizationHeader carries the bearer access token.
const AuthorizationHeader = "authorization"

const bearerPrefix = "bearer "

type contextKey string

const accountContextKey contextKey = "keybazaar-account"

// AccountFromContext returns the verified caller account, or empty when
// the call was not authenticated.
func AccountFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	account, _ := ctx.Value(accountContextKey).(string)
	return account
}

// WithAccount stores a verified account in context. Exposed for tests
// and in-process callers.
func WithAccount(ctx context.Context, account string) context.Context {
	return context.WithValue(ctx, accountContextKey, account)
}

// UnaryServerInterceptor verifies the bearer token on every unary call
// and injects the caller account into the handler context. Methods
// listed in open are reachable without a token.
func UnaryServerInterceptor(verifier *Verifier, open map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if open[info.FullMethod] {
			return handler(ctx, req)
		}
		account, err := verifyIncoming(ctx, verifier)
		if err != nil {
			return nil, err
		}
		return handler(WithAccount(ctx, account), req)
	}
}

// StreamServerInterceptor verifies the bearer token on streaming calls.
func StreamServerInterceptor(verifier *Verifier, open map[string]bool) grpc.StreamServerInterceptor {
	return func(srv any, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if open[info.FullMethod] {
			return handler(srv, stream)
		}
		account, err := verifyIncoming(stream.Context(), verifier)
		if err != nil {
			return err
		}
		return handler(srv, &accountServerStream{ServerStream: stream, ctx: WithAccount(stream.Context(), account)})
	}
}

type accountServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *accountServerStream) Context() context.Context {
	return s.ctx
}

func verifyIncoming(ctx context.Context, verifier *Verifier) (string, error) {
	if verifier == nil {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "token verifier is not configured").
			ToGRPCStatus("en-US", "a valid access token is required")
	}
	md, _ := grpcmetadata.FromIncomingContext(ctx)
	raw := metadata.FirstMetadataValue(md, AuthorizationHeader)
	if !strings.HasPrefix(strings.ToLower(raw), bearerPrefix) {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "bearer access token is required").
			ToGRPCStatus("en-US", "a valid access token is required")
	}
	account, err := verifier.Verify(raw[len(bearerPrefix):])
	if err != nil {
		domainErr, ok := err.(*apperrors.Error)
		if !ok {
			domainErr = apperrors.Wrap(apperrors.CodeUnauthenticated, "verify access token", err)
		}
		return "", domainErr.ToGRPCStatus("en-US", "a valid access token is required")
	}
	return account, nil
}

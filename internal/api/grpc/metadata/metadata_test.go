package metadata

import (
	"context"
	"testing"

	"google.golang.org/grpc/metadata"
)

func TestFirstMetadataValue(t *testing.T) {
	md := metadata.Pairs(RequestIDHeader, "req-123")
	if got := FirstMetadataValue(md, "X-KeyBazaar-Request-Id"); got != "req-123" {
		t.Fatalf("value = %q, want req-123", got)
	}
	if got := FirstMetadataValue(md, LocaleHeader); got != "" {
		t.Fatalf("missing key value = %q, want empty", got)
	}

	md = metadata.Pairs(LocaleHeader, "pt\x00BR", LocaleHeader, "pt-BR")
	if got := FirstMetadataValue(md, LocaleHeader); got != "pt-BR" {
		t.Fatalf("value = %q, want the printable candidate", got)
	}
}

func TestEnsureRequestMetadataGeneratesID(t *testing.T) {
	ctx, requestID, err := ensureRequestMetadata(context.Background(), func() (string, error) {
		return "generated", nil
	})
	if err != nil {
		t.Fatalf("ensure metadata: %v", err)
	}
	if requestID != "generated" {
		t.Fatalf("request id = %q, want generated", requestID)
	}
	if got := RequestIDFromContext(ctx); got != "generated" {
		t.Fatalf("context request id = %q", got)
	}
}

func TestEnsureRequestMetadataCapturesLocale(t *testing.T) {
	incoming := metadata.NewIncomingContext(context.Background(),
		metadata.Pairs(RequestIDHeader, "req-1", LocaleHeader, "pt-BR"))
	ctx, requestID, err := ensureRequestMetadata(incoming, func() (string, error) {
		t.Fatal("generator must not run when an id is supplied")
		return "", nil
	})
	if err != nil {
		t.Fatalf("ensure metadata: %v", err)
	}
	if requestID != "req-1" {
		t.Fatalf("request id = %q, want req-1", requestID)
	}
	if got := LocaleFromContext(ctx); got != "pt-BR" {
		t.Fatalf("locale = %q, want pt-BR", got)
	}
}

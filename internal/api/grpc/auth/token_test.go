package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	apperrors "github.com/louisbranch/keybazaar/internal/platform/errors"
)

func newKeyPair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return pub, priv
}

func TestMintAndVerify(t *testing.T) {
	pub, priv := newKeyPair(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	minter, err := NewMinter(MinterConfig{Key: priv, Now: clock})
	if err != nil {
		t.Fatalf("new minter: %v", err)
	}
	verifier, err := NewVerifier(VerifierConfig{Key: pub, Now: clock})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	token, err := minter.Mint("acc1alice", "tok-1", time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	account, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if account != "acc1alice" {
		t.Fatalf("account = %s, want acc1alice", account)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	pub, priv := newKeyPair(t)
	minted := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	minter, err := NewMinter(MinterConfig{Key: priv, Now: func() time.Time { return minted }})
	if err != nil {
		t.Fatalf("new minter: %v", err)
	}
	token, err := minter.Mint("acc1alice", "tok-1", time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	later := minted.Add(2 * time.Minute)
	verifier, err := NewVerifier(VerifierConfig{Key: pub, Now: func() time.Time { return later }})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	_, err = verifier.Verify(token)
	assertUnauthenticated(t, err)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	_, priv := newKeyPair(t)
	otherPub, _ := newKeyPair(t)

	minter, err := NewMinter(MinterConfig{Key: priv})
	if err != nil {
		t.Fatalf("new minter: %v", err)
	}
	token, err := minter.Mint("acc1alice", "tok-1", time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	verifier, err := NewVerifier(VerifierConfig{Key: otherPub})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	_, err = verifier.Verify(token)
	assertUnauthenticated(t, err)
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	pub, priv := newKeyPair(t)

	minter, err := NewMinter(MinterConfig{Key: priv, Audience: "another-registry"})
	if err != nil {
		t.Fatalf("new minter: %v", err)
	}
	token, err := minter.Mint("acc1alice", "tok-1", time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	verifier, err := NewVerifier(VerifierConfig{Key: pub})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	_, err = verifier.Verify(token)
	assertUnauthenticated(t, err)
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	pub, _ := newKeyPair(t)
	verifier, err := NewVerifier(VerifierConfig{Key: pub})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	_, err = verifier.Verify("  ")
	assertUnauthenticated(t, err)
}

func assertUnauthenticated(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	domainErr, ok := err.(*apperrors.Error)
	if !ok {
		t.Fatalf("err = %T, want *errors.Error", err)
	}
	if domainErr.Code != apperrors.CodeUnauthenticated {
		t.Fatalf("code = %s, want %s", domainErr.Code, apperrors.CodeUnauthenticated)
	}
}

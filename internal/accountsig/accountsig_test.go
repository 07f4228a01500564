package accountsig

import (
	"crypto/sha256"
	"errors"
	"strings"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	platformerrors "github.com/louisbranch/keybazaar/internal/platform/errors"
	"github.com/louisbranch/keybazaar/internal/registry/ident"
)

func TestRecoverRoundTrip(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	hash := sha256.Sum256([]byte("purchase key key1abc for 5"))
	signature := ecdsa.SignCompact(priv, hash[:], true)

	account, err := Recover(hash, signature)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	want, err := ident.AccountID(priv.PubKey().SerializeCompressed())
	if err != nil {
		t.Fatalf("derive account id: %v", err)
	}
	if account != want {
		t.Fatalf("account = %s, want %s", account, want)
	}
	if !strings.HasPrefix(account, ident.AccountPrefix) {
		t.Fatalf("account %s lacks prefix %s", account, ident.AccountPrefix)
	}
}

func TestRecoverDifferentSignersDiffer(t *testing.T) {
	hash := sha256.Sum256([]byte("same message"))

	var accounts [2]string
	for i := range accounts {
		priv, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
		signature := ecdsa.SignCompact(priv, hash[:], true)
		accounts[i], err = Recover(hash, signature)
		if err != nil {
			t.Fatalf("recover: %v", err)
		}
	}
	if accounts[0] == accounts[1] {
		t.Fatalf("distinct signers recovered to the same account %s", accounts[0])
	}
}

func TestRecoverRejectsBadSignature(t *testing.T) {
	hash := sha256.Sum256([]byte("message"))

	_, err := Recover(hash, make([]byte, 10))
	wantSignatureInvalid(t, err)

	_, err = Recover(hash, make([]byte, SignatureSize))
	wantSignatureInvalid(t, err)
}

func wantSignatureInvalid(t *testing.T, err error) {
	t.Helper()
	var domainErr *platformerrors.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("err = %v, want *errors.Error", err)
	}
	if domainErr.Code != platformerrors.CodeSignatureInvalid {
		t.Fatalf("code = %s, want %s", domainErr.Code, platformerrors.CodeSignatureInvalid)
	}
}

// Package accountsig recovers account identities from compact ECDSA
// signatures. It is a pure passthrough: no registry state is read or
// written.
package accountsig

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/louisbranch/keybazaar/internal/platform/errors"
	"github.com/louisbranch/keybazaar/internal/registry/ident"
)

// SignatureSize is the compact signature length: one recovery byte
// followed by the 32-byte R and S values.
const SignatureSize = 65

// Recover derives the account id of the signer of messageHash from a
// compact signature. The account id is the registry identity of the
// signer's compressed public key.
func Recover(messageHash [32]byte, signature []byte) (string, error) {
	if len(signature) != SignatureSize {
		return "", errors.New(errors.CodeSignatureInvalid, "signature must be 65 bytes")
	}
	pubKey, _, err := ecdsa.RecoverCompact(signature, messageHash[:])
	if err != nil {
		return "", errors.Wrap(errors.CodeSignatureInvalid, "recover public key", err)
	}
	account, err := ident.AccountID(pubKey.SerializeCompressed())
	if err != nil {
		return "", errors.Wrap(errors.CodeSignatureInvalid, "derive account id", err)
	}
	return account, nil
}

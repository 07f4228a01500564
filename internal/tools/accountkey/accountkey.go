// Package accountkey generates the EdDSA keypair that signs access
// tokens and mints tokens for individual accounts.
package accountkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/louisbranch/keybazaar/internal/api/grpc/auth"
	"github.com/louisbranch/keybazaar/internal/platform/id"
)

// Config holds account-key tool configuration.
type Config struct {
	// Account to mint a token for. Empty generates a keypair instead.
	Account string
	// PrivateKey is the base64 signing key used when minting.
	PrivateKey string
	// Lifetime bounds minted token validity.
	Lifetime time.Duration
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Lifetime: 24 * time.Hour}
	fs.StringVar(&cfg.Account, "account", cfg.Account, "account id to mint an access token for")
	fs.StringVar(&cfg.PrivateKey, "private-key", cfg.PrivateKey, "base64 token signing key (required with -account)")
	fs.DurationVar(&cfg.Lifetime, "lifetime", cfg.Lifetime, "minted token lifetime")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates a keypair or mints a token, writing the result to out.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	if cfg.Account == "" {
		return generate(out, reader)
	}
	return mint(cfg, out)
}

func generate(out io.Writer, reader io.Reader) error {
	if reader == nil {
		reader = rand.Reader
	}
	publicKey, privateKey, err := ed25519.GenerateKey(reader)
	if err != nil {
		return fmt.Errorf("generate token key: %w", err)
	}
	if _, err := fmt.Fprintf(out, "export KEYBAZAAR_TOKEN_PRIVATE_KEY=%s\n", base64.RawStdEncoding.EncodeToString(privateKey)); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "export KEYBAZAAR_TOKEN_PUBLIC_KEY=%s\n", base64.RawStdEncoding.EncodeToString(publicKey))
	return err
}

func mint(cfg Config, out io.Writer) error {
	key, err := DecodePrivateKey(cfg.PrivateKey)
	if err != nil {
		return err
	}
	minter, err := auth.NewMinter(auth.MinterConfig{Key: key})
	if err != nil {
		return err
	}
	tokenID, err := id.NewID()
	if err != nil {
		return fmt.Errorf("token id: %w", err)
	}
	token, err := minter.Mint(cfg.Account, tokenID, cfg.Lifetime)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

// DecodePrivateKey parses a base64 token signing key.
func DecodePrivateKey(encoded string) (ed25519.PrivateKey, error) {
	if encoded == "" {
		return nil, errors.New("private key is required")
	}
	raw, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return ed25519.PrivateKey(raw), nil
}

// DecodePublicKey parses a base64 token verification key.
func DecodePublicKey(encoded string) (ed25519.PublicKey, error) {
	if encoded == "" {
		return nil, errors.New("public key is required")
	}
	raw, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

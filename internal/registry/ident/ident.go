// Package ident derives deterministic registry entity identifiers.
//
// Identifiers are a short type prefix followed by the base58-encoded
// sha2-256 multihash of the entity's defining content, truncated to
// 20 digest bytes. The prefix makes ids self-describing so mixed-entity
// surfaces (ownership checks, audit events) can route by id alone.
package ident

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/multiformats/go-multihash"
)

// Entity id prefixes.
const (
	ServicePrefix = "svc1"
	KeyPrefix     = "key1"
	AccountPrefix = "acc1"
)

// digestLength truncates the sha2-256 digest for compact ids.
const digestLength = 20

func derive(prefix string, data []byte) (string, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, digestLength)
	if err != nil {
		return "", fmt.Errorf("derive %s id: %w", prefix, err)
	}
	return prefix + base58.Encode(mh), nil
}

// ServiceID derives the deterministic identifier for a service URL.
// The same URL always derives the same id, which is how duplicate
// service registration is detected.
func ServiceID(url string) (string, error) {
	return derive(ServicePrefix, []byte(url))
}

// KeyID derives an identifier for a key issuance. The sequence number is
// allocated per registry and makes the id unique regardless of timing;
// service and recipient participate so the id still reflects intent.
func KeyID(serviceID, recipient string, seq uint64) (string, error) {
	buf := make([]byte, 0, len(serviceID)+len(recipient)+8)
	buf = append(buf, serviceID...)
	buf = append(buf, recipient...)
	buf = binary.BigEndian.AppendUint64(buf, seq)
	return derive(KeyPrefix, buf)
}

// AccountID derives an account identifier from a compressed public key.
func AccountID(compressedPubKey []byte) (string, error) {
	return derive(AccountPrefix, compressedPubKey)
}

// IsService reports whether id carries the service prefix.
func IsService(id string) bool {
	return strings.HasPrefix(id, ServicePrefix)
}

// IsKey reports whether id carries the key prefix.
func IsKey(id string) bool {
	return strings.HasPrefix(id, KeyPrefix)
}

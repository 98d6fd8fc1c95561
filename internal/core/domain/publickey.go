package domain

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
)

// PublicKeyLength is the byte length of an identity or account address.
const PublicKeyLength = 32

// PublicKey identifies an investor, a manager, an asset kind or a derived account.
// Its text form is base58.
type PublicKey [PublicKeyLength]byte

// ParsePublicKey decodes a base58 public key.
func ParsePublicKey(s string) (PublicKey, error) {
	var k PublicKey
	raw, err := base58.Decode(s)
	if err != nil {
		return k, fmt.Errorf("decoding public key: %w", err)
	}
	if len(raw) != PublicKeyLength {
		return k, fmt.Errorf("public key must be %d bytes, got %d", PublicKeyLength, len(raw))
	}
	copy(k[:], raw)
	return k, nil
}

// MustParsePublicKey is ParsePublicKey for constants; it panics on bad input.
func MustParsePublicKey(s string) PublicKey {
	k, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

// PublicKeyFromBytes copies b into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var k PublicKey
	if len(b) != PublicKeyLength {
		return k, fmt.Errorf("public key must be %d bytes, got %d", PublicKeyLength, len(b))
	}
	copy(k[:], b)
	return k, nil
}

func (k PublicKey) String() string {
	return base58.Encode(k[:])
}

// Bytes returns a copy of the key bytes.
func (k PublicKey) Bytes() []byte {
	b := make([]byte, PublicKeyLength)
	copy(b, k[:])
	return b
}

// IsZero reports whether the key is unset.
func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}

// Less orders keys bytewise; used to fix lock acquisition order.
func (k PublicKey) Less(other PublicKey) bool {
	return bytes.Compare(k[:], other[:]) < 0
}

func (k PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

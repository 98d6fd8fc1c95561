package service

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"custody-vault/internal/core/domain"
)

// Ed25519SignatureService implements ports.SignatureService. Identities are
// ed25519 public keys; signatures travel base64-encoded.
type Ed25519SignatureService struct{}

// NewEd25519SignatureService creates a new ed25519 signature service.
func NewEd25519SignatureService() *Ed25519SignatureService {
	return &Ed25519SignatureService{}
}

// Sign signs payload with key and returns the base64 signature.
func (s *Ed25519SignatureService) Sign(key ed25519.PrivateKey, payload string) string {
	return base64.StdEncoding.EncodeToString(ed25519.Sign(key, []byte(payload)))
}

// Verify reports whether signature is identity's signature over payload.
func (s *Ed25519SignatureService) Verify(identity domain.PublicKey, payload string, signature string) bool {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(identity.Bytes()), []byte(payload), sig)
}

// BuildCanonicalString constructs the canonical payload for signing.
// Format: METHOD|PATH|TIMESTAMP|NONCE|BODY
func (s *Ed25519SignatureService) BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string {
	return fmt.Sprintf("%s|%s|%d|%s|%s", method, path, timestamp, nonce, body)
}

// LoginChallenge is the message an identity signs to obtain a session token.
func LoginChallenge(identity domain.PublicKey, timestamp int64) string {
	return fmt.Sprintf("login|%s|%d", identity, timestamp)
}

package service

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"custody-vault/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdentity(t *testing.T) (domain.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	id, err := domain.PublicKeyFromBytes(pub)
	require.NoError(t, err)
	return id, priv
}

func TestEd25519SignatureService_SignAndVerify(t *testing.T) {
	svc := NewEd25519SignatureService()
	id, priv := newIdentity(t)
	payload := "POST|/api/v1/vaults/fund1/deposits|1708092000|abc123nonce|{\"amount\":\"100\"}"

	signature := svc.Sign(priv, payload)

	assert.Regexp(t, `^[A-Za-z0-9+/]{86}==$`, signature, "signature should be base64 of 64 bytes")
	assert.True(t, svc.Verify(id, payload, signature))
}

func TestEd25519SignatureService_VerifyFails_WrongKey(t *testing.T) {
	svc := NewEd25519SignatureService()
	_, priv := newIdentity(t)
	other, _ := newIdentity(t)

	signature := svc.Sign(priv, "payload")
	assert.False(t, svc.Verify(other, "payload", signature))
}

func TestEd25519SignatureService_VerifyFails_WrongPayload(t *testing.T) {
	svc := NewEd25519SignatureService()
	id, priv := newIdentity(t)

	signature := svc.Sign(priv, "original payload")
	assert.False(t, svc.Verify(id, "tampered payload", signature))
}

func TestEd25519SignatureService_VerifyFails_Malformed(t *testing.T) {
	svc := NewEd25519SignatureService()
	id, _ := newIdentity(t)

	assert.False(t, svc.Verify(id, "payload", "not base64!"))
	assert.False(t, svc.Verify(id, "payload", "c2hvcnQ="))
	assert.False(t, svc.Verify(id, "payload", ""))
}

func TestEd25519SignatureService_BuildCanonicalString(t *testing.T) {
	svc := NewEd25519SignatureService()

	result := svc.BuildCanonicalString("POST", "/api/v1/vaults/fund1/deposits", 1708092000, "abc123", `{"amount":"50000"}`)

	expected := "POST|/api/v1/vaults/fund1/deposits|1708092000|abc123|{\"amount\":\"50000\"}"
	assert.Equal(t, expected, result)
}

func TestEd25519SignatureService_EmptyBody(t *testing.T) {
	svc := NewEd25519SignatureService()

	result := svc.BuildCanonicalString("GET", "/api/v1/vaults/fund1", 1708092000, "nonce1", "")
	assert.Equal(t, "GET|/api/v1/vaults/fund1|1708092000|nonce1|", result)
}

func TestLoginChallenge(t *testing.T) {
	id := key(2)
	assert.Equal(t, "login|"+id.String()+"|1708092000", LoginChallenge(id, 1708092000))
}

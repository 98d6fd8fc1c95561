package middleware

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"
	"custody-vault/internal/core/ports/mocks"
	"custody-vault/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

type signer struct {
	id   domain.PublicKey
	priv ed25519.PrivateKey
}

func newSigner(t *testing.T) signer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	id, err := domain.PublicKeyFromBytes(pub)
	require.NoError(t, err)
	return signer{id: id, priv: priv}
}

// signedRequest builds a POST with all four signature headers.
func (s signer) signedRequest(path, body, nonce string, ts time.Time) *http.Request {
	sigSvc := service.NewEd25519SignatureService()
	canonical := sigSvc.BuildCanonicalString(http.MethodPost, path, ts.Unix(), nonce, body)

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(HeaderIdentity, s.id.String())
	req.Header.Set(HeaderSignature, sigSvc.Sign(s.priv, canonical))
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts.Unix(), 10))
	req.Header.Set(HeaderNonce, nonce)
	return req
}

func newSignedRouter(t *testing.T, nonces ports.NonceStore) *gin.Engine {
	t.Helper()
	r := gin.New()
	r.POST("/api/v1/vaults/:name/deposit",
		signedAuth(service.NewEd25519SignatureService(), nonces, func() time.Time { return fixedNow }, zerolog.Nop()),
		func(c *gin.Context) {
			id, ok := Identity(c)
			require.True(t, ok)
			body, _ := c.GetRawData()
			c.JSON(http.StatusOK, gin.H{"identity": id.String(), "body": string(body)})
		})
	return r
}

func allowNonces(ctrl *gomock.Controller) *mocks.MockNonceStore {
	store := mocks.NewMockNonceStore(ctrl)
	store.EXPECT().CheckAndSet(gomock.Any(), gomock.Any(), gomock.Any(), nonceTTL).Return(true, nil).AnyTimes()
	return store
}

func TestSignedAuth_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := newSigner(t)
	body := `{"amount":100}`

	w := httptest.NewRecorder()
	newSignedRouter(t, allowNonces(ctrl)).ServeHTTP(w, s.signedRequest("/api/v1/vaults/fund1/deposit", body, "n-1", fixedNow))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), s.id.String())
	assert.Contains(t, w.Body.String(), `{\"amount\":100}`, "body must be readable after verification")
}

func TestSignedAuth_Rejections(t *testing.T) {
	s := newSigner(t)
	other := newSigner(t)
	path := "/api/v1/vaults/fund1/deposit"

	tests := []struct {
		name   string
		req    func() *http.Request
		status int
		code   string
	}{
		{
			name: "missing headers",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, path, strings.NewReader("{}"))
			},
			status: http.StatusUnauthorized,
			code:   "SEC_001",
		},
		{
			name: "malformed identity",
			req: func() *http.Request {
				r := s.signedRequest(path, "{}", "n", fixedNow)
				r.Header.Set(HeaderIdentity, "not-base58-0OIl")
				return r
			},
			status: http.StatusUnauthorized,
			code:   "SEC_001",
		},
		{
			name: "stale timestamp",
			req: func() *http.Request {
				return s.signedRequest(path, "{}", "n", fixedNow.Add(-2*time.Minute))
			},
			status: http.StatusForbidden,
			code:   "SEC_003",
		},
		{
			name: "future timestamp",
			req: func() *http.Request {
				return s.signedRequest(path, "{}", "n", fixedNow.Add(61*time.Second))
			},
			status: http.StatusForbidden,
			code:   "SEC_003",
		},
		{
			name: "non-numeric timestamp",
			req: func() *http.Request {
				r := s.signedRequest(path, "{}", "n", fixedNow)
				r.Header.Set(HeaderTimestamp, "yesterday")
				return r
			},
			status: http.StatusForbidden,
			code:   "SEC_003",
		},
		{
			name: "signed by another identity",
			req: func() *http.Request {
				r := other.signedRequest(path, "{}", "n", fixedNow)
				r.Header.Set(HeaderIdentity, s.id.String())
				return r
			},
			status: http.StatusUnauthorized,
			code:   "SEC_002",
		},
		{
			name: "body tampered after signing",
			req: func() *http.Request {
				r := s.signedRequest(path, `{"amount":1}`, "n", fixedNow)
				signed := s.signedRequest(path, `{"amount":1000}`, "n", fixedNow)
				signed.Header.Set(HeaderSignature, r.Header.Get(HeaderSignature))
				return signed
			},
			status: http.StatusUnauthorized,
			code:   "SEC_002",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			// Rejected requests never reach the nonce store.
			nonces := mocks.NewMockNonceStore(ctrl)

			w := httptest.NewRecorder()
			newSignedRouter(t, nonces).ServeHTTP(w, tt.req())

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
		})
	}
}

func TestSignedAuth_NonceReuse(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := newSigner(t)

	nonces := mocks.NewMockNonceStore(ctrl)
	gomock.InOrder(
		nonces.EXPECT().CheckAndSet(gomock.Any(), s.id.String(), "dup", nonceTTL).Return(true, nil),
		nonces.EXPECT().CheckAndSet(gomock.Any(), s.id.String(), "dup", nonceTTL).Return(false, nil),
	)
	router := newSignedRouter(t, nonces)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, s.signedRequest("/api/v1/vaults/fund1/deposit", "{}", "dup", fixedNow))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, s.signedRequest("/api/v1/vaults/fund1/deposit", "{}", "dup", fixedNow))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "SEC_004")
}

func TestSignedAuth_NonceStoreDownAllows(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := newSigner(t)

	nonces := mocks.NewMockNonceStore(ctrl)
	nonces.EXPECT().CheckAndSet(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))

	w := httptest.NewRecorder()
	newSignedRouter(t, nonces).ServeHTTP(w, s.signedRequest("/api/v1/vaults/fund1/deposit", "{}", "n", fixedNow))

	assert.Equal(t, http.StatusOK, w.Code)
}

func newJWTRouter(tokenSvc ports.TokenService) *gin.Engine {
	r := gin.New()
	r.GET("/api/v1/vaults/:name", JWTAuth(tokenSvc, zerolog.Nop()), func(c *gin.Context) {
		id, _ := Identity(c)
		c.String(http.StatusOK, id.String())
	})
	return r
}

func TestJWTAuth(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := newSigner(t)

	tokens := mocks.NewMockTokenService(ctrl)
	tokens.EXPECT().Validate("good").Return(&ports.TokenClaims{Identity: s.id}, nil)
	tokens.EXPECT().Validate("bad").Return(nil, errors.New("signature is invalid"))
	router := newJWTRouter(tokens)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid token", "Bearer good", http.StatusOK},
		{"invalid token", "Bearer bad", http.StatusUnauthorized},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/vaults/fund1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, s.id.String(), w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), "AUTH_003")
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	t.Run("propagates caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(HeaderRequestID, "req-abc")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, "req-abc", w.Body.String())
		assert.Equal(t, "req-abc", w.Header().Get(HeaderRequestID))
	})

	t.Run("assigns one when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

		assert.Len(t, w.Body.String(), 36)
		assert.Equal(t, w.Body.String(), w.Header().Get(HeaderRequestID))
	})
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zerolog.Nop()))
	r.GET("/boom", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "SYS_001")
}

func TestIdentity_Unset(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := Identity(c)
	assert.False(t, ok)
}

package service

import (
	"context"
	"fmt"
	"time"

	"custody-vault/internal/core/ports"
	"custody-vault/pkg/apperror"

	"github.com/rs/zerolog"
)

// loginSkew bounds how far a login timestamp may drift from server time.
const loginSkew = 60 * time.Second

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	sigSvc   ports.SignatureService
	tokenSvc ports.TokenService
	now      func() time.Time
	log      zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(sigSvc ports.SignatureService, tokenSvc ports.TokenService, log zerolog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		sigSvc:   sigSvc,
		tokenSvc: tokenSvc,
		now:      time.Now,
		log:      log,
	}
}

// Login verifies the identity's signature over its login challenge and
// returns a session token.
func (s *AuthServiceImpl) Login(ctx context.Context, req ports.LoginRequest) (string, time.Time, error) {
	if req.Identity.IsZero() {
		return "", time.Time{}, apperror.ErrInvalidIdentity()
	}

	drift := s.now().Sub(time.Unix(req.Timestamp, 0))
	if drift > loginSkew || drift < -loginSkew {
		return "", time.Time{}, apperror.ErrTimestampExpired()
	}

	if !s.sigSvc.Verify(req.Identity, LoginChallenge(req.Identity, req.Timestamp), req.Signature) {
		s.log.Warn().Str("identity", req.Identity.String()).Msg("login signature rejected")
		return "", time.Time{}, apperror.ErrInvalidSignature()
	}

	token, expiry, err := s.tokenSvc.Generate(req.Identity)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return token, expiry, nil
}

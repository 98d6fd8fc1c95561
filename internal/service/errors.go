package service

import (
	"errors"
	"fmt"

	"custody-vault/internal/core/domain"
	"custody-vault/pkg/apperror"
)

// toAppError maps domain sentinels to their API codes. AppErrors pass
// through; anything else is an internal failure described by op.
func toAppError(op string, err error) error {
	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, domain.ErrInsufficientFunds):
		return apperror.ErrInsufficientFunds()
	case errors.Is(err, domain.ErrArithmeticOverflow):
		return apperror.ErrArithmeticOverflow()
	case errors.Is(err, domain.ErrInvalidVaultName):
		return apperror.ErrInvalidVaultName()
	case errors.Is(err, domain.ErrAuthorityMismatch):
		return apperror.ErrAuthorityMismatch(err)
	case errors.Is(err, domain.ErrTransferUnauthorized):
		return apperror.ErrTransferUnauthorized()
	case errors.Is(err, domain.ErrTransferInsufficientBalance):
		return apperror.ErrTransferInsufficientBalance()
	case errors.Is(err, domain.ErrAccountFrozen):
		return apperror.ErrAccountFrozen()
	case errors.Is(err, domain.ErrAssetMismatch):
		return apperror.ErrAssetMismatch()
	case errors.Is(err, domain.ErrAccountNotFound):
		return apperror.ErrAccountNotFound()
	default:
		return apperror.InternalError(fmt.Errorf("%s: %w", op, err))
	}
}

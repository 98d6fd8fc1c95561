package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// Error codes. Clients and tests switch on these, never on messages.
const (
	CodeInvalidAmount         = "VLT_001"
	CodeInsufficientFunds     = "VLT_002"
	CodeManagerCannotWithdraw = "VLT_003"
	CodeAlreadyExists         = "VLT_004"
	CodeArithmeticOverflow    = "VLT_005"
	CodeVaultNotFound         = "VLT_006"
	CodeInvalidVaultName      = "VLT_007"
	CodeUnknownAsset          = "VLT_008"
	CodeAuthorityMismatch     = "VLT_009"

	CodeTransferUnauthorized = "TRF_001"
	CodeTransferInsufficient = "TRF_002"
	CodeAccountFrozen        = "TRF_003"
	CodeAssetMismatch        = "TRF_004"
	CodeAccountNotFound      = "TRF_005"

	CodeInvalidIdentity  = "SEC_001"
	CodeInvalidSignature = "SEC_002"
	CodeTimestampExpired = "SEC_003"
	CodeNonceUsed        = "SEC_004"

	CodeInvalidToken   = "AUTH_003"
	CodeFaucetDisabled = "AUTH_005"

	CodeRateLimitExceeded = "RATE_001"

	CodeInternal   = "SYS_001"
	CodeValidation = "VAL_001"
)

// ---- Custody rules (VLT) ----

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Amount must be greater than zero", http.StatusBadRequest)
}

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient funds for withdrawal", http.StatusPaymentRequired)
}

func ErrManagerCannotWithdraw() *AppError {
	return New(CodeManagerCannotWithdraw, "Vault manager cannot withdraw funds", http.StatusForbidden)
}

func ErrAlreadyExists(name string) *AppError {
	return New(CodeAlreadyExists, fmt.Sprintf("Vault %q already exists", name), http.StatusConflict)
}

func ErrArithmeticOverflow() *AppError {
	return New(CodeArithmeticOverflow, "Amount overflows the representable balance", http.StatusUnprocessableEntity)
}

func ErrVaultNotFound(name string) *AppError {
	return New(CodeVaultNotFound, fmt.Sprintf("Vault %q not found", name), http.StatusNotFound)
}

func ErrInvalidVaultName() *AppError {
	return New(CodeInvalidVaultName, "Vault name must be 1 to 32 bytes", http.StatusBadRequest)
}

func ErrUnknownAsset() *AppError {
	return New(CodeUnknownAsset, "Asset is not registered", http.StatusBadRequest)
}

func ErrAuthorityMismatch(err error) *AppError {
	return Wrap(CodeAuthorityMismatch, "Vault authority does not match stored vault", http.StatusInternalServerError, err)
}

// ---- Token ledger (TRF) ----

func ErrTransferUnauthorized() *AppError {
	return New(CodeTransferUnauthorized, "Transfer authority does not own the source account", http.StatusForbidden)
}

func ErrTransferInsufficientBalance() *AppError {
	return New(CodeTransferInsufficient, "Insufficient balance in custody account", http.StatusPaymentRequired)
}

func ErrAccountFrozen() *AppError {
	return New(CodeAccountFrozen, "Custody account is frozen", http.StatusLocked)
}

func ErrAssetMismatch() *AppError {
	return New(CodeAssetMismatch, "Custody accounts hold different assets", http.StatusBadRequest)
}

func ErrAccountNotFound() *AppError {
	return New(CodeAccountNotFound, "Custody account not found", http.StatusNotFound)
}

// ---- Security & Authentication (SEC) ----

func ErrInvalidIdentity() *AppError {
	return New(CodeInvalidIdentity, "Invalid identity", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New(CodeInvalidSignature, "Invalid signature", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New(CodeTimestampExpired, "Request timestamp expired", http.StatusForbidden)
}

func ErrNonceUsed() *AppError {
	return New(CodeNonceUsed, "Nonce has already been used", http.StatusForbidden)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrFaucetDisabled() *AppError {
	return New(CodeFaucetDisabled, "Faucet is disabled", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

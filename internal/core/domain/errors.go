package domain

import "errors"

var (
	// Registry errors
	ErrVaultExists      = errors.New("vault already exists")
	ErrInvalidVaultName = errors.New("vault name must be 1 to 32 bytes")

	// Position ledger errors
	ErrInsufficientFunds  = errors.New("position balance is lower than the requested amount")
	ErrArithmeticOverflow = errors.New("amount overflows the balance range")

	// Derivation errors
	ErrInvalidSeeds      = errors.New("derivation seeds exceed the allowed count or length")
	ErrOnCurve           = errors.New("derived address lies on the ed25519 curve")
	ErrNoViableBump      = errors.New("no derivation bump yields an off-curve address")
	ErrAuthorityMismatch = errors.New("derived authority does not match the stored account")

	// Token ledger errors
	ErrTransferUnauthorized        = errors.New("transfer authority does not own the source account")
	ErrTransferInsufficientBalance = errors.New("source account balance is lower than the transfer amount")
	ErrAccountFrozen               = errors.New("custody account is frozen")
	ErrAssetMismatch               = errors.New("source and destination hold different assets")
	ErrAccountNotFound             = errors.New("custody account not found")

	// Idempotency errors
	ErrDuplicateOperation = errors.New("an operation is already recorded for this idempotency key")
)

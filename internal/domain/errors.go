package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")

	// Input errors. These are rejected before any I/O and surfaced verbatim.
	ErrInvalidDomain       = errors.New("invalid domain")
	ErrInvalidYears        = errors.New("years out of range")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrUnknownAsset        = errors.New("unknown source asset")
	ErrInvalidSlippage     = errors.New("slippage out of range")
	ErrNoPool              = errors.New("no pool available")
	ErrNoPriceTier         = errors.New("no price tier for label length")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidExpiry       = errors.New("expiry must be in the future")

	// Transaction construction.
	ErrUnconsumedValue = errors.New("unconsumed transaction value")
	ErrValueReused     = errors.New("transaction value used more than once")

	// Vault lifecycle.
	ErrVaultTerminal           = errors.New("vault is in a terminal state")
	ErrVaultExpired            = errors.New("vault expired")
	ErrVaultNotOwner           = errors.New("caller does not own vault")
	ErrVaultRenewalUnsupported = errors.New("vault renewals are not supported")
)

var inputErrors = []error{
	ErrInvalidDomain,
	ErrInvalidYears,
	ErrInvalidAddress,
	ErrUnknownAsset,
	ErrInvalidSlippage,
	ErrNoPool,
	ErrNoPriceTier,
	ErrInsufficientBalance,
	ErrInvalidAmount,
	ErrInvalidExpiry,
	ErrVaultRenewalUnsupported,
}

// IsInputError reports whether err is caused by caller-supplied input and
// should be surfaced to the caller as is.
func IsInputError(err error) bool {
	for _, target := range inputErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

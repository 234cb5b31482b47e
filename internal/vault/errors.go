package vault

import "errors"

var (
	// ErrUnauthorized means the caller is not the vault owner.
	ErrUnauthorized = errors.New("caller is not the vault owner")
	// ErrInsufficientFunds means the vault balance cannot cover the amount plus its fee.
	ErrInsufficientFunds = errors.New("insufficient vault balance")
	// ErrNotFound means no vault exists for the given key.
	ErrNotFound = errors.New("vault not found")
	// ErrAlreadyExists means the owner already holds a vault.
	ErrAlreadyExists = errors.New("vault already exists")
	// ErrTransferFailed wraps any failure of the underlying ledger transfer.
	ErrTransferFailed = errors.New("transfer failed")
	// ErrInvalidAmount is returned for zero amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrOverflow is returned when balance arithmetic would leave the uint64 range.
	ErrOverflow = errors.New("balance arithmetic overflow")
	// ErrInvalidOwner covers empty identities and self-transfers of ownership.
	ErrInvalidOwner = errors.New("invalid owner identity")
	// ErrMissingCollector is returned when no fee collector is given or configured.
	ErrMissingCollector = errors.New("fee collector is required")
)

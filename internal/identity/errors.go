package identity

import "errors"

var (
	ErrNotFound       = errors.New("user not found")
	ErrExists         = errors.New("user exists")
	ErrInvalidPIN     = errors.New("invalid PIN")
	ErrInvalidHandle  = errors.New("handle is required")
	ErrDeviceRequired = errors.New("device binding required")
	ErrDeviceMismatch = errors.New("device mismatch")
)

package identity

import "time"

// User is a registered identity. Its ID is the caller identity that owns vaults.
type User struct {
	ID           string
	Handle       string
	PINHash      []byte
	DeviceID     string
	TokenVersion int
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Credentials request structure.
type Credentials struct {
	Handle   string
	PIN      string
	DeviceID string
}

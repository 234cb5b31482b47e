package vault

import "time"

// Record is the balance and ownership tuple of one vault. It is addressed by ID;
// Owner is unique across records and is the only identity allowed to mutate it.
type Record struct {
	ID        string
	Owner     string
	Balance   uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Result reports a completed deposit or withdrawal.
type Result struct {
	Record        Record
	Amount        uint64
	Fee           uint64
	Net           uint64
	FeeCollector  string
	TransactionID string
}

// CloseResult reports a closed vault.
type CloseResult struct {
	VaultID       string
	Owner         string
	Returned      uint64
	TransactionID string
}

// TransferInput carries the amount and fee sink of a deposit or withdrawal.
type TransferInput struct {
	Amount       uint64
	FeeCollector string
	ClientTxID   string
}

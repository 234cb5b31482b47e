package ledger

import "context"

// SeedBalance is a test helper that seeds the balance for an account when using the in-memory ledger.
// The account is created if it does not exist yet.
func SeedBalance(l Ledger, code string, amount int64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[code] = amount
	}
}

// FailingLedger wraps a Ledger and fails every Transfer whose kind has an entry
// in FailKinds, without touching the wrapped ledger.
type FailingLedger struct {
	Ledger
	FailKinds map[string]error
}

// Transfer returns the configured error for the posting kind or delegates.
func (f *FailingLedger) Transfer(ctx context.Context, p Posting) (TransactionResult, error) {
	if err, ok := f.FailKinds[p.Kind]; ok {
		return TransactionResult{}, err
	}
	return f.Ledger.Transfer(ctx, p)
}

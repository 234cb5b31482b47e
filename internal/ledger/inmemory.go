package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type inMemoryLedger struct {
	mu           sync.RWMutex
	balances     map[string]int64
	transactions map[string]TransactionResult
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests
// and development mode.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances:     make(map[string]int64),
		transactions: make(map[string]TransactionResult),
	}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[code]; !exists {
		l.balances[code] = 0
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, code string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance, exists := l.balances[code]
	if !exists {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, code)
	}
	return balance, nil
}

func (l *inMemoryLedger) Transfer(_ context.Context, p Posting) (TransactionResult, error) {
	legs, codes, err := validateLegs(p)
	if err != nil {
		return TransactionResult{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := p.Kind + ":" + p.ClientTxID
	if res, exists := l.transactions[key]; exists {
		return res, ErrDuplicateTransaction
	}

	working := make(map[string]int64, len(codes))
	for _, code := range codes {
		balance, ok := l.balances[code]
		if !ok {
			return TransactionResult{}, fmt.Errorf("%w: %s", ErrAccountNotFound, code)
		}
		working[code] = balance
	}

	if err := applyLegs(working, legs); err != nil {
		return TransactionResult{}, err
	}

	for code, balance := range working {
		l.balances[code] = balance
	}

	res := TransactionResult{
		TransactionID: uuid.NewString(),
		Balances:      working,
	}
	l.transactions[key] = res
	return res, nil
}

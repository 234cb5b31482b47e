package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrInsufficientFunds occurs when a source account lacks available balance
	// to cover the legs it funds in a posting.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateTransaction indicates the provided client transaction identifier
	// already exists and therefore the operation should be treated as idempotent.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrAccountNotFound is returned when a leg references an unknown account code.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidPosting covers postings with no movable value or malformed legs.
	ErrInvalidPosting = errors.New("invalid posting")
)

const (
	// FundingStatusPendingSettlement indicates a card transaction awaiting settlement confirmation.
	FundingStatusPendingSettlement = "pending_settlement"
	// FundingStatusCompleted represents a settled transaction.
	FundingStatusCompleted = "completed"
	// CardSuspenseAccountCode is the ledger account used to park card transactions pre-settlement.
	CardSuspenseAccountCode = "suspense:card"

	KindDeposit  = "vault_deposit"
	KindWithdraw = "vault_withdraw"
	KindClose    = "vault_close"
	KindReversal = "reversal"
	KindCardIn   = "card_in"
	KindCardOut  = "card_out"
)

// OwnerAccount names the external funds account of an identity.
func OwnerAccount(identity string) string { return "owner:" + identity }

// VaultAccount names the backing account of a vault.
func VaultAccount(vaultID string) string { return "vault:" + vaultID }

// CollectorAccount names a fee collector sink.
func CollectorAccount(address string) string { return "collector:" + address }

// Leg moves Amount from one account to another.
type Leg struct {
	From   string
	To     string
	Amount uint64
}

// Posting groups legs that must be applied together or not at all.
type Posting struct {
	Kind       string
	ClientTxID string
	Legs       []Leg
}

// TransactionResult captures the outcome of a ledger posting.
type TransactionResult struct {
	TransactionID string
	Balances      map[string]int64
}

// FundingResult captures the outcome of a card funding transaction.
type FundingResult struct {
	TransactionID string
	Balance       int64
	Status        string
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
// Transfer is atomic: either every leg is applied or nothing changes.
type Ledger interface {
	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (int64, error)
	Transfer(ctx context.Context, p Posting) (TransactionResult, error)
}

// Reverse builds the posting that undoes p.
func Reverse(p Posting, originalTxID string) Posting {
	legs := make([]Leg, 0, len(p.Legs))
	for i := len(p.Legs) - 1; i >= 0; i-- {
		l := p.Legs[i]
		legs = append(legs, Leg{From: l.To, To: l.From, Amount: l.Amount})
	}
	return Posting{Kind: KindReversal, ClientTxID: originalTxID, Legs: legs}
}

// CardIn credits an account from card suspense, pending settlement.
func CardIn(ctx context.Context, l Ledger, accountCode, clientTxID string, amount uint64) (FundingResult, error) {
	return fund(ctx, l, Posting{
		Kind:       KindCardIn,
		ClientTxID: clientTxID,
		Legs:       []Leg{{From: CardSuspenseAccountCode, To: accountCode, Amount: amount}},
	}, accountCode)
}

// CardOut debits an account into card suspense, pending settlement.
func CardOut(ctx context.Context, l Ledger, accountCode, clientTxID string, amount uint64) (FundingResult, error) {
	return fund(ctx, l, Posting{
		Kind:       KindCardOut,
		ClientTxID: clientTxID,
		Legs:       []Leg{{From: accountCode, To: CardSuspenseAccountCode, Amount: amount}},
	}, accountCode)
}

func fund(ctx context.Context, l Ledger, p Posting, accountCode string) (FundingResult, error) {
	res, err := l.Transfer(ctx, p)
	out := FundingResult{
		TransactionID: res.TransactionID,
		Balance:       res.Balances[accountCode],
		Status:        FundingStatusPendingSettlement,
	}
	return out, err
}

// allowsOverdraft reports whether an account may run a negative balance.
// Only the card suspense account mirrors value held outside the ledger.
func allowsOverdraft(code string) bool {
	return code == CardSuspenseAccountCode
}

func statusForKind(kind string) string {
	switch kind {
	case KindCardIn, KindCardOut:
		return FundingStatusPendingSettlement
	default:
		return FundingStatusCompleted
	}
}

// validateLegs drops zero-amount legs and returns the remaining legs together
// with the sorted set of account codes they touch.
func validateLegs(p Posting) ([]Leg, []string, error) {
	if p.Kind == "" || p.ClientTxID == "" {
		return nil, nil, fmt.Errorf("%w: kind and client transaction id are required", ErrInvalidPosting)
	}
	legs := make([]Leg, 0, len(p.Legs))
	seen := make(map[string]struct{})
	for _, leg := range p.Legs {
		if leg.Amount == 0 {
			continue
		}
		if leg.From == "" || leg.To == "" || leg.From == leg.To {
			return nil, nil, fmt.Errorf("%w: leg %q -> %q", ErrInvalidPosting, leg.From, leg.To)
		}
		if leg.Amount > math.MaxInt64 {
			return nil, nil, fmt.Errorf("%w: amount %d exceeds ledger range", ErrInvalidPosting, leg.Amount)
		}
		seen[leg.From] = struct{}{}
		seen[leg.To] = struct{}{}
		legs = append(legs, leg)
	}
	if len(legs) == 0 {
		return nil, nil, fmt.Errorf("%w: no legs with a positive amount", ErrInvalidPosting)
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return legs, codes, nil
}

// applyLegs moves value leg by leg on balances, in order. Each source must
// cover its leg with what it holds at that point.
func applyLegs(balances map[string]int64, legs []Leg) error {
	for _, leg := range legs {
		amount := int64(leg.Amount)
		from := balances[leg.From] - amount
		if from < 0 && !allowsOverdraft(leg.From) {
			return fmt.Errorf("%w: %s", ErrInsufficientFunds, leg.From)
		}
		if from > balances[leg.From] {
			return fmt.Errorf("%w: balance overflow on %s", ErrInvalidPosting, leg.From)
		}
		to, ok := addInt64(balances[leg.To], amount)
		if !ok {
			return fmt.Errorf("%w: balance overflow on %s", ErrInvalidPosting, leg.To)
		}
		balances[leg.From] = from
		balances[leg.To] = to
	}
	return nil
}

func addInt64(a, b int64) (int64, bool) {
	c := a + b
	if (b > 0 && c < a) || (b < 0 && c > a) {
		return 0, false
	}
	return c, true
}

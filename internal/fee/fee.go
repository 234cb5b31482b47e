// Package fee computes the proportional fee charged on vault transfers.
package fee

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultRate is the 1% fee taken on every deposit and withdrawal.
const DefaultRate = "0.01"

// ErrInvalidRate is returned for rates outside [0, 1].
var ErrInvalidRate = errors.New("fee rate must be between 0 and 1")

// Policy computes the fee owed on a transfer amount. Implementations must be pure.
type Policy interface {
	Fee(amount uint64) uint64
}

// Percentage charges floor(amount * rate).
type Percentage struct {
	rate decimal.Decimal
}

// NewPercentage builds a Percentage policy. The rate must be in [0, 1] so the
// fee never exceeds the amount it is charged on.
func NewPercentage(rate decimal.Decimal) (Percentage, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return Percentage{}, fmt.Errorf("%w: %s", ErrInvalidRate, rate)
	}
	return Percentage{rate: rate}, nil
}

// ParseRate parses a decimal rate such as "0.01" into a Percentage policy.
func ParseRate(s string) (Percentage, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = DefaultRate
	}
	rate, err := decimal.NewFromString(s)
	if err != nil {
		return Percentage{}, fmt.Errorf("parse fee rate %q: %w", s, err)
	}
	return NewPercentage(rate)
}

// Default returns the 1% policy.
func Default() Percentage {
	return Percentage{rate: decimal.RequireFromString(DefaultRate)}
}

// Rate reports the configured rate.
func (p Percentage) Rate() decimal.Decimal {
	return p.rate
}

// Fee truncates toward zero. The product is computed in arbitrary precision and
// is never larger than amount, so it always fits back into a uint64.
func (p Percentage) Fee(amount uint64) uint64 {
	if amount == 0 || p.rate.IsZero() {
		return 0
	}
	gross := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), 0)
	return gross.Mul(p.rate).Floor().BigInt().Uint64()
}

// Net is amount minus its fee.
func Net(p Policy, amount uint64) uint64 {
	return amount - p.Fee(amount)
}

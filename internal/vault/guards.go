package vault

import (
	"math"
	"math/bits"
)

func assertOwner(rec Record, caller string) error {
	if caller == "" || rec.Owner != caller {
		return ErrUnauthorized
	}
	return nil
}

// checkAmount rejects zero and anything the ledger cannot hold in one leg.
func checkAmount(amount uint64) error {
	if amount == 0 || amount > math.MaxInt64 {
		return ErrInvalidAmount
	}
	return nil
}

func assertBalance(rec Record, required uint64) error {
	if rec.Balance < required {
		return ErrInsufficientFunds
	}
	return nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrOverflow
	}
	return diff, nil
}

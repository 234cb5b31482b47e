package funding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/vault_ledger/internal/ledger"
)

var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrInvalidCard   = errors.New("invalid card number")
	ErrNoOwner       = errors.New("owner is required")
)

// Service moves value between the card suspense account and an identity's
// external funds account, which vault deposits draw on.
type Service struct {
	ledger   ledger.Ledger
	acquirer Acquirer
	now      func() time.Time
}

// NewService prepares a funding service ensuring the card suspense account exists.
func NewService(ctx context.Context, ledgerBackend ledger.Ledger, acquirer Acquirer) (*Service, error) {
	if ledgerBackend == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if acquirer == nil {
		acquirer = StaticAcquirer{}
	}
	if err := ledgerBackend.EnsureAccount(ctx, ledger.CardSuspenseAccountCode); err != nil {
		return nil, err
	}
	return &Service{ledger: ledgerBackend, acquirer: acquirer, now: time.Now}, nil
}

// CardInInput captures the required data for a card top-up.
type CardInInput struct {
	Owner      string
	Amount     uint64
	ClientTxID string
	CardNumber string
	Expiry     string
	CVV        string
}

// CardOutInput captures the required data for a card payout.
type CardOutInput struct {
	Owner      string
	Amount     uint64
	ClientTxID string
	CardNumber string
}

// FundingResult represents the domain outcome of a card operation.
type FundingResult struct {
	TransactionID     string
	Status            string
	Balance           int64
	AcquirerReference string
	CompletedAt       time.Time
}

// Balance returns the owner's external funds.
func (s *Service) Balance(ctx context.Context, owner string) (int64, error) {
	if owner == "" {
		return 0, ErrNoOwner
	}
	bal, err := s.ledger.Balance(ctx, ledger.OwnerAccount(owner))
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return 0, nil
	}
	return bal, err
}

// CardIn authorizes and records a card top-up into the owner's funds.
func (s *Service) CardIn(ctx context.Context, input CardInInput) (FundingResult, error) {
	if err := s.validate(input.Owner, input.CardNumber, input.Amount); err != nil {
		return FundingResult{}, err
	}
	if input.ClientTxID == "" {
		input.ClientTxID = uuid.NewString()
	}
	account := ledger.OwnerAccount(input.Owner)
	if err := s.ledger.EnsureAccount(ctx, account); err != nil {
		return FundingResult{}, err
	}

	decision, err := s.acquirer.AuthorizeCardIn(ctx, CardInAuthorization{
		CardNumber: input.CardNumber,
		Expiry:     input.Expiry,
		CVV:        input.CVV,
		Amount:     input.Amount,
	})
	if err != nil {
		return FundingResult{}, fmt.Errorf("%w: %w", ErrDeclined, err)
	}

	res, err := ledger.CardIn(ctx, s.ledger, account, input.ClientTxID, input.Amount)
	return s.result(res, decision, err)
}

// CardOut authorizes and records a payout from the owner's funds to a card.
func (s *Service) CardOut(ctx context.Context, input CardOutInput) (FundingResult, error) {
	if err := s.validate(input.Owner, input.CardNumber, input.Amount); err != nil {
		return FundingResult{}, err
	}
	if input.ClientTxID == "" {
		input.ClientTxID = uuid.NewString()
	}

	decision, err := s.acquirer.AuthorizeCardOut(ctx, CardOutAuthorization{
		CardNumber: input.CardNumber,
		Amount:     input.Amount,
	})
	if err != nil {
		return FundingResult{}, fmt.Errorf("%w: %w", ErrDeclined, err)
	}

	res, err := ledger.CardOut(ctx, s.ledger, ledger.OwnerAccount(input.Owner), input.ClientTxID, input.Amount)
	return s.result(res, decision, err)
}

// result keeps the stored outcome on duplicates so callers can answer retries.
func (s *Service) result(res ledger.FundingResult, decision AuthorizationDecision, err error) (FundingResult, error) {
	if err != nil && !errors.Is(err, ledger.ErrDuplicateTransaction) {
		return FundingResult{}, err
	}
	return FundingResult{
		TransactionID:     res.TransactionID,
		Status:            res.Status,
		Balance:           res.Balance,
		AcquirerReference: decision.Reference,
		CompletedAt:       s.now().UTC(),
	}, err
}

func (s *Service) validate(owner, card string, amount uint64) error {
	if owner == "" {
		return ErrNoOwner
	}
	if amount == 0 || amount > math.MaxInt64 {
		return ErrInvalidAmount
	}
	return validateCardNumber(card)
}

func validateCardNumber(card string) error {
	digits := strings.ReplaceAll(card, " ", "")
	if len(digits) < 12 || len(digits) > 19 {
		return fmt.Errorf("%w: must be between 12 and 19 digits", ErrInvalidCard)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: must be numeric", ErrInvalidCard)
		}
	}
	return nil
}

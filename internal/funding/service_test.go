package funding

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/congo-pay/vault_ledger/internal/ledger"
)

type decliningAcquirer struct{ StaticAcquirer }

func (decliningAcquirer) AuthorizeCardIn(context.Context, CardInAuthorization) (AuthorizationDecision, error) {
	return AuthorizationDecision{}, errors.New("issuer unavailable")
}

func TestServiceCardIn(t *testing.T) {
	ctx := context.Background()
	ledgerBackend := ledger.NewInMemory()

	service, err := NewService(ctx, ledgerBackend, StaticAcquirer{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	owner := uuid.NewString()
	clientTxID := "dup"
	res, err := service.CardIn(ctx, CardInInput{
		Owner:      owner,
		Amount:     10_000,
		CardNumber: "4111111111111111",
		Expiry:     "12/29",
		CVV:        "123",
		ClientTxID: clientTxID,
	})
	if err != nil {
		t.Fatalf("card in: %v", err)
	}
	if res.Status != ledger.FundingStatusPendingSettlement {
		t.Fatalf("unexpected status: %s", res.Status)
	}
	if res.Balance != 10_000 {
		t.Fatalf("expected balance 10000, got %d", res.Balance)
	}

	if _, err := service.CardIn(ctx, CardInInput{
		Owner:      owner,
		Amount:     10_000,
		CardNumber: "4111111111111111",
		ClientTxID: clientTxID,
	}); err == nil {
		t.Fatal("expected duplicate error")
	} else if !errors.Is(err, ledger.ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	bal, err := service.Balance(ctx, owner)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal != 10_000 {
		t.Fatalf("duplicate must not credit twice, balance %d", bal)
	}
}

func TestServiceCardOut(t *testing.T) {
	ctx := context.Background()
	ledgerBackend := ledger.NewInMemory()
	owner := uuid.NewString()
	ledger.SeedBalance(ledgerBackend, ledger.OwnerAccount(owner), 5_000)

	service, err := NewService(ctx, ledgerBackend, StaticAcquirer{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	res, err := service.CardOut(ctx, CardOutInput{
		Owner:      owner,
		Amount:     2_000,
		CardNumber: "4111111111111111",
	})
	if err != nil {
		t.Fatalf("card out: %v", err)
	}
	if res.Balance != 3_000 {
		t.Fatalf("expected balance 3000, got %d", res.Balance)
	}

	_, err = service.CardOut(ctx, CardOutInput{
		Owner:      owner,
		Amount:     10_000,
		CardNumber: "4111111111111111",
		ClientTxID: "excess",
	})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestServiceRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	service, err := NewService(ctx, ledger.NewInMemory(), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	cases := []struct {
		name  string
		input CardInInput
		want  error
	}{
		{"zero amount", CardInInput{Owner: "o", Amount: 0, CardNumber: "4111111111111111"}, ErrInvalidAmount},
		{"short card", CardInInput{Owner: "o", Amount: 1, CardNumber: "4111"}, ErrInvalidCard},
		{"letters", CardInInput{Owner: "o", Amount: 1, CardNumber: "4111abcd11111111"}, ErrInvalidCard},
		{"no owner", CardInInput{Amount: 1, CardNumber: "4111111111111111"}, ErrNoOwner},
	}
	for _, tc := range cases {
		if _, err := service.CardIn(ctx, tc.input); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestServiceDeclinedCardLeavesFundsUntouched(t *testing.T) {
	ctx := context.Background()
	service, err := NewService(ctx, ledger.NewInMemory(), decliningAcquirer{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	owner := uuid.NewString()
	_, err = service.CardIn(ctx, CardInInput{Owner: owner, Amount: 500, CardNumber: "4111111111111111"})
	if !errors.Is(err, ErrDeclined) {
		t.Fatalf("expected ErrDeclined, got %v", err)
	}
	bal, err := service.Balance(ctx, owner)
	if err != nil || bal != 0 {
		t.Fatalf("expected untouched balance, got %d (%v)", bal, err)
	}
}

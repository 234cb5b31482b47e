package funding

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrDeclined is returned when the acquirer refuses an authorization.
var ErrDeclined = errors.New("card authorization declined")

// Acquirer represents a connector to an external card processor.
type Acquirer interface {
	AuthorizeCardIn(ctx context.Context, input CardInAuthorization) (AuthorizationDecision, error)
	AuthorizeCardOut(ctx context.Context, input CardOutAuthorization) (AuthorizationDecision, error)
}

// AuthorizationDecision captures the response from the acquirer.
type AuthorizationDecision struct {
	Reference string
	Status    string
}

// CardInAuthorization encapsulates details needed for a card top-up authorization.
type CardInAuthorization struct {
	CardNumber string
	Expiry     string
	CVV        string
	Amount     uint64
}

// CardOutAuthorization captures data for a push-to-card payout authorization.
type CardOutAuthorization struct {
	CardNumber string
	Amount     uint64
}

// StaticAcquirer approves every request with a synthetic reference.
type StaticAcquirer struct{}

// AuthorizeCardIn approves the funding request.
func (StaticAcquirer) AuthorizeCardIn(_ context.Context, _ CardInAuthorization) (AuthorizationDecision, error) {
	return AuthorizationDecision{Reference: uuid.NewString(), Status: "approved"}, nil
}

// AuthorizeCardOut approves the payout request.
func (StaticAcquirer) AuthorizeCardOut(_ context.Context, _ CardOutAuthorization) (AuthorizationDecision, error) {
	return AuthorizationDecision{Reference: uuid.NewString(), Status: "approved"}, nil
}

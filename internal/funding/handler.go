package funding

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/vault_ledger/internal/ledger"
)

// Handler exposes HTTP endpoints for card funding flows.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func owner(c *fiber.Ctx) (string, error) {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return "", fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	return uid, nil
}

// Balance reports the caller's external funds.
func (h *Handler) Balance(c *fiber.Ctx) error {
	uid, err := owner(c)
	if err != nil {
		return err
	}
	bal, err := h.service.Balance(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(BalanceResponse{Owner: uid, Account: ledger.OwnerAccount(uid), Balance: bal})
}

// CardIn tops up the caller's funds from a card.
func (h *Handler) CardIn(c *fiber.Ctx) error {
	uid, err := owner(c)
	if err != nil {
		return err
	}
	var req CardInRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.CardIn(c.UserContext(), CardInInput{
		Owner:      uid,
		Amount:     req.Amount,
		ClientTxID: req.ClientTxID,
		CardNumber: req.CardNumber,
		Expiry:     req.Expiry,
		CVV:        req.CVV,
	})
	return respond(c, result, err)
}

// CardOut pays the caller's funds out to a card.
func (h *Handler) CardOut(c *fiber.Ctx) error {
	uid, err := owner(c)
	if err != nil {
		return err
	}
	var req CardOutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.CardOut(c.UserContext(), CardOutInput{
		Owner:      uid,
		Amount:     req.Amount,
		ClientTxID: req.ClientTxID,
		CardNumber: req.CardNumber,
	})
	return respond(c, result, err)
}

func respond(c *fiber.Ctx, result FundingResult, err error) error {
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrDuplicateTransaction):
			return c.Status(http.StatusOK).JSON(toResponse(result))
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, ErrDeclined):
			return fiber.NewError(http.StatusPaymentRequired, err.Error())
		case errors.Is(err, ledger.ErrAccountNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(toResponse(result))
}

func toResponse(result FundingResult) FundingResponse {
	return FundingResponse{
		TransactionID:     result.TransactionID,
		Status:            result.Status,
		Balance:           result.Balance,
		AcquirerReference: result.AcquirerReference,
	}
}

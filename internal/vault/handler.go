package vault

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/congo-pay/vault_ledger/internal/ledger"
)

// CallerLocal is the fiber local holding the authenticated identity.
const CallerLocal = "user_id"

// Handler exposes vault HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a vault HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	Amount       uint64 `json:"amount"`
	FeeCollector string `json:"fee_collector"`
	ClientTxID   string `json:"client_tx_id"`
}

type ownerRequest struct {
	NewOwner string `json:"new_owner"`
}

type vaultResponse struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Balance   uint64    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type transferResponse struct {
	Vault         vaultResponse `json:"vault"`
	Amount        uint64        `json:"amount"`
	Fee           uint64        `json:"fee"`
	Net           uint64        `json:"net"`
	FeeCollector  string        `json:"fee_collector"`
	TransactionID string        `json:"transaction_id"`
}

func toResponse(rec Record) vaultResponse {
	return vaultResponse{
		ID:        rec.ID,
		Owner:     rec.Owner,
		Balance:   rec.Balance,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

// caller returns a copy of the identity: locals set from request headers
// share fiber's buffers, and the owner outlives the request.
func caller(c *fiber.Ctx) (string, error) {
	uid, _ := c.Locals(CallerLocal).(string)
	if uid == "" {
		return "", fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	return utils.CopyString(uid), nil
}

// Init opens a vault for the authenticated caller.
func (h *Handler) Init(c *fiber.Ctx) error {
	uid, err := caller(c)
	if err != nil {
		return err
	}
	rec, err := h.service.Init(c.UserContext(), uid)
	if err != nil {
		return toFiberError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(rec))
}

// Mine returns the caller's vault.
func (h *Handler) Mine(c *fiber.Ctx) error {
	uid, err := caller(c)
	if err != nil {
		return err
	}
	rec, err := h.service.GetByOwner(c.UserContext(), uid)
	if err != nil {
		return toFiberError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(rec))
}

// Get returns a vault by id.
func (h *Handler) Get(c *fiber.Ctx) error {
	rec, err := h.service.Get(c.UserContext(), c.Params("vaultId"))
	if err != nil {
		return toFiberError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(rec))
}

// Deposit moves funds from the caller into the vault.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	return h.transfer(c, h.service.Deposit)
}

// Withdraw moves funds from the vault back to the caller.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	return h.transfer(c, h.service.Withdraw)
}

type transferFunc func(ctx context.Context, caller, vaultID string, in TransferInput) (Result, error)

func (h *Handler) transfer(c *fiber.Ctx, op transferFunc) error {
	uid, err := caller(c)
	if err != nil {
		return err
	}
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.ClientTxID == "" {
		if key := c.Get("Idempotency-Key"); key != "" {
			req.ClientTxID = uid + ":" + key
		}
	}
	res, err := op(c.UserContext(), uid, c.Params("vaultId"), TransferInput{
		Amount:       req.Amount,
		FeeCollector: req.FeeCollector,
		ClientTxID:   req.ClientTxID,
	})
	if err != nil {
		return toFiberError(err)
	}
	return c.Status(http.StatusOK).JSON(transferResponse{
		Vault:         toResponse(res.Record),
		Amount:        res.Amount,
		Fee:           res.Fee,
		Net:           res.Net,
		FeeCollector:  res.FeeCollector,
		TransactionID: res.TransactionID,
	})
}

// Close drains and deletes the vault.
func (h *Handler) Close(c *fiber.Ctx) error {
	uid, err := caller(c)
	if err != nil {
		return err
	}
	res, err := h.service.Close(c.UserContext(), uid, c.Params("vaultId"))
	if err != nil {
		return toFiberError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"vault_id":       res.VaultID,
		"owner":          res.Owner,
		"returned":       res.Returned,
		"transaction_id": res.TransactionID,
	})
}

// TransferOwnership hands the vault to another identity.
func (h *Handler) TransferOwnership(c *fiber.Ctx) error {
	uid, err := caller(c)
	if err != nil {
		return err
	}
	var req ownerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.service.TransferOwnership(c.UserContext(), uid, c.Params("vaultId"), req.NewOwner)
	if err != nil {
		return toFiberError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(rec))
}

func toFiberError(err error) error {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyExists):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ErrOverflow):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrDuplicateTransaction):
		return fiber.NewError(http.StatusConflict, "duplicate transaction")
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidOwner), errors.Is(err, ErrMissingCollector):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrTransferFailed):
		return fiber.NewError(http.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

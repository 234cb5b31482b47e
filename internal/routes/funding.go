package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/vault_ledger/internal/funding"
)

// RegisterFundingRoutes wires the caller's external funds endpoints.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler) {
	r.Get("/funds", h.Balance)
	r.Post("/funds/card", h.CardIn)
	r.Post("/funds/payout", h.CardOut)
}

package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/vault_ledger/internal/identity"
)

// RegisterIdentityRoutes wires public onboarding.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler) {
	r.Post("/identity/register", h.Register)
}

// RegisterProfileRoutes wires the authenticated profile endpoint.
func RegisterProfileRoutes(r fiber.Router, h *identity.Handler) {
	r.Get("/me", h.Me)
}

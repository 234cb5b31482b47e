package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/vault_ledger/internal/vault"
)

// RegisterVaultRoutes wires vault lifecycle endpoints.
func RegisterVaultRoutes(r fiber.Router, h *vault.Handler) {
	r.Post("/vaults", h.Init)
	r.Get("/vault", h.Mine)
	r.Get("/vaults/:vaultId", h.Get)
	r.Post("/vaults/:vaultId/deposit", h.Deposit)
	r.Post("/vaults/:vaultId/withdraw", h.Withdraw)
	r.Delete("/vaults/:vaultId", h.Close)
	r.Post("/vaults/:vaultId/owner", h.TransferOwnership)
}

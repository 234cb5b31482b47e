package auth

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/vault_ledger/internal/identity"
	"github.com/congo-pay/vault_ledger/internal/vault"
)

// VaultFinder resolves the caller's vault for the login response.
type VaultFinder interface {
	GetByOwner(ctx context.Context, owner string) (vault.Record, error)
}

// Handler exposes auth endpoints for login/refresh/logout.
type Handler struct {
	ids    *identity.Service
	svc    *Service
	vaults VaultFinder
}

func NewHandler(ids *identity.Service, svc *Service, vaults VaultFinder) *Handler {
	return &Handler{ids: ids, svc: svc, vaults: vaults}
}

type loginRequest struct {
	Handle   string `json:"handle"`
	PIN      string `json:"pin"`
	DeviceID string `json:"device_id"`
}

type loginResponse struct {
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenVersion int    `json:"token_version"`
	VaultID      string `json:"vault_id,omitempty"`
}

// Login validates credentials and returns a token pair.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.ids.Authenticate(c.UserContext(), identity.Credentials{Handle: req.Handle, PIN: req.PIN, DeviceID: req.DeviceID})
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	pair, err := h.svc.Login(user)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	var vid string
	if h.vaults != nil {
		if rec, err := h.vaults.GetByOwner(c.UserContext(), user.ID); err == nil {
			vid = rec.ID
		}
	}
	return c.Status(http.StatusOK).JSON(loginResponse{
		UserID:       user.ID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		TokenVersion: user.TokenVersion,
		VaultID:      vid,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh issues a new access token using a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	token, exp, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"access_token": token, "expires_in": exp})
}

// Logout invalidates existing tokens by bumping the token version.
func (h *Handler) Logout(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.RefreshToken == "" {
		return fiber.NewError(http.StatusBadRequest, "refresh_token is required")
	}
	if err := h.svc.Logout(c.UserContext(), req.RefreshToken); err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}

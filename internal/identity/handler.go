package identity

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Handle   string `json:"handle"`
	PIN      string `json:"pin"`
	DeviceID string `json:"device_id"`
}

type userResponse struct {
	UserID    string     `json:"user_id"`
	Handle    string     `json:"handle"`
	DeviceID  string     `json:"device_id"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

func toResponse(u User) userResponse {
	return userResponse{UserID: u.ID, Handle: u.Handle, DeviceID: u.DeviceID, CreatedAt: u.CreatedAt, LastLogin: u.LastLogin}
}

// Register handles identity onboarding.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.service.Register(c.UserContext(), Credentials{Handle: req.Handle, PIN: req.PIN, DeviceID: req.DeviceID})
	if err != nil {
		if errors.Is(err, ErrExists) {
			return fiber.NewError(http.StatusConflict, err.Error())
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toResponse(user))
}

// Me returns the authenticated identity.
func (h *Handler) Me(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	user, err := h.service.Get(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toResponse(user))
}

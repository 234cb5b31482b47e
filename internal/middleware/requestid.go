package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
)

// RequestIDHeader carries the per-request trace id; it is also the fiber local key.
const RequestIDHeader = "X-Request-ID"

// RequestID reuses the caller's X-Request-ID or mints one, and echoes it back.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := utils.CopyString(c.Get(RequestIDHeader))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(RequestIDHeader, reqID)
		c.Locals(RequestIDHeader, reqID)
		return c.Next()
	}
}

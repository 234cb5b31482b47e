package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// TokenVerifier validates an access token and returns its subject and version.
type TokenVerifier interface {
	VerifyAccess(ctx context.Context, token string) (string, int, error)
}

// JWTAuth returns a middleware that validates bearer access tokens and stores
// the caller identity in c.Locals("user_id").
func JWTAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])
		sub, ver, err := verifier.VerifyAccess(c.UserContext(), token)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals("user_id", sub)
		c.Locals("token_version", ver)
		return c.Next()
	}
}

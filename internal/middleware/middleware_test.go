package middleware

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

type stubVerifier struct {
	token string
}

func (s stubVerifier) VerifyAccess(_ context.Context, token string) (string, int, error) {
	if token != s.token {
		return "", 0, errors.New("bad token")
	}
	return "user-1", 3, nil
}

func TestJWTAuthSetsCaller(t *testing.T) {
	app := fiber.New()
	app.Use(JWTAuth(stubVerifier{token: "good"}))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("user_id").(string))
	})

	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer good")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 got %d", resp.StatusCode)
	}

	for _, header := range []string{"", "Bearer bad", "Basic good"} {
		req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set(fiber.HeaderAuthorization, header)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Fatalf("header %q: expected 401 got %d", header, resp.StatusCode)
		}
	}
}

func TestLoginRateLimit(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New()
	app.Post("/login", LoginRateLimit(cache, 2), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	send := func(handle string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/login", strings.NewReader(`{"handle":"`+handle+`"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		return resp.StatusCode
	}

	for i := 0; i < 2; i++ {
		if got := send("alice"); got != fiber.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d", i, got)
		}
	}
	if got := send("alice"); got != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", got)
	}
	if got := send("bob"); got != fiber.StatusOK {
		t.Fatalf("other handle should not be limited, got %d", got)
	}
}

func TestRequestIDPropagates(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(RequestIDHeader).(string))
	})

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if got := resp.Header.Get(RequestIDHeader); got != "req-42" {
		t.Fatalf("expected echoed request id, got %q", got)
	}

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}

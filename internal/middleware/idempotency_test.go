package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/vault_ledger/internal/logging"
)

func setupTestApp(t *testing.T) (*fiber.App, *int, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	logger := logging.Discard()
	calls := 0
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", utils.CopyString(c.Get("X-Test-User")))
		return c.Next()
	})
	app.Use(Idempotency(cache, time.Minute, logger))
	app.Post("/resource", func(c *fiber.Ctx) error {
		calls++
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": calls})
	})
	app.Post("/rejected", func(c *fiber.Ctx) error {
		calls++
		return fiber.NewError(fiber.StatusUnprocessableEntity, "insufficient vault balance")
	})
	app.Post("/broken", func(c *fiber.Ctx) error {
		calls++
		return fiber.NewError(fiber.StatusBadGateway, "transfer failed")
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}

	return app, &calls, cleanup
}

func post(t *testing.T, app *fiber.App, path, user, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-Test-User", user)
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, _, cleanup := setupTestApp(t)
	defer cleanup()

	status, _ := post(t, app, "/resource", "alice", "")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, calls, cleanup := setupTestApp(t)
	defer cleanup()

	status, payload := post(t, app, "/resource", "alice", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected status %d got %d", fiber.StatusCreated, status)
	}

	status, cachedPayload := post(t, app, "/resource", "alice", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, status)
	}
	if cachedPayload != payload {
		t.Fatalf("expected cached payload %s got %s", payload, cachedPayload)
	}
	if *calls != 1 {
		t.Fatalf("handler ran %d times", *calls)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(cachedPayload), &decoded); err != nil {
		t.Fatalf("cached payload invalid json: %v", err)
	}
}

func TestIdempotencyKeysAreScopedPerCaller(t *testing.T) {
	app, calls, cleanup := setupTestApp(t)
	defer cleanup()

	post(t, app, "/resource", "alice", "same-key")
	post(t, app, "/resource", "bob", "same-key")
	if *calls != 2 {
		t.Fatalf("expected both callers to reach the handler, got %d calls", *calls)
	}
}

func TestIdempotencyReplaysClientErrors(t *testing.T) {
	app, calls, cleanup := setupTestApp(t)
	defer cleanup()

	status, _ := post(t, app, "/rejected", "alice", "k1")
	if status != fiber.StatusUnprocessableEntity {
		t.Fatalf("unexpected status %d", status)
	}
	status, body := post(t, app, "/rejected", "alice", "k1")
	if status != fiber.StatusUnprocessableEntity || body != `{"error":"insufficient vault balance"}` {
		t.Fatalf("unexpected replay %d %q", status, body)
	}
	if *calls != 1 {
		t.Fatalf("handler ran %d times", *calls)
	}
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	app, calls, cleanup := setupTestApp(t)
	defer cleanup()

	post(t, app, "/broken", "alice", "k2")
	status, _ := post(t, app, "/broken", "alice", "k2")
	if status != fiber.StatusBadGateway {
		t.Fatalf("unexpected status %d", status)
	}
	if *calls != 2 {
		t.Fatalf("expected retry to reach handler, got %d calls", *calls)
	}
}

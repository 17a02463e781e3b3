package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/pointvest/pointvest/internal/account"
)

func TestActorAndRequireRole(t *testing.T) {
	app := fiber.New()
	app.Use(Actor())
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.SendString(MustActor(c).Role)
	})
	app.Post("/approve", RequireRole(account.RoleFinance, account.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	cases := []struct {
		name   string
		method string
		path   string
		id     string
		role   string
		want   int
	}{
		{"missing actor", fiber.MethodGet, "/me", "", "", fiber.StatusUnauthorized},
		{"default role", fiber.MethodGet, "/me", "u-1", "", fiber.StatusOK},
		{"user cannot approve", fiber.MethodPost, "/approve", "u-1", "user", fiber.StatusForbidden},
		{"finance approves", fiber.MethodPost, "/approve", "fin-1", "Finance", fiber.StatusNoContent},
		{"admin approves", fiber.MethodPost, "/approve", "adm-1", "admin", fiber.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		if tc.id != "" {
			req.Header.Set(actorIDHeader, tc.id)
		}
		if tc.role != "" {
			req.Header.Set(actorRoleHeader, tc.role)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s: app.Test: %v", tc.name, err)
		}
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: expected %d got %d", tc.name, tc.want, resp.StatusCode)
		}
	}
}

func TestRequestIDEchoed(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(RequestIDFrom(c)) })

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-42")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if got := resp.Header.Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected request id echoed, got %q", got)
	}

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Fatal("expected generated request id")
	}
}

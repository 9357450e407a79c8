package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-sla/internal/domain"
	"github.com/spec-kit/support-sla/internal/tenancy"
	apperrors "github.com/spec-kit/support-sla/pkg/util/errorutil"
)

func newTestApp(tm *TokenManager, guards ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if de := apperrors.ToDomainError(err); de != nil && de.Code != apperrors.CodeInternal {
				return c.SendStatus(de.HTTPStatus)
			}
			if fe, ok := err.(*fiber.Error); ok {
				return c.SendStatus(fe.Code)
			}
			return c.SendStatus(http.StatusInternalServerError)
		},
	})
	handlers := append([]fiber.Handler{NewAuthMiddleware(tm).Handle}, guards...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		tenant, ok := tenancy.FromContext(c.UserContext())
		if !ok {
			return c.SendStatus(http.StatusInternalServerError)
		}
		return c.JSON(fiber.Map{"tenant": tenant})
	})
	app.Get("/", handlers...)
	return app
}

func request(t *testing.T, app *fiber.App, header string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp.StatusCode
}

func TestMiddlewareScopesTenant(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	app := newTestApp(tm)
	token, _, _ := tm.GenerateToken(7, 9, RoleCustomer)

	if code := request(t, app, "Bearer "+token); code != http.StatusOK {
		t.Errorf("valid token status = %d", code)
	}
	for _, header := range []string{"", "Basic abc", "Bearer nope"} {
		if code := request(t, app, header); code != http.StatusUnauthorized {
			t.Errorf("header %q status = %d", header, code)
		}
	}
}

func TestRequireStaff(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	app := newTestApp(tm, RequireStaff())

	cases := map[Role]int{
		RoleCustomer: http.StatusForbidden,
		RoleAgent:    http.StatusOK,
		RoleAI:       http.StatusOK,
		RoleAdmin:    http.StatusOK,
	}
	for role, want := range cases {
		token, _, _ := tm.GenerateToken(7, 9, role)
		if code := request(t, app, "Bearer "+token); code != want {
			t.Errorf("%s status = %d, want %d", role, code, want)
		}
	}
}

func TestRoleAuthorMapping(t *testing.T) {
	cases := map[Role]domain.AuthorRole{
		RoleCustomer: domain.AuthorRoleCustomer,
		RoleAgent:    domain.AuthorRoleAgent,
		RoleAI:       domain.AuthorRoleAI,
		RoleAdmin:    domain.AuthorRoleAgent,
	}
	for role, want := range cases {
		if got := role.AuthorRole(); got != want {
			t.Errorf("%s -> %s, want %s", role, got, want)
		}
	}
}

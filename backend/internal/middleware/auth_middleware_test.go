package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/carteira/backend/internal/auth"
	"github.com/user/carteira/backend/internal/models"
)

func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	auth.Init("middleware-test-secret")

	app := fiber.New()
	api := app.Group("/api", Protected())
	api.Get("/whoami", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"role": c.Locals("role")})
	})
	api.Get("/admin-only", AdminOnly(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func tokenFor(t *testing.T, role string) string {
	t.Helper()
	token, err := auth.GenerateJWT(uuid.New(), "user@example.com", role)
	require.NoError(t, err)
	return token
}

func TestProtectedRejectsMissingToken(t *testing.T) {
	app := setupApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestProtectedRejectsMalformedHeader(t *testing.T) {
	app := setupApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set("Authorization", "Token abc")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestProtectedAcceptsBearerToken(t *testing.T) {
	app := setupApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, models.RoleCliente))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestProtectedAcceptsTokenCookie(t *testing.T) {
	app := setupApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: tokenFor(t, models.RoleCliente)})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestProtectedRejectsTamperedToken(t *testing.T) {
	app := setupApp(t)

	token := tokenFor(t, models.RoleCliente)
	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token+"x")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAdminOnlyGate(t *testing.T) {
	app := setupApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin-only", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, models.RoleCliente))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/api/admin-only", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, models.RoleAdmin))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

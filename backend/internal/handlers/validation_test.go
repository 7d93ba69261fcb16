package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp wires the handlers behind a stub middleware that injects
// token locals, so the validation paths (which run before any database
// access) can be exercised without a live Postgres.
func testApp(role string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uuid.New())
		c.Locals("email", "user@example.com")
		c.Locals("role", role)
		return c.Next()
	})
	app.Post("/operations", CreateOperation)
	app.Post("/assets", CreateAsset)
	app.Put("/assets/:code", UpdateAsset)
	app.Put("/update-role", UpdateRole)
	return app
}

func postJSON(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestCreateOperationRejectsBadType(t *testing.T) {
	app := testApp("cliente")

	resp := postJSON(t, app, http.MethodPost, "/operations",
		`{"asset_code":"PETR4","type":"short","quantity":10,"price":5}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateOperationRequiresAssetCode(t *testing.T) {
	app := testApp("cliente")

	resp := postJSON(t, app, http.MethodPost, "/operations",
		`{"type":"entrada","quantity":10,"price":5}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateOperationRejectsBadDate(t *testing.T) {
	app := testApp("cliente")

	resp := postJSON(t, app, http.MethodPost, "/operations",
		`{"asset_code":"PETR4","type":"entrada","quantity":10,"price":5,"operation_date":"31-12-2024"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateAssetRejectsNonPositiveQuantity(t *testing.T) {
	app := testApp("cliente")

	resp := postJSON(t, app, http.MethodPost, "/assets",
		`{"asset_code":"PETR4","quantity":0,"average_cost":10}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUpdateAssetRejectsNegativeValues(t *testing.T) {
	app := testApp("cliente")

	resp := postJSON(t, app, http.MethodPut, "/assets/PETR4",
		`{"quantity":-1,"average_cost":10}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUpdateRoleValidation(t *testing.T) {
	app := testApp("admin")

	// Missing user id.
	resp := postJSON(t, app, http.MethodPut, "/update-role",
		`{"newRole":"admin"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// Role outside the cliente/admin pair.
	resp = postJSON(t, app, http.MethodPut, "/update-role",
		`{"userId":"`+uuid.NewString()+`","newRole":"superuser"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestParseDateHelpers(t *testing.T) {
	now, err := parseDate("")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), now, time.Second)

	d, err := parseDate("2024-06-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), d)

	_, err = parseDate("15/06/2024")
	assert.Error(t, err)
}

func TestNormalizeAssetCode(t *testing.T) {
	assert.Equal(t, "PETR4", normalizeAssetCode("  petr4 "))
	assert.Equal(t, "", normalizeAssetCode("   "))
}

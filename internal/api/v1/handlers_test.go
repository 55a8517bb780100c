package apiv1

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const specFile = "../../../" + DefaultSpecPath

func TestLoadSpec(t *testing.T) {
	doc, err := LoadSpec(specFile)
	require.NoError(t, err)
	assert.Equal(t, "3.0.3", doc.OpenAPI)
	assert.True(t, Documented(doc, "post", "/api/negotiations/counter-offer"))
	assert.True(t, Documented(doc, "PATCH", "/api/negotiations/:id"))
	assert.False(t, Documented(doc, "DELETE", "/api/negotiations/:id"))
	assert.False(t, Documented(doc, "GET", "/api/nowhere"))

	_, err = LoadSpec("does-not-exist.yml")
	assert.Error(t, err)
}

func TestDocPath(t *testing.T) {
	assert.Equal(t, "/api/notifications/{id}/read", DocPath("/api/notifications/:id/read"))
	assert.Equal(t, "/api/billing/usage/{metric}/consume", DocPath("/api/billing/usage/:metric/consume"))
	assert.Equal(t, "/api/v1/ping", DocPath("/api/v1/ping"))
}

func TestPingAndSpec(t *testing.T) {
	app := fiber.New()
	RegisterHandlers(app.Group("/v1"), NewAPIServer(nil))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/v1/ping", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"ping":"pong"}`, string(body))

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/v1/openapi.json", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

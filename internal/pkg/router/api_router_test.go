package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JobMwaura/zintra-sub007/app/controllers"
	"github.com/JobMwaura/zintra-sub007/app/repository"
	apiv1 "github.com/JobMwaura/zintra-sub007/internal/api/v1"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/billing"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/capabilities"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/database"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/negotiation"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/outbox"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/sweeper"
)

func newTestApp(t *testing.T, secret string) *fiber.App {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	doc, err := apiv1.LoadSpec("../../../" + apiv1.DefaultSpecPath)
	require.NoError(t, err)

	relay := outbox.NewRelay(db)
	caps := capabilities.NewService(db, capabilities.NewGormStore(db, 0), capabilities.Config{}, nil)
	app := fiber.New()
	InstallRouter(app, Deps{
		Negotiation:   controllers.NewNegotiationController(negotiation.NewService(db, relay), sweeper.New(db, sweeper.NewDBLocker(db), relay, sweeper.Config{})),
		Notifications: controllers.NewNotificationController(repository.NewNotificationRepository(db)),
		Billing:       controllers.NewBillingController(billing.NewService(db, billing.Deps{Capabilities: caps}), caps),
		Admin:         controllers.NewAdminController(relay, nil),
		Doc:           doc,
		GatewaySecret: secret,
	})
	return app
}

func TestEveryRouteIsDocumented(t *testing.T) {
	app := newTestApp(t, "")
	doc, err := apiv1.LoadSpec("../../../" + apiv1.DefaultSpecPath)
	require.NoError(t, err)

	seen := 0
	for _, r := range app.GetRoutes(true) {
		if r.Method == fiber.MethodHead {
			continue
		}
		path := r.Path
		if len(path) > 1 {
			path = strings.TrimRight(path, "/")
		}
		seen++
		assert.True(t, apiv1.Documented(doc, r.Method, path), "%s %s is not in openapi.yml", r.Method, path)
	}
	assert.Greater(t, seen, 25)
}

func TestGatewaySecretGuardsIdentity(t *testing.T) {
	app := newTestApp(t, "gw")

	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.Header.Set("X-User-Id", "user-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.Header.Set("X-Gateway-Secret", "gw")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

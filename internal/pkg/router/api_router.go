package router

import (
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"

	"github.com/JobMwaura/zintra-sub007/app/controllers"
	apiv1 "github.com/JobMwaura/zintra-sub007/internal/api/v1"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/middleware"
)

// Deps are the controllers and settings the API routes need.
type Deps struct {
	Negotiation   *controllers.NegotiationController
	Notifications *controllers.NotificationController
	Billing       *controllers.BillingController
	Admin         *controllers.AdminController

	Doc            *openapi3.T
	GatewaySecret  string
	CronSecret     string
	LimiterStorage fiber.Storage
}

type ApiRouter struct {
	deps Deps
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	d := h.deps
	api := app.Group("/api", middleware.GatewayIdentity(d.GatewaySecret), newLimiter(d.LimiterStorage))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")
	apiv1.RegisterHandlers(v1, apiv1.NewAPIServer(d.Doc))

	neg := api.Group("/negotiations")
	cron := middleware.CronSecret(d.CronSecret)
	neg.Get("/check-expiry", cron, d.Negotiation.HandleCheckExpiry)
	neg.Post("/check-expiry", cron, d.Negotiation.HandleCheckExpiry)
	neg.Post("/create", d.Negotiation.HandleCreate)
	neg.Post("/counter-offer", d.Negotiation.HandleCounterOffer)
	neg.Post("/qa", d.Negotiation.HandleAsk)
	neg.Put("/qa", d.Negotiation.HandleAnswer)
	neg.Post("/report", d.Negotiation.HandleReport)
	neg.Post("/attachments/presign", d.Negotiation.HandlePresignAttachment)
	neg.Get("/:id", d.Negotiation.HandleGet)
	neg.Patch("/:id", d.Negotiation.HandleUpdate)

	notes := api.Group("/notifications", middleware.RequireAuth)
	notes.Get("/", d.Notifications.HandleList)
	notes.Post("/read-all", d.Notifications.HandleMarkAllRead)
	notes.Patch("/:id/read", d.Notifications.HandleMarkRead)

	bill := api.Group("/billing")
	bill.Get("/products", d.Billing.HandleProducts)
	bill.Get("/mpesa/callback", d.Billing.HandleMpesaCallbackReady)
	bill.Post("/mpesa/callback", d.Billing.HandleMpesaCallback)
	bill.Get("/capabilities", middleware.RequireAuth, d.Billing.HandleCapabilities)
	bill.Post("/capabilities/refresh", middleware.RequireAuth, d.Billing.HandleRefreshCapabilities)
	bill.Get("/status", middleware.RequireAuth, d.Billing.HandleStatus)
	bill.Get("/purchases", middleware.RequireAuth, d.Billing.HandlePurchases)
	bill.Post("/pass/initiate", middleware.RequireAuth, d.Billing.HandleInitiatePass)
	bill.Get("/usage/:metric", middleware.RequireAuth, d.Billing.HandleIncludedUsage)
	bill.Post("/usage/:metric/consume", middleware.RequireAuth, d.Billing.HandleConsumeIncluded)

	api.Post("/webhooks/pesapal", d.Billing.HandlePesapalWebhook)

	admin := api.Group("/admin", middleware.RequireAdmin)
	admin.Get("/outbox", d.Admin.HandleOutboxStats)
	admin.Post("/outbox/drain", d.Admin.HandleOutboxDrain)
	admin.Get("/jobs", d.Admin.HandleJobStats)
}

func NewApiRouter(deps Deps) *ApiRouter {
	return &ApiRouter{deps: deps}
}

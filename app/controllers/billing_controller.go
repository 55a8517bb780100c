package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/JobMwaura/zintra-sub007/internal/pkg/billing"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/capabilities"
)

// BillingController serves passes, payment callbacks and capabilities.
type BillingController struct {
	billing      *billing.Service
	capabilities *capabilities.Service
}

func NewBillingController(b *billing.Service, caps *capabilities.Service) *BillingController {
	return &BillingController{billing: b, capabilities: caps}
}

// HandleCapabilities returns the caller's capability snapshot.
func (bc *BillingController) HandleCapabilities(c *fiber.Ctx) error {
	userID, ok := requireCaller(c)
	if !ok {
		return unauthorized(c)
	}
	res, err := bc.capabilities.GetCapabilities(c.UserContext(), userID)
	if err != nil {
		return respondError(c, "Failed to load capabilities", err)
	}
	return c.JSON(res)
}

// HandleRefreshCapabilities recomputes the caller's snapshot now.
func (bc *BillingController) HandleRefreshCapabilities(c *fiber.Ctx) error {
	userID, ok := requireCaller(c)
	if !ok {
		return unauthorized(c)
	}
	snap, err := bc.capabilities.Refresh(c.UserContext(), userID)
	if err != nil {
		return respondError(c, "Failed to refresh capabilities", err)
	}
	return c.JSON(capabilities.Result{Snapshot: *snap})
}

func (bc *BillingController) HandleProducts(c *fiber.Ctx) error {
	catalog, err := bc.billing.ListProducts(c.UserContext())
	if err != nil {
		return respondError(c, "Failed to load products", err)
	}
	return c.JSON(catalog)
}

func (bc *BillingController) HandleStatus(c *fiber.Ctx) error {
	userID, _ := requireCaller(c)
	summary, err := bc.billing.Status(c.UserContext(), userID)
	if err != nil {
		return respondError(c, "Failed to load billing status", err)
	}
	return c.JSON(summary)
}

func (bc *BillingController) HandlePurchases(c *fiber.Ctx) error {
	userID, ok := requireCaller(c)
	if !ok {
		return unauthorized(c)
	}
	purchases, err := bc.billing.ListPurchases(c.UserContext(), userID, c.QueryInt("limit", 20))
	if err != nil {
		return respondError(c, "Failed to load purchases", err)
	}
	return c.JSON(fiber.Map{"success": true, "purchases": purchases})
}

// HandleInitiatePass starts an M-Pesa STK push for a pass product.
func (bc *BillingController) HandleInitiatePass(c *fiber.Ctx) error {
	userID, _ := requireCaller(c)
	var req billing.InitiatePassRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	res, err := bc.billing.InitiatePassPurchase(c.UserContext(), userID, req)
	if err != nil {
		return respondError(c, "Failed to initiate pass purchase", err)
	}
	return c.JSON(res)
}

// HandleIncludedUsage reports the allowance left for :metric.
func (bc *BillingController) HandleIncludedUsage(c *fiber.Ctx) error {
	userID, ok := requireCaller(c)
	if !ok {
		return unauthorized(c)
	}
	usage, err := bc.billing.IncludedRemaining(c.UserContext(), userID, c.Params("metric"))
	if err != nil {
		return respondError(c, "Failed to load usage", err)
	}
	return c.JSON(usage)
}

// HandleConsumeIncluded takes one unit of :metric. 402 when nothing is left.
func (bc *BillingController) HandleConsumeIncluded(c *fiber.Ctx) error {
	userID, ok := requireCaller(c)
	if !ok {
		return unauthorized(c)
	}
	metric := c.Params("metric")
	consumed, remaining, err := bc.billing.ConsumeIncluded(c.UserContext(), userID, metric)
	if err != nil {
		return respondError(c, "Failed to consume usage", err)
	}
	if !consumed {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error":      "Included allowance exhausted",
			"metric_key": metric,
			"remaining":  0,
		})
	}
	return c.JSON(fiber.Map{"success": true, "metric_key": metric, "remaining": remaining})
}

// HandleMpesaCallback applies a Daraja STK callback. Daraja retries anything
// but 200, so the outcome is only reported in the body.
func (bc *BillingController) HandleMpesaCallback(c *fiber.Ctx) error {
	ack := bc.billing.HandleMpesaCallback(c.UserContext(), c.Body())
	return c.Status(fiber.StatusOK).JSON(ack)
}

func (bc *BillingController) HandleMpesaCallbackReady(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "Billing M-Pesa callback endpoint ready"})
}

// HandlePesapalWebhook applies a PesaPal notification. Always 200.
func (bc *BillingController) HandlePesapalWebhook(c *fiber.Ctx) error {
	var signature string
	for _, h := range billing.PesapalSignatureHeaders {
		if signature = strings.TrimSpace(c.Get(h)); signature != "" {
			break
		}
	}
	res := bc.billing.HandlePesapalWebhook(c.UserContext(), c.Body(), signature)
	if !res.Success {
		log.Warnf("[Billing/PesaPal] Webhook not processed: %s", res.Error)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

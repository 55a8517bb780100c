package billing

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JobMwaura/zintra-sub007/app/models"
)

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}

type InitiatePassRequest struct {
	ProductCode string `json:"product_code" validate:"required"`
	Phone       string `json:"phone" validate:"required"`
}

type ProductSummary struct {
	Name         string          `json:"name"`
	Tier         string          `json:"tier"`
	Scope        string          `json:"scope"`
	PriceKES     decimal.Decimal `json:"price_kes"`
	DurationDays int             `json:"duration_days"`
}

type InitiatePassResult struct {
	Success           bool           `json:"success"`
	PurchaseID        string         `json:"purchase_id"`
	CheckoutRequestID string         `json:"checkout_request_id"`
	Product           ProductSummary `json:"product"`
	Message           string         `json:"message"`
}

// MpesaCallback is the envelope Safaricom posts after an STK push.
type MpesaCallback struct {
	Body struct {
		STKCallback *STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

type STKCallback struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        int    `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []CallbackItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

type CallbackItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value,omitempty"`
}

// Item returns the named metadata value, or nil.
func (c *STKCallback) Item(name string) interface{} {
	if c.CallbackMetadata == nil {
		return nil
	}
	for _, it := range c.CallbackMetadata.Item {
		if it.Name == name {
			return it.Value
		}
	}
	return nil
}

// MpesaAck is the body returned to Safaricom. ResultCode 0 stops retries.
type MpesaAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// PesapalNotification is the webhook body. PesaPal IPNs name the order
// OrderTrackingId; the legacy shape uses id.
type PesapalNotification struct {
	ID              string          `json:"id"`
	OrderTrackingID string          `json:"OrderTrackingId"`
	Status          string          `json:"status"`
	Reference       string          `json:"reference"`
	Amount          json.RawMessage `json:"amount"`
}

func (n *PesapalNotification) OrderID() string {
	if n.ID != "" {
		return n.ID
	}
	return n.OrderTrackingID
}

// AmountString renders the amount whether it arrived as a number or string.
func (n *PesapalNotification) AmountString() string {
	return strings.Trim(strings.TrimSpace(string(n.Amount)), `"`)
}

// PesapalResult is the webhook response body. The HTTP status is always 200.
type PesapalResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Status  string `json:"status,omitempty"`
}

// ProductCatalog lists active products, also grouped by scope.
type ProductCatalog struct {
	Products []models.BillingProduct            `json:"products"`
	Grouped  map[string][]models.BillingProduct `json:"grouped"`
}

// StatusSummary is a user's billing overview.
type StatusSummary struct {
	Products        map[string][]models.BillingProduct `json:"products"`
	ActiveTiers     map[string]string                  `json:"activeTiers"`
	ActiveUntil     map[string]*time.Time              `json:"activeUntil"`
	Passes          []models.BillingPass               `json:"passes"`
	Subscriptions   []models.BillingSubscription       `json:"subscriptions"`
	RecentPurchases []models.BillingPassPurchase       `json:"recentPurchases"`
}

// IncludedUsage is the state of one included allowance in the current period.
type IncludedUsage struct {
	MetricKey string `json:"metric_key"`
	Limit     int64  `json:"limit"`
	Used      int64  `json:"used"`
	Remaining int64  `json:"remaining"`
}

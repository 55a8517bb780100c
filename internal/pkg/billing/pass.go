package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/app/models"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/entitlements"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/sms"
)

// InitiatePassPurchase records a purchase and sends an STK push to the
// buyer's phone. The pass itself is created by the M-Pesa callback.
func (s *Service) InitiatePassPurchase(ctx context.Context, userID string, in InitiatePassRequest) (*InitiatePassResult, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	code := strings.TrimSpace(in.ProductCode)
	if code == "" || strings.TrimSpace(in.Phone) == "" {
		return nil, invalid("product_code and phone are required")
	}
	phone, err := sms.NormalizePhone(in.Phone)
	if err != nil {
		return nil, invalid("Invalid phone number format. Use 0712345678 or 254712345678")
	}

	repo := s.repo(ctx)
	product, err := repo.GetActiveProductByCode(code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, withMessage(ErrProductNotFound, "Product %q not found or inactive", code)
	}
	if err != nil {
		return nil, fmt.Errorf("load product %s: %w", code, err)
	}
	if !product.SupportsPass() {
		return nil, ErrPassNotSupported
	}
	if !product.PriceKES.IsPositive() {
		return nil, ErrFreeProduct
	}

	purchase := &models.BillingPassPurchase{
		UserID:    userID,
		ProductID: product.ID,
		AmountKES: product.PriceKES,
		Currency:  "KES",
		Status:    models.PurchaseStatusInitiated,
		Provider:  models.BillingProviderMpesa,
		Metadata:  datatypes.JSONMap{"phone": phone, "product_code": product.ProductCode},
	}
	if err := repo.CreatePurchase(purchase); err != nil {
		return nil, fmt.Errorf("Failed to create purchase record: %w", err)
	}

	var resp *STKPushResponse
	if s.deps.Mpesa == nil {
		err = errors.New("M-Pesa is not configured")
	} else {
		resp, err = s.deps.Mpesa.STKPush(ctx, STKPushRequest{
			Phone:       phone,
			Amount:      product.PriceKES.Floor().IntPart(),
			AccountRef:  "ZINTRA-" + product.ProductCode,
			Description: "Zintra " + product.Name + " Pass",
		})
	}
	if err == nil && resp == nil {
		err = errors.New("empty STK push response")
	}
	if err != nil || !resp.Accepted() {
		md := datatypes.JSONMap{"phone": phone, "product_code": product.ProductCode}
		msg := ErrPaymentInitiation.Error()
		if err != nil {
			md["mpesa_error"] = err.Error()
			log.Errorf("[Billing/MPesa] STK push for purchase %s failed: %v", purchase.ID, err)
		} else {
			md["mpesa_error"] = resp
			msg = resp.Describe()
			log.Warnf("[Billing/MPesa] STK push for purchase %s rejected: %s", purchase.ID, msg)
		}
		if _, uerr := repo.UpdatePurchase(purchase.ID, models.PurchaseStatusInitiated, map[string]interface{}{
			"status":   models.PurchaseStatusFailed,
			"metadata": md,
		}); uerr != nil {
			log.Errorf("[Billing/MPesa] Mark purchase %s failed: %v", purchase.ID, uerr)
		}
		return nil, withMessage(ErrPaymentInitiation, "%s", msg)
	}

	if _, err := repo.UpdatePurchase(purchase.ID, models.PurchaseStatusInitiated, map[string]interface{}{
		"provider_checkout_id": resp.CheckoutRequestID,
	}); err != nil {
		return nil, fmt.Errorf("store checkout id: %w", err)
	}
	log.Infof("[Billing/MPesa] STK push sent for purchase %s (%s)", purchase.ID, product.ProductCode)

	return &InitiatePassResult{
		Success:           true,
		PurchaseID:        purchase.ID,
		CheckoutRequestID: resp.CheckoutRequestID,
		Product: ProductSummary{
			Name:         product.Name,
			Tier:         product.Tier,
			Scope:        product.Scope,
			PriceKES:     product.PriceKES,
			DurationDays: product.DurationDays,
		},
		Message: "Check your phone for the M-Pesa prompt.",
	}, nil
}

// HandleMpesaCallback applies an STK callback. It always produces an ack
// for Safaricom; failures are logged and stored on the webhook event.
func (s *Service) HandleMpesaCallback(ctx context.Context, raw []byte) MpesaAck {
	var payload MpesaCallback
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Body.STKCallback == nil {
		log.Warnf("[Billing/MPesa] Invalid callback payload")
		return MpesaAck{ResultCode: 1, ResultDesc: "Invalid payload"}
	}
	cb := payload.Body.STKCallback

	_, event, err := s.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        models.BillingProviderMpesa,
		ProviderEventID: fmt.Sprintf("%s:%d", cb.CheckoutRequestID, cb.ResultCode),
		EventType:       "stk_callback",
		PayloadJSON:     string(raw),
	})
	if err != nil {
		log.Errorf("[Billing/MPesa] Record callback %s: %v", cb.CheckoutRequestID, err)
	}
	finish := func(procErr error) {
		if event == nil {
			return
		}
		if err := s.MarkWebhookProcessed(ctx, event.ID, procErr); err != nil {
			log.Errorf("[Billing/MPesa] Mark callback %s processed: %v", cb.CheckoutRequestID, err)
		}
	}

	ack, err := s.applyCallback(ctx, cb)
	finish(err)
	if err != nil {
		log.Errorf("[Billing/MPesa] Callback %s: %v", cb.CheckoutRequestID, err)
		return MpesaAck{ResultCode: 0, ResultDesc: "Error logged"}
	}
	return ack
}

var errAlreadyPaid = errors.New("purchase already paid")

func (s *Service) applyCallback(ctx context.Context, cb *STKCallback) (MpesaAck, error) {
	accepted := MpesaAck{ResultCode: 0, ResultDesc: "Accepted"}
	alreadyDone := MpesaAck{ResultCode: 0, ResultDesc: "Already processed"}

	purchase, err := s.repo(ctx).GetPurchaseByCheckoutID(cb.CheckoutRequestID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warnf("[Billing/MPesa] Purchase not found for checkout %s", cb.CheckoutRequestID)
		return accepted, nil
	}
	if err != nil {
		return accepted, err
	}
	if purchase.Status == models.PurchaseStatusPaid {
		return alreadyDone, nil
	}

	status := purchaseStatusFor(cb.ResultCode)
	if status != models.PurchaseStatusPaid {
		md := datatypes.JSONMap{"result_code": cb.ResultCode, "result_desc": cb.ResultDesc}
		if status == models.PurchaseStatusCancelled {
			md = datatypes.JSONMap{"result_desc": "User cancelled"}
		}
		if _, err := s.repo(ctx).UpdatePurchase(purchase.ID, purchase.Status, map[string]interface{}{
			"status":   status,
			"metadata": md,
		}); err != nil {
			return accepted, err
		}
		log.Infof("[Billing/MPesa] Purchase %s %s: %s", purchase.ID, status, cb.ResultDesc)
		return accepted, nil
	}

	receipt, _ := cb.Item("MpesaReceiptNumber").(string)
	var (
		pass    *models.BillingPass
		product *models.BillingProduct
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		updates := map[string]interface{}{
			"status": models.PurchaseStatusPaid,
			"metadata": datatypes.JSONMap{
				"mpesa_receipt": receipt,
				"mpesa_amount":  cb.Item("Amount"),
				"mpesa_phone":   cb.Item("PhoneNumber"),
				"result_desc":   cb.ResultDesc,
			},
		}
		if receipt != "" {
			updates["provider_receipt"] = receipt
		}
		n, err := repo.UpdatePurchase(purchase.ID, purchase.Status, updates)
		if err != nil {
			return err
		}
		if n == 0 {
			return errAlreadyPaid
		}
		pass, product, err = s.activatePass(repo, purchase, receipt, cb.Item("Amount"))
		return err
	})
	if errors.Is(err, errAlreadyPaid) {
		return alreadyDone, nil
	}
	if err != nil {
		return accepted, err
	}

	s.initIncludedUsage(ctx, pass, product)
	s.invalidate(ctx, purchase.UserID)
	log.Infof("[Billing/MPesa] Pass %s activated for user %s until %s", pass.ID, purchase.UserID, pass.EndsAt.Format(time.RFC3339))
	return accepted, nil
}

// activatePass replaces any active pass in the product's scope with a new
// one covering the product's duration.
func (s *Service) activatePass(repo Repository, purchase *models.BillingPassPurchase, receipt string, amount interface{}) (*models.BillingPass, *models.BillingProduct, error) {
	product, err := repo.GetProductByID(purchase.ProductID)
	if err != nil {
		return nil, nil, fmt.Errorf("load product %s: %w", purchase.ProductID, err)
	}
	days := product.DurationDays
	if days <= 0 {
		days = defaultPassDays
	}
	start := s.now()
	end := start.Add(time.Duration(days) * 24 * time.Hour)

	if n, err := repo.CancelActivePassesInScope(purchase.UserID, product.Scope); err != nil {
		return nil, nil, fmt.Errorf("cancel passes: %w", err)
	} else if n > 0 {
		log.Infof("[Billing/MPesa] Replaced %d active %s pass(es) for user %s", n, product.Scope, purchase.UserID)
	}

	pass := &models.BillingPass{
		UserID:      purchase.UserID,
		ProductID:   product.ID,
		Status:      models.PassStatusActive,
		StartsAt:    start,
		EndsAt:      end,
		PurchaseRef: purchase.ID,
		Metadata:    datatypes.JSONMap{"mpesa_receipt": receipt, "amount_kes": amount},
	}
	if err := repo.CreatePass(pass); err != nil {
		return nil, nil, fmt.Errorf("create pass: %w", err)
	}
	return pass, product, nil
}

// initIncludedUsage opens a zeroed counter per included allowance of the
// pass period. Failures are logged; the pass stays valid without them.
func (s *Service) initIncludedUsage(ctx context.Context, pass *models.BillingPass, product *models.BillingProduct) {
	repo := s.repo(ctx)
	ents, err := repo.ListEntitlements(product.ID)
	if err != nil {
		log.Warnf("[Billing/MPesa] Load entitlements for %s: %v", product.ProductCode, err)
		return
	}
	for _, ent := range ents {
		if kind, _ := entitlements.Classify(ent.CapabilityKey, ent.CapabilityValue.Data()); kind != entitlements.KindIncluded {
			continue
		}
		usage := &models.BillingIncludedUsage{
			UserID:      pass.UserID,
			Scope:       product.Scope,
			ProductID:   product.ID,
			PeriodStart: pass.StartsAt,
			PeriodEnd:   pass.EndsAt,
			MetricKey:   ent.CapabilityKey,
		}
		if err := repo.InitIncludedUsage(usage); err != nil {
			log.Warnf("[Billing/MPesa] Init included usage %s for %s: %v", ent.CapabilityKey, pass.UserID, err)
		}
	}
}

// IncludedRemaining reports the allowance left for metricKey in the current
// pass period.
func (s *Service) IncludedRemaining(ctx context.Context, userID, metricKey string) (*IncludedUsage, error) {
	out := &IncludedUsage{MetricKey: metricKey}
	usage, limit, err := s.includedUsage(ctx, userID, metricKey)
	if errors.Is(err, ErrNoIncludedUsage) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	out.Limit = limit
	out.Used = usage.MetricValue
	if out.Remaining = limit - usage.MetricValue; out.Remaining < 0 {
		out.Remaining = 0
	}
	return out, nil
}

// ConsumeIncluded takes one unit of the allowance. consumed is false when
// nothing is left.
func (s *Service) ConsumeIncluded(ctx context.Context, userID, metricKey string) (consumed bool, remaining int64, err error) {
	usage, limit, err := s.includedUsage(ctx, userID, metricKey)
	if errors.Is(err, ErrNoIncludedUsage) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	n, err := s.repo(ctx).IncrementIncludedUsage(usage.ID, limit)
	if err != nil {
		return false, 0, fmt.Errorf("consume %s: %w", metricKey, err)
	}
	if n == 0 {
		return false, 0, nil
	}
	left := limit - usage.MetricValue - 1
	if left < 0 {
		left = 0
	}
	return true, left, nil
}

func (s *Service) includedUsage(ctx context.Context, userID, metricKey string) (*models.BillingIncludedUsage, int64, error) {
	if userID == "" || metricKey == "" {
		return nil, 0, invalid("user and metric_key are required")
	}
	repo := s.repo(ctx)
	usage, err := repo.GetIncludedUsage(userID, metricKey, s.now())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, 0, ErrNoIncludedUsage
	}
	if err != nil {
		return nil, 0, err
	}
	ents, err := repo.ListEntitlements(usage.ProductID)
	if err != nil {
		return nil, 0, err
	}
	for _, ent := range ents {
		if ent.CapabilityKey != metricKey {
			continue
		}
		if kind, v := entitlements.Classify(ent.CapabilityKey, ent.CapabilityValue.Data()); kind == entitlements.KindIncluded {
			return usage, int64(math.Floor(v.(float64))), nil
		}
	}
	return nil, 0, ErrNoIncludedUsage
}

// Status summarises the catalog and the user's passes, subscriptions and
// recent purchases, with the best tier per scope.
func (s *Service) Status(ctx context.Context, userID string) (*StatusSummary, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	catalog, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	repo := s.repo(ctx)
	passes, err := repo.ListActivePasses(userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list passes: %w", err)
	}
	allSubs, err := repo.ListSubscriptionsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	purchases, err := repo.ListPurchases(userID, recentPurchaseLimit)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}

	out := &StatusSummary{
		Products:        catalog.Grouped,
		ActiveTiers:     map[string]string{},
		ActiveUntil:     map[string]*time.Time{},
		Passes:          passes,
		Subscriptions:   []models.BillingSubscription{},
		RecentPurchases: purchases,
	}
	consider := func(p models.BillingProduct, until *time.Time) {
		scope, ok := entitlements.Lookup(p.Scope)
		if !ok {
			return
		}
		cur, seen := out.ActiveTiers[scope.Code]
		if !seen || scope.Rank(p.Tier) > scope.Rank(cur) {
			out.ActiveTiers[scope.Code] = scope.Normalize(p.Tier)
			out.ActiveUntil[scope.Code] = until
		}
	}
	for i := range passes {
		consider(passes[i].Product, &passes[i].EndsAt)
	}
	for _, sub := range allSubs {
		if !isEntitlingStatus(sub.Status) {
			continue
		}
		out.Subscriptions = append(out.Subscriptions, sub)
		consider(sub.Product, sub.CurrentPeriodEnd)
	}
	return out, nil
}

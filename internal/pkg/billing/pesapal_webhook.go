package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/app/models"
)

// HandlePesapalWebhook applies a PesaPal payment notification to the vendor
// subscription it names. The caller always answers 200 with the result.
func (s *Service) HandlePesapalWebhook(ctx context.Context, raw []byte, signature string) PesapalResult {
	var n PesapalNotification
	if err := json.Unmarshal(raw, &n); err != nil {
		log.Warnf("[Billing/PesaPal] Invalid webhook payload: %v", err)
		return PesapalResult{Error: "Invalid payload"}
	}
	if strings.TrimSpace(signature) == "" {
		log.Warnf("[Billing/PesaPal] Webhook without signature for order %s", n.OrderID())
		return PesapalResult{Error: "Missing signature"}
	}
	if !VerifyPesapalSignature(raw, signature, s.deps.PesapalSecret) {
		log.Warnf("[Billing/PesaPal] Invalid signature for order %s", n.OrderID())
		return PesapalResult{Error: "Invalid signature"}
	}

	orderID := strings.TrimSpace(n.OrderID())
	if orderID == "" {
		return PesapalResult{Error: "Missing order id"}
	}

	_, event, err := s.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        models.BillingProviderPesapal,
		ProviderEventID: orderID + ":" + normalizePaymentStatus(n.Status),
		EventType:       "payment_notification",
		PayloadJSON:     string(raw),
		SignatureValid:  true,
	})
	if err != nil {
		log.Errorf("[Billing/PesaPal] Record webhook for %s: %v", orderID, err)
	}

	status, err := s.applyPesapal(ctx, orderID, &n, raw)
	if event != nil {
		if merr := s.MarkWebhookProcessed(ctx, event.ID, err); merr != nil {
			log.Errorf("[Billing/PesaPal] Mark webhook %s processed: %v", orderID, merr)
		}
	}
	if err != nil {
		log.Errorf("[Billing/PesaPal] Order %s: %v", orderID, err)
		return PesapalResult{Error: "Processing failed"}
	}
	return PesapalResult{Success: true, Status: status}
}

// paymentStatus prefers the status API over the notification body, which
// anyone holding the secret could replay.
func (s *Service) paymentStatus(ctx context.Context, orderID, fallback string) string {
	if s.deps.Pesapal == nil {
		return normalizePaymentStatus(fallback)
	}
	ts, err := s.deps.Pesapal.GetTransactionStatus(ctx, orderID)
	if err != nil || ts == nil || ts.Status() == "" {
		log.Warnf("[Billing/PesaPal] Status lookup for %s failed, using webhook status: %v", orderID, err)
		return normalizePaymentStatus(fallback)
	}
	return normalizePaymentStatus(ts.Status())
}

func (s *Service) applyPesapal(ctx context.Context, orderID string, n *PesapalNotification, raw []byte) (string, error) {
	status := s.paymentStatus(ctx, orderID, n.Status)

	repo := s.repo(ctx)
	sub, err := repo.GetVendorSubscriptionByOrder(orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warnf("[Billing/PesaPal] No vendor subscription for order %s", orderID)
		return status, nil
	}
	if err != nil {
		return status, fmt.Errorf("load subscription: %w", err)
	}

	entry := &models.PaymentLog{
		OrderID:  orderID,
		VendorID: sub.VendorID,
		Status:   strings.ToLower(status),
		Amount:   n.AmountString(),
		Details:  string(raw),
	}

	switch status {
	case PesapalCompleted:
		if sub.Status == models.VendorSubscriptionActive && sub.PaymentStatus == PesapalCompleted {
			log.Infof("[Billing/PesaPal] Order %s already completed", orderID)
			return status, nil
		}
		if err := s.completeVendorSubscription(ctx, sub, n, raw); err != nil {
			return status, err
		}
		s.invalidate(ctx, sub.VendorID)
		entry.EventType = models.PaymentEventCompleted
		log.Infof("[Billing/PesaPal] Subscription %s active for vendor %s", sub.ID, sub.VendorID)

	case PesapalFailed:
		if err := repo.UpdateVendorSubscription(sub.ID, map[string]interface{}{
			"status":         models.VendorSubscriptionPaymentFailed,
			"payment_status": PesapalFailed,
		}); err != nil {
			return status, fmt.Errorf("mark failed: %w", err)
		}
		entry.EventType = models.PaymentEventFailed

	case PesapalCancelled:
		deleted, err := repo.DeletePendingVendorSubscription(sub.ID)
		if err != nil {
			return status, fmt.Errorf("delete pending subscription: %w", err)
		}
		log.Infof("[Billing/PesaPal] Order %s cancelled, removed %d pending subscription(s)", orderID, deleted)
		entry.EventType = models.PaymentEventCancelled
		entry.Status = "cancelled"

	default:
		log.Warnf("[Billing/PesaPal] Unknown status %q for order %s", status, orderID)
		entry.EventType = models.PaymentEventUnknownStatus
	}

	s.appendLog(ctx, entry)
	return status, nil
}

func (s *Service) completeVendorSubscription(ctx context.Context, sub *models.VendorSubscription, n *PesapalNotification, raw []byte) error {
	now := s.now()
	end := now.Add(vendorSubscriptionDays * 24 * time.Hour)
	txID := strings.TrimSpace(n.Reference)
	if txID == "" {
		txID = sub.PesapalOrderID
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		if err := repo.UpdateVendorSubscription(sub.ID, map[string]interface{}{
			"status":         models.VendorSubscriptionActive,
			"start_date":     now,
			"end_date":       end,
			"auto_renew":     true,
			"payment_date":   now,
			"payment_status": PesapalCompleted,
			"payment_method": models.BillingProviderPesapal,
			"transaction_id": txID,
		}); err != nil {
			return fmt.Errorf("activate subscription: %w", err)
		}

		product, err := s.resolveWith(repo, models.BillingProviderPesapal, sub.PlanID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Billing/PesaPal] No billing product for plan %q, skipping capability mirror", sub.PlanID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("resolve plan %q: %w", sub.PlanID, err)
		}
		return repo.UpsertSubscription(&models.BillingSubscription{
			UserID:                 sub.VendorID,
			ProductID:              product.ID,
			Provider:               models.BillingProviderPesapal,
			ProviderSubscriptionID: sub.PesapalOrderID,
			Status:                 models.BillingStatusActive,
			CurrentPeriodStart:     &now,
			CurrentPeriodEnd:       &end,
			RawPayloadJSON:         string(raw),
		})
	})
}

func (s *Service) appendLog(ctx context.Context, entry *models.PaymentLog) {
	if s.deps.PaymentLogs == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	if err := s.deps.PaymentLogs.Append(ctx, entry); err != nil {
		log.Warnf("[Billing/PesaPal] Payment log %s for %s: %v", entry.EventType, entry.OrderID, err)
	}
}

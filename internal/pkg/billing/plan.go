package billing

import (
	"strings"

	"github.com/JobMwaura/zintra-sub007/app/models"
)

const mpesaResultCancelled = 1032

const (
	PesapalCompleted = "COMPLETED"
	PesapalFailed    = "FAILED"
	PesapalCancelled = "CANCELLED"
)

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

// normalizePaymentStatus upper-cases PesaPal's status text, which arrives
// as "Completed" from the status API and "COMPLETED" in webhooks.
func normalizePaymentStatus(status string) string {
	s := strings.ToUpper(strings.TrimSpace(status))
	if s == "CANCELED" {
		return PesapalCancelled
	}
	return s
}

// purchaseStatusFor maps an STK callback ResultCode onto a purchase status.
func purchaseStatusFor(resultCode int) string {
	switch resultCode {
	case 0:
		return models.PurchaseStatusPaid
	case mpesaResultCancelled:
		return models.PurchaseStatusCancelled
	default:
		return models.PurchaseStatusFailed
	}
}

func isEntitlingStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.BillingStatusActive, models.BillingStatusTrialing:
		return true
	default:
		return false
	}
}

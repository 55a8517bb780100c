package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	VendorSubscriptionPendingPayment = "pending_payment"
	VendorSubscriptionActive         = "active"
	VendorSubscriptionPaymentFailed  = "payment_failed"
)

// VendorSubscription is a PesaPal-paid vendor plan.
type VendorSubscription struct {
	ID             string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	VendorID       string          `gorm:"type:varchar(36);not null;index" json:"vendor_id"`
	PlanID         string          `gorm:"type:varchar(191);not null" json:"plan_id"`
	Status         string          `gorm:"type:varchar(32);not null;index" json:"status"`
	PesapalOrderID string          `gorm:"type:varchar(191);index:ux_vendor_subscriptions_order,unique" json:"pesapal_order_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(14,2)" json:"amount"`
	StartDate      *time.Time      `json:"start_date,omitempty"`
	EndDate        *time.Time      `json:"end_date,omitempty"`
	AutoRenew      bool            `gorm:"not null;default:false" json:"auto_renew"`
	PaymentDate    *time.Time      `json:"payment_date,omitempty"`
	PaymentStatus  string          `gorm:"type:varchar(32)" json:"payment_status"`
	PaymentMethod  string          `gorm:"type:varchar(32)" json:"payment_method"`
	TransactionID  string          `gorm:"type:varchar(191)" json:"transaction_id"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *VendorSubscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

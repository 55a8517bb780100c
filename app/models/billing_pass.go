package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PassStatusActive    = "active"
	PassStatusExpired   = "expired"
	PassStatusCancelled = "cancelled"
)

const (
	PurchaseStatusInitiated = "initiated"
	PurchaseStatusPaid      = "paid"
	PurchaseStatusCancelled = "cancelled"
	PurchaseStatusFailed    = "failed"
)

// BillingPass is a time-boxed prepaid entitlement.
type BillingPass struct {
	ID          string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID      string            `gorm:"type:varchar(36);not null;index:idx_billing_passes_user_status,priority:1" json:"user_id"`
	ProductID   string            `gorm:"type:varchar(36);not null;index" json:"product_id"`
	Product     BillingProduct    `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Status      string            `gorm:"type:varchar(20);not null;index:idx_billing_passes_user_status,priority:2" json:"status"`
	StartsAt    time.Time         `gorm:"not null" json:"starts_at"`
	EndsAt      time.Time         `gorm:"not null;index" json:"ends_at"`
	PurchaseRef string            `gorm:"type:varchar(36)" json:"purchase_ref"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *BillingPass) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// BillingPassPurchase tracks one M-Pesa checkout for a pass.
type BillingPassPurchase struct {
	ID                 string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID             string            `gorm:"type:varchar(36);not null;index" json:"user_id"`
	ProductID          string            `gorm:"type:varchar(36);not null" json:"product_id"`
	AmountKES          decimal.Decimal   `gorm:"column:amount_kes;type:decimal(14,2);not null" json:"amount_kes"`
	Currency           string            `gorm:"type:varchar(3);not null;default:'KES'" json:"currency"`
	Status             string            `gorm:"type:varchar(20);not null;index" json:"status"`
	Provider           string            `gorm:"type:varchar(20);not null" json:"provider"`
	ProviderCheckoutID *string           `gorm:"type:varchar(191);index:ux_billing_pass_purchases_checkout,unique" json:"provider_checkout_id"`
	ProviderReceipt    *string           `gorm:"type:varchar(64)" json:"provider_receipt"`
	Metadata           datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt          time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *BillingPassPurchase) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// BillingIncludedUsage counts consumption of an "included" allowance within a
// pass period.
type BillingIncludedUsage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      string    `gorm:"type:varchar(36);not null;index:ux_billing_included_usage_period,unique,priority:1" json:"user_id"`
	Scope       string    `gorm:"type:varchar(32);not null" json:"scope"`
	ProductID   string    `gorm:"type:varchar(36);not null;index:ux_billing_included_usage_period,unique,priority:2" json:"product_id"`
	PeriodStart time.Time `gorm:"not null;index:ux_billing_included_usage_period,unique,priority:3" json:"period_start"`
	PeriodEnd   time.Time `gorm:"not null" json:"period_end"`
	MetricKey   string    `gorm:"type:varchar(128);not null;index:ux_billing_included_usage_period,unique,priority:4" json:"metric_key"`
	MetricValue int64     `gorm:"not null;default:0" json:"metric_value"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BillingIncludedUsage) TableName() string {
	return "billing_included_usage"
}

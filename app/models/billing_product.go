package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Billing provider constants used across billing-related models.
const (
	BillingProviderMpesa   = "mpesa"
	BillingProviderPesapal = "pesapal"
	BillingProviderStripe  = "stripe"
)

const (
	ScopeMarketplaceVendor = "marketplace_vendor"
	ScopeZCCEmployer       = "zcc_employer"
)

const (
	BillingModePass         = "pass"
	BillingModeSubscription = "subscription"
	BillingModeBoth         = "both"
)

const TierFree = "free"

// BillingProduct is a sellable tier within one capability scope.
type BillingProduct struct {
	ID           string               `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProductCode  string               `gorm:"type:varchar(64);not null;index:ux_billing_products_code,unique" json:"product_code"`
	Name         string               `gorm:"type:varchar(255);not null" json:"name"`
	Scope        string               `gorm:"type:varchar(32);not null;index:idx_billing_products_scope_tier,priority:1" json:"scope"`
	Tier         string               `gorm:"type:varchar(32);not null;index:idx_billing_products_scope_tier,priority:2" json:"tier"`
	PriceKES     decimal.Decimal      `gorm:"column:price_kes;type:decimal(14,2);not null" json:"price_kes"`
	BillingMode  string               `gorm:"type:varchar(16);not null" json:"billing_mode"`
	DurationDays int                  `gorm:"not null;default:30" json:"duration_days"`
	Active       bool                 `gorm:"not null;default:true;index" json:"active"`
	Entitlements []BillingEntitlement `gorm:"foreignKey:ProductID" json:"entitlements,omitempty"`
	CreatedAt    time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *BillingProduct) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// SupportsPass reports whether the product can be bought as a prepaid pass.
func (p *BillingProduct) SupportsPass() bool {
	return p.BillingMode == BillingModePass || p.BillingMode == BillingModeBoth
}

// CapabilityValue is the typed payload stored in billing_entitlements.
type CapabilityValue struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// BillingEntitlement attaches one capability to a product.
type BillingEntitlement struct {
	ID              uint                                `gorm:"primaryKey" json:"id"`
	ProductID       string                              `gorm:"type:varchar(36);not null;index:ux_billing_entitlements_product_key,unique,priority:1" json:"product_id"`
	CapabilityKey   string                              `gorm:"type:varchar(128);not null;index:ux_billing_entitlements_product_key,unique,priority:2" json:"capability_key"`
	CapabilityValue datatypes.JSONType[CapabilityValue] `gorm:"not null" json:"capability_value"`
	CreatedAt       time.Time                           `gorm:"autoCreateTime" json:"created_at"`
}

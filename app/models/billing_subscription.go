package models

import "time"

const (
	BillingStatusActive     = "active"
	BillingStatusTrialing   = "trialing"
	BillingStatusPastDue    = "past_due"
	BillingStatusCanceled   = "canceled"
	BillingStatusIncomplete = "incomplete"
	BillingStatusExpired    = "expired"
)

// BillingSubscription mirrors a provider subscription and points at the
// billing product it entitles.
type BillingSubscription struct {
	ID                     uint           `gorm:"primaryKey" json:"id"`
	UserID                 string         `gorm:"type:varchar(36);not null;index:idx_billing_subscriptions_user_status,priority:1" json:"user_id"`
	ProductID              string         `gorm:"type:varchar(36);not null;index" json:"product_id"`
	Product                BillingProduct `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Provider               string         `gorm:"type:varchar(20);not null;index:ux_billing_subscriptions_provider_subid,unique,priority:1" json:"provider"`
	ProviderSubscriptionID string         `gorm:"type:varchar(191);not null;index:ux_billing_subscriptions_provider_subid,unique,priority:2" json:"provider_subscription_id"`
	Status                 string         `gorm:"type:varchar(32);not null;index:idx_billing_subscriptions_user_status,priority:2" json:"status"`
	CurrentPeriodStart     *time.Time     `json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time     `json:"current_period_end,omitempty"`
	RawPayloadJSON         string         `gorm:"type:text" json:"raw_payload_json"`
	CreatedAt              time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	OfferStatusPending   = "pending"
	OfferStatusAccepted  = "accepted"
	OfferStatusDeclined  = "declined"
	OfferStatusExpired   = "expired"
	OfferStatusCancelled = "cancelled"
)

// CounterOffer is one negotiation round. round_number is unique per thread.
type CounterOffer struct {
	ID             string                      `gorm:"type:varchar(36);primaryKey" json:"id"`
	ThreadID       string                      `gorm:"type:varchar(36);not null;index:ux_counter_offers_thread_round,unique,priority:1" json:"thread_id"`
	QuoteID        string                      `gorm:"type:varchar(36);not null;index" json:"quote_id"`
	ProposedBy     string                      `gorm:"type:varchar(36);not null" json:"proposed_by"`
	ProposedPrice  decimal.Decimal             `gorm:"type:decimal(14,2);not null" json:"proposed_price"`
	ScopeChanges   *string                     `gorm:"type:text" json:"scope_changes"`
	DeliveryDate   *time.Time                  `gorm:"type:date" json:"delivery_date"`
	PaymentTerms   *string                     `gorm:"type:text" json:"payment_terms"`
	Notes          *string                     `gorm:"type:text" json:"notes"`
	AttachmentKeys datatypes.JSONSlice[string] `json:"attachment_keys,omitempty"`
	RoundNumber    int                         `gorm:"not null;index:ux_counter_offers_thread_round,unique,priority:2" json:"round_number"`
	Status         string                      `gorm:"type:varchar(20);not null;index:idx_counter_offers_status_deadline,priority:1" json:"status"`
	DeclinedReason *string                     `gorm:"type:text" json:"declined_reason,omitempty"`
	ResponseByDate *time.Time                  `gorm:"index:idx_counter_offers_status_deadline,priority:2" json:"response_by_date"`
	CreatedAt      time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (o *CounterOffer) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = OfferStatusPending
	}
	return nil
}

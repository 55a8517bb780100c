package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ThreadStatusActive   = "active"
	ThreadStatusAccepted = "accepted"
	ThreadStatusDeclined = "declined"
	ThreadStatusExpired  = "expired"
)

// DefaultMaxRounds is applied to threads created without an explicit limit.
const DefaultMaxRounds = 3

// NegotiationThread is one negotiation session between a buyer and a vendor
// over a single quote.
type NegotiationThread struct {
	ID              string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	RFQID           string            `gorm:"column:rfq_id;type:varchar(36);index" json:"rfq_id"`
	QuoteID         string            `gorm:"type:varchar(36);not null;index:ux_negotiation_threads_quote,unique" json:"quote_id"`
	BuyerID         string            `gorm:"type:varchar(36);not null;index" json:"buyer_id"`
	VendorID        string            `gorm:"type:varchar(36);not null;index" json:"vendor_id"`
	Status          string            `gorm:"type:varchar(20);not null;index" json:"status"`
	RoundCount      int               `gorm:"not null" json:"round_count"`
	MaxRounds       int               `gorm:"not null" json:"max_rounds"`
	OriginalPrice   decimal.Decimal   `gorm:"type:decimal(14,2);not null" json:"original_price"`
	CurrentPrice    decimal.Decimal   `gorm:"type:decimal(14,2);not null" json:"current_price"`
	AcceptedOfferID *string           `gorm:"type:varchar(36)" json:"accepted_offer_id,omitempty"`
	Flagged         bool              `gorm:"not null;default:false" json:"flagged"`
	Metadata        datatypes.JSONMap `json:"metadata,omitempty"`
	ClosedAt        *time.Time        `json:"closed_at,omitempty"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *NegotiationThread) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.MaxRounds <= 0 {
		t.MaxRounds = DefaultMaxRounds
	}
	if t.Status == "" {
		t.Status = ThreadStatusActive
	}
	return nil
}

// EffectiveMaxRounds guards against rows written before max_rounds was enforced.
func (t *NegotiationThread) EffectiveMaxRounds() int {
	if t.MaxRounds <= 0 {
		return DefaultMaxRounds
	}
	return t.MaxRounds
}

func (t *NegotiationThread) IsParticipant(userID string) bool {
	return userID != "" && (userID == t.BuyerID || userID == t.VendorID)
}

func (t *NegotiationThread) IsBuyer(userID string) bool {
	return userID != "" && userID == t.BuyerID
}

// Counterparty returns the other participant for userID.
func (t *NegotiationThread) Counterparty(userID string) string {
	if userID == t.BuyerID {
		return t.VendorID
	}
	return t.BuyerID
}

func (t *NegotiationThread) IsActive() bool {
	return t.Status == ThreadStatusActive
}

func (t *NegotiationThread) RoundsExhausted() bool {
	return t.RoundCount >= t.EffectiveMaxRounds()
}

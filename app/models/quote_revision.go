package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// QuoteRevision is an append-only snapshot of the terms on a quote at each
// counter offer.
type QuoteRevision struct {
	ID             string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	QuoteID        string          `gorm:"type:varchar(36);not null;index" json:"quote_id"`
	ThreadID       string          `gorm:"type:varchar(36);index" json:"thread_id"`
	CounterOfferID string          `gorm:"type:varchar(36)" json:"counter_offer_id"`
	Price          decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"price"`
	DeliveryDate   *time.Time      `gorm:"type:date" json:"delivery_date"`
	PaymentTerms   *string         `gorm:"type:text" json:"payment_terms"`
	ChangedBy      string          `gorm:"type:varchar(36);not null" json:"changed_by"`
	ChangeReason   string          `gorm:"type:varchar(255)" json:"change_reason"`
	RevisionNotes  *string         `gorm:"type:text" json:"revision_notes"`
	SourceEventID  string          `gorm:"type:varchar(26);not null;index:ux_quote_revisions_source_event,unique" json:"-"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (r *QuoteRevision) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

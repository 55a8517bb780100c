package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const JobOrderStatusCreated = "created"

// JobOrder is produced when a counter offer is accepted.
type JobOrder struct {
	ID           string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	ThreadID     string          `gorm:"type:varchar(36);not null;index:ux_job_orders_thread,unique" json:"thread_id"`
	RFQID        string          `gorm:"column:rfq_id;type:varchar(36)" json:"rfq_id"`
	QuoteID      string          `gorm:"type:varchar(36)" json:"quote_id"`
	BuyerID      string          `gorm:"type:varchar(36);not null;index" json:"buyer_id"`
	VendorID     string          `gorm:"type:varchar(36);not null;index" json:"vendor_id"`
	AgreedPrice  decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"agreed_price"`
	PaymentTerms *string         `gorm:"type:text" json:"payment_terms"`
	DeliveryDate *time.Time      `gorm:"type:date" json:"delivery_date"`
	ScopeSummary *string         `gorm:"type:text" json:"scope_summary"`
	Status       string          `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (j *JobOrder) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Status == "" {
		j.Status = JobOrderStatusCreated
	}
	return nil
}

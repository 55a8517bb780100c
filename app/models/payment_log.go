package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PaymentEventCompleted     = "PAYMENT_COMPLETED"
	PaymentEventFailed        = "PAYMENT_FAILED"
	PaymentEventCancelled     = "PAYMENT_CANCELLED"
	PaymentEventUnknownStatus = "PAYMENT_UNKNOWN_STATUS"
)

// PaymentLog is an append-only record of payment webhook outcomes.
type PaymentLog struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id" dynamodbav:"id"`
	EventType string    `gorm:"type:varchar(64);not null;index" json:"event_type" dynamodbav:"event_type"`
	OrderID   string    `gorm:"type:varchar(191);index" json:"order_id" dynamodbav:"order_id"`
	VendorID  string    `gorm:"type:varchar(36)" json:"vendor_id" dynamodbav:"vendor_id"`
	Status    string    `gorm:"type:varchar(32)" json:"status" dynamodbav:"status"`
	Amount    string    `gorm:"type:varchar(32)" json:"amount" dynamodbav:"amount"`
	Details   string    `gorm:"type:text" json:"details" dynamodbav:"details"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp" dynamodbav:"timestamp"`
}

func (l *PaymentLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

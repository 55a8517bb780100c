package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	NotificationCounterOffer           = "counter_offer"
	NotificationQAQuestion             = "qa_question"
	NotificationQAAnswer               = "qa_answer"
	NotificationNegotiationStarted     = "negotiation_started"
	NotificationNegotiationExpired     = "negotiation_expired"
	NotificationOfferExpired           = "offer_expired"
	NotificationOfferAccepted          = "offer_accepted"
	NotificationOfferRejected          = "offer_rejected"
	NotificationNegotiationCancelled   = "negotiation_cancelled"
	NotificationJobOrderCreated        = "job_order_created"
	NotificationAdminNegotiationReport = "admin_negotiation_report"
	NotificationNegotiationWarning     = "negotiation_warning"
)

const (
	RelatedTypeNegotiation  = "negotiation"
	RelatedTypeCounterOffer = "counter_offer"
	RelatedTypeQA           = "negotiation_qa"
	RelatedTypeJobOrder     = "job_order"
)

// Notification is an in-app message for a single recipient. DedupeKey makes
// materialisation from the outbox idempotent.
type Notification struct {
	ID          string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID      string            `gorm:"type:varchar(36);not null;index:idx_notifications_user_created,priority:1" json:"user_id"`
	Type        string            `gorm:"type:varchar(50);not null;index" json:"type"`
	Title       string            `gorm:"type:varchar(255);not null" json:"title"`
	Body        string            `gorm:"type:text" json:"body"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	RelatedID   string            `gorm:"type:varchar(36)" json:"related_id"`
	RelatedType string            `gorm:"type:varchar(50)" json:"related_type"`
	ReadAt      *time.Time        `json:"read_at"`
	DedupeKey   string            `gorm:"type:varchar(64);not null;index:ux_notifications_dedupe,unique" json:"-"`
	CreatedAt   time.Time         `gorm:"autoCreateTime;index:idx_notifications_user_created,priority:2" json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.DedupeKey == "" {
		n.DedupeKey = n.ID
	}
	return nil
}

func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

// MarkAsRead sets read_at once; repeated calls keep the first timestamp.
func (n *Notification) MarkAsRead(db *gorm.DB) error {
	if n.ReadAt != nil {
		return nil
	}
	now := time.Now()
	if err := db.Model(n).Where("read_at IS NULL").Update("read_at", now).Error; err != nil {
		return err
	}
	n.ReadAt = &now
	return nil
}

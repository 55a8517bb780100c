package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NegotiationQA is a question on a negotiation, answered at most once.
type NegotiationQA struct {
	ID         string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	ThreadID   string     `gorm:"type:varchar(36);not null;index" json:"thread_id"`
	QuoteID    string     `gorm:"type:varchar(36);not null" json:"quote_id"`
	AskedBy    string     `gorm:"type:varchar(36);not null" json:"asked_by"`
	Question   string     `gorm:"type:text;not null" json:"question"`
	Answer     *string    `gorm:"type:text" json:"answer"`
	AnsweredBy *string    `gorm:"type:varchar(36)" json:"answered_by"`
	AnsweredAt *time.Time `json:"answered_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (NegotiationQA) TableName() string {
	return "negotiation_qa"
}

func (q *NegotiationQA) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

func (q *NegotiationQA) IsAnswered() bool {
	return q.AnsweredAt != nil
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	OutboxStatusPending    = "pending"
	OutboxStatusProcessing = "processing"
	OutboxStatusDispatched = "dispatched"
	OutboxStatusFailed     = "failed"
)

// OutboxEvent is a side effect recorded in the same transaction as the state
// change that caused it. IDs are ULIDs so ordering by id is ordering by time.
type OutboxEvent struct {
	ID            string         `gorm:"type:varchar(26);primaryKey" json:"id"`
	Topic         string         `gorm:"type:varchar(64);not null;index" json:"topic"`
	AggregateType string         `gorm:"type:varchar(32);not null" json:"aggregate_type"`
	AggregateID   string         `gorm:"type:varchar(36);not null;index" json:"aggregate_id"`
	Payload       datatypes.JSON `gorm:"not null" json:"payload"`
	Status        string         `gorm:"type:varchar(20);not null;index:idx_outbox_events_status_next,priority:1" json:"status"`
	Attempts      int            `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt time.Time      `gorm:"not null;index:idx_outbox_events_status_next,priority:2" json:"next_attempt_at"`
	LockedUntil   *time.Time     `json:"locked_until,omitempty"`
	LastError     string         `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	DispatchedAt  *time.Time     `json:"dispatched_at,omitempty"`
}

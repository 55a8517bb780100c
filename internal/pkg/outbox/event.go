package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/app/models"
	"github.com/JobMwaura/zintra-sub007/app/repository"
)

const (
	TopicNotificationCreate  = "notification.create"
	TopicQuoteRevisionCreate = "quote_revision.create"
)

// NotificationPayload is the body of a notification.create event. One event
// addresses exactly one recipient.
type NotificationPayload struct {
	UserID      string                 `json:"user_id"`
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	RelatedID   string                 `json:"related_id,omitempty"`
	RelatedType string                 `json:"related_type,omitempty"`
}

// QuoteRevisionPayload is the body of a quote_revision.create event.
type QuoteRevisionPayload struct {
	QuoteID        string     `json:"quote_id"`
	ThreadID       string     `json:"thread_id"`
	CounterOfferID string     `json:"counter_offer_id"`
	Price          string     `json:"price"`
	DeliveryDate   *time.Time `json:"delivery_date,omitempty"`
	PaymentTerms   *string    `json:"payment_terms,omitempty"`
	ChangedBy      string     `json:"changed_by"`
	ChangeReason   string     `json:"change_reason"`
	RevisionNotes  *string    `json:"revision_notes,omitempty"`
}

// NewEvent builds a pending event with a fresh ULID.
func NewEvent(topic, aggregateType, aggregateID string, payload interface{}) (*models.OutboxEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	return &models.OutboxEvent{
		ID:            ulid.Make().String(),
		Topic:         topic,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       datatypes.JSON(body),
		Status:        models.OutboxStatusPending,
		NextAttemptAt: time.Now().UTC(),
	}, nil
}

// Notification is a shorthand for a notification.create event about the
// given aggregate.
func Notification(aggregateType, aggregateID string, p NotificationPayload) (*models.OutboxEvent, error) {
	return NewEvent(TopicNotificationCreate, aggregateType, aggregateID, p)
}

// Write stores events with tx so they commit or roll back together with the
// caller's state change.
func Write(tx *gorm.DB, events ...*models.OutboxEvent) error {
	if err := repository.NewOutboxRepository(tx).Insert(events...); err != nil {
		return fmt.Errorf("write outbox: %w", err)
	}
	return nil
}

// IDs returns the ids of events, for post-commit dispatch.
func IDs(events []*models.OutboxEvent) []string {
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	return ids
}

// Decode unmarshals an event payload into v.
func Decode(ev *models.OutboxEvent, v interface{}) error {
	if err := json.Unmarshal(ev.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload %s: %w", ev.Topic, ev.ID, err)
	}
	return nil
}

package repository

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/app/models"
)

// ThreadRepository covers negotiation threads and the rows hanging off them.
type ThreadRepository interface {
	Create(thread *models.NegotiationThread) error
	GetByID(id string) (*models.NegotiationThread, error)
	GetByIDAndQuote(id, quoteID string) (*models.NegotiationThread, error)
	GetByQuoteID(quoteID string) (*models.NegotiationThread, error)
	// AdvanceRound bumps round_count only when it still equals expectedRound
	// and the thread is active. It returns the number of rows changed.
	AdvanceRound(id string, expectedRound int, newPrice decimal.Decimal) (int64, error)
	// Close moves an active thread to status. Zero rows means it was no
	// longer active.
	Close(id, status string, updates map[string]interface{}) (int64, error)
	UpdateMetadata(id string, metadata map[string]interface{}, flagged bool) error
	Stats(id string) (*ThreadStats, error)
	CreateJobOrder(order *models.JobOrder) error
	GetJobOrderByThread(threadID string) (*models.JobOrder, error)
}

// OfferRepository covers counter offers.
type OfferRepository interface {
	Create(offer *models.CounterOffer) error
	GetByID(id string) (*models.CounterOffer, error)
	ListByThread(threadID string) ([]models.CounterOffer, error)
	// Transition changes status from `from` to `to` and applies extra column
	// updates. It returns the number of rows changed.
	Transition(id, from, to string, extra map[string]interface{}) (int64, error)
	CancelPending(threadID, exceptID string) (int64, error)
	ListOverdue(now time.Time, limit int) ([]models.CounterOffer, error)
}

// QARepository covers the Q&A sub-thread.
type QARepository interface {
	Create(qa *models.NegotiationQA) error
	GetByID(id string) (*models.NegotiationQA, error)
	ListByThread(threadID string) ([]models.NegotiationQA, error)
	// Answer writes the answer only when none exists yet.
	Answer(id, answer, answeredBy string, at time.Time) (int64, error)
}

// RevisionRepository covers quote revisions.
type RevisionRepository interface {
	CreateIfNotExists(rev *models.QuoteRevision) (bool, error)
	ListByThread(threadID string) ([]models.QuoteRevision, error)
}

// NotificationFilter narrows a notification listing.
type NotificationFilter struct {
	UserID     string
	Type       string
	UnreadOnly bool
	Offset     int
	Limit      int
}

// NotificationRepository covers in-app notifications.
type NotificationRepository interface {
	CreateIfNotExists(n *models.Notification) (bool, error)
	GetByDedupeKey(key string) (*models.Notification, error)
	GetByID(id string) (*models.Notification, error)
	List(filter NotificationFilter) ([]models.Notification, int64, error)
	CountUnread(userID string) (int64, error)
	MarkRead(id, userID string, at time.Time) (int64, error)
	MarkAllRead(userID string, at time.Time) (int64, error)
}

// OutboxRepository covers the transactional outbox.
type OutboxRepository interface {
	Insert(events ...*models.OutboxEvent) error
	GetByID(id string) (*models.OutboxEvent, error)
	// DueIDs lists events that may be claimed at now, oldest first.
	DueIDs(now time.Time, limit int) ([]string, error)
	// Claim marks one due event as processing until lockedUntil.
	Claim(id string, now, lockedUntil time.Time) (int64, error)
	MarkDispatched(id string, at time.Time) error
	MarkRetry(id string, attempts int, next time.Time, lastErr string) error
	MarkFailed(id string, attempts int, lastErr string) error
	CountByStatus() (map[string]int64, error)
}

// ProfileRepository resolves contact details and admin recipients.
type ProfileRepository interface {
	GetByUserID(userID string) (*models.UserProfile, error)
	Upsert(profile *models.UserProfile) error
	ListAdminIDs() ([]string, error)
}

// ThreadStats summarises the activity on a thread.
type ThreadStats struct {
	TotalCounterOffers  int64 `json:"totalCounterOffers"`
	AcceptedOffers      int64 `json:"acceptedOffers"`
	PendingOffers       int64 `json:"pendingOffers"`
	TotalQuestions      int64 `json:"totalQuestions"`
	AnsweredQuestions   int64 `json:"answeredQuestions"`
	UnansweredQuestions int64 `json:"unansweredQuestions"`
	TotalRevisions      int64 `json:"totalRevisions"`
}

// Repositories struct holds all repository instances
type Repositories struct {
	Thread       ThreadRepository
	Offer        OfferRepository
	QA           QARepository
	Revision     RevisionRepository
	Notification NotificationRepository
	Outbox       OutboxRepository
	Profile      ProfileRepository
}

// NewRepositories creates a new instance of all repositories. Pass a
// transaction handle to get repositories bound to that transaction.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Thread:       NewThreadRepository(db),
		Offer:        NewOfferRepository(db),
		QA:           NewQARepository(db),
		Revision:     NewRevisionRepository(db),
		Notification: NewNotificationRepository(db),
		Outbox:       NewOutboxRepository(db),
		Profile:      NewProfileRepository(db),
	}
}

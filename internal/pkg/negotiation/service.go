package negotiation

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/app/models"
	"github.com/JobMwaura/zintra-sub007/app/repository"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/outbox"
)

// Service implements the negotiation workflow. Every state change commits
// together with its outbox events; dispatch happens after commit.
type Service struct {
	db          *gorm.DB
	dispatcher  outbox.Dispatcher
	attachments AttachmentSigner
	now         func() time.Time
}

// NewService creates a negotiation service. dispatcher may be nil, in which
// case events wait for the relay ticker.
func NewService(db *gorm.DB, dispatcher outbox.Dispatcher) *Service {
	return &Service{
		db:         db,
		dispatcher: dispatcher,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) dispatch(ctx context.Context, events []*models.OutboxEvent) {
	if s.dispatcher == nil || len(events) == 0 {
		return
	}
	s.dispatcher.Dispatch(ctx, outbox.IDs(events)...)
}

// transact runs fn in a transaction and dispatches the events fn returns
// once the transaction has committed.
func (s *Service) transact(ctx context.Context, fn func(repos *repository.Repositories, tx *gorm.DB) ([]*models.OutboxEvent, error)) error {
	var events []*models.OutboxEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		evs, err := fn(repository.NewRepositories(tx), tx)
		if err != nil {
			return err
		}
		if err := outbox.Write(tx, evs...); err != nil {
			return err
		}
		events = evs
		return nil
	})
	if err != nil {
		return err
	}
	s.dispatch(ctx, events)
	return nil
}

func (s *Service) repos(ctx context.Context) *repository.Repositories {
	return repository.NewRepositories(s.db.WithContext(ctx))
}

func loadThread(repo repository.ThreadRepository, id string) (*models.NegotiationThread, error) {
	thread, err := repo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrThreadNotFound
	}
	return thread, err
}

// CreateThreadResult is returned by CreateThread.
type CreateThreadResult struct {
	Thread   *models.NegotiationThread `json:"thread"`
	Existing bool                      `json:"existing"`
}

// CreateThread opens a negotiation on a quote, or returns the one that
// already exists for it.
func (s *Service) CreateThread(ctx context.Context, req CreateThreadRequest) (*CreateThreadResult, error) {
	if err := check(&req, "Missing required fields: rfqQuoteId, userId, vendorId, originalPrice", nil); err != nil {
		return nil, err
	}
	if err := checkPrice(req.OriginalPrice.Decimal); err != nil {
		return nil, err
	}
	if req.UserID == req.VendorID {
		return nil, invalid("Buyer and vendor must be different users")
	}

	if existing, err := s.repos(ctx).Thread.GetByQuoteID(req.RFQQuoteID); err == nil {
		return &CreateThreadResult{Thread: existing, Existing: true}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	thread := &models.NegotiationThread{
		RFQID:         req.RFQID,
		QuoteID:       req.RFQQuoteID,
		BuyerID:       req.UserID,
		VendorID:      req.VendorID,
		Status:        models.ThreadStatusActive,
		RoundCount:    0,
		MaxRounds:     models.DefaultMaxRounds,
		OriginalPrice: req.OriginalPrice.Decimal,
		CurrentPrice:  req.OriginalPrice.Decimal,
	}
	err := s.transact(ctx, func(repos *repository.Repositories, tx *gorm.DB) ([]*models.OutboxEvent, error) {
		if err := repos.Thread.Create(thread); err != nil {
			return nil, err
		}
		ev, err := startedNotification(thread)
		if err != nil {
			return nil, err
		}
		return []*models.OutboxEvent{ev}, nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost a race with another create for the same quote.
		existing, gerr := s.repos(ctx).Thread.GetByQuoteID(req.RFQQuoteID)
		if gerr != nil {
			return nil, gerr
		}
		return &CreateThreadResult{Thread: existing, Existing: true}, nil
	}
	if err != nil {
		return nil, err
	}
	log.Infof("[Negotiation] Thread %s opened on quote %s", thread.ID, thread.QuoteID)
	return &CreateThreadResult{Thread: thread}, nil
}

// ThreadDetail is the full view of one negotiation.
type ThreadDetail struct {
	Thread        *models.NegotiationThread `json:"thread"`
	CounterOffers []models.CounterOffer     `json:"counterOffers"`
	QA            []models.NegotiationQA    `json:"qa"`
	Revisions     []models.QuoteRevision    `json:"revisions"`
	JobOrder      *models.JobOrder          `json:"jobOrder,omitempty"`
	Stats         *repository.ThreadStats   `json:"stats"`
}

// GetThread loads a thread with its offers, questions and revisions. When
// viewerID is set it must be a participant.
func (s *Service) GetThread(ctx context.Context, id, viewerID string) (*ThreadDetail, error) {
	if id == "" {
		return nil, invalid("Missing negotiation ID")
	}
	repos := s.repos(ctx)
	thread, err := loadThread(repos.Thread, id)
	if err != nil {
		return nil, err
	}
	if viewerID != "" && !thread.IsParticipant(viewerID) {
		return nil, ErrNotParticipant
	}

	detail := &ThreadDetail{Thread: thread}
	if detail.CounterOffers, err = repos.Offer.ListByThread(id); err != nil {
		return nil, err
	}
	if detail.QA, err = repos.QA.ListByThread(id); err != nil {
		return nil, err
	}
	if detail.Revisions, err = repos.Revision.ListByThread(id); err != nil {
		return nil, err
	}
	if detail.Stats, err = repos.Thread.Stats(id); err != nil {
		return nil, err
	}
	if thread.Status == models.ThreadStatusAccepted {
		order, err := repos.Thread.GetJobOrderByThread(id)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		detail.JobOrder = order
	}
	return detail, nil
}

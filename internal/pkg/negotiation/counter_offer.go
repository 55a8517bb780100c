package negotiation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/app/models"
	"github.com/JobMwaura/zintra-sub007/app/repository"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/objectstore"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/outbox"
)

// CounterOfferResult is returned by SubmitCounterOffer.
type CounterOfferResult struct {
	CounterOffer *models.CounterOffer `json:"counterOffer"`
	RoundCount   int                  `json:"roundCount"`
	MaxRounds    int                  `json:"maxRounds"`
}

// SubmitCounterOffer records a new round. The thread's round_count is
// advanced with a compare-and-swap inside the same transaction that inserts
// the offer, so two concurrent submissions can never share a round.
func (s *Service) SubmitCounterOffer(ctx context.Context, req CounterOfferRequest) (*CounterOfferResult, error) {
	if err := check(&req, "Missing required fields: negotiationId, quoteId, proposedBy, proposedPrice", map[string]string{
		"responseByDays": "Invalid responseByDays: must be between 1 and 30",
		"attachmentKeys": "Invalid attachmentKeys: at most 10 attachments are allowed",
	}); err != nil {
		return nil, err
	}
	if err := checkPrice(req.ProposedPrice.Decimal); err != nil {
		return nil, err
	}
	prefix := objectstore.AttachmentPrefix(req.NegotiationID) + "/"
	for _, key := range req.AttachmentKeys {
		if !strings.HasPrefix(key, prefix) || strings.Contains(key, "..") {
			return nil, invalid("Invalid attachmentKeys: %q does not belong to this negotiation", key)
		}
	}
	var deliveryDate *time.Time
	if req.DeliveryDate != nil {
		d, err := parseDate(*req.DeliveryDate)
		if err != nil {
			return nil, err
		}
		deliveryDate = d
	}
	days := DefaultResponseDays
	if req.ResponseByDays != nil {
		days = *req.ResponseByDays
	}

	var result *CounterOfferResult
	err := s.transact(ctx, func(repos *repository.Repositories, tx *gorm.DB) ([]*models.OutboxEvent, error) {
		thread, err := loadThread(repos.Thread, req.NegotiationID)
		if err != nil {
			return nil, err
		}
		if thread.QuoteID != req.QuoteID {
			return nil, ErrQuoteMismatch
		}
		if !thread.IsActive() {
			return nil, notActiveError(thread.Status)
		}
		if !thread.IsParticipant(req.ProposedBy) {
			return nil, ErrNotParticipant
		}
		if thread.RoundsExhausted() {
			return nil, maxRoundsError(thread.EffectiveMaxRounds())
		}

		rows, err := repos.Thread.AdvanceRound(thread.ID, thread.RoundCount, req.ProposedPrice.Decimal)
		if err != nil {
			return nil, err
		}
		if rows != 1 {
			return nil, errLostRace
		}

		now := s.now()
		deadline := now.AddDate(0, 0, days)
		offer := &models.CounterOffer{
			ThreadID:       thread.ID,
			QuoteID:        thread.QuoteID,
			ProposedBy:     req.ProposedBy,
			ProposedPrice:  req.ProposedPrice.Decimal,
			ScopeChanges:   trimmedOrNil(req.ScopeChanges),
			DeliveryDate:   deliveryDate,
			PaymentTerms:   trimmedOrNil(req.PaymentTerms),
			Notes:          trimmedOrNil(req.Notes),
			AttachmentKeys: datatypes.JSONSlice[string](req.AttachmentKeys),
			RoundNumber:    thread.RoundCount + 1,
			Status:         models.OfferStatusPending,
			ResponseByDate: &deadline,
		}
		if err := repos.Offer.Create(offer); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, errLostRace
			}
			return nil, err
		}

		thread.RoundCount++
		thread.CurrentPrice = offer.ProposedPrice

		revision, err := outbox.NewEvent(outbox.TopicQuoteRevisionCreate, "negotiation", thread.ID, outbox.QuoteRevisionPayload{
			QuoteID:        thread.QuoteID,
			ThreadID:       thread.ID,
			CounterOfferID: offer.ID,
			Price:          offer.ProposedPrice.StringFixed(2),
			DeliveryDate:   offer.DeliveryDate,
			PaymentTerms:   offer.PaymentTerms,
			ChangedBy:      offer.ProposedBy,
			ChangeReason:   "counter_offer",
			RevisionNotes:  offer.Notes,
		})
		if err != nil {
			return nil, err
		}
		notify, err := counterOfferNotification(thread, offer)
		if err != nil {
			return nil, err
		}

		result = &CounterOfferResult{
			CounterOffer: offer,
			RoundCount:   thread.RoundCount,
			MaxRounds:    thread.EffectiveMaxRounds(),
		}
		return []*models.OutboxEvent{revision, notify}, nil
	})

	if errors.Is(err, errLostRace) {
		return nil, s.explainLostRace(ctx, req.NegotiationID)
	}
	if err != nil {
		return nil, err
	}
	log.Infof("[Negotiation] Round %d/%d submitted on thread %s by %s",
		result.RoundCount, result.MaxRounds, req.NegotiationID, req.ProposedBy)
	return result, nil
}

// explainLostRace re-reads the thread after a failed compare-and-swap so the
// caller gets the same error it would have got had it arrived second.
func (s *Service) explainLostRace(ctx context.Context, threadID string) error {
	thread, err := loadThread(s.repos(ctx).Thread, threadID)
	if err != nil {
		return err
	}
	if !thread.IsActive() {
		return notActiveError(thread.Status)
	}
	if thread.RoundsExhausted() {
		return maxRoundsError(thread.EffectiveMaxRounds())
	}
	return ErrConcurrentUpdate
}

// RevisionHandler materialises quote_revision.create events. The event id
// is the revision's source key, so redelivery is a no-op.
func RevisionHandler() outbox.Handler {
	return func(ctx context.Context, db *gorm.DB, ev *models.OutboxEvent) error {
		var p outbox.QuoteRevisionPayload
		if err := outbox.Decode(ev, &p); err != nil {
			return err
		}
		price, err := decimalFromString(p.Price)
		if err != nil {
			return err
		}
		rev := &models.QuoteRevision{
			QuoteID:        p.QuoteID,
			ThreadID:       p.ThreadID,
			CounterOfferID: p.CounterOfferID,
			Price:          price,
			DeliveryDate:   p.DeliveryDate,
			PaymentTerms:   p.PaymentTerms,
			ChangedBy:      p.ChangedBy,
			ChangeReason:   p.ChangeReason,
			RevisionNotes:  p.RevisionNotes,
			SourceEventID:  ev.ID,
		}
		_, err = repository.NewRevisionRepository(db.WithContext(ctx)).CreateIfNotExists(rev)
		return err
	}
}

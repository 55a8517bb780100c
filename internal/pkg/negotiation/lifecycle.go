package negotiation

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/app/models"
	"github.com/JobMwaura/zintra-sub007/app/repository"
)

// UpdateResult is returned by UpdateThread.
type UpdateResult struct {
	Message  string                    `json:"message"`
	Thread   *models.NegotiationThread `json:"thread,omitempty"`
	JobOrder *models.JobOrder          `json:"jobOrder,omitempty"`
}

// UpdateThread applies a participant action: accept_offer, reject_offer or
// cancel.
func (s *Service) UpdateThread(ctx context.Context, req UpdateThreadRequest) (*UpdateResult, error) {
	if err := check(&req, "Missing required: negotiationId, action, userId", nil); err != nil {
		return nil, err
	}
	switch req.Action {
	case ActionAcceptOffer:
		if req.OfferID == "" {
			return nil, invalid("offerId is required to accept an offer")
		}
		return s.acceptOffer(ctx, req)
	case ActionRejectOffer:
		if req.OfferID == "" {
			return nil, invalid("offerId is required to reject an offer")
		}
		return s.rejectOffer(ctx, req)
	case ActionCancel:
		return s.cancel(ctx, req)
	default:
		return nil, withMessage(ErrUnknownAction, "Unknown action: %s. Use: accept_offer, reject_offer, cancel", req.Action)
	}
}

// participantThread loads the thread and checks the caller may act on it.
func participantThread(repos *repository.Repositories, threadID, userID string) (*models.NegotiationThread, error) {
	thread, err := loadThread(repos.Thread, threadID)
	if err != nil {
		return nil, err
	}
	if !thread.IsParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return thread, nil
}

// respondableOffer loads a pending offer of thread that userID did not make.
func respondableOffer(repos *repository.Repositories, thread *models.NegotiationThread, offerID, userID string) (*models.CounterOffer, error) {
	offer, err := repos.Offer.GetByID(offerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOfferNotFound
	}
	if err != nil {
		return nil, err
	}
	if offer.ThreadID != thread.ID || offer.Status != models.OfferStatusPending {
		return nil, ErrOfferNotFound
	}
	if offer.ProposedBy == userID {
		return nil, ErrOwnOffer
	}
	if !thread.IsActive() {
		return nil, withMessage(ErrThreadNotActive, "Negotiation is %s.", thread.Status)
	}
	return offer, nil
}

func (s *Service) acceptOffer(ctx context.Context, req UpdateThreadRequest) (*UpdateResult, error) {
	result := &UpdateResult{Message: "Offer accepted successfully"}
	err := s.transact(ctx, func(repos *repository.Repositories, tx *gorm.DB) ([]*models.OutboxEvent, error) {
		thread, err := participantThread(repos, req.NegotiationID, req.UserID)
		if err != nil {
			return nil, err
		}
		offer, err := respondableOffer(repos, thread, req.OfferID, req.UserID)
		if err != nil {
			return nil, err
		}

		rows, err := repos.Offer.Transition(offer.ID, models.OfferStatusPending, models.OfferStatusAccepted, nil)
		if err != nil {
			return nil, err
		}
		if rows != 1 {
			return nil, ErrOfferNotFound
		}
		rows, err = repos.Thread.Close(thread.ID, models.ThreadStatusAccepted, map[string]interface{}{
			"current_price":     offer.ProposedPrice,
			"accepted_offer_id": offer.ID,
		})
		if err != nil {
			return nil, err
		}
		if rows != 1 {
			return nil, ErrConcurrentUpdate
		}
		if _, err := repos.Offer.CancelPending(thread.ID, offer.ID); err != nil {
			return nil, err
		}

		order := &models.JobOrder{
			ThreadID:     thread.ID,
			RFQID:        thread.RFQID,
			QuoteID:      thread.QuoteID,
			BuyerID:      thread.BuyerID,
			VendorID:     thread.VendorID,
			AgreedPrice:  offer.ProposedPrice,
			PaymentTerms: offer.PaymentTerms,
			DeliveryDate: offer.DeliveryDate,
			ScopeSummary: offer.ScopeChanges,
		}
		if err := repos.Thread.CreateJobOrder(order); err != nil {
			return nil, err
		}

		if result.Thread, err = repos.Thread.GetByID(thread.ID); err != nil {
			return nil, err
		}
		result.JobOrder = order
		return acceptedNotifications(thread, offer, req.UserID, order)
	})
	if err != nil {
		return nil, err
	}
	log.Infof("[Negotiation] Offer %s accepted on thread %s, job order %s", req.OfferID, req.NegotiationID, result.JobOrder.ID)
	return result, nil
}

func (s *Service) rejectOffer(ctx context.Context, req UpdateThreadRequest) (*UpdateResult, error) {
	result := &UpdateResult{Message: "Offer rejected"}
	err := s.transact(ctx, func(repos *repository.Repositories, tx *gorm.DB) ([]*models.OutboxEvent, error) {
		thread, err := participantThread(repos, req.NegotiationID, req.UserID)
		if err != nil {
			return nil, err
		}
		offer, err := respondableOffer(repos, thread, req.OfferID, req.UserID)
		if err != nil {
			return nil, err
		}

		extra := map[string]interface{}{}
		if req.Reason != "" {
			extra["declined_reason"] = req.Reason
		}
		rows, err := repos.Offer.Transition(offer.ID, models.OfferStatusPending, models.OfferStatusDeclined, extra)
		if err != nil {
			return nil, err
		}
		if rows != 1 {
			return nil, ErrOfferNotFound
		}
		result.Thread = thread
		ev, err := rejectedNotification(thread, offer, req.Reason)
		if err != nil {
			return nil, err
		}
		return []*models.OutboxEvent{ev}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) cancel(ctx context.Context, req UpdateThreadRequest) (*UpdateResult, error) {
	result := &UpdateResult{Message: "Negotiation cancelled"}
	err := s.transact(ctx, func(repos *repository.Repositories, tx *gorm.DB) ([]*models.OutboxEvent, error) {
		thread, err := participantThread(repos, req.NegotiationID, req.UserID)
		if err != nil {
			return nil, err
		}
		if !thread.IsActive() {
			return nil, withMessage(ErrThreadNotActive, "Negotiation is %s.", thread.Status)
		}
		rows, err := repos.Thread.Close(thread.ID, models.ThreadStatusDeclined, nil)
		if err != nil {
			return nil, err
		}
		if rows != 1 {
			return nil, ErrConcurrentUpdate
		}
		if _, err := repos.Offer.CancelPending(thread.ID, ""); err != nil {
			return nil, err
		}
		if result.Thread, err = repos.Thread.GetByID(thread.ID); err != nil {
			return nil, err
		}
		ev, err := cancelledNotification(thread, req.UserID, req.Reason)
		if err != nil {
			return nil, err
		}
		return []*models.OutboxEvent{ev}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Report flags a thread for admin review and warns the reported party.
func (s *Service) Report(ctx context.Context, req ReportRequest) error {
	if err := check(&req, "Missing required: negotiationId, reportedBy, reason", nil); err != nil {
		return err
	}
	return s.transact(ctx, func(repos *repository.Repositories, tx *gorm.DB) ([]*models.OutboxEvent, error) {
		thread, err := loadThread(repos.Thread, req.NegotiationID)
		if err != nil {
			return nil, err
		}
		if !thread.IsParticipant(req.ReportedBy) {
			return nil, withMessage(ErrNotParticipant, "Only participants can report a negotiation")
		}

		report := map[string]interface{}{
			"reported_by":   req.ReportedBy,
			"reported_user": thread.Counterparty(req.ReportedBy),
			"reason":        req.Reason,
			"details":       req.Details,
			"created_at":    s.now().Format(time.RFC3339),
		}
		metadata := map[string]interface{}{}
		for k, v := range thread.Metadata {
			metadata[k] = v
		}
		reports, _ := metadata["reports"].([]interface{})
		metadata["reports"] = append(reports, report)
		metadata["flagged"] = true
		if err := repos.Thread.UpdateMetadata(thread.ID, metadata, true); err != nil {
			return nil, err
		}

		adminIDs, err := repos.Profile.ListAdminIDs()
		if err != nil {
			return nil, err
		}
		log.Warnf("[Negotiation] Thread %s reported by %s: %s", thread.ID, req.ReportedBy, req.Reason)
		return reportNotifications(thread, report, adminIDs)
	})
}

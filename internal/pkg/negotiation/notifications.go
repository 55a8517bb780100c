package negotiation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/JobMwaura/zintra-sub007/app/models"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/money"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/outbox"
)

func price(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func threadNotification(thread *models.NegotiationThread, userID, typ, title, body string, metadata map[string]interface{}) (*models.OutboxEvent, error) {
	return outbox.Notification("negotiation", thread.ID, outbox.NotificationPayload{
		UserID:      userID,
		Type:        typ,
		Title:       title,
		Body:        body,
		Metadata:    metadata,
		RelatedID:   thread.ID,
		RelatedType: models.RelatedTypeNegotiation,
	})
}

func startedNotification(thread *models.NegotiationThread) (*models.OutboxEvent, error) {
	return threadNotification(thread, thread.VendorID, models.NotificationNegotiationStarted,
		"Negotiation Started on Your Quote",
		fmt.Sprintf("The buyer has started a negotiation on your quote of %s", money.KSh(thread.OriginalPrice)),
		map[string]interface{}{"thread_id": thread.ID, "quote_id": thread.QuoteID, "rfq_id": thread.RFQID})
}

func counterOfferNotification(thread *models.NegotiationThread, offer *models.CounterOffer) (*models.OutboxEvent, error) {
	return outbox.Notification("negotiation", thread.ID, outbox.NotificationPayload{
		UserID: thread.Counterparty(offer.ProposedBy),
		Type:   models.NotificationCounterOffer,
		Title:  "New Counter Offer Received",
		Body: fmt.Sprintf("A counter offer of %s has been submitted (Round %d/%d)",
			money.KSh(offer.ProposedPrice), offer.RoundNumber, thread.EffectiveMaxRounds()),
		Metadata: map[string]interface{}{
			"thread_id":        thread.ID,
			"counter_offer_id": offer.ID,
			"proposed_price":   price(offer.ProposedPrice),
			"round":            offer.RoundNumber,
			"rfq_id":           thread.RFQID,
		},
		RelatedID:   offer.ID,
		RelatedType: models.RelatedTypeCounterOffer,
	})
}

func questionNotification(thread *models.NegotiationThread, qa *models.NegotiationQA) (*models.OutboxEvent, error) {
	return outbox.Notification("negotiation", thread.ID, outbox.NotificationPayload{
		UserID:      thread.Counterparty(qa.AskedBy),
		Type:        models.NotificationQAQuestion,
		Title:       "New Question on Quote Negotiation",
		Body:        fmt.Sprintf("A new question has been asked: %q", excerpt(qa.Question)),
		Metadata:    map[string]interface{}{"thread_id": thread.ID, "qa_id": qa.ID, "rfq_id": thread.RFQID},
		RelatedID:   qa.ID,
		RelatedType: models.RelatedTypeQA,
	})
}

func answerNotification(thread *models.NegotiationThread, qa *models.NegotiationQA, answer string) (*models.OutboxEvent, error) {
	return outbox.Notification("negotiation", thread.ID, outbox.NotificationPayload{
		UserID:      qa.AskedBy,
		Type:        models.NotificationQAAnswer,
		Title:       "Your Question Has Been Answered",
		Body:        fmt.Sprintf("An answer has been provided: %q", excerpt(answer)),
		Metadata:    map[string]interface{}{"thread_id": thread.ID, "qa_id": qa.ID, "rfq_id": thread.RFQID},
		RelatedID:   qa.ID,
		RelatedType: models.RelatedTypeQA,
	})
}

// ExpiredNotifications tells both participants that the thread ran out of
// rounds.
func ExpiredNotifications(thread *models.NegotiationThread) ([]*models.OutboxEvent, error) {
	body := fmt.Sprintf("The negotiation has expired. All %d rounds were used and the last offer was not responded to in time.", thread.EffectiveMaxRounds())
	var events []*models.OutboxEvent
	for _, userID := range []string{thread.BuyerID, thread.VendorID} {
		ev, err := threadNotification(thread, userID, models.NotificationNegotiationExpired, "Negotiation Expired", body,
			map[string]interface{}{"thread_id": thread.ID, "rfq_id": thread.RFQID})
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// OfferExpiredNotification tells the proposer's counterparty they may make a
// new offer.
func OfferExpiredNotification(thread *models.NegotiationThread, offer *models.CounterOffer) (*models.OutboxEvent, error) {
	return outbox.Notification("negotiation", thread.ID, outbox.NotificationPayload{
		UserID: thread.Counterparty(offer.ProposedBy),
		Type:   models.NotificationOfferExpired,
		Title:  "Counter Offer Expired",
		Body: fmt.Sprintf("A counter offer of %s has expired because it was not responded to in time. The other party can submit a new offer.",
			money.KSh(offer.ProposedPrice)),
		Metadata:    map[string]interface{}{"thread_id": thread.ID, "counter_offer_id": offer.ID, "rfq_id": thread.RFQID},
		RelatedID:   offer.ID,
		RelatedType: models.RelatedTypeCounterOffer,
	})
}

func acceptedNotifications(thread *models.NegotiationThread, offer *models.CounterOffer, accepter string, order *models.JobOrder) ([]*models.OutboxEvent, error) {
	accepted, err := threadNotification(thread, thread.Counterparty(accepter), models.NotificationOfferAccepted,
		"Your Offer Has Been Accepted!",
		fmt.Sprintf("The offer of %s has been accepted. You can now proceed with the job.", money.KSh(offer.ProposedPrice)),
		map[string]interface{}{
			"thread_id":      thread.ID,
			"offer_id":       offer.ID,
			"accepted_price": price(offer.ProposedPrice),
			"rfq_id":         thread.RFQID,
		})
	if err != nil {
		return nil, err
	}
	events := []*models.OutboxEvent{accepted}

	body := fmt.Sprintf("A job order for %s has been generated. Please review and confirm.", money.KSh(offer.ProposedPrice))
	for _, userID := range []string{thread.BuyerID, thread.VendorID} {
		ev, err := outbox.Notification("job_order", order.ID, outbox.NotificationPayload{
			UserID:      userID,
			Type:        models.NotificationJobOrderCreated,
			Title:       "Job Order Created",
			Body:        body,
			Metadata:    map[string]interface{}{"job_order_id": order.ID, "thread_id": thread.ID, "rfq_id": thread.RFQID},
			RelatedID:   order.ID,
			RelatedType: models.RelatedTypeJobOrder,
		})
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func rejectedNotification(thread *models.NegotiationThread, offer *models.CounterOffer, reason string) (*models.OutboxEvent, error) {
	body := fmt.Sprintf("Your offer of %s was declined.", money.KSh(offer.ProposedPrice))
	if reason != "" {
		body += " Reason: " + reason
	} else {
		body += " They may submit a new counter offer."
	}
	return threadNotification(thread, offer.ProposedBy, models.NotificationOfferRejected, "Counter Offer Declined", body,
		map[string]interface{}{"thread_id": thread.ID, "offer_id": offer.ID, "reason": reason})
}

func cancelledNotification(thread *models.NegotiationThread, by, reason string) (*models.OutboxEvent, error) {
	body := fmt.Sprintf("The negotiation has been cancelled by the %s.", role(thread, by))
	if reason != "" {
		body += " Reason: " + reason
	}
	return threadNotification(thread, thread.Counterparty(by), models.NotificationNegotiationCancelled, "Negotiation Cancelled", body,
		map[string]interface{}{"thread_id": thread.ID, "cancelled_by": by, "reason": reason})
}

func reportNotifications(thread *models.NegotiationThread, report map[string]interface{}, adminIDs []string) ([]*models.OutboxEvent, error) {
	reporter, _ := report["reported_by"].(string)
	reason, _ := report["reason"].(string)
	details, _ := report["details"].(string)

	body := fmt.Sprintf("A %s reported a negotiation. Reason: %s", role(thread, reporter), reason)
	if details != "" {
		body += ". Details: " + details
	}

	var events []*models.OutboxEvent
	for _, adminID := range adminIDs {
		ev, err := threadNotification(thread, adminID, models.NotificationAdminNegotiationReport, "Negotiation Reported", body,
			map[string]interface{}{
				"negotiation_id": thread.ID,
				"rfq_id":         thread.RFQID,
				"reported_by":    reporter,
				"reported_user":  report["reported_user"],
				"reason":         reason,
				"details":        details,
			})
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	warning, err := threadNotification(thread, thread.Counterparty(reporter), models.NotificationNegotiationWarning,
		"Negotiation Activity Flagged",
		"Activity in one of your negotiations has been flagged for review. Please ensure you follow platform guidelines.",
		map[string]interface{}{"negotiation_id": thread.ID})
	if err != nil {
		return nil, err
	}
	return append(events, warning), nil
}

func role(thread *models.NegotiationThread, userID string) string {
	if thread.IsBuyer(userID) {
		return "buyer"
	}
	return "vendor"
}

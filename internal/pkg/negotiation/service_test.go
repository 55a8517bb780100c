package negotiation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/app/models"
	"github.com/JobMwaura/zintra-sub007/app/repository"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/database"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/outbox"
)

const (
	buyer    = "buyer-1"
	vendor   = "vendor-1"
	outsider = "outsider-1"
	quoteID  = "quote-1"
)

type harness struct {
	svc *Service
	db  *gorm.DB

	mu    sync.Mutex
	notes []outbox.NotificationPayload
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)

	h := &harness{db: db}
	relay := outbox.NewRelay(db)
	relay.Register(outbox.TopicQuoteRevisionCreate, RevisionHandler())
	relay.Register(outbox.TopicNotificationCreate, func(ctx context.Context, db *gorm.DB, ev *models.OutboxEvent) error {
		var p outbox.NotificationPayload
		if err := outbox.Decode(ev, &p); err != nil {
			return err
		}
		h.mu.Lock()
		h.notes = append(h.notes, p)
		h.mu.Unlock()
		return nil
	})
	h.svc = NewService(db, relay)
	return h
}

func (h *harness) notesOfType(typ string) []outbox.NotificationPayload {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []outbox.NotificationPayload
	for _, n := range h.notes {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func dec(v int64) *Price {
	return NewPrice(decimal.NewFromInt(v))
}

func (h *harness) openThread(t *testing.T) *models.NegotiationThread {
	t.Helper()
	res, err := h.svc.CreateThread(context.Background(), CreateThreadRequest{
		RFQQuoteID:    quoteID,
		RFQID:         "rfq-1",
		UserID:        buyer,
		VendorID:      vendor,
		OriginalPrice: dec(10000),
	})
	require.NoError(t, err)
	require.False(t, res.Existing)
	return res.Thread
}

func (h *harness) counter(t *testing.T, threadID, by string, amount int64) *CounterOfferResult {
	t.Helper()
	res, err := h.svc.SubmitCounterOffer(context.Background(), CounterOfferRequest{
		NegotiationID: threadID,
		QuoteID:       quoteID,
		ProposedBy:    by,
		ProposedPrice: dec(amount),
	})
	require.NoError(t, err)
	return res
}

func (h *harness) reload(t *testing.T, id string) *models.NegotiationThread {
	t.Helper()
	thread, err := repository.NewThreadRepository(h.db).GetByID(id)
	require.NoError(t, err)
	return thread
}

func TestCreateThread(t *testing.T) {
	h := newHarness(t)
	thread := h.openThread(t)

	assert.Equal(t, models.ThreadStatusActive, thread.Status)
	assert.Equal(t, 0, thread.RoundCount)
	assert.Equal(t, models.DefaultMaxRounds, thread.MaxRounds)
	assert.True(t, thread.CurrentPrice.Equal(decimal.NewFromInt(10000)))

	started := h.notesOfType(models.NotificationNegotiationStarted)
	require.Len(t, started, 1)
	assert.Equal(t, vendor, started[0].UserID)
	assert.Contains(t, started[0].Body, "KSh 10,000")

	// A second create on the same quote returns the existing thread.
	again, err := h.svc.CreateThread(context.Background(), CreateThreadRequest{
		RFQQuoteID: quoteID, UserID: buyer, VendorID: vendor, OriginalPrice: dec(500),
	})
	require.NoError(t, err)
	assert.True(t, again.Existing)
	assert.Equal(t, thread.ID, again.Thread.ID)
}

func TestCreateThread_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.CreateThread(ctx, CreateThreadRequest{UserID: buyer, VendorID: vendor, OriginalPrice: dec(1)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "Missing required fields")

	_, err = h.svc.CreateThread(ctx, CreateThreadRequest{RFQQuoteID: quoteID, UserID: buyer, VendorID: vendor, OriginalPrice: dec(-5)})
	require.ErrorAs(t, err, &verr)

	_, err = h.svc.CreateThread(ctx, CreateThreadRequest{RFQQuoteID: quoteID, UserID: buyer, VendorID: buyer, OriginalPrice: dec(5)})
	require.ErrorAs(t, err, &verr)
}

func TestSubmitCounterOffer_AdvancesRound(t *testing.T) {
	h := newHarness(t)
	thread := h.openThread(t)

	first := h.counter(t, thread.ID, vendor, 9500)
	assert.Equal(t, 1, first.CounterOffer.RoundNumber)
	assert.Equal(t, 1, first.RoundCount)
	assert.Equal(t, 3, first.MaxRounds)
	assert.Equal(t, models.OfferStatusPending, first.CounterOffer.Status)
	require.NotNil(t, first.CounterOffer.ResponseByDate)

	second := h.counter(t, thread.ID, buyer, 9000)
	assert.Equal(t, 2, second.CounterOffer.RoundNumber)

	stored := h.reload(t, thread.ID)
	assert.Equal(t, 2, stored.RoundCount)
	assert.True(t, stored.CurrentPrice.Equal(decimal.NewFromInt(9000)))

	offers := h.notesOfType(models.NotificationCounterOffer)
	require.Len(t, offers, 2)
	assert.Equal(t, buyer, offers[0].UserID)
	assert.Equal(t, vendor, offers[1].UserID)
	assert.Contains(t, offers[1].Body, "(Round 2/3)")

	revisions, err := repository.NewRevisionRepository(h.db).ListByThread(thread.ID)
	require.NoError(t, err)
	require.Len(t, revisions, 2)
	assert.True(t, revisions[0].Price.Equal(decimal.NewFromInt(9000)))
}

func TestSubmitCounterOffer_MaxRoundsLeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	thread := h.openThread(t)
	h.counter(t, thread.ID, vendor, 9500)
	h.counter(t, thread.ID, buyer, 9000)
	h.counter(t, thread.ID, vendor, 9200)

	_, err := h.svc.SubmitCounterOffer(context.Background(), CounterOfferRequest{
		NegotiationID: thread.ID, QuoteID: quoteID, ProposedBy: buyer, ProposedPrice: dec(9100),
	})
	require.ErrorIs(t, err, ErrMaxRounds)
	assert.Contains(t, err.Error(), "Maximum negotiation rounds (3) reached")

	var count int64
	require.NoError(t, h.db.Model(&models.CounterOffer{}).Where("thread_id = ?", thread.ID).Count(&count).Error)
	assert.EqualValues(t, 3, count)
	assert.Equal(t, 3, h.reload(t, thread.ID).RoundCount)
}

func TestSubmitCounterOffer_Rejections(t *testing.T) {
	h := newHarness(t)
	thread := h.openThread(t)
	ctx := context.Background()

	_, err := h.svc.SubmitCounterOffer(ctx, CounterOfferRequest{
		NegotiationID: "missing", QuoteID: quoteID, ProposedBy: buyer, ProposedPrice: dec(1),
	})
	assert.ErrorIs(t, err, ErrThreadNotFound)

	_, err = h.svc.SubmitCounterOffer(ctx, CounterOfferRequest{
		NegotiationID: thread.ID, QuoteID: "other-quote", ProposedBy: buyer, ProposedPrice: dec(1),
	})
	assert.ErrorIs(t, err, ErrQuoteMismatch)

	_, err = h.svc.SubmitCounterOffer(ctx, CounterOfferRequest{
		NegotiationID: thread.ID, QuoteID: quoteID, ProposedBy: outsider, ProposedPrice: dec(1),
	})
	assert.ErrorIs(t, err, ErrNotParticipant)

	days := 31
	_, err = h.svc.SubmitCounterOffer(ctx, CounterOfferRequest{
		NegotiationID: thread.ID, QuoteID: quoteID, ProposedBy: buyer, ProposedPrice: dec(1), ResponseByDays: &days,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Invalid responseByDays: must be between 1 and 30", verr.Message)

	bad := "next tuesday"
	_, err = h.svc.SubmitCounterOffer(ctx, CounterOfferRequest{
		NegotiationID: thread.ID, QuoteID: quoteID, ProposedBy: buyer, ProposedPrice: dec(1), DeliveryDate: &bad,
	})
	require.ErrorAs(t, err, &verr)

	assert.Equal(t, 0, h.reload(t, thread.ID).RoundCount)
}

func TestSubmitCounterOffer_ConcurrentSubmissionsNeverShareARound(t *testing.T) {
	h := newHarness(t)
	thread := h.openThread(t)

	const workers = 6
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			by := buyer
			if i%2 == 0 {
				by = vendor
			}
			_, err := h.svc.SubmitCounterOffer(context.Background(), CounterOfferRequest{
				NegotiationID: thread.ID, QuoteID: quoteID, ProposedBy: by, ProposedPrice: dec(int64(9000 + i)),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, ErrMaxRounds) || errors.Is(err, ErrConcurrentUpdate), err.Error())
	}
	assert.Equal(t, 3, succeeded)

	offers, err := repository.NewOfferRepository(h.db).ListByThread(thread.ID)
	require.NoError(t, err)
	rounds := map[int]bool{}
	for _, o := range offers {
		assert.False(t, rounds[o.RoundNumber], "duplicate round %d", o.RoundNumber)
		rounds[o.RoundNumber] = true
	}
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, rounds)
	assert.Equal(t, 3, h.reload(t, thread.ID).RoundCount)
}

func TestAdvanceRound_CompareAndSwap(t *testing.T) {
	h := newHarness(t)
	thread := h.openThread(t)
	repo := repository.NewThreadRepository(h.db)

	rows, err := repo.AdvanceRound(thread.ID, 0, decimal.NewFromInt(9000))
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	// A second writer holding the stale round loses.
	rows, err = repo.AdvanceRound(thread.ID, 0, decimal.NewFromInt(8000))
	require.NoError(t, err)
	assert.EqualValues(t, 0, rows)
	assert.True(t, h.reload(t, thread.ID).CurrentPrice.Equal(decimal.NewFromInt(9000)))

	assert.ErrorIs(t, h.svc.explainLostRace(context.Background(), thread.ID), ErrConcurrentUpdate)
}

func TestSubmitCounterOffer_DuplicateRoundIsRejectedByIndex(t *testing.T) {
	h := newHarness(t)
	thread := h.openThread(t)
	offers := repository.NewOfferRepository(h.db)

	require.NoError(t, offers.Create(&models.CounterOffer{
		ThreadID: thread.ID, QuoteID: quoteID, ProposedBy: buyer, ProposedPrice: decimal.NewFromInt(1), RoundNumber: 1,
	}))
	err := offers.Create(&models.CounterOffer{
		ThreadID: thread.ID, QuoteID: quoteID, ProposedBy: vendor, ProposedPrice: decimal.NewFromInt(2), RoundNumber: 1,
	})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestQuestionAndAnswer(t *testing.T) {
	h := newHarness(t)
	thread := h.openThread(t)
	ctx := context.Background()

	qa, err := h.svc.AskQuestion(ctx, AskQuestionRequest{
		NegotiationID: thread.ID, QuoteID: quoteID, AskedBy: buyer, Question: "  Does this include delivery?  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Does this include delivery?", qa.Question)
	asked := h.notesOfType(models.NotificationQAQuestion)
	require.Len(t, asked, 1)
	assert.Equal(t, vendor, asked[0].UserID)

	_, err = h.svc.AnswerQuestion(ctx, AnswerQuestionRequest{QAID: qa.ID, Answer: "No", AnsweredBy: buyer})
	assert.ErrorIs(t, err, ErrSelfAnswer)
	_, err = h.svc.AnswerQuestion(ctx, AnswerQuestionRequest{QAID: qa.ID, Answer: "No", AnsweredBy: outsider})
	assert.ErrorIs(t, err, ErrNotParticipant)

	answered, err := h.svc.AnswerQuestion(ctx, AnswerQuestionRequest{QAID: qa.ID, Answer: "Yes, within Nairobi", AnsweredBy: vendor})
	require.NoError(t, err)
	require.NotNil(t, answered.Answer)
	assert.Equal(t, "Yes, within Nairobi", *answered.Answer)
	assert.Equal(t, vendor, *answered.AnsweredBy)

	_, err = h.svc.AnswerQuestion(ctx, AnswerQuestionRequest{QAID: qa.ID, Answer: "Changed my mind", AnsweredBy: vendor})
	assert.ErrorIs(t, err, ErrAlreadyAnswered)

	replies := h.notesOfType(models.NotificationQAAnswer)
	require.Len(t, replies, 1)
	assert.Equal(t, buyer, replies[0].UserID)

	stored, err := repository.NewQARepository(h.db).GetByID(qa.ID)
	require.NoError(t, err)
	assert.Equal(t, "Yes, within Nairobi", *stored.Answer)
}

func TestQuestionAndAnswer_Validation(t *testing.T) {
	h := newHarness(t)
	thread := h.openThread(t)
	ctx := context.Background()

	_, err := h.svc.AskQuestion(ctx, AskQuestionRequest{NegotiationID: thread.ID, QuoteID: quoteID, AskedBy: buyer, Question: "   "})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Question cannot be empty", verr.Message)

	_, err = h.svc.AskQuestion(ctx, AskQuestionRequest{NegotiationID: thread.ID, QuoteID: "other", AskedBy: buyer, Question: "?"})
	assert.ErrorIs(t, err, ErrThreadNotFound)

	_, err = h.svc.AnswerQuestion(ctx, AnswerQuestionRequest{QAID: "missing", Answer: "x", AnsweredBy: vendor})
	assert.ErrorIs(t, err, ErrQANotFound)

	_, err = h.svc.AnswerQuestion(ctx, AnswerQuestionRequest{QAID: "missing", Answer: " ", AnsweredBy: vendor})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Answer cannot be empty", verr.Message)
}

func TestUpdateThread_AcceptOffer(t *testing.T) {
	h := newHarness(t)
	thread := h.openThread(t)
	ctx := context.Background()
	first := h.counter(t, thread.ID, vendor, 9500)
	second := h.counter(t, thread.ID, buyer, 9200)

	_, err := h.svc.UpdateThread(ctx, UpdateThreadRequest{
		NegotiationID: thread.ID, Action: ActionAcceptOffer, OfferID: second.CounterOffer.ID, UserID: buyer,
	})
	assert.ErrorIs(t, err, ErrOwnOffer)

	res, err := h.svc.UpdateThread(ctx, UpdateThreadRequest{
		NegotiationID: thread.ID, Action: ActionAcceptOffer, OfferID: second.CounterOffer.ID, UserID: vendor,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ThreadStatusAccepted, res.Thread.Status)
	assert.True(t, res.Thread.CurrentPrice.Equal(decimal.NewFromInt(9200)))
	require.NotNil(t, res.Thread.AcceptedOfferID)
	assert.Equal(t, second.CounterOffer.ID, *res.Thread.AcceptedOfferID)
	require.NotNil(t, res.JobOrder)
	assert.True(t, res.JobOrder.AgreedPrice.Equal(decimal.NewFromInt(9200)))

	offers := repository.NewOfferRepository(h.db)
	old, err := offers.GetByID(first.CounterOffer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusCancelled, old.Status)

	accepted := h.notesOfType(models.NotificationOfferAccepted)
	require.Len(t, accepted, 1)
	assert.Equal(t, buyer, accepted[0].UserID)
	assert.Len(t, h.notesOfType(models.NotificationJobOrderCreated), 2)

	detail, err := h.svc.GetThread(ctx, thread.ID, buyer)
	require.NoError(t, err)
	require.NotNil(t, detail.JobOrder)
	assert.EqualValues(t, 1, detail.Stats.AcceptedOffers)

	// The thread is closed; no further rounds.
	_, err = h.svc.SubmitCounterOffer(ctx, CounterOfferRequest{
		NegotiationID: thread.ID, QuoteID: quoteID, ProposedBy: vendor, ProposedPrice: dec(1),
	})
	require.ErrorIs(t, err, ErrThreadNotActive)
	assert.Equal(t, "Negotiation is accepted. Cannot submit new offers.", err.Error())
}

func TestUpdateThread_RejectOffer(t *testing.T) {
	h := newHarness(t)
	thread := h.openThread(t)
	offer := h.counter(t, thread.ID, vendor, 9500)

	res, err := h.svc.UpdateThread(context.Background(), UpdateThreadRequest{
		NegotiationID: thread.ID, Action: ActionRejectOffer, OfferID: offer.CounterOffer.ID, UserID: buyer, Reason: "Too high",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ThreadStatusActive, res.Thread.Status)

	stored, err := repository.NewOfferRepository(h.db).GetByID(offer.CounterOffer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusDeclined, stored.Status)
	require.NotNil(t, stored.DeclinedReason)
	assert.Equal(t, "Too high", *stored.DeclinedReason)

	rejected := h.notesOfType(models.NotificationOfferRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, vendor, rejected[0].UserID)
	assert.Contains(t, rejected[0].Body, "Reason: Too high")

	// Already resolved.
	_, err = h.svc.UpdateThread(context.Background(), UpdateThreadRequest{
		NegotiationID: thread.ID, Action: ActionRejectOffer, OfferID: offer.CounterOffer.ID, UserID: buyer,
	})
	assert.ErrorIs(t, err, ErrOfferNotFound)
}

func TestUpdateThread_Cancel(t *testing.T) {
	h := newHarness(t)
	thread := h.openThread(t)
	offer := h.counter(t, thread.ID, vendor, 9500)

	res, err := h.svc.UpdateThread(context.Background(), UpdateThreadRequest{
		NegotiationID: thread.ID, Action: ActionCancel, UserID: buyer,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ThreadStatusDeclined, res.Thread.Status)
	assert.NotNil(t, res.Thread.ClosedAt)

	stored, err := repository.NewOfferRepository(h.db).GetByID(offer.CounterOffer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusCancelled, stored.Status)

	cancelled := h.notesOfType(models.NotificationNegotiationCancelled)
	require.Len(t, cancelled, 1)
	assert.Equal(t, vendor, cancelled[0].UserID)
	assert.Contains(t, cancelled[0].Body, "cancelled by the buyer")

	_, err = h.svc.UpdateThread(context.Background(), UpdateThreadRequest{
		NegotiationID: thread.ID, Action: ActionCancel, UserID: vendor,
	})
	assert.ErrorIs(t, err, ErrThreadNotActive)
}

func TestUpdateThread_Validation(t *testing.T) {
	h := newHarness(t)
	thread := h.openThread(t)
	ctx := context.Background()

	_, err := h.svc.UpdateThread(ctx, UpdateThreadRequest{NegotiationID: thread.ID, Action: "haggle", UserID: buyer})
	require.ErrorIs(t, err, ErrUnknownAction)
	assert.Equal(t, "Unknown action: haggle. Use: accept_offer, reject_offer, cancel", err.Error())

	_, err = h.svc.UpdateThread(ctx, UpdateThreadRequest{NegotiationID: thread.ID, Action: ActionAcceptOffer, UserID: buyer})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "offerId is required to accept an offer", verr.Message)

	_, err = h.svc.UpdateThread(ctx, UpdateThreadRequest{NegotiationID: thread.ID, Action: ActionCancel, UserID: outsider})
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestReport(t *testing.T) {
	h := newHarness(t)
	thread := h.openThread(t)
	require.NoError(t, h.db.Create(&models.AdminUser{ID: "admin-1"}).Error)
	ctx := context.Background()

	err := h.svc.Report(ctx, ReportRequest{NegotiationID: thread.ID, ReportedBy: outsider, Reason: "spam"})
	require.ErrorIs(t, err, ErrNotParticipant)
	assert.Equal(t, "Only participants can report a negotiation", err.Error())

	require.NoError(t, h.svc.Report(ctx, ReportRequest{
		NegotiationID: thread.ID, ReportedBy: buyer, Reason: "abusive", Details: "rude messages",
	}))
	require.NoError(t, h.svc.Report(ctx, ReportRequest{NegotiationID: thread.ID, ReportedBy: buyer, Reason: "again"}))

	stored := h.reload(t, thread.ID)
	assert.True(t, stored.Flagged)
	reports, ok := stored.Metadata["reports"].([]interface{})
	require.True(t, ok)
	assert.Len(t, reports, 2)

	admin := h.notesOfType(models.NotificationAdminNegotiationReport)
	require.Len(t, admin, 2)
	assert.Equal(t, "admin-1", admin[0].UserID)
	warnings := h.notesOfType(models.NotificationNegotiationWarning)
	require.Len(t, warnings, 2)
	assert.Equal(t, vendor, warnings[0].UserID)
}

func TestGetThread_ViewerMustParticipate(t *testing.T) {
	h := newHarness(t)
	thread := h.openThread(t)
	h.counter(t, thread.ID, vendor, 9500)

	_, err := h.svc.GetThread(context.Background(), thread.ID, outsider)
	assert.ErrorIs(t, err, ErrNotParticipant)

	detail, err := h.svc.GetThread(context.Background(), thread.ID, "")
	require.NoError(t, err)
	assert.Len(t, detail.CounterOffers, 1)
	assert.EqualValues(t, 1, detail.Stats.PendingOffers)
	assert.EqualValues(t, 1, detail.Stats.TotalRevisions)
	assert.Nil(t, detail.JobOrder)
}

func TestSubmitCounterOffer_DeliveryDateAndDeadline(t *testing.T) {
	h := newHarness(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.svc.now = func() time.Time { return fixed }
	thread := h.openThread(t)

	date := "2026-04-15"
	days := 5
	res, err := h.svc.SubmitCounterOffer(context.Background(), CounterOfferRequest{
		NegotiationID: thread.ID, QuoteID: quoteID, ProposedBy: vendor, ProposedPrice: dec(9000),
		DeliveryDate: &date, ResponseByDays: &days,
	})
	require.NoError(t, err)
	require.NotNil(t, res.CounterOffer.DeliveryDate)
	assert.Equal(t, "2026-04-15", res.CounterOffer.DeliveryDate.Format("2006-01-02"))
	assert.Equal(t, fixed.AddDate(0, 0, 5), *res.CounterOffer.ResponseByDate)
}

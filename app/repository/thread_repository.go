package repository

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/app/models"
)

type threadRepository struct {
	db *gorm.DB
}

func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{db: db}
}

func (r *threadRepository) Create(thread *models.NegotiationThread) error {
	return r.db.Create(thread).Error
}

func (r *threadRepository) GetByID(id string) (*models.NegotiationThread, error) {
	var thread models.NegotiationThread
	if err := r.db.Where("id = ?", id).First(&thread).Error; err != nil {
		return nil, err
	}
	return &thread, nil
}

func (r *threadRepository) GetByIDAndQuote(id, quoteID string) (*models.NegotiationThread, error) {
	var thread models.NegotiationThread
	if err := r.db.Where("id = ? AND quote_id = ?", id, quoteID).First(&thread).Error; err != nil {
		return nil, err
	}
	return &thread, nil
}

func (r *threadRepository) GetByQuoteID(quoteID string) (*models.NegotiationThread, error) {
	var thread models.NegotiationThread
	if err := r.db.Where("quote_id = ?", quoteID).First(&thread).Error; err != nil {
		return nil, err
	}
	return &thread, nil
}

func (r *threadRepository) AdvanceRound(id string, expectedRound int, newPrice decimal.Decimal) (int64, error) {
	tx := r.db.Model(&models.NegotiationThread{}).
		Where("id = ? AND status = ? AND round_count = ?", id, models.ThreadStatusActive, expectedRound).
		Updates(map[string]interface{}{
			"round_count":   gorm.Expr("round_count + 1"),
			"current_price": newPrice,
			"updated_at":    time.Now().UTC(),
		})
	return tx.RowsAffected, tx.Error
}

func (r *threadRepository) Close(id, status string, updates map[string]interface{}) (int64, error) {
	now := time.Now().UTC()
	values := map[string]interface{}{
		"status":     status,
		"closed_at":  now,
		"updated_at": now,
	}
	for k, v := range updates {
		values[k] = v
	}
	tx := r.db.Model(&models.NegotiationThread{}).
		Where("id = ? AND status = ?", id, models.ThreadStatusActive).
		Updates(values)
	return tx.RowsAffected, tx.Error
}

func (r *threadRepository) UpdateMetadata(id string, metadata map[string]interface{}, flagged bool) error {
	return r.db.Model(&models.NegotiationThread{ID: id}).Updates(map[string]interface{}{
		"metadata":   datatypes.JSONMap(metadata),
		"flagged":    flagged,
		"updated_at": time.Now().UTC(),
	}).Error
}

func (r *threadRepository) Stats(id string) (*ThreadStats, error) {
	var s ThreadStats
	offers := r.db.Model(&models.CounterOffer{}).Where("thread_id = ?", id)
	if err := offers.Session(&gorm.Session{}).Count(&s.TotalCounterOffers).Error; err != nil {
		return nil, err
	}
	if err := offers.Session(&gorm.Session{}).Where("status = ?", models.OfferStatusAccepted).Count(&s.AcceptedOffers).Error; err != nil {
		return nil, err
	}
	if err := offers.Session(&gorm.Session{}).Where("status = ?", models.OfferStatusPending).Count(&s.PendingOffers).Error; err != nil {
		return nil, err
	}

	qa := r.db.Model(&models.NegotiationQA{}).Where("thread_id = ?", id)
	if err := qa.Session(&gorm.Session{}).Count(&s.TotalQuestions).Error; err != nil {
		return nil, err
	}
	if err := qa.Session(&gorm.Session{}).Where("answered_at IS NOT NULL").Count(&s.AnsweredQuestions).Error; err != nil {
		return nil, err
	}
	s.UnansweredQuestions = s.TotalQuestions - s.AnsweredQuestions

	if err := r.db.Model(&models.QuoteRevision{}).Where("thread_id = ?", id).Count(&s.TotalRevisions).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *threadRepository) CreateJobOrder(order *models.JobOrder) error {
	return r.db.Create(order).Error
}

func (r *threadRepository) GetJobOrderByThread(threadID string) (*models.JobOrder, error) {
	var order models.JobOrder
	if err := r.db.Where("thread_id = ?", threadID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

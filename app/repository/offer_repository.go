package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/app/models"
)

type offerRepository struct {
	db *gorm.DB
}

func NewOfferRepository(db *gorm.DB) OfferRepository {
	return &offerRepository{db: db}
}

func (r *offerRepository) Create(offer *models.CounterOffer) error {
	return r.db.Create(offer).Error
}

func (r *offerRepository) GetByID(id string) (*models.CounterOffer, error) {
	var offer models.CounterOffer
	if err := r.db.Where("id = ?", id).First(&offer).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

// ListByThread returns offers newest first.
func (r *offerRepository) ListByThread(threadID string) ([]models.CounterOffer, error) {
	var offers []models.CounterOffer
	err := r.db.Where("thread_id = ?", threadID).
		Order("round_number DESC").Find(&offers).Error
	return offers, err
}

func (r *offerRepository) Transition(id, from, to string, extra map[string]interface{}) (int64, error) {
	values := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range extra {
		values[k] = v
	}
	tx := r.db.Model(&models.CounterOffer{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	return tx.RowsAffected, tx.Error
}

func (r *offerRepository) CancelPending(threadID, exceptID string) (int64, error) {
	q := r.db.Model(&models.CounterOffer{}).
		Where("thread_id = ? AND status = ?", threadID, models.OfferStatusPending)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	tx := q.Updates(map[string]interface{}{
		"status":     models.OfferStatusCancelled,
		"updated_at": time.Now().UTC(),
	})
	return tx.RowsAffected, tx.Error
}

// ListOverdue returns pending offers whose response deadline passed before now.
func (r *offerRepository) ListOverdue(now time.Time, limit int) ([]models.CounterOffer, error) {
	var offers []models.CounterOffer
	q := r.db.Where("status = ? AND response_by_date IS NOT NULL AND response_by_date < ?", models.OfferStatusPending, now).
		Order("response_by_date ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&offers).Error
	return offers, err
}

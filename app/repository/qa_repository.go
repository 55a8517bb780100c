package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/app/models"
)

type qaRepository struct {
	db *gorm.DB
}

func NewQARepository(db *gorm.DB) QARepository {
	return &qaRepository{db: db}
}

func (r *qaRepository) Create(qa *models.NegotiationQA) error {
	return r.db.Create(qa).Error
}

func (r *qaRepository) GetByID(id string) (*models.NegotiationQA, error) {
	var qa models.NegotiationQA
	if err := r.db.Where("id = ?", id).First(&qa).Error; err != nil {
		return nil, err
	}
	return &qa, nil
}

// ListByThread returns questions oldest first.
func (r *qaRepository) ListByThread(threadID string) ([]models.NegotiationQA, error) {
	var items []models.NegotiationQA
	err := r.db.Where("thread_id = ?", threadID).Order("created_at ASC").Find(&items).Error
	return items, err
}

func (r *qaRepository) Answer(id, answer, answeredBy string, at time.Time) (int64, error) {
	tx := r.db.Model(&models.NegotiationQA{}).
		Where("id = ? AND answered_at IS NULL", id).
		Updates(map[string]interface{}{
			"answer":      answer,
			"answered_by": answeredBy,
			"answered_at": at,
			"updated_at":  at,
		})
	return tx.RowsAffected, tx.Error
}

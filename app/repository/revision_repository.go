package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JobMwaura/zintra-sub007/app/models"
)

type revisionRepository struct {
	db *gorm.DB
}

func NewRevisionRepository(db *gorm.DB) RevisionRepository {
	return &revisionRepository{db: db}
}

// CreateIfNotExists inserts the revision unless one with the same source
// event already exists.
func (r *revisionRepository) CreateIfNotExists(rev *models.QuoteRevision) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_event_id"}},
		DoNothing: true,
	}).Create(rev)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// ListByThread returns revisions newest first.
func (r *revisionRepository) ListByThread(threadID string) ([]models.QuoteRevision, error) {
	var revs []models.QuoteRevision
	err := r.db.Where("thread_id = ?", threadID).Order("created_at DESC").Find(&revs).Error
	return revs, err
}

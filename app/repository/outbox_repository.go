package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/app/models"
)

type outboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Insert(events ...*models.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.Create(events).Error
}

func (r *outboxRepository) GetByID(id string) (*models.OutboxEvent, error) {
	var ev models.OutboxEvent
	if err := r.db.Where("id = ?", id).First(&ev).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r *outboxRepository) DueIDs(now time.Time, limit int) ([]string, error) {
	var ids []string
	err := r.db.Model(&models.OutboxEvent{}).
		Where("(status = ? AND next_attempt_at <= ?) OR (status = ? AND locked_until < ?)",
			models.OutboxStatusPending, now, models.OutboxStatusProcessing, now).
		Order("id ASC").Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *outboxRepository) Claim(id string, now, lockedUntil time.Time) (int64, error) {
	tx := r.db.Model(&models.OutboxEvent{}).
		Where("id = ? AND ((status = ? AND next_attempt_at <= ?) OR (status = ? AND locked_until < ?))",
			id, models.OutboxStatusPending, now, models.OutboxStatusProcessing, now).
		Updates(map[string]interface{}{
			"status":       models.OutboxStatusProcessing,
			"locked_until": lockedUntil,
		})
	return tx.RowsAffected, tx.Error
}

func (r *outboxRepository) MarkDispatched(id string, at time.Time) error {
	return r.db.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        models.OutboxStatusDispatched,
		"dispatched_at": at,
		"locked_until":  nil,
		"last_error":    "",
	}).Error
}

func (r *outboxRepository) MarkRetry(id string, attempts int, next time.Time, lastErr string) error {
	return r.db.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":          models.OutboxStatusPending,
		"attempts":        attempts,
		"next_attempt_at": next,
		"locked_until":    nil,
		"last_error":      lastErr,
	}).Error
}

func (r *outboxRepository) MarkFailed(id string, attempts int, lastErr string) error {
	return r.db.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       models.OutboxStatusFailed,
		"attempts":     attempts,
		"locked_until": nil,
		"last_error":   lastErr,
	}).Error
}

func (r *outboxRepository) CountByStatus() (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := r.db.Model(&models.OutboxEvent{}).
		Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

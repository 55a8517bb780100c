package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JobMwaura/zintra-sub007/app/models"
)

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// CreateIfNotExists inserts n unless its dedupe key is already taken.
func (r *notificationRepository) CreateIfNotExists(n *models.Notification) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedupe_key"}},
		DoNothing: true,
	}).Create(n)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *notificationRepository) GetByDedupeKey(key string) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.Where("dedupe_key = ?", key).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) GetByID(id string) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.Where("id = ?", id).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// List returns one page of the user's notifications, newest first, plus the
// total matching the filter.
func (r *notificationRepository) List(filter NotificationFilter) ([]models.Notification, int64, error) {
	q := r.db.Model(&models.Notification{}).Where("user_id = ?", filter.UserID)
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.UnreadOnly {
		q = q.Where("read_at IS NULL")
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.Notification
	err := q.Order("created_at DESC").Order("id DESC").
		Offset(filter.Offset).Limit(filter.Limit).Find(&items).Error
	return items, total, err
}

func (r *notificationRepository) CountUnread(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).Count(&count).Error
	return count, err
}

func (r *notificationRepository) MarkRead(id, userID string, at time.Time) (int64, error) {
	tx := r.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", id, userID).
		Update("read_at", at)
	return tx.RowsAffected, tx.Error
}

func (r *notificationRepository) MarkAllRead(userID string, at time.Time) (int64, error) {
	tx := r.db.Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", at)
	return tx.RowsAffected, tx.Error
}

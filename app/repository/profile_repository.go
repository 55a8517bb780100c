package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JobMwaura/zintra-sub007/app/models"
)

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByUserID(userID string) (*models.UserProfile, error) {
	var p models.UserProfile
	if err := r.db.Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert writes every column so opt-outs are not replaced by column defaults.
func (r *profileRepository) Upsert(profile *models.UserProfile) error {
	return r.db.Select("*").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "email", "phone", "sms_opt_in", "email_opt_in", "updated_at"}),
	}).Create(profile).Error
}

func (r *profileRepository) ListAdminIDs() ([]string, error) {
	var ids []string
	err := r.db.Model(&models.AdminUser{}).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

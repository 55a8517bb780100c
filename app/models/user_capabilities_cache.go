package models

import (
	"time"

	"gorm.io/datatypes"
)

// UserCapabilitiesCache holds one resolved capability snapshot per user.
type UserCapabilitiesCache struct {
	UserID       string         `gorm:"type:varchar(36);primaryKey" json:"user_id"`
	Capabilities datatypes.JSON `gorm:"not null" json:"capabilities"`
	Source       datatypes.JSON `gorm:"not null" json:"source"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

func (UserCapabilitiesCache) TableName() string {
	return "user_capabilities_cache"
}

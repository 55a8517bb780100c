package models

import "time"

// UserProfile carries the contact details used for out-of-app delivery.
// Identity itself lives with the auth provider.
type UserProfile struct {
	UserID      string    `gorm:"type:varchar(36);primaryKey" json:"user_id"`
	DisplayName string    `gorm:"type:varchar(255)" json:"display_name"`
	Email       string    `gorm:"type:varchar(255)" json:"email"`
	Phone       string    `gorm:"type:varchar(32)" json:"phone"`
	SMSOptIn    bool      `gorm:"column:sms_opt_in;not null;default:true" json:"sms_opt_in"`
	EmailOptIn  bool      `gorm:"not null;default:true" json:"email_opt_in"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type AdminUser struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email     string    `gorm:"type:varchar(255)" json:"email"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

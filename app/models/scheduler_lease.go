package models

import "time"

// SchedulerLease is the single-leader guard for periodic tasks. A holder owns
// the lease until ExpiresAt; LastRunAt records the last completed run.
type SchedulerLease struct {
	Name      string     `gorm:"type:varchar(64);primaryKey" json:"name"`
	Holder    string     `gorm:"type:varchar(64)" json:"holder"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

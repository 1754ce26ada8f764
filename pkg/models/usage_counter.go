package models

import "time"

// UsageCounter tracks per-owner storage consumption. Counters are
// incremented only on the SCANNING to ACTIVE transition and decremented on
// deletions, so INITIATED garbage never consumes quota.
type UsageCounter struct {
	OwnerID     string    `gorm:"primaryKey;size:36" json:"owner_id"`
	FilesCount  int64     `gorm:"not null;default:0" json:"files_count"`
	BytesStored int64     `gorm:"not null;default:0" json:"bytes_stored"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for UsageCounter.
func (UsageCounter) TableName() string {
	return "usage_counters"
}

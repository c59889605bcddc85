package domain

import "time"

// ProcessedUpdate records a webhook update that has already been handled.
// The platform redelivers updates it did not see acknowledged; the record lets
// the transport drop such replays until ExpiresAt.
type ProcessedUpdate struct {
	UpdateID  int64     `gorm:"type:INTEGER NOT NULL;primaryKey;autoIncrement:false"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (ProcessedUpdate) TableName() string { return "processed_updates" }

package models

import "time"

// Conflict retains both versions of a field edited on both sides.
// Rows are removed when the owning entity is resolved or deleted.
type Conflict struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID   int64     `gorm:"index;not null" json:"account_id"`
	Kind        string    `gorm:"size:32;index:idx_conflict_entity;not null" json:"kind"`
	EntityID    int64     `gorm:"index:idx_conflict_entity;not null" json:"entity_id"`
	Field       string    `gorm:"size:64;not null" json:"field"`
	LocalValue  string    `gorm:"type:text" json:"local_value"`
	RemoteValue string    `gorm:"type:text" json:"remote_value"`
	DetectedAt  time.Time `json:"detected_at"`
}

func (Conflict) TableName() string { return "conflicts" }

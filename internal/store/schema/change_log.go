package schema

import (
	"time"
)

// ChangeType classifies a recorded field change
type ChangeType string

const (
	// ChangeTypeUpdate is a routine content change
	ChangeTypeUpdate ChangeType = "UPDATE"
	// ChangeTypeRiskyChange is a change to a field that requires human
	// re-verification (phone, website, address, eligibility, how_to_apply, cost)
	ChangeTypeRiskyChange ChangeType = "RISKY_CHANGE"
)

// ChangeLog represents the change_logs table - append-only audit trail
// with one row per changed field per update. Rows are never mutated or
// deleted, so change density reflects real content drift.
type ChangeLog struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// ResourceID references the changed resource
	ResourceID int64 `gorm:"column:resource_id;not null;index"`
	// Field is the resource field that changed
	Field string `gorm:"column:field;not null;type:text"`
	// OldValue is the previous value rendered as a string
	OldValue string `gorm:"column:old_value;type:text"`
	// NewValue is the applied value rendered as a string
	NewValue string `gorm:"column:new_value;type:text"`
	// ChangeType is UPDATE or RISKY_CHANGE
	ChangeType ChangeType `gorm:"column:change_type;not null;type:text"`
	// CreatedAt is the timestamp when the change was recorded
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`

	// Associations
	Resource Resource `gorm:"foreignKey:ResourceID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the ChangeLog model
func (ChangeLog) TableName() string {
	return "change_logs"
}

package schema

import (
	"time"

	"gorm.io/datatypes"
)

// ErrorType classifies a source-level ingestion failure
type ErrorType string

const (
	// ErrorTypeNetwork is a timeout or connection failure against the upstream
	ErrorTypeNetwork ErrorType = "NETWORK"
	// ErrorTypeParse is a malformed or unexpected upstream payload
	ErrorTypeParse ErrorType = "PARSE"
	// ErrorTypeLoad is a database failure while loading candidates
	ErrorTypeLoad ErrorType = "LOAD"
	// ErrorTypeUnknown is the default classification when the caller
	// supplies nothing more specific
	ErrorTypeUnknown ErrorType = "UNKNOWN"
)

// SourceError represents the source_errors table - append-only
// per-failure diagnostics readable by the review UI.
type SourceError struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// SourceID references the failing source
	SourceID int64 `gorm:"column:source_id;not null;index"`
	// ErrorType classifies the failure (NETWORK, PARSE, LOAD, UNKNOWN)
	ErrorType ErrorType `gorm:"column:error_type;not null;type:text"`
	// Message is the human-readable error message
	Message string `gorm:"column:message;not null;type:text"`
	// Details carries optional structured context as JSON
	Details datatypes.JSON `gorm:"column:details;type:jsonb"`
	// JobRunID correlates the error with one ingestion run
	JobRunID *string `gorm:"column:job_run_id;type:text;index"`
	// OccurredAt is the timestamp when the failure happened
	OccurredAt time.Time `gorm:"column:occurred_at;not null;default:now();type:timestamptz"`

	// Associations
	Source Source `gorm:"foreignKey:SourceID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the SourceError model
func (SourceError) TableName() string {
	return "source_errors"
}

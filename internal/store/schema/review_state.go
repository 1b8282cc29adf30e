package schema

import (
	"time"
)

// ReviewStatus represents the human-approval state of a review entry
type ReviewStatus string

const (
	// ReviewStatusPending indicates the review is waiting for a human
	ReviewStatusPending ReviewStatus = "PENDING"
	// ReviewStatusApproved indicates a human verified the change
	ReviewStatusApproved ReviewStatus = "APPROVED"
	// ReviewStatusRejected indicates a human rejected the record
	ReviewStatusRejected ReviewStatus = "REJECTED"
)

// ReviewState represents the review_states table - the queue of
// resources pending human approval. A risky change always creates a new
// PENDING row in addition to any existing pending review.
type ReviewState struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// ResourceID references the resource under review
	ResourceID int64 `gorm:"column:resource_id;not null;index"`
	// Status is PENDING, APPROVED or REJECTED
	Status ReviewStatus `gorm:"column:status;not null;default:PENDING;type:text"`
	// Reason explains why the review was raised
	Reason string `gorm:"column:reason;type:text"`
	// Reviewer identifies who resolved the review
	Reviewer *string `gorm:"column:reviewer;type:text"`
	// ReviewedAt is the timestamp when the review was resolved
	ReviewedAt *time.Time `gorm:"column:reviewed_at;type:timestamptz"`
	// CreatedAt is the timestamp when the review was raised
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`

	// Associations
	Resource Resource `gorm:"foreignKey:ResourceID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the ReviewState model
func (ReviewState) TableName() string {
	return "review_states"
}

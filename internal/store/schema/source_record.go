package schema

import (
	"time"
)

// SourceRecord represents the source_records table - append-only
// provenance entries linking a resource to the raw payload (by hash)
// that produced or confirmed it.
type SourceRecord struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// ResourceID references the resource the payload produced
	ResourceID int64 `gorm:"column:resource_id;not null;index"`
	// SourceID references the source the payload came from
	SourceID *int64 `gorm:"column:source_id;index"`
	// RawHash is the hex-encoded SHA-256 of the raw source payload
	RawHash string `gorm:"column:raw_hash;not null;type:text"`
	// FetchedAt is the upstream fetch timestamp reported by the connector
	FetchedAt time.Time `gorm:"column:fetched_at;not null;type:timestamptz"`

	// Associations
	Resource Resource `gorm:"foreignKey:ResourceID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the SourceRecord model
func (SourceRecord) TableName() string {
	return "source_records"
}

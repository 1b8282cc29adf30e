package schema

import (
	"time"
)

// HealthStatus represents the operational state of a data source
type HealthStatus string

const (
	// HealthStatusHealthy indicates the source's last run succeeded recently
	HealthStatusHealthy HealthStatus = "HEALTHY"
	// HealthStatusDegraded indicates one or two consecutive failures, or a
	// success older than three days
	HealthStatusDegraded HealthStatus = "DEGRADED"
	// HealthStatusFailing indicates three or more consecutive failures, or
	// a success older than a week
	HealthStatusFailing HealthStatus = "FAILING"
)

// Source represents the sources table - one row per distinct connector
// or data source, carrying its trust tier and ingestion health.
type Source struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Name is the connector's unique name (e.g. "va_facilities")
	Name string `gorm:"column:name;not null;uniqueIndex;type:text"`
	// URL is the upstream endpoint or document the connector reads
	URL string `gorm:"column:url;type:text"`
	// Tier ranks trustworthiness: 1 official government .. 4 community-curated
	Tier int `gorm:"column:tier;not null"`
	// HealthStatus is re-derived after every run, not incremented toward a
	// sticky worst case
	HealthStatus HealthStatus `gorm:"column:health_status;not null;default:HEALTHY;type:text"`
	// ErrorCount is the number of consecutive failures since the last success
	ErrorCount int `gorm:"column:error_count;not null;default:0"`
	// LastRun is the timestamp of the most recent ingestion attempt
	LastRun *time.Time `gorm:"column:last_run;type:timestamptz"`
	// LastSuccess is the timestamp of the most recent successful run
	LastSuccess *time.Time `gorm:"column:last_success;type:timestamptz"`
	// CreatedAt is the timestamp when the source was first registered
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`

	// Associations
	Resources []Resource    `gorm:"foreignKey:SourceID"`
	Errors    []SourceError `gorm:"foreignKey:SourceID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Source model
func (Source) TableName() string {
	return "sources"
}

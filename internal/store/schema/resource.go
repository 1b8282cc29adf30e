package schema

import (
	"time"

	"gorm.io/datatypes"
)

// ResourceStatus represents the serving state of a resource
type ResourceStatus string

const (
	// ResourceStatusActive indicates the resource is served to end users
	ResourceStatusActive ResourceStatus = "ACTIVE"
	// ResourceStatusNeedsReview indicates an automated update changed
	// sensitive fields and a human must re-verify the record
	ResourceStatusNeedsReview ResourceStatus = "NEEDS_REVIEW"
	// ResourceStatusInactive indicates the resource is hidden from end users
	ResourceStatusInactive ResourceStatus = "INACTIVE"
)

// Resource represents the resources table - the unit of service
// information served to end users. De-duplicated on exact source_url
// match; that is the single identity the loader trusts.
type Resource struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// OrganizationID references the owning organization
	OrganizationID int64 `gorm:"column:organization_id;not null;index"`
	// LocationID references the physical site, when one is known
	LocationID *int64 `gorm:"column:location_id;index"`
	// SourceID references the data source this record is attributed to.
	// Attribution switches only to a more trustworthy (lower tier) source.
	SourceID *int64 `gorm:"column:source_id;index"`

	// Title is the service's display name
	Title string `gorm:"column:title;not null;type:text"`
	// Description is the long-form service description
	Description string `gorm:"column:description;type:text"`
	// Eligibility describes who qualifies for the service
	Eligibility string `gorm:"column:eligibility;type:text"`
	// HowToApply describes the application process
	HowToApply string `gorm:"column:how_to_apply;type:text"`
	// Cost describes any cost to the veteran
	Cost string `gorm:"column:cost;type:text"`
	// Phone is the contact phone number
	Phone string `gorm:"column:phone;type:text"`
	// Email is the contact email address
	Email string `gorm:"column:email;type:text"`
	// Website is the service-specific web page
	Website string `gorm:"column:website;type:text"`
	// Hours is the free-form opening hours text
	Hours string `gorm:"column:hours;type:text"`
	// Scope is the geographic reach (national, state, regional, local)
	Scope string `gorm:"column:scope;type:text"`
	// Categories is the set of taxonomy IDs, merged by union across sources
	Categories datatypes.JSONSlice[string] `gorm:"column:categories;type:jsonb"`
	// Tags is the free-form tag set, merged by union across sources
	Tags datatypes.JSONSlice[string] `gorm:"column:tags;type:jsonb"`
	// States is the set of 2-letter state codes the service covers
	States datatypes.JSONSlice[string] `gorm:"column:states;type:jsonb"`
	// SourceURL is the upstream record URL, the de-duplication key
	SourceURL string `gorm:"column:source_url;not null;uniqueIndex;type:text"`

	// Status is the serving state (ACTIVE, NEEDS_REVIEW, INACTIVE)
	Status ResourceStatus `gorm:"column:status;not null;default:ACTIVE;type:text"`
	// FreshnessScore decays from 1.0 as last_scraped ages; recomputed by the sweeper
	FreshnessScore float64 `gorm:"column:freshness_score;not null;default:1.0"`
	// ReliabilityScore is derived from the attributed source's tier
	ReliabilityScore float64 `gorm:"column:reliability_score;not null;default:0.4"`
	// LastScraped is the timestamp of the most recent ingestion touch
	LastScraped time.Time `gorm:"column:last_scraped;not null;default:now();type:timestamptz"`
	// LastVerified is the timestamp of the most recent human verification
	LastVerified time.Time `gorm:"column:last_verified;not null;default:now();type:timestamptz"`
	// CreatedAt is the timestamp when the resource was first created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`

	// Associations
	Organization Organization   `gorm:"foreignKey:OrganizationID;constraint:OnDelete:CASCADE"`
	Location     *Location      `gorm:"foreignKey:LocationID"`
	Source       *Source        `gorm:"foreignKey:SourceID"`
	ChangeLogs   []ChangeLog    `gorm:"foreignKey:ResourceID;constraint:OnDelete:CASCADE"`
	Reviews      []ReviewState  `gorm:"foreignKey:ResourceID;constraint:OnDelete:CASCADE"`
	Records      []SourceRecord `gorm:"foreignKey:ResourceID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Resource model
func (Resource) TableName() string {
	return "resources"
}

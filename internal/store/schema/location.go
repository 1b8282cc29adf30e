package schema

import (
	"time"
)

// Location represents the locations table - a physical site owned by
// exactly one organization. De-duplicated on the exact string tuple
// (organization_id, address, city, state); no fuzzy address matching.
type Location struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// OrganizationID references the owning organization
	OrganizationID int64 `gorm:"column:organization_id;not null;uniqueIndex:idx_locations_org_address,priority:1"`
	// Address is the street address
	Address string `gorm:"column:address;not null;type:text;uniqueIndex:idx_locations_org_address,priority:2"`
	// City is the city name
	City string `gorm:"column:city;not null;type:text;uniqueIndex:idx_locations_org_address,priority:3"`
	// State is the 2-letter state code
	State string `gorm:"column:state;not null;type:text;uniqueIndex:idx_locations_org_address,priority:4"`
	// ZipCode is the postal code
	ZipCode string `gorm:"column:zip_code;type:text"`
	// Latitude is back-filled once if previously absent
	Latitude *float64 `gorm:"column:latitude"`
	// Longitude is back-filled once if previously absent
	Longitude *float64 `gorm:"column:longitude"`
	// CreatedAt is the timestamp when the location was first seen
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`

	// Associations
	Organization Organization `gorm:"foreignKey:OrganizationID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Location model
func (Location) TableName() string {
	return "locations"
}

package schema

import (
	"time"
)

// Organization represents the organizations table - the legal entity
// behind one or more services. Names are unique case-insensitively
// (enforced by a unique index on lower(name)).
type Organization struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Name is the organization's display name, unique case-insensitively
	Name string `gorm:"column:name;not null;type:text"`
	// Website is the organization's homepage. Filled on first sighting and
	// back-filled later only while empty, never overwritten.
	Website *string `gorm:"column:website;type:text"`
	// CreatedAt is the timestamp when the organization was first seen
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`

	// Associations
	Locations []Location `gorm:"foreignKey:OrganizationID;constraint:OnDelete:CASCADE"`
	Resources []Resource `gorm:"foreignKey:OrganizationID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Organization model
func (Organization) TableName() string {
	return "organizations"
}

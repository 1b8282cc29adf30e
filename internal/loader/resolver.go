package loader

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vibe4vets/directory-indexer/internal/domain"
	"github.com/vibe4vets/directory-indexer/internal/store/schema"
)

// resolveOrganization finds or creates the organization backing a
// candidate. Lookup is case-insensitive on name. On a hit the website is
// back-filled only while empty, never overwritten. The per-run cache is
// consulted first; entries are added to pending and promoted into the
// cache only after the candidate's transaction commits.
func (l *Loader) resolveOrganization(tx *gorm.DB, c *domain.Candidate, pending *pendingCache) (*schema.Organization, error) {
	name := c.OrganizationName()
	key := strings.ToLower(name)

	if id, ok := l.orgCache[key]; ok {
		var org schema.Organization
		if err := tx.First(&org, id).Error; err != nil {
			return nil, fmt.Errorf("failed to get cached organization: %w", err)
		}
		return &org, nil
	}

	var org schema.Organization
	err := tx.Where("LOWER(name) = ?", key).First(&org).Error
	switch {
	case err == nil:
		if org.Website == nil && strings.TrimSpace(c.OrgWebsite) != "" {
			website := strings.TrimSpace(c.OrgWebsite)
			if err := tx.Model(&org).Update("website", website).Error; err != nil {
				return nil, fmt.Errorf("failed to back-fill organization website: %w", err)
			}
			org.Website = &website
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		org = schema.Organization{Name: name}
		if website := strings.TrimSpace(c.OrgWebsite); website != "" {
			org.Website = &website
		}
		if err := tx.Create(&org).Error; err != nil {
			return nil, fmt.Errorf("failed to create organization: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to look up organization: %w", err)
	}

	pending.orgs[key] = org.ID
	return &org, nil
}

// resolveLocation finds or creates the location for a candidate, keyed
// by the exact (organization, address, city, state) tuple. Returns nil
// when the candidate's address is incomplete: partial locations are
// never created. Coordinates are back-filled once if previously absent.
func (l *Loader) resolveLocation(tx *gorm.DB, c *domain.Candidate, org *schema.Organization) (*schema.Location, error) {
	if !c.HasCompleteLocation() {
		return nil, nil
	}

	address := strings.TrimSpace(c.Address)
	city := strings.TrimSpace(c.City)
	state := strings.TrimSpace(c.State)

	var loc schema.Location
	err := tx.Where(
		"organization_id = ? AND address = ? AND city = ? AND state = ?",
		org.ID, address, city, state,
	).First(&loc).Error
	switch {
	case err == nil:
		if loc.Latitude == nil && c.Latitude != nil {
			updates := map[string]interface{}{"latitude": c.Latitude, "longitude": c.Longitude}
			if err := tx.Model(&loc).Updates(updates).Error; err != nil {
				return nil, fmt.Errorf("failed to back-fill coordinates: %w", err)
			}
			loc.Latitude = c.Latitude
			loc.Longitude = c.Longitude
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		loc = schema.Location{
			OrganizationID: org.ID,
			Address:        address,
			City:           city,
			State:          state,
			ZipCode:        strings.TrimSpace(c.ZipCode),
			Latitude:       c.Latitude,
			Longitude:      c.Longitude,
		}
		if err := tx.Create(&loc).Error; err != nil {
			return nil, fmt.Errorf("failed to create location: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to look up location: %w", err)
	}

	return &loc, nil
}

// resolveSource finds or creates the source row for a candidate, keyed
// by source name. Returns nil when the candidate carries no source name.
func (l *Loader) resolveSource(tx *gorm.DB, c *domain.Candidate, pending *pendingCache) (*schema.Source, error) {
	name := strings.TrimSpace(c.SourceName)
	if name == "" {
		return nil, nil
	}

	if id, ok := l.sourceCache[name]; ok {
		var src schema.Source
		if err := tx.First(&src, id).Error; err != nil {
			return nil, fmt.Errorf("failed to get cached source: %w", err)
		}
		return &src, nil
	}

	var src schema.Source
	err := tx.Where("name = ?", name).First(&src).Error
	switch {
	case err == nil:
		// Existing source keeps its registered tier
	case errors.Is(err, gorm.ErrRecordNotFound):
		src = schema.Source{
			Name:         name,
			Tier:         int(c.SourceTier),
			HealthStatus: schema.HealthStatusHealthy,
		}
		// Tolerate a concurrent run registering the same source first
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&src).Error; err != nil {
			return nil, fmt.Errorf("failed to create source: %w", err)
		}
		if src.ID == 0 {
			if err := tx.Where("name = ?", name).First(&src).Error; err != nil {
				return nil, fmt.Errorf("failed to get existing source: %w", err)
			}
		}
	default:
		return nil, fmt.Errorf("failed to look up source: %w", err)
	}

	pending.sources[name] = src.ID
	return &src, nil
}

package loader

import (
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/vibe4vets/directory-indexer/internal/domain"
	"github.com/vibe4vets/directory-indexer/internal/store/schema"
)

// reviewReasonSensitive is the reason stamped on reviews raised by
// automated updates to sensitive fields
const reviewReasonSensitive = "Automated update changed sensitive fields"

// createResource inserts a brand new resource for a candidate, records
// the raw payload hash and resets the source's health after the
// successful write.
func (l *Loader) createResource(tx *gorm.DB, c *domain.Candidate, org *schema.Organization, loc *schema.Location, src *schema.Source) (LoadResult, error) {
	now := l.clock.Now().UTC()

	res := schema.Resource{
		OrganizationID:   org.ID,
		Title:            strings.TrimSpace(c.Title),
		Description:      c.Description,
		Eligibility:      c.Eligibility,
		HowToApply:       c.HowToApply,
		Cost:             c.Cost,
		Phone:            c.Phone,
		Email:            c.Email,
		Website:          c.Website,
		Hours:            c.Hours,
		Scope:            string(c.Scope),
		Categories:       datatypes.NewJSONSlice(c.Categories),
		Tags:             datatypes.NewJSONSlice(c.Tags),
		States:           datatypes.NewJSONSlice(c.States),
		SourceURL:        strings.TrimSpace(c.SourceURL),
		Status:           schema.ResourceStatusActive,
		FreshnessScore:   1.0,
		ReliabilityScore: domain.TierScore(c.SourceTier),
		LastScraped:      now,
		LastVerified:     now,
	}
	if loc != nil {
		res.LocationID = &loc.ID
	}
	if src != nil {
		res.SourceID = &src.ID
	}

	if err := tx.Create(&res).Error; err != nil {
		return LoadResult{}, fmt.Errorf("failed to create resource: %w", err)
	}

	record := schema.SourceRecord{
		ResourceID: res.ID,
		RawHash:    rawHash(c.RawData),
		FetchedAt:  c.FetchedAt.UTC(),
	}
	if src != nil {
		record.SourceID = &src.ID
	}
	if err := tx.Create(&record).Error; err != nil {
		return LoadResult{}, fmt.Errorf("failed to record provenance: %w", err)
	}

	if src != nil {
		updates := map[string]interface{}{
			"health_status": schema.HealthStatusHealthy,
			"error_count":   0,
			"last_run":      now,
			"last_success":  now,
		}
		if err := tx.Model(src).Updates(updates).Error; err != nil {
			return LoadResult{}, fmt.Errorf("failed to reset source health: %w", err)
		}
	}

	return LoadResult{
		Action:         ActionCreated,
		ResourceID:     res.ID,
		OrganizationID: org.ID,
		LocationID:     res.LocationID,
		SourceURL:      res.SourceURL,
		Title:          res.Title,
	}, nil
}

// scalarField pairs a stored scalar value with the candidate's incoming
// value for the field-level merge.
type scalarField struct {
	name string
	cur  *string
	next string
}

// updateResource merges a candidate into an existing resource. Scalar
// fields are overwritten only when the incoming value is non-empty and
// different; list fields merge by set union and never shrink. Every
// applied change gets one audit row; a change to any sensitive field
// flags the resource NEEDS_REVIEW and raises a PENDING review.
func (l *Loader) updateResource(tx *gorm.DB, c *domain.Candidate, res *schema.Resource, loc *schema.Location, src *schema.Source) (LoadResult, error) {
	now := l.clock.Now().UTC()

	scalars := []scalarField{
		{"title", &res.Title, strings.TrimSpace(c.Title)},
		{"description", &res.Description, c.Description},
		{"eligibility", &res.Eligibility, c.Eligibility},
		{"how_to_apply", &res.HowToApply, c.HowToApply},
		{"cost", &res.Cost, c.Cost},
		{"phone", &res.Phone, c.Phone},
		{"email", &res.Email, c.Email},
		{"website", &res.Website, c.Website},
		{"hours", &res.Hours, c.Hours},
		{"scope", &res.Scope, string(c.Scope)},
	}

	var changes []schema.ChangeLog
	needsReview := false
	for _, f := range scalars {
		// An absent incoming value never erases stored data
		if f.next == "" || f.next == *f.cur {
			continue
		}
		changeType := schema.ChangeTypeUpdate
		if domain.IsRiskyField(f.name) {
			changeType = schema.ChangeTypeRiskyChange
			needsReview = true
		}
		changes = append(changes, schema.ChangeLog{
			ResourceID: res.ID,
			Field:      f.name,
			OldValue:   *f.cur,
			NewValue:   f.next,
			ChangeType: changeType,
			CreatedAt:  now,
		})
		*f.cur = f.next
	}

	lists := []struct {
		name string
		cur  *datatypes.JSONSlice[string]
		next []string
	}{
		{"categories", &res.Categories, c.Categories},
		{"tags", &res.Tags, c.Tags},
		{"states", &res.States, c.States},
	}
	for _, f := range lists {
		merged, grew := unionMerge(*f.cur, f.next)
		if !grew {
			continue
		}
		changes = append(changes, schema.ChangeLog{
			ResourceID: res.ID,
			Field:      f.name,
			OldValue:   renderSet(*f.cur),
			NewValue:   renderSet(merged),
			ChangeType: schema.ChangeTypeUpdate,
			CreatedAt:  now,
		})
		*f.cur = datatypes.NewJSONSlice(merged)
	}

	attributionChanged := false
	if loc != nil {
		switch {
		case res.LocationID == nil:
			// A newly complete address attaches a location where none was known
			res.LocationID = &loc.ID
			attributionChanged = true
		case *res.LocationID != loc.ID:
			// The source moved the service to a different address; an
			// address change requires human re-verification
			var prev schema.Location
			if err := tx.First(&prev, *res.LocationID).Error; err != nil {
				return LoadResult{}, fmt.Errorf("failed to get current location: %w", err)
			}
			changes = append(changes, schema.ChangeLog{
				ResourceID: res.ID,
				Field:      "address",
				OldValue:   renderLocation(&prev),
				NewValue:   renderLocation(loc),
				ChangeType: schema.ChangeTypeRiskyChange,
				CreatedAt:  now,
			})
			needsReview = true
			res.LocationID = &loc.ID
		}
	}

	// Attribution follows trust: a more trustworthy source silently takes
	// over the record, a less trustworthy one never degrades it
	if src != nil {
		takeOver := res.SourceID == nil
		if !takeOver {
			var current schema.Source
			if err := tx.First(&current, *res.SourceID).Error; err != nil {
				return LoadResult{}, fmt.Errorf("failed to get attributed source: %w", err)
			}
			takeOver = src.Tier < current.Tier
		}
		if takeOver {
			res.SourceID = &src.ID
			res.ReliabilityScore = domain.TierScore(domain.Tier(src.Tier))
			attributionChanged = true
		}
	}

	if len(changes) == 0 && !attributionChanged {
		// Identical content still counts as a confirmed sighting
		updates := map[string]interface{}{
			"last_scraped":    now,
			"freshness_score": 1.0,
		}
		if res.Status == schema.ResourceStatusInactive {
			updates["status"] = schema.ResourceStatusActive
		}
		if err := tx.Model(res).Updates(updates).Error; err != nil {
			return LoadResult{}, fmt.Errorf("failed to refresh resource: %w", err)
		}
		return LoadResult{
			Action:         ActionSkipped,
			ResourceID:     res.ID,
			OrganizationID: res.OrganizationID,
			LocationID:     res.LocationID,
			SourceURL:      res.SourceURL,
			Title:          res.Title,
		}, nil
	}

	res.LastScraped = now
	res.FreshnessScore = 1.0
	if res.Status == schema.ResourceStatusInactive {
		res.Status = schema.ResourceStatusActive
	}
	if needsReview {
		res.Status = schema.ResourceStatusNeedsReview
	}

	if err := tx.Save(res).Error; err != nil {
		return LoadResult{}, fmt.Errorf("failed to update resource: %w", err)
	}
	if len(changes) > 0 {
		if err := tx.Create(&changes).Error; err != nil {
			return LoadResult{}, fmt.Errorf("failed to record changes: %w", err)
		}

		record := schema.SourceRecord{
			ResourceID: res.ID,
			RawHash:    rawHash(c.RawData),
			FetchedAt:  c.FetchedAt.UTC(),
		}
		if src != nil {
			record.SourceID = &src.ID
		}
		if err := tx.Create(&record).Error; err != nil {
			return LoadResult{}, fmt.Errorf("failed to record provenance: %w", err)
		}
	}
	if needsReview {
		review := schema.ReviewState{
			ResourceID: res.ID,
			Status:     schema.ReviewStatusPending,
			Reason:     reviewReasonSensitive,
			CreatedAt:  now,
		}
		if err := tx.Create(&review).Error; err != nil {
			return LoadResult{}, fmt.Errorf("failed to raise review: %w", err)
		}
	}

	return LoadResult{
		Action:         ActionUpdated,
		ResourceID:     res.ID,
		OrganizationID: res.OrganizationID,
		LocationID:     res.LocationID,
		SourceURL:      res.SourceURL,
		Title:          res.Title,
	}, nil
}

// unionMerge appends incoming values absent from the stored set,
// preserving stored order first and incoming order after. Reports
// whether the set grew.
func unionMerge(stored []string, incoming []string) ([]string, bool) {
	seen := make(map[string]bool, len(stored))
	merged := make([]string, 0, len(stored)+len(incoming))
	for _, v := range stored {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		merged = append(merged, v)
	}
	grew := false
	for _, v := range incoming {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		merged = append(merged, v)
		grew = true
	}
	return merged, grew
}

// renderSet renders a list value for the audit trail
func renderSet(values []string) string {
	return strings.Join(values, ", ")
}

// renderLocation renders a location's address for the audit trail
func renderLocation(loc *schema.Location) string {
	parts := []string{loc.Address, loc.City, loc.State}
	if loc.ZipCode != "" {
		parts = append(parts, loc.ZipCode)
	}
	return strings.Join(parts, ", ")
}

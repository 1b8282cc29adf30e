package rest

import (
	"time"

	"github.com/vibe4vets/directory-indexer/internal/store/schema"
)

// OrganizationDTO is the API representation of an organization
type OrganizationDTO struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Website *string `json:"website,omitempty"`
}

// LocationDTO is the API representation of a physical site
type LocationDTO struct {
	ID        int64    `json:"id"`
	Address   string   `json:"address"`
	City      string   `json:"city"`
	State     string   `json:"state"`
	ZipCode   string   `json:"zip_code,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// ResourceDTO is the API representation of a directory resource
type ResourceDTO struct {
	ID               int64            `json:"id"`
	Title            string           `json:"title"`
	Description      string           `json:"description,omitempty"`
	Eligibility      string           `json:"eligibility,omitempty"`
	HowToApply       string           `json:"how_to_apply,omitempty"`
	Cost             string           `json:"cost,omitempty"`
	Phone            string           `json:"phone,omitempty"`
	Email            string           `json:"email,omitempty"`
	Website          string           `json:"website,omitempty"`
	Hours            string           `json:"hours,omitempty"`
	Scope            string           `json:"scope,omitempty"`
	Categories       []string         `json:"categories"`
	Tags             []string         `json:"tags"`
	States           []string         `json:"states"`
	SourceURL        string           `json:"source_url"`
	Status           string           `json:"status"`
	FreshnessScore   float64          `json:"freshness_score"`
	ReliabilityScore float64          `json:"reliability_score"`
	LastScraped      time.Time        `json:"last_scraped"`
	LastVerified     time.Time        `json:"last_verified"`
	Organization     *OrganizationDTO `json:"organization,omitempty"`
	Location         *LocationDTO     `json:"location,omitempty"`
}

// ListResourcesResponse is the paged resource listing payload
type ListResourcesResponse struct {
	Resources []ResourceDTO `json:"resources"`
	Total     int64         `json:"total"`
	Limit     int           `json:"limit"`
	Offset    int           `json:"offset"`
}

// ChangeDTO is the API representation of one audit trail entry
type ChangeDTO struct {
	ID         int64     `json:"id"`
	Field      string    `json:"field"`
	OldValue   string    `json:"old_value"`
	NewValue   string    `json:"new_value"`
	ChangeType string    `json:"change_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// SourceDTO is the API representation of a data source with its health
type SourceDTO struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	URL          string     `json:"url,omitempty"`
	Tier         int        `json:"tier"`
	HealthStatus string     `json:"health_status"`
	ErrorCount   int        `json:"error_count"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
}

// SourceErrorDTO is the API representation of one ingestion failure
type SourceErrorDTO struct {
	ID         int64     `json:"id"`
	ErrorType  string    `json:"error_type"`
	Message    string    `json:"message"`
	JobRunID   *string   `json:"job_run_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ReviewDTO is the API representation of one review queue entry
type ReviewDTO struct {
	ID         int64        `json:"id"`
	ResourceID int64        `json:"resource_id"`
	Status     string       `json:"status"`
	Reason     string       `json:"reason,omitempty"`
	Reviewer   *string      `json:"reviewer,omitempty"`
	ReviewedAt *time.Time   `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	Resource   *ResourceDTO `json:"resource,omitempty"`
}

// toOrganizationDTO maps an organization row to its API representation
func toOrganizationDTO(org *schema.Organization) *OrganizationDTO {
	if org == nil || org.ID == 0 {
		return nil
	}
	return &OrganizationDTO{
		ID:      org.ID,
		Name:    org.Name,
		Website: org.Website,
	}
}

// toLocationDTO maps a location row to its API representation
func toLocationDTO(loc *schema.Location) *LocationDTO {
	if loc == nil || loc.ID == 0 {
		return nil
	}
	return &LocationDTO{
		ID:        loc.ID,
		Address:   loc.Address,
		City:      loc.City,
		State:     loc.State,
		ZipCode:   loc.ZipCode,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
	}
}

// toResourceDTO maps a resource row with preloaded associations
func toResourceDTO(res *schema.Resource) ResourceDTO {
	return ResourceDTO{
		ID:               res.ID,
		Title:            res.Title,
		Description:      res.Description,
		Eligibility:      res.Eligibility,
		HowToApply:       res.HowToApply,
		Cost:             res.Cost,
		Phone:            res.Phone,
		Email:            res.Email,
		Website:          res.Website,
		Hours:            res.Hours,
		Scope:            res.Scope,
		Categories:       emptyIfNil(res.Categories),
		Tags:             emptyIfNil(res.Tags),
		States:           emptyIfNil(res.States),
		SourceURL:        res.SourceURL,
		Status:           string(res.Status),
		FreshnessScore:   res.FreshnessScore,
		ReliabilityScore: res.ReliabilityScore,
		LastScraped:      res.LastScraped,
		LastVerified:     res.LastVerified,
		Organization:     toOrganizationDTO(&res.Organization),
		Location:         toLocationDTO(res.Location),
	}
}

// toChangeDTO maps an audit row to its API representation
func toChangeDTO(change *schema.ChangeLog) ChangeDTO {
	return ChangeDTO{
		ID:         change.ID,
		Field:      change.Field,
		OldValue:   change.OldValue,
		NewValue:   change.NewValue,
		ChangeType: string(change.ChangeType),
		CreatedAt:  change.CreatedAt,
	}
}

// toSourceDTO maps a source row to its API representation
func toSourceDTO(src *schema.Source) SourceDTO {
	return SourceDTO{
		ID:           src.ID,
		Name:         src.Name,
		URL:          src.URL,
		Tier:         src.Tier,
		HealthStatus: string(src.HealthStatus),
		ErrorCount:   src.ErrorCount,
		LastRun:      src.LastRun,
		LastSuccess:  src.LastSuccess,
	}
}

// toSourceErrorDTO maps a failure row to its API representation
func toSourceErrorDTO(srcErr *schema.SourceError) SourceErrorDTO {
	return SourceErrorDTO{
		ID:         srcErr.ID,
		ErrorType:  string(srcErr.ErrorType),
		Message:    srcErr.Message,
		JobRunID:   srcErr.JobRunID,
		OccurredAt: srcErr.OccurredAt,
	}
}

// toReviewDTO maps a review row, embedding the resource when preloaded
func toReviewDTO(review *schema.ReviewState) ReviewDTO {
	dto := ReviewDTO{
		ID:         review.ID,
		ResourceID: review.ResourceID,
		Status:     string(review.Status),
		Reason:     review.Reason,
		Reviewer:   review.Reviewer,
		ReviewedAt: review.ReviewedAt,
		CreatedAt:  review.CreatedAt,
	}
	if review.Resource.ID != 0 {
		resource := toResourceDTO(&review.Resource)
		dto.Resource = &resource
	}
	return dto
}

// emptyIfNil keeps set-valued fields rendering as [] instead of null
func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

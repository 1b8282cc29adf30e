package store

import (
	"context"

	"github.com/vibe4vets/directory-indexer/internal/store/schema"
)

// ResourceFilter narrows a directory listing. Zero values mean "any".
type ResourceFilter struct {
	// State filters to resources covering a 2-letter state code
	State string
	// Category filters to resources carrying a taxonomy category
	Category string
	// Scope filters by geographic reach
	Scope string
	// Status filters by serving state; listings default to ACTIVE upstream
	Status schema.ResourceStatus
	// Query matches title and description, case-insensitively
	Query string
	// OrganizationID filters to one organization's resources
	OrganizationID *int64
	// Limit caps the page size; Offset skips preceding rows
	Limit  int
	Offset int
}

// Store defines the interface for database operations
type Store interface {
	// ListResources retrieves a filtered page of resources with their
	// organizations and locations, plus the unpaged match count
	ListResources(ctx context.Context, filter ResourceFilter) ([]schema.Resource, int64, error)
	// GetResourceByID retrieves one resource with its associations
	GetResourceByID(ctx context.Context, id int64) (*schema.Resource, error)
	// GetResourceChanges retrieves a resource's audit trail, newest first
	GetResourceChanges(ctx context.Context, resourceID int64, limit, offset int) ([]schema.ChangeLog, error)

	// ListSources retrieves every registered source with current health
	ListSources(ctx context.Context) ([]schema.Source, error)
	// GetSourceByID retrieves one source
	GetSourceByID(ctx context.Context, id int64) (*schema.Source, error)
	// GetSourceErrors retrieves a source's recent failures, newest first
	GetSourceErrors(ctx context.Context, sourceID int64, limit int) ([]schema.SourceError, error)

	// ListReviews retrieves the review queue filtered by status, oldest
	// first so the longest-waiting records surface at the top
	ListReviews(ctx context.Context, status schema.ReviewStatus, limit, offset int) ([]schema.ReviewState, error)
	// ApproveReview resolves a pending review as verified and reactivates
	// the resource once no other pending reviews remain
	ApproveReview(ctx context.Context, reviewID int64, reviewer string) (*schema.ReviewState, error)
	// RejectReview resolves a pending review as rejected and hides the
	// resource from end users
	RejectReview(ctx context.Context, reviewID int64, reviewer string) (*schema.ReviewState, error)

	// ListResourcesForSweep retrieves a keyset page of non-inactive
	// resources ordered by ID, for freshness recomputation
	ListResourcesForSweep(ctx context.Context, afterID int64, limit int) ([]schema.Resource, error)
	// UpdateResourceFreshness stores a recomputed freshness score and
	// serving status for one resource
	UpdateResourceFreshness(ctx context.Context, id int64, score float64, status schema.ResourceStatus) error
}

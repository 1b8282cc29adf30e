package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vibe4vets/directory-indexer/internal/adapter"
	"github.com/vibe4vets/directory-indexer/internal/domain"
	"github.com/vibe4vets/directory-indexer/internal/store/schema"
)

type pgStore struct {
	db    *gorm.DB
	clock adapter.Clock
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB, clock adapter.Clock) Store {
	return &pgStore{db: db, clock: clock}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// It accesses the underlying *sql.DB and sets the pool configuration.
// If any of the pool settings are 0 or empty, reasonable defaults are used:
//   - MaxOpenConns: 20 (if 0)
//   - MaxIdleConns: 5 (if 0)
//   - ConnMaxLifetime: 5 minutes (if 0)
//   - ConnMaxIdleTime: 10 minutes (if 0)
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Defaults (when zero):
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
//
// Notes:
//   - database/sql treats MaxOpenConns=0 as "unlimited"
//   - database/sql treats MaxIdleConns=0 as "no idle connections"
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	// Set defaults if not provided
	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	// Ensure MaxIdleConns doesn't exceed MaxOpenConns
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// lockForUpdate returns a row lock clause for review resolution
func lockForUpdate() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

// jsonbContains renders a single value as a jsonb array literal for a
// containment query against a set-valued column.
func jsonbContains(value string) datatypes.JSON {
	b, _ := json.Marshal([]string{value})
	return datatypes.JSON(b)
}

// applyResourceFilter translates a filter into query conditions
func applyResourceFilter(q *gorm.DB, filter ResourceFilter) *gorm.DB {
	if filter.State != "" {
		q = q.Where("states @> ?", jsonbContains(filter.State))
	}
	if filter.Category != "" {
		q = q.Where("categories @> ?", jsonbContains(filter.Category))
	}
	if filter.Scope != "" {
		q = q.Where("scope = ?", filter.Scope)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Query != "" {
		pattern := "%" + filter.Query + "%"
		q = q.Where("title ILIKE ? OR description ILIKE ?", pattern, pattern)
	}
	if filter.OrganizationID != nil {
		q = q.Where("organization_id = ?", *filter.OrganizationID)
	}
	return q
}

// ListResources retrieves a filtered page of resources with their
// organizations and locations, plus the unpaged match count
func (s *pgStore) ListResources(ctx context.Context, filter ResourceFilter) ([]schema.Resource, int64, error) {
	base := applyResourceFilter(s.db.WithContext(ctx).Model(&schema.Resource{}), filter)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count resources: %w", err)
	}

	var resources []schema.Resource
	err := base.
		Preload("Organization").
		Preload("Location").
		Order("id ASC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&resources).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list resources: %w", err)
	}
	return resources, total, nil
}

// GetResourceByID retrieves one resource with its associations
func (s *pgStore) GetResourceByID(ctx context.Context, id int64) (*schema.Resource, error) {
	var resource schema.Resource
	err := s.db.WithContext(ctx).
		Preload("Organization").
		Preload("Location").
		Preload("Source").
		Where("id = ?", id).
		First(&resource).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return &resource, nil
}

// GetResourceChanges retrieves a resource's audit trail, newest first
func (s *pgStore) GetResourceChanges(ctx context.Context, resourceID int64, limit, offset int) ([]schema.ChangeLog, error) {
	var changes []schema.ChangeLog
	err := s.db.WithContext(ctx).
		Where("resource_id = ?", resourceID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&changes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get resource changes: %w", err)
	}
	return changes, nil
}

// ListSources retrieves every registered source with current health
func (s *pgStore) ListSources(ctx context.Context) ([]schema.Source, error) {
	var sources []schema.Source
	err := s.db.WithContext(ctx).Order("tier ASC, name ASC").Find(&sources).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return sources, nil
}

// GetSourceByID retrieves one source
func (s *pgStore) GetSourceByID(ctx context.Context, id int64) (*schema.Source, error) {
	var source schema.Source
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&source).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return &source, nil
}

// GetSourceErrors retrieves a source's recent failures, newest first
func (s *pgStore) GetSourceErrors(ctx context.Context, sourceID int64, limit int) ([]schema.SourceError, error) {
	var sourceErrors []schema.SourceError
	err := s.db.WithContext(ctx).
		Where("source_id = ?", sourceID).
		Order("occurred_at DESC, id DESC").
		Limit(limit).
		Find(&sourceErrors).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get source errors: %w", err)
	}
	return sourceErrors, nil
}

// ListReviews retrieves the review queue filtered by status, oldest first
func (s *pgStore) ListReviews(ctx context.Context, status schema.ReviewStatus, limit, offset int) ([]schema.ReviewState, error) {
	q := s.db.WithContext(ctx).Preload("Resource")
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var reviews []schema.ReviewState
	err := q.Order("created_at ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

// ApproveReview resolves a pending review as verified. The resource
// returns to ACTIVE and counts as freshly verified once no other pending
// reviews remain for it.
func (s *pgStore) ApproveReview(ctx context.Context, reviewID int64, reviewer string) (*schema.ReviewState, error) {
	var review schema.ReviewState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.resolveReview(tx, reviewID, reviewer, schema.ReviewStatusApproved, &review); err != nil {
			return err
		}

		var pending int64
		err := tx.Model(&schema.ReviewState{}).
			Where("resource_id = ? AND status = ?", review.ResourceID, schema.ReviewStatusPending).
			Count(&pending).Error
		if err != nil {
			return fmt.Errorf("failed to count pending reviews: %w", err)
		}
		if pending > 0 {
			return nil
		}

		now := s.clock.Now().UTC()
		err = tx.Model(&schema.Resource{}).
			Where("id = ?", review.ResourceID).
			Updates(map[string]interface{}{
				"status":        schema.ResourceStatusActive,
				"last_verified": now,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to reactivate resource: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// RejectReview resolves a pending review as rejected and hides the
// resource from end users.
func (s *pgStore) RejectReview(ctx context.Context, reviewID int64, reviewer string) (*schema.ReviewState, error) {
	var review schema.ReviewState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.resolveReview(tx, reviewID, reviewer, schema.ReviewStatusRejected, &review); err != nil {
			return err
		}

		err := tx.Model(&schema.Resource{}).
			Where("id = ?", review.ResourceID).
			Update("status", schema.ResourceStatusInactive).Error
		if err != nil {
			return fmt.Errorf("failed to deactivate resource: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// resolveReview flips one PENDING review to a terminal status, stamping
// reviewer and resolution time. The row is locked for the transaction so
// two reviewers cannot resolve it concurrently.
func (s *pgStore) resolveReview(tx *gorm.DB, reviewID int64, reviewer string, status schema.ReviewStatus, review *schema.ReviewState) error {
	err := tx.Clauses(lockForUpdate()).Where("id = ?", reviewID).First(review).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrReviewNotFound
		}
		return fmt.Errorf("failed to get review: %w", err)
	}
	if review.Status != schema.ReviewStatusPending {
		return domain.ErrReviewAlreadyResolved
	}

	now := s.clock.Now().UTC()
	review.Status = status
	review.Reviewer = &reviewer
	review.ReviewedAt = &now
	if err := tx.Save(review).Error; err != nil {
		return fmt.Errorf("failed to resolve review: %w", err)
	}
	return nil
}

// ListResourcesForSweep retrieves a keyset page of non-inactive
// resources ordered by ID, for freshness recomputation
func (s *pgStore) ListResourcesForSweep(ctx context.Context, afterID int64, limit int) ([]schema.Resource, error) {
	var resources []schema.Resource
	err := s.db.WithContext(ctx).
		Select("id", "status", "last_scraped", "freshness_score").
		Where("id > ? AND status <> ?", afterID, schema.ResourceStatusInactive).
		Order("id ASC").
		Limit(limit).
		Find(&resources).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list resources for sweep: %w", err)
	}
	return resources, nil
}

// UpdateResourceFreshness stores a recomputed freshness score and
// serving status for one resource
func (s *pgStore) UpdateResourceFreshness(ctx context.Context, id int64, score float64, status schema.ResourceStatus) error {
	err := s.db.WithContext(ctx).
		Model(&schema.Resource{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"freshness_score": score,
			"status":          status,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update resource freshness: %w", err)
	}
	return nil
}

// Package loader persists canonical candidates into the directory
// store. It resolves entities, merges candidates into existing resources
// field by field, records every applied change in the audit trail and
// flags sensitive changes for human review.
package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vibe4vets/directory-indexer/internal/adapter"
	"github.com/vibe4vets/directory-indexer/internal/domain"
	"github.com/vibe4vets/directory-indexer/internal/logger"
	"github.com/vibe4vets/directory-indexer/internal/store/schema"
)

// Action classifies the outcome of loading one candidate
type Action string

const (
	// ActionCreated indicates a new resource row was created
	ActionCreated Action = "created"
	// ActionUpdated indicates at least one field or the attribution changed
	ActionUpdated Action = "updated"
	// ActionSkipped indicates the candidate matched the stored record exactly
	ActionSkipped Action = "skipped"
	// ActionFailed indicates the candidate's transaction rolled back
	ActionFailed Action = "failed"
)

// LoadResult reports the outcome of loading one candidate
type LoadResult struct {
	Action         Action
	ResourceID     int64
	OrganizationID int64
	LocationID     *int64
	SourceURL      string
	Title          string
	Err            error
}

// BatchResult aggregates per-candidate outcomes of one batch
type BatchResult struct {
	Created int
	Updated int
	Skipped int
	Failed  []LoadResult
}

// Loader writes candidates into the store, one transaction per
// candidate. The entity caches live for the lifetime of the loader, so
// one loader instance serves exactly one ingestion run.
type Loader struct {
	db    *gorm.DB
	clock adapter.Clock

	// orgCache maps lowercased organization names to committed row IDs
	orgCache map[string]int64
	// sourceCache maps source names to committed row IDs
	sourceCache map[string]int64
}

// pendingCache holds entity IDs resolved inside an open transaction.
// They are promoted into the run caches only after the commit, so a
// rollback never poisons later candidates with phantom IDs.
type pendingCache struct {
	orgs    map[string]int64
	sources map[string]int64
}

func newPendingCache() *pendingCache {
	return &pendingCache{
		orgs:    make(map[string]int64),
		sources: make(map[string]int64),
	}
}

// New creates a loader for one ingestion run
func New(db *gorm.DB, clock adapter.Clock) *Loader {
	return &Loader{
		db:          db,
		clock:       clock,
		orgCache:    make(map[string]int64),
		sourceCache: make(map[string]int64),
	}
}

// Load persists one candidate inside its own transaction. A failure
// rolls back every write for this candidate and never affects others.
func (l *Loader) Load(ctx context.Context, c domain.Candidate) LoadResult {
	failed := func(err error) LoadResult {
		return LoadResult{
			Action:    ActionFailed,
			SourceURL: c.SourceURL,
			Title:     c.Title,
			Err:       err,
		}
	}

	if err := c.Validate(); err != nil {
		return failed(err)
	}

	pending := newPendingCache()
	var result LoadResult
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := l.resolveOrganization(tx, &c, pending)
		if err != nil {
			return err
		}
		loc, err := l.resolveLocation(tx, &c, org)
		if err != nil {
			return err
		}
		src, err := l.resolveSource(tx, &c, pending)
		if err != nil {
			return err
		}

		sourceURL := strings.TrimSpace(c.SourceURL)
		var existing schema.Resource
		err = tx.Where("source_url = ?", sourceURL).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			result, err = l.createResource(tx, &c, org, loc, src)
			return err
		case err != nil:
			return fmt.Errorf("failed to look up resource: %w", err)
		default:
			result, err = l.updateResource(tx, &c, &existing, loc, src)
			return err
		}
	})
	if err != nil {
		return failed(err)
	}

	for key, id := range pending.orgs {
		l.orgCache[key] = id
	}
	for name, id := range pending.sources {
		l.sourceCache[name] = id
	}
	return result
}

// LoadBatch persists a batch of candidates, one transaction each, and
// aggregates the outcomes. Failed candidates are collected rather than
// aborting the batch.
func (l *Loader) LoadBatch(ctx context.Context, candidates []domain.Candidate) BatchResult {
	var batch BatchResult
	for i := range candidates {
		result := l.Load(ctx, candidates[i])
		switch result.Action {
		case ActionCreated:
			batch.Created++
		case ActionUpdated:
			batch.Updated++
		case ActionSkipped:
			batch.Skipped++
		case ActionFailed:
			batch.Failed = append(batch.Failed, result)
			logger.WarnCtx(ctx, "failed to load candidate",
				zap.String("sourceURL", result.SourceURL),
				zap.String("title", result.Title),
				zap.Error(result.Err),
			)
		}
	}
	return batch
}

// rawHash returns the hex-encoded SHA-256 of a candidate's raw payload
func rawHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

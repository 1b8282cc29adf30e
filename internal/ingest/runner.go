// Package ingest orchestrates one ingestion run: it executes every
// registered connector, isolates per-source failures, loads candidates
// through the loader and keeps per-source health current.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vibe4vets/directory-indexer/internal/adapter"
	"github.com/vibe4vets/directory-indexer/internal/connector"
	"github.com/vibe4vets/directory-indexer/internal/loader"
	"github.com/vibe4vets/directory-indexer/internal/logger"
	"github.com/vibe4vets/directory-indexer/internal/store/schema"
)

// RunSummary aggregates the outcome of one ingestion run across all
// registered connectors.
type RunSummary struct {
	JobRunID string
	Sources  int
	Created  int
	Updated  int
	Skipped  int
	Errors   []string
}

// HasErrors reports whether any source or candidate failed during the run
func (s *RunSummary) HasErrors() bool {
	return len(s.Errors) > 0
}

// Runner executes ingestion runs over a connector registry
type Runner struct {
	db                *gorm.DB
	registry          *connector.Registry
	clock             adapter.Clock
	maxErrorsSurfaced int
}

// NewRunner creates an ingestion runner
func NewRunner(db *gorm.DB, registry *connector.Registry, clock adapter.Clock, maxErrorsSurfaced int) *Runner {
	return &Runner{
		db:                db,
		registry:          registry,
		clock:             clock,
		maxErrorsSurfaced: maxErrorsSurfaced,
	}
}

// Run executes every registered connector in registration order. A
// failing connector is recorded against its source and skipped; it never
// blocks the others. Each run gets a fresh loader so entity caches
// cannot leak stale IDs across runs.
func (r *Runner) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{
		JobRunID: uuid.NewString(),
	}
	ld := loader.New(r.db, r.clock)

	for _, conn := range r.registry.All() {
		meta := conn.Metadata()
		summary.Sources++

		src, err := r.ensureSource(ctx, meta)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", meta.Name, err))
			logger.ErrorCtx(ctx, err, zap.String("source", meta.Name))
			continue
		}

		logger.InfoCtx(ctx, "running connector",
			zap.String("source", meta.Name),
			zap.String("jobRunID", summary.JobRunID),
		)

		candidates, err := conn.Run(ctx)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", meta.Name, err))
			r.recordFailure(ctx, src, classifyError(err), err, summary.JobRunID)
			continue
		}

		valid := candidates[:0]
		for i := range candidates {
			if err := candidates[i].Validate(); err != nil {
				logger.WarnCtx(ctx, "dropping invalid candidate",
					zap.String("source", meta.Name),
					zap.String("title", candidates[i].Title),
					zap.Error(err),
				)
				continue
			}
			valid = append(valid, candidates[i])
		}

		batch := ld.LoadBatch(ctx, valid)
		summary.Created += batch.Created
		summary.Updated += batch.Updated
		summary.Skipped += batch.Skipped
		for _, failed := range batch.Failed {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %s: %v", meta.Name, failed.SourceURL, failed.Err))
			r.recordCandidateFailure(ctx, src, failed, summary.JobRunID)
		}

		// Partial candidate failures do not fail the run for the source;
		// the source produced data, so its consecutive-failure streak resets
		r.recordSuccess(ctx, src)

		logger.InfoCtx(ctx, "connector finished",
			zap.String("source", meta.Name),
			zap.Int("candidates", len(valid)),
			zap.Int("created", batch.Created),
			zap.Int("updated", batch.Updated),
			zap.Int("skipped", batch.Skipped),
			zap.Int("failed", len(batch.Failed)),
		)
	}

	r.logSummary(ctx, summary)
	return summary, nil
}

// ensureSource finds or creates the source row for a connector's
// metadata. The URL is kept current; an existing tier is preserved.
func (r *Runner) ensureSource(ctx context.Context, meta connector.SourceMetadata) (*schema.Source, error) {
	var src schema.Source
	err := r.db.WithContext(ctx).Where("name = ?", meta.Name).First(&src).Error
	switch {
	case err == nil:
		if src.URL != meta.URL {
			if err := r.db.WithContext(ctx).Model(&src).Update("url", meta.URL).Error; err != nil {
				return nil, fmt.Errorf("failed to update source url: %w", err)
			}
			src.URL = meta.URL
		}
		return &src, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		src = schema.Source{
			Name:         meta.Name,
			URL:          meta.URL,
			Tier:         int(meta.Tier),
			HealthStatus: schema.HealthStatusHealthy,
		}
		if err := r.db.WithContext(ctx).Create(&src).Error; err != nil {
			return nil, fmt.Errorf("failed to create source: %w", err)
		}
		return &src, nil
	default:
		return nil, fmt.Errorf("failed to look up source: %w", err)
	}
}

// recordSuccess resets the source's consecutive-failure streak and
// re-derives its health from the fresh success.
func (r *Runner) recordSuccess(ctx context.Context, src *schema.Source) {
	now := r.clock.Now().UTC()
	updates := map[string]interface{}{
		"error_count":   0,
		"last_run":      now,
		"last_success":  now,
		"health_status": CalculateHealthStatus(0, &now, now),
	}
	if err := r.db.WithContext(ctx).Model(src).Updates(updates).Error; err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to record source success: %w", err),
			zap.String("source", src.Name),
		)
	}
}

// recordFailure increments the source's consecutive-failure streak,
// re-derives its health and appends a diagnostic row.
func (r *Runner) recordFailure(ctx context.Context, src *schema.Source, errType schema.ErrorType, runErr error, jobRunID string) {
	now := r.clock.Now().UTC()
	errorCount := src.ErrorCount + 1
	updates := map[string]interface{}{
		"error_count":   errorCount,
		"last_run":      now,
		"health_status": CalculateHealthStatus(errorCount, src.LastSuccess, now),
	}
	if err := r.db.WithContext(ctx).Model(src).Updates(updates).Error; err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to record source failure: %w", err),
			zap.String("source", src.Name),
		)
	}

	srcErr := schema.SourceError{
		SourceID:   src.ID,
		ErrorType:  errType,
		Message:    runErr.Error(),
		JobRunID:   &jobRunID,
		OccurredAt: now,
	}
	if err := r.db.WithContext(ctx).Create(&srcErr).Error; err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to record source error: %w", err),
			zap.String("source", src.Name),
		)
	}

	logger.ErrorCtx(ctx, fmt.Errorf("connector failed: %w", runErr),
		zap.String("source", src.Name),
		zap.String("errorType", string(errType)),
	)
}

// recordCandidateFailure appends a diagnostic row for one candidate
// whose transaction rolled back. The source streak is unaffected.
func (r *Runner) recordCandidateFailure(ctx context.Context, src *schema.Source, failed loader.LoadResult, jobRunID string) {
	now := r.clock.Now().UTC()
	srcErr := schema.SourceError{
		SourceID:   src.ID,
		ErrorType:  schema.ErrorTypeLoad,
		Message:    fmt.Sprintf("%s: %v", failed.SourceURL, failed.Err),
		JobRunID:   &jobRunID,
		OccurredAt: now,
	}
	if err := r.db.WithContext(ctx).Create(&srcErr).Error; err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to record candidate error: %w", err),
			zap.String("source", src.Name),
		)
	}
}

// logSummary logs the run outcome, surfacing at most maxErrorsSurfaced
// error messages.
func (r *Runner) logSummary(ctx context.Context, summary *RunSummary) {
	surfaced := summary.Errors
	if r.maxErrorsSurfaced > 0 && len(surfaced) > r.maxErrorsSurfaced {
		surfaced = surfaced[:r.maxErrorsSurfaced]
	}
	logger.InfoCtx(ctx, "ingestion run finished",
		zap.String("jobRunID", summary.JobRunID),
		zap.Int("sources", summary.Sources),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", len(summary.Errors)),
		zap.Strings("firstErrors", surfaced),
	)
}

// classifyError maps a connector failure to a diagnostic class. Network
// transport failures are distinguished; everything else from a connector
// is a payload problem.
func classifyError(err error) schema.ErrorType {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return schema.ErrorTypeNetwork
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return schema.ErrorTypeNetwork
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return schema.ErrorTypeNetwork
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "parse") || strings.Contains(msg, "unmarshal") ||
		strings.Contains(msg, "decode") || strings.Contains(msg, "header") {
		return schema.ErrorTypeParse
	}
	return schema.ErrorTypeUnknown
}

package sweeper

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/vibe4vets/directory-indexer/internal/adapter"
	"github.com/vibe4vets/directory-indexer/internal/logger"
	"github.com/vibe4vets/directory-indexer/internal/store"
	"github.com/vibe4vets/directory-indexer/internal/store/schema"
)

const (
	// freshWindow is the scrape age below which a resource scores full freshness
	freshWindow = 7 * 24 * time.Hour
	// staleCutoff is the scrape age at which a resource scores zero and is
	// hidden from end users until a connector sees it again
	staleCutoff = 90 * 24 * time.Hour
	// scoreEpsilon suppresses writes for sub-rounding score drift
	scoreEpsilon = 0.001
)

// FreshnessSweeperConfig holds configuration for the freshness sweeper
type FreshnessSweeperConfig struct {
	BatchSize      int           // Resources to score per batch
	WorkerPoolSize int           // Concurrent workers
	CycleInterval  time.Duration // Time to sleep between sweep cycles
}

// freshnessSweeper implements the Sweeper interface for freshness decay
type freshnessSweeper struct {
	config    *FreshnessSweeperConfig
	store     store.Store
	clock     adapter.Clock
	pool      pond.Pool
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewFreshnessSweeper creates a new freshness sweeper
func NewFreshnessSweeper(config *FreshnessSweeperConfig, st store.Store, clock adapter.Clock) Sweeper {
	return &freshnessSweeper{
		config:    config,
		store:     st,
		clock:     clock,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the sweeper's name
func (s *freshnessSweeper) Name() string {
	return "freshness-sweeper"
}

// FreshnessScore computes the decayed freshness for a scrape age. Full
// score inside the fresh window, then linear decay to zero at the stale
// cutoff.
func FreshnessScore(age time.Duration) float64 {
	switch {
	case age <= freshWindow:
		return 1.0
	case age >= staleCutoff:
		return 0.0
	default:
		decayed := float64(age-freshWindow) / float64(staleCutoff-freshWindow)
		return 1.0 - decayed
	}
}

// Start begins the sweeper's main loop
func (s *freshnessSweeper) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sweeper already running")
	}
	defer func() {
		s.running.Store(false)
		close(s.stoppedCh) // Signal that we've stopped
	}()

	logger.InfoCtx(ctx, "Starting freshness sweeper",
		zap.Int("batch_size", s.config.BatchSize),
		zap.Int("worker_pool_size", s.config.WorkerPoolSize),
		zap.Duration("cycle_interval", s.config.CycleInterval),
	)

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Freshness sweeper stopping due to context cancellation", zap.Error(ctx.Err()))
			return nil
		case <-s.stopChan:
			logger.InfoCtx(ctx, "Freshness sweeper stop requested")
			return nil
		default:
			if err := s.runSweepCycle(ctx); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.ErrorCtx(ctx, fmt.Errorf("sweep cycle failed: %w", err))
				}
			}
			// Sleep between cycles; interruptible so Stop stays prompt
			if !s.sleep(ctx, s.config.CycleInterval) {
				return nil
			}
		}
	}
}

// Stop gracefully stops the sweeper with timeout support
func (s *freshnessSweeper) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil // Already stopped
	}

	logger.InfoCtx(ctx, "Stopping freshness sweeper")
	close(s.stopChan)

	select {
	case <-s.stoppedCh:
		logger.InfoCtx(ctx, "Freshness sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Freshness sweeper stop interrupted by context timeout")
		return ctx.Err()
	}
}

// runSweepCycle rescores every non-inactive resource in keyset batches
func (s *freshnessSweeper) runSweepCycle(ctx context.Context) error {
	startTime := s.clock.Now()
	now := startTime.UTC()

	s.pool = pond.NewPool(
		s.config.WorkerPoolSize,
		pond.WithQueueSize(s.config.BatchSize),
		pond.WithContext(ctx),
	)

	var scanned, rescored, deactivated atomic.Int32
	afterID := int64(0)
	for {
		resources, err := s.store.ListResourcesForSweep(ctx, afterID, s.config.BatchSize)
		if err != nil {
			s.pool.StopAndWait()
			return fmt.Errorf("failed to list resources for sweep: %w", err)
		}
		if len(resources) == 0 {
			break
		}
		afterID = resources[len(resources)-1].ID

		for i := range resources {
			res := resources[i]
			s.pool.Submit(func() {
				scanned.Add(1)

				age := now.Sub(res.LastScraped)
				score := FreshnessScore(age)
				status := res.Status
				if age >= staleCutoff {
					status = schema.ResourceStatusInactive
				}

				if status == res.Status && math.Abs(score-res.FreshnessScore) < scoreEpsilon {
					return
				}

				if err := s.store.UpdateResourceFreshness(ctx, res.ID, score, status); err != nil {
					logger.ErrorCtx(ctx, err, zap.Int64("resource_id", res.ID))
					return
				}
				rescored.Add(1)
				if status == schema.ResourceStatusInactive {
					deactivated.Add(1)
					logger.InfoCtx(ctx, "resource deactivated for staleness",
						zap.Int64("resource_id", res.ID),
						zap.Duration("age", age),
					)
				}
			})
		}
	}

	s.pool.StopAndWait()

	logger.InfoCtx(ctx, "Sweep cycle completed",
		zap.Duration("duration", s.clock.Since(startTime)),
		zap.Int32("scanned", scanned.Load()),
		zap.Int32("rescored", rescored.Load()),
		zap.Int32("deactivated", deactivated.Load()),
	)
	return nil
}

// sleep sleeps for the given duration but can be interrupted by context
// cancellation or a stop request. Returns true if sleep completed.
func (s *freshnessSweeper) sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-s.clock.After(duration):
		return true
	case <-ctx.Done():
		return false
	case <-s.stopChan:
		return false
	}
}

package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/datatypes"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vibe4vets/directory-indexer/internal/domain"
	"github.com/vibe4vets/directory-indexer/internal/logger"
	"github.com/vibe4vets/directory-indexer/internal/store/schema"
)

var (
	testDB      *gorm.DB
	pgContainer *postgres.PostgresContainer
)

// TestMain sets up the test database before running tests
func TestMain(m *testing.M) {
	ctx := context.Background()

	if err := logger.Initialize(logger.Config{Debug: true}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Check if we should use an external database (for CI or local development)
	dbHost := os.Getenv("TEST_DB_HOST")
	dbPort := os.Getenv("TEST_DB_PORT")
	dbUser := os.Getenv("TEST_DB_USER")
	dbPassword := os.Getenv("TEST_DB_PASSWORD")
	dbName := os.Getenv("TEST_DB_NAME")

	var dsn string
	var err error

	if dbHost != "" {
		if dbPort == "" {
			dbPort = "5432"
		}
		if dbUser == "" {
			dbUser = "postgres"
		}
		if dbPassword == "" {
			dbPassword = "postgres"
		}
		if dbName == "" {
			dbName = "test_db"
		}

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			dbHost, dbPort, dbUser, dbPassword, dbName)

		fmt.Printf("Using external database: %s:%s/%s\n", dbHost, dbPort, dbName)
	} else {
		pgContainer, err = postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("test_db"),
			postgres.WithUsername("postgres"),
			postgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			fmt.Printf("Failed to start PostgreSQL container: %v\n", err)
			os.Exit(1)
		}

		dsn, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Printf("Failed to get connection string: %v\n", err)
			if err := pgContainer.Terminate(ctx); err != nil {
				fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
			}
			os.Exit(1)
		}

		fmt.Printf("Started PostgreSQL container\n")
	}

	testDB, err = gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		if pgContainer != nil {
			if err := pgContainer.Terminate(ctx); err != nil {
				fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
			}
		}
		os.Exit(1)
	}

	if err := initializeTestDatabase(testDB); err != nil {
		fmt.Printf("Failed to initialize database: %v\n", err)
		if pgContainer != nil {
			if err := pgContainer.Terminate(ctx); err != nil {
				fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
			}
		}
		os.Exit(1)
	}

	code := m.Run()

	if pgContainer != nil {
		if err := pgContainer.Terminate(ctx); err != nil {
			fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
		}
	}

	os.Exit(code)
}

// initializeTestDatabase runs the schema initialization SQL
func initializeTestDatabase(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	schemaPath := filepath.Join("..", "..", "db", "init_pg_db.sql")
	schemaSQL, err := os.ReadFile(schemaPath) //nolint:gosec,G304
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	if _, err := sqlDB.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) Since(t time.Time) time.Duration { return c.now.Sub(t) }

func (c *fixedClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// initTestLoader begins a transaction rolled back after the test and
// returns a loader bound to it together with the clock it ticks on.
func initTestLoader(t *testing.T) (*Loader, *gorm.DB, *fixedClock) {
	tx := testDB.Begin()
	require.NotNil(t, tx)
	require.NoError(t, tx.Error)

	t.Cleanup(func() {
		tx.Rollback()
	})

	clock := &fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return New(tx, clock), tx, clock
}

func makeCandidate(now time.Time) domain.Candidate {
	return domain.Candidate{
		Title:       "Housing Assistance Program",
		OrgName:     "Veteran Housing Alliance",
		OrgWebsite:  "https://vha.example.org",
		SourceURL:   "https://vha.example.org/programs/housing",
		Description: "Transitional housing placement for veterans.",
		Eligibility: "Veterans experiencing homelessness.",
		HowToApply:  "Call the intake line.",
		Cost:        "Free",
		Categories:  []string{"housing"},
		Tags:        []string{"transitional"},
		Scope:       domain.ScopeState,
		States:      []string{"ID"},
		Address:     "120 Main St",
		City:        "Boise",
		State:       "ID",
		ZipCode:     "83702",
		Phone:       "208-555-0100",
		Email:       "intake@vha.example.org",
		Website:     "https://vha.example.org/programs/housing",
		Hours:       "Mon-Fri 9:00-17:00",
		RawData:     datatypes.JSON(`{"id":"housing-1"}`),
		FetchedAt:   now,
		SourceName:  "nrd",
		SourceTier:  domain.TierEstablishedNonprofit,
	}
}

func TestLoadCreatesResource(t *testing.T) {
	l, tx, clock := initTestLoader(t)
	ctx := context.Background()
	c := makeCandidate(clock.now)

	result := l.Load(ctx, c)
	require.NoError(t, result.Err)
	assert.Equal(t, ActionCreated, result.Action)
	require.NotZero(t, result.ResourceID)

	var res schema.Resource
	require.NoError(t, tx.First(&res, result.ResourceID).Error)
	assert.Equal(t, "Housing Assistance Program", res.Title)
	assert.Equal(t, schema.ResourceStatusActive, res.Status)
	assert.InDelta(t, 1.0, res.FreshnessScore, 0.001)
	assert.InDelta(t, 0.8, res.ReliabilityScore, 0.001)
	assert.Equal(t, []string{"housing"}, []string(res.Categories))
	require.NotNil(t, res.LocationID)
	require.NotNil(t, res.SourceID)
	assert.Equal(t, clock.now, res.LastScraped.UTC())

	var org schema.Organization
	require.NoError(t, tx.First(&org, res.OrganizationID).Error)
	assert.Equal(t, "Veteran Housing Alliance", org.Name)
	require.NotNil(t, org.Website)
	assert.Equal(t, "https://vha.example.org", *org.Website)

	var loc schema.Location
	require.NoError(t, tx.First(&loc, *res.LocationID).Error)
	assert.Equal(t, "120 Main St", loc.Address)
	assert.Equal(t, "Boise", loc.City)

	var src schema.Source
	require.NoError(t, tx.First(&src, *res.SourceID).Error)
	assert.Equal(t, "nrd", src.Name)
	assert.Equal(t, 2, src.Tier)
	assert.Equal(t, schema.HealthStatusHealthy, src.HealthStatus)
	require.NotNil(t, src.LastSuccess)

	var records int64
	require.NoError(t, tx.Model(&schema.SourceRecord{}).Where("resource_id = ?", res.ID).Count(&records).Error)
	assert.Equal(t, int64(1), records)

	var changes int64
	require.NoError(t, tx.Model(&schema.ChangeLog{}).Where("resource_id = ?", res.ID).Count(&changes).Error)
	assert.Zero(t, changes)
}

func TestLoadIdenticalCandidateSkips(t *testing.T) {
	l, tx, clock := initTestLoader(t)
	ctx := context.Background()
	c := makeCandidate(clock.now)

	first := l.Load(ctx, c)
	require.NoError(t, first.Err)
	require.Equal(t, ActionCreated, first.Action)

	clock.now = clock.now.Add(24 * time.Hour)
	second := l.Load(ctx, c)
	require.NoError(t, second.Err)
	assert.Equal(t, ActionSkipped, second.Action)
	assert.Equal(t, first.ResourceID, second.ResourceID)

	var res schema.Resource
	require.NoError(t, tx.First(&res, first.ResourceID).Error)
	assert.Equal(t, clock.now, res.LastScraped.UTC())
	assert.InDelta(t, 1.0, res.FreshnessScore, 0.001)

	var changes int64
	require.NoError(t, tx.Model(&schema.ChangeLog{}).Where("resource_id = ?", res.ID).Count(&changes).Error)
	assert.Zero(t, changes)

	var reviews int64
	require.NoError(t, tx.Model(&schema.ReviewState{}).Where("resource_id = ?", res.ID).Count(&reviews).Error)
	assert.Zero(t, reviews)
}

func TestLoadRiskyChangeRaisesReview(t *testing.T) {
	l, tx, clock := initTestLoader(t)
	ctx := context.Background()
	c := makeCandidate(clock.now)

	first := l.Load(ctx, c)
	require.NoError(t, first.Err)

	clock.now = clock.now.Add(24 * time.Hour)
	c.Phone = "208-555-0199"
	second := l.Load(ctx, c)
	require.NoError(t, second.Err)
	assert.Equal(t, ActionUpdated, second.Action)

	var res schema.Resource
	require.NoError(t, tx.First(&res, first.ResourceID).Error)
	assert.Equal(t, schema.ResourceStatusNeedsReview, res.Status)
	assert.Equal(t, "208-555-0199", res.Phone)

	var changes []schema.ChangeLog
	require.NoError(t, tx.Where("resource_id = ?", res.ID).Find(&changes).Error)
	require.Len(t, changes, 1)
	assert.Equal(t, "phone", changes[0].Field)
	assert.Equal(t, "208-555-0100", changes[0].OldValue)
	assert.Equal(t, "208-555-0199", changes[0].NewValue)
	assert.Equal(t, schema.ChangeTypeRiskyChange, changes[0].ChangeType)

	var review schema.ReviewState
	require.NoError(t, tx.Where("resource_id = ?", res.ID).First(&review).Error)
	assert.Equal(t, schema.ReviewStatusPending, review.Status)
	assert.Equal(t, "Automated update changed sensitive fields", review.Reason)
}

func TestLoadAddressChangeRaisesReview(t *testing.T) {
	l, tx, clock := initTestLoader(t)
	ctx := context.Background()
	c := makeCandidate(clock.now)

	first := l.Load(ctx, c)
	require.NoError(t, first.Err)
	require.NotNil(t, first.LocationID)

	c.Address = "900 Relocated Ave"
	second := l.Load(ctx, c)
	require.NoError(t, second.Err)
	assert.Equal(t, ActionUpdated, second.Action)
	require.NotNil(t, second.LocationID)
	assert.NotEqual(t, *first.LocationID, *second.LocationID)

	var res schema.Resource
	require.NoError(t, tx.First(&res, first.ResourceID).Error)
	assert.Equal(t, schema.ResourceStatusNeedsReview, res.Status)

	var changes []schema.ChangeLog
	require.NoError(t, tx.Where("resource_id = ?", res.ID).Find(&changes).Error)
	require.Len(t, changes, 1)
	assert.Equal(t, "address", changes[0].Field)
	assert.Equal(t, schema.ChangeTypeRiskyChange, changes[0].ChangeType)
	assert.Contains(t, changes[0].OldValue, "120 Main St")
	assert.Contains(t, changes[0].NewValue, "900 Relocated Ave")
}

func TestLoadRoutineChangeStaysActive(t *testing.T) {
	l, tx, clock := initTestLoader(t)
	ctx := context.Background()
	c := makeCandidate(clock.now)

	first := l.Load(ctx, c)
	require.NoError(t, first.Err)

	clock.now = clock.now.Add(time.Hour)
	c.Description = "Transitional and permanent housing placement for veterans."
	second := l.Load(ctx, c)
	require.NoError(t, second.Err)
	assert.Equal(t, ActionUpdated, second.Action)

	var res schema.Resource
	require.NoError(t, tx.First(&res, first.ResourceID).Error)
	assert.Equal(t, schema.ResourceStatusActive, res.Status)

	var changes []schema.ChangeLog
	require.NoError(t, tx.Where("resource_id = ?", res.ID).Find(&changes).Error)
	require.Len(t, changes, 1)
	assert.Equal(t, "description", changes[0].Field)
	assert.Equal(t, schema.ChangeTypeUpdate, changes[0].ChangeType)

	var reviews int64
	require.NoError(t, tx.Model(&schema.ReviewState{}).Where("resource_id = ?", res.ID).Count(&reviews).Error)
	assert.Zero(t, reviews)
}

func TestLoadListFieldsNeverShrink(t *testing.T) {
	l, tx, clock := initTestLoader(t)
	ctx := context.Background()
	c := makeCandidate(clock.now)

	first := l.Load(ctx, c)
	require.NoError(t, first.Err)

	// A candidate missing previously known values must not remove them
	c.Categories = []string{"benefits"}
	c.Tags = nil
	second := l.Load(ctx, c)
	require.NoError(t, second.Err)
	assert.Equal(t, ActionUpdated, second.Action)

	var res schema.Resource
	require.NoError(t, tx.First(&res, first.ResourceID).Error)
	assert.Equal(t, []string{"housing", "benefits"}, []string(res.Categories))
	assert.Equal(t, []string{"transitional"}, []string(res.Tags))

	var changes []schema.ChangeLog
	require.NoError(t, tx.Where("resource_id = ?", res.ID).Find(&changes).Error)
	require.Len(t, changes, 1)
	assert.Equal(t, "categories", changes[0].Field)
	assert.Equal(t, "housing", changes[0].OldValue)
	assert.Equal(t, "housing, benefits", changes[0].NewValue)
}

func TestLoadEmptyIncomingNeverErases(t *testing.T) {
	l, tx, clock := initTestLoader(t)
	ctx := context.Background()
	c := makeCandidate(clock.now)

	first := l.Load(ctx, c)
	require.NoError(t, first.Err)

	c.Phone = ""
	c.Description = ""
	second := l.Load(ctx, c)
	require.NoError(t, second.Err)
	assert.Equal(t, ActionSkipped, second.Action)

	var res schema.Resource
	require.NoError(t, tx.First(&res, first.ResourceID).Error)
	assert.Equal(t, "208-555-0100", res.Phone)
	assert.Equal(t, "Transitional housing placement for veterans.", res.Description)
}

func TestLoadAttributionFollowsTrust(t *testing.T) {
	l, tx, clock := initTestLoader(t)
	ctx := context.Background()

	c := makeCandidate(clock.now)
	c.SourceName = "directory_aggregate"
	c.SourceTier = domain.TierDirectory
	first := l.Load(ctx, c)
	require.NoError(t, first.Err)

	// Same content from a more trustworthy source takes over silently
	c.SourceName = "va_facilities"
	c.SourceTier = domain.TierGovernment
	second := l.Load(ctx, c)
	require.NoError(t, second.Err)
	assert.Equal(t, ActionUpdated, second.Action)

	var res schema.Resource
	require.NoError(t, tx.First(&res, first.ResourceID).Error)
	require.NotNil(t, res.SourceID)
	var attributed schema.Source
	require.NoError(t, tx.First(&attributed, *res.SourceID).Error)
	assert.Equal(t, "va_facilities", attributed.Name)
	assert.InDelta(t, 1.0, res.ReliabilityScore, 0.001)

	var changes int64
	require.NoError(t, tx.Model(&schema.ChangeLog{}).Where("resource_id = ?", res.ID).Count(&changes).Error)
	assert.Zero(t, changes)

	// A less trustworthy source never degrades the attribution
	c.SourceName = "directory_aggregate"
	c.SourceTier = domain.TierDirectory
	third := l.Load(ctx, c)
	require.NoError(t, third.Err)
	assert.Equal(t, ActionSkipped, third.Action)

	require.NoError(t, tx.First(&res, first.ResourceID).Error)
	require.NoError(t, tx.First(&attributed, *res.SourceID).Error)
	assert.Equal(t, "va_facilities", attributed.Name)
	assert.InDelta(t, 1.0, res.ReliabilityScore, 0.001)
}

func TestLoadOrganizationDedupAndBackfill(t *testing.T) {
	l, tx, clock := initTestLoader(t)
	ctx := context.Background()

	c := makeCandidate(clock.now)
	c.OrgWebsite = ""
	first := l.Load(ctx, c)
	require.NoError(t, first.Err)

	// A later run sees the same organization under different casing,
	// this time with a website
	c.OrgName = "VETERAN HOUSING ALLIANCE"
	c.OrgWebsite = "https://vha.example.org"
	c.SourceURL = "https://vha.example.org/programs/counseling"
	c.Title = "Housing Counseling"
	laterRun := New(tx, clock)
	second := laterRun.Load(ctx, c)
	require.NoError(t, second.Err)
	assert.Equal(t, ActionCreated, second.Action)
	assert.Equal(t, first.OrganizationID, second.OrganizationID)

	var orgs int64
	require.NoError(t, tx.Model(&schema.Organization{}).Count(&orgs).Error)
	assert.Equal(t, int64(1), orgs)

	var org schema.Organization
	require.NoError(t, tx.First(&org, first.OrganizationID).Error)
	assert.Equal(t, "Veteran Housing Alliance", org.Name)
	require.NotNil(t, org.Website)
	assert.Equal(t, "https://vha.example.org", *org.Website)
}

func TestLoadPartialAddressCreatesNoLocation(t *testing.T) {
	l, tx, clock := initTestLoader(t)
	ctx := context.Background()

	c := makeCandidate(clock.now)
	c.City = ""
	result := l.Load(ctx, c)
	require.NoError(t, result.Err)

	var res schema.Resource
	require.NoError(t, tx.First(&res, result.ResourceID).Error)
	assert.Nil(t, res.LocationID)

	var locations int64
	require.NoError(t, tx.Model(&schema.Location{}).Count(&locations).Error)
	assert.Zero(t, locations)
}

func TestLoadInvalidCandidateFailsWithoutWrites(t *testing.T) {
	l, tx, clock := initTestLoader(t)
	ctx := context.Background()

	c := makeCandidate(clock.now)
	c.Title = ""
	result := l.Load(ctx, c)
	assert.Equal(t, ActionFailed, result.Action)
	assert.ErrorIs(t, result.Err, domain.ErrCandidateMissingTitle)

	var resources int64
	require.NoError(t, tx.Model(&schema.Resource{}).Count(&resources).Error)
	assert.Zero(t, resources)
}

func TestLoadBatchAggregatesOutcomes(t *testing.T) {
	l, _, clock := initTestLoader(t)
	ctx := context.Background()

	a := makeCandidate(clock.now)
	b := makeCandidate(clock.now)
	b.Title = "Job Placement"
	b.SourceURL = "https://vha.example.org/programs/jobs"
	invalid := makeCandidate(clock.now)
	invalid.SourceURL = ""

	batch := l.LoadBatch(ctx, []domain.Candidate{a, b, invalid})
	assert.Equal(t, 2, batch.Created)
	assert.Zero(t, batch.Updated)
	assert.Zero(t, batch.Skipped)
	require.Len(t, batch.Failed, 1)
	assert.ErrorIs(t, batch.Failed[0].Err, domain.ErrCandidateMissingSourceURL)

	// Re-ingest the two valid ones unchanged
	batch = l.LoadBatch(ctx, []domain.Candidate{a, b})
	assert.Zero(t, batch.Created)
	assert.Equal(t, 2, batch.Skipped)
	assert.Empty(t, batch.Failed)
}

func TestLoadLifecycle(t *testing.T) {
	l, tx, clock := initTestLoader(t)
	ctx := context.Background()

	// Day 1: first sighting without a phone number
	c := makeCandidate(clock.now)
	c.Phone = ""
	first := l.Load(ctx, c)
	require.NoError(t, first.Err)
	require.Equal(t, ActionCreated, first.Action)

	// Day 2: the source publishes a phone number
	clock.now = clock.now.Add(24 * time.Hour)
	c.Phone = "208-555-0100"
	second := l.Load(ctx, c)
	require.NoError(t, second.Err)
	assert.Equal(t, ActionUpdated, second.Action)

	var res schema.Resource
	require.NoError(t, tx.First(&res, first.ResourceID).Error)
	assert.Equal(t, schema.ResourceStatusNeedsReview, res.Status)

	var changes []schema.ChangeLog
	require.NoError(t, tx.Where("resource_id = ?", res.ID).Find(&changes).Error)
	require.Len(t, changes, 1)
	assert.Equal(t, "phone", changes[0].Field)
	assert.Equal(t, schema.ChangeTypeRiskyChange, changes[0].ChangeType)

	// Day 3: nothing changed upstream, the pending review survives
	clock.now = clock.now.Add(24 * time.Hour)
	third := l.Load(ctx, c)
	require.NoError(t, third.Err)
	assert.Equal(t, ActionSkipped, third.Action)

	require.NoError(t, tx.First(&res, first.ResourceID).Error)
	assert.Equal(t, schema.ResourceStatusNeedsReview, res.Status)
	assert.Equal(t, clock.now, res.LastScraped.UTC())

	var reviews int64
	require.NoError(t, tx.Model(&schema.ReviewState{}).Where("resource_id = ? AND status = ?", res.ID, schema.ReviewStatusPending).Count(&reviews).Error)
	assert.Equal(t, int64(1), reviews)
}

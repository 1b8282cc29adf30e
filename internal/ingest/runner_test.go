package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
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

	"github.com/vibe4vets/directory-indexer/internal/connector"
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

// fakeConnector is a mutable connector whose outcome tests steer between
// runs.
type fakeConnector struct {
	meta       connector.SourceMetadata
	candidates []domain.Candidate
	err        error
}

func (f *fakeConnector) Metadata() connector.SourceMetadata { return f.meta }

func (f *fakeConnector) Run(ctx context.Context) ([]domain.Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

func fakeMetadata(name string) connector.SourceMetadata {
	return connector.SourceMetadata{
		Name:             name,
		URL:              fmt.Sprintf("https://%s.example.org", name),
		Tier:             domain.TierEstablishedNonprofit,
		RefreshFrequency: 24 * time.Hour,
	}
}

func fakeCandidate(sourceName string, now time.Time) domain.Candidate {
	return domain.Candidate{
		Title:       "Benefits Counseling",
		OrgName:     "Veteran Support Center",
		SourceURL:   fmt.Sprintf("https://%s.example.org/benefits-counseling", sourceName),
		Description: "One-on-one benefits counseling for veterans.",
		Categories:  []string{"benefits"},
		Scope:       domain.ScopeState,
		States:      []string{"ID"},
		RawData:     datatypes.JSON(`{"id":"benefits-1"}`),
		FetchedAt:   now,
		SourceName:  sourceName,
		SourceTier:  domain.TierEstablishedNonprofit,
	}
}

// initTestRunner begins a transaction rolled back after the test and
// returns a runner bound to it together with the clock it ticks on.
func initTestRunner(t *testing.T, registry *connector.Registry) (*Runner, *gorm.DB, *fixedClock) {
	tx := testDB.Begin()
	require.NotNil(t, tx)
	require.NoError(t, tx.Error)

	t.Cleanup(func() {
		tx.Rollback()
	})

	clock := &fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewRunner(tx, registry, clock, 5), tx, clock
}

func getSource(t *testing.T, tx *gorm.DB, name string) schema.Source {
	t.Helper()
	var src schema.Source
	require.NoError(t, tx.Where("name = ?", name).First(&src).Error)
	return src
}

func TestRunAccumulatesFailuresAndRecovers(t *testing.T) {
	conn := &fakeConnector{
		meta: fakeMetadata("flaky_source"),
		err:  errors.New("upstream returned garbage"),
	}
	registry := connector.NewRegistry()
	registry.Register(conn)
	runner, tx, clock := initTestRunner(t, registry)
	ctx := context.Background()

	wantHealth := []schema.HealthStatus{
		schema.HealthStatusDegraded,
		schema.HealthStatusDegraded,
		schema.HealthStatusFailing,
	}
	for i, want := range wantHealth {
		summary, err := runner.Run(ctx)
		require.NoError(t, err)
		assert.True(t, summary.HasErrors())
		require.Len(t, summary.Errors, 1)
		assert.Contains(t, summary.Errors[0], "flaky_source")

		src := getSource(t, tx, "flaky_source")
		assert.Equal(t, i+1, src.ErrorCount)
		assert.Equal(t, want, src.HealthStatus)
		require.NotNil(t, src.LastRun)
		assert.Nil(t, src.LastSuccess)

		var srcErrs []schema.SourceError
		require.NoError(t, tx.Where("source_id = ?", src.ID).Order("id").Find(&srcErrs).Error)
		require.Len(t, srcErrs, i+1)
		latest := srcErrs[len(srcErrs)-1]
		assert.Equal(t, schema.ErrorTypeUnknown, latest.ErrorType)
		assert.Contains(t, latest.Message, "upstream returned garbage")
		require.NotNil(t, latest.JobRunID)
		assert.Equal(t, summary.JobRunID, *latest.JobRunID)
	}

	// A successful run resets the streak and re-derives health
	conn.err = nil
	conn.candidates = []domain.Candidate{fakeCandidate("flaky_source", clock.now)}

	summary, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.False(t, summary.HasErrors())
	assert.Equal(t, 1, summary.Created)

	src := getSource(t, tx, "flaky_source")
	assert.Equal(t, 0, src.ErrorCount)
	assert.Equal(t, schema.HealthStatusHealthy, src.HealthStatus)
	require.NotNil(t, src.LastSuccess)
	assert.Equal(t, clock.now, src.LastSuccess.UTC())
}

func TestRunIsolatesFailingSource(t *testing.T) {
	registry := connector.NewRegistry()
	broken := &fakeConnector{
		meta: fakeMetadata("broken_source"),
		err:  errors.New("failed to parse page"),
	}
	registry.Register(broken)
	healthy := &fakeConnector{meta: fakeMetadata("steady_source")}
	registry.Register(healthy)
	runner, tx, clock := initTestRunner(t, registry)
	healthy.candidates = []domain.Candidate{fakeCandidate("steady_source", clock.now)}

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Sources)
	assert.Equal(t, 1, summary.Created)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "broken_source")

	brokenSrc := getSource(t, tx, "broken_source")
	assert.Equal(t, schema.HealthStatusDegraded, brokenSrc.HealthStatus)
	assert.Equal(t, 1, brokenSrc.ErrorCount)

	var srcErr schema.SourceError
	require.NoError(t, tx.Where("source_id = ?", brokenSrc.ID).First(&srcErr).Error)
	assert.Equal(t, schema.ErrorTypeParse, srcErr.ErrorType)

	steadySrc := getSource(t, tx, "steady_source")
	assert.Equal(t, schema.HealthStatusHealthy, steadySrc.HealthStatus)
	assert.Equal(t, 0, steadySrc.ErrorCount)
}

func TestRunKeepsRegisteredTierAndFollowsURL(t *testing.T) {
	conn := &fakeConnector{meta: fakeMetadata("moving_source")}
	registry := connector.NewRegistry()
	registry.Register(conn)
	runner, tx, _ := initTestRunner(t, registry)
	ctx := context.Background()

	_, err := runner.Run(ctx)
	require.NoError(t, err)

	conn.meta.URL = "https://moved.example.org/v2"
	conn.meta.Tier = domain.TierCommunity
	_, err = runner.Run(ctx)
	require.NoError(t, err)

	src := getSource(t, tx, "moving_source")
	assert.Equal(t, "https://moved.example.org/v2", src.URL)
	assert.Equal(t, int(domain.TierEstablishedNonprofit), src.Tier)
}

func TestRunDropsInvalidCandidates(t *testing.T) {
	conn := &fakeConnector{meta: fakeMetadata("mixed_source")}
	registry := connector.NewRegistry()
	registry.Register(conn)
	runner, tx, clock := initTestRunner(t, registry)

	invalid := fakeCandidate("mixed_source", clock.now)
	invalid.Title = ""
	conn.candidates = []domain.Candidate{invalid, fakeCandidate("mixed_source", clock.now)}

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, summary.HasErrors())
	assert.Equal(t, 1, summary.Created)

	src := getSource(t, tx, "mixed_source")
	assert.Equal(t, schema.HealthStatusHealthy, src.HealthStatus)
	assert.Equal(t, 0, src.ErrorCount)

	var count int64
	require.NoError(t, tx.Model(&schema.SourceError{}).Where("source_id = ?", src.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want schema.ErrorType
	}{
		{"dns failure", &net.DNSError{Name: "example.org", Err: "no such host"}, schema.ErrorTypeNetwork},
		{"url error", &url.Error{Op: "Get", URL: "https://example.org", Err: errors.New("connection refused")}, schema.ErrorTypeNetwork},
		{"wrapped deadline", fmt.Errorf("failed to fetch: %w", context.DeadlineExceeded), schema.ErrorTypeNetwork},
		{"canceled", context.Canceled, schema.ErrorTypeNetwork},
		{"parse message", errors.New("failed to parse page"), schema.ErrorTypeParse},
		{"unmarshal message", errors.New("failed to unmarshal payload"), schema.ErrorTypeParse},
		{"missing header", errors.New("header missing required column \"zip\""), schema.ErrorTypeParse},
		{"anything else", errors.New("boom"), schema.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyError(tt.err))
		})
	}
}

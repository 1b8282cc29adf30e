package curated

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibe4vets/directory-indexer/internal/domain"
	"github.com/vibe4vets/directory-indexer/internal/logger"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) Since(t time.Time) time.Duration { return c.now.Sub(t) }

func (c *fixedClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: true}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func writeCuratedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "curated.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunParsesEntries(t *testing.T) {
	path := writeCuratedFile(t, `
- title: Peer Support Line
  org: Veteran Crisis Network
  org_website: https://vcn.example.org
  url: https://vcn.example.org/support-line
  description: Peer-to-peer support line staffed by veterans.
  eligibility: All veterans and their families.
  categories: [mental-health]
  tags: [peer-support]
  scope: national
  phone: 800-555-0100
- title: County Job Fair
  org: Veterans Employment Council
  url: https://vec.example.org/job-fair
  scope: local
  states: [TX]
`)

	clock := &fixedClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	c := New(clock, path)

	candidates, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	first := candidates[0]
	assert.Equal(t, "Peer Support Line", first.Title)
	assert.Equal(t, "Veteran Crisis Network", first.OrgName)
	assert.Equal(t, "https://vcn.example.org/support-line", first.SourceURL)
	assert.Equal(t, domain.ScopeNational, first.Scope)
	assert.Equal(t, []string{"mental-health"}, first.Categories)
	assert.Equal(t, "800-555-0100", first.Phone)
	assert.Equal(t, domain.TierCommunity, first.SourceTier)
	assert.Equal(t, clock.now, first.FetchedAt)
	assert.NotEmpty(t, first.RawData)

	second := candidates[1]
	assert.Equal(t, domain.ScopeLocal, second.Scope)
	assert.Equal(t, []string{"TX"}, second.States)
}

func TestRunSkipsEntriesWithoutIdentity(t *testing.T) {
	path := writeCuratedFile(t, `
- title: Missing URL
  org: Somewhere
- url: https://example.org/missing-title
- title: Valid Entry
  org: Org
  url: https://example.org/valid
`)

	c := New(&fixedClock{now: time.Now()}, path)
	candidates, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Valid Entry", candidates[0].Title)
}

func TestRunFailsOnMissingFile(t *testing.T) {
	c := New(&fixedClock{now: time.Now()}, filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := c.Run(context.Background())
	assert.Error(t, err)
}

func TestRunFailsOnMalformedYAML(t *testing.T) {
	path := writeCuratedFile(t, "{{not yaml")
	c := New(&fixedClock{now: time.Now()}, path)
	_, err := c.Run(context.Background())
	assert.Error(t, err)
}

func TestMetadata(t *testing.T) {
	c := New(&fixedClock{now: time.Now()}, "/tmp/curated.yaml")
	meta := c.Metadata()
	assert.Equal(t, "curated", meta.Name)
	assert.Equal(t, domain.TierCommunity, meta.Tier)
	assert.False(t, meta.RequiresAuth)
}

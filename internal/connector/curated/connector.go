// Package curated ingests the hand-maintained YAML reference file of
// community-recommended programs that no upstream API covers.
package curated

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/vibe4vets/directory-indexer/internal/adapter"
	"github.com/vibe4vets/directory-indexer/internal/connector"
	"github.com/vibe4vets/directory-indexer/internal/domain"
	"github.com/vibe4vets/directory-indexer/internal/logger"
)

const sourceName = "curated"

// entry is one curated program in the YAML file
type entry struct {
	Title       string   `yaml:"title"`
	Org         string   `yaml:"org"`
	OrgWebsite  string   `yaml:"org_website"`
	URL         string   `yaml:"url"`
	Description string   `yaml:"description"`
	Eligibility string   `yaml:"eligibility"`
	HowToApply  string   `yaml:"how_to_apply"`
	Cost        string   `yaml:"cost"`
	Categories  []string `yaml:"categories"`
	Tags        []string `yaml:"tags"`
	Scope       string   `yaml:"scope"`
	States      []string `yaml:"states"`
	Phone       string   `yaml:"phone"`
	Email       string   `yaml:"email"`
	Website     string   `yaml:"website"`
	Hours       string   `yaml:"hours"`
}

// Curated implements connector.Connector over a YAML reference file
type Curated struct {
	clock adapter.Clock
	path  string
}

// New creates a curated-file connector
func New(clock adapter.Clock, path string) *Curated {
	return &Curated{
		clock: clock,
		path:  path,
	}
}

// Metadata returns the static source description
func (c *Curated) Metadata() connector.SourceMetadata {
	return connector.SourceMetadata{
		Name:             sourceName,
		URL:              "file://" + c.path,
		Tier:             domain.TierCommunity,
		RefreshFrequency: 24 * time.Hour,
		RequiresAuth:     false,
	}
}

// Run parses the YAML file. Entries missing identity fields are logged
// and skipped; an unreadable or unparsable file fails the run.
func (c *Curated) Run(ctx context.Context) ([]domain.Candidate, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curated file: %w", err)
	}

	var entries []entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse curated file: %w", err)
	}

	now := c.clock.Now().UTC()
	candidates := make([]domain.Candidate, 0, len(entries))
	for i, e := range entries {
		if e.Title == "" || e.URL == "" {
			logger.WarnCtx(ctx, "skipping curated entry without title or url",
				zap.String("source", sourceName),
				zap.Int("index", i),
			)
			continue
		}

		raw, err := json.Marshal(e)
		if err != nil {
			continue
		}

		scope := domain.Scope(e.Scope)
		if scope == "" {
			scope = domain.ScopeNational
		}

		candidates = append(candidates, domain.Candidate{
			Title:       e.Title,
			OrgName:     e.Org,
			OrgWebsite:  e.OrgWebsite,
			SourceURL:   e.URL,
			Description: e.Description,
			Eligibility: e.Eligibility,
			HowToApply:  e.HowToApply,
			Cost:        e.Cost,
			Categories:  e.Categories,
			Tags:        e.Tags,
			Scope:       scope,
			States:      e.States,
			Phone:       e.Phone,
			Email:       e.Email,
			Website:     e.Website,
			Hours:       e.Hours,
			RawData:     raw,
			FetchedAt:   now,
			SourceName:  sourceName,
			SourceTier:  domain.TierCommunity,
		})
	}

	return candidates, nil
}

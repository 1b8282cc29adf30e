// Package statebenefits ingests the contact table of the state veterans
// affairs offices PDF, pre-extracted to CSV by the offline tabula step.
package statebenefits

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/vibe4vets/directory-indexer/internal/adapter"
	"github.com/vibe4vets/directory-indexer/internal/connector"
	"github.com/vibe4vets/directory-indexer/internal/domain"
	"github.com/vibe4vets/directory-indexer/internal/logger"
)

const sourceName = "state_benefits"

// StateBenefits implements connector.Connector over the extracted table
type StateBenefits struct {
	clock adapter.Clock
	path  string
}

// New creates a state benefits connector reading the extracted table
func New(clock adapter.Clock, path string) *StateBenefits {
	return &StateBenefits{
		clock: clock,
		path:  path,
	}
}

// Metadata returns the static source description
func (c *StateBenefits) Metadata() connector.SourceMetadata {
	return connector.SourceMetadata{
		Name:             sourceName,
		URL:              "https://www.nasdva.us",
		Tier:             domain.TierGovernment,
		RefreshFrequency: 90 * 24 * time.Hour,
		RequiresAuth:     false,
	}
}

// Run parses the extracted contact table. Rows that fail the column
// heuristics are logged and skipped.
func (c *StateBenefits) Run(ctx context.Context) ([]domain.Candidate, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open extracted table: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.WarnCtx(ctx, "failed to close extracted table", zap.Error(err))
		}
	}()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	now := c.clock.Now().UTC()
	var candidates []domain.Candidate
	line := 0
	for {
		line++
		cols, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.WarnCtx(ctx, "skipping malformed table row",
				zap.String("source", sourceName),
				zap.Int("line", line),
				zap.Error(err),
			)
			continue
		}

		row, ok := parseRow(cols)
		if !ok {
			logger.WarnCtx(ctx, "skipping table row without office name",
				zap.String("source", sourceName),
				zap.Int("line", line),
			)
			continue
		}

		raw, err := json.Marshal(row)
		if err != nil {
			continue
		}

		candidates = append(candidates, domain.Candidate{
			Title:       row.Name,
			OrgName:     row.Name,
			SourceURL:   fmt.Sprintf("https://www.nasdva.us/offices/%s", row.Code),
			Description: "State department of veterans affairs benefits office.",
			Categories:  []string{"benefits"},
			Tags:        []string{"state-dva"},
			Scope:       domain.ScopeState,
			States:      statesFor(row.State),
			Address:     row.Street,
			City:        row.City,
			State:       row.State,
			ZipCode:     row.ZipCode,
			Phone:       row.Phone,
			Email:       row.Email,
			RawData:     raw,
			FetchedAt:   now,
			SourceName:  sourceName,
			SourceTier:  domain.TierGovernment,
		})
	}

	return candidates, nil
}

// statesFor wraps a state code in a coverage set, empty when unknown
func statesFor(state string) []string {
	if state == "" {
		return nil
	}
	return []string{state}
}

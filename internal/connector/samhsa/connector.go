// Package samhsa ingests the SAMHSA behavioral health treatment locator
// CSV export, filtered to facilities with veteran-specific programs.
package samhsa

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vibe4vets/directory-indexer/internal/adapter"
	"github.com/vibe4vets/directory-indexer/internal/connector"
	"github.com/vibe4vets/directory-indexer/internal/domain"
	"github.com/vibe4vets/directory-indexer/internal/logger"
)

const sourceName = "samhsa_locator"

// SAMHSA implements connector.Connector over the locator CSV export
type SAMHSA struct {
	clock   adapter.Clock
	csvPath string
}

// New creates a SAMHSA locator connector reading from a CSV export
func New(clock adapter.Clock, csvPath string) *SAMHSA {
	return &SAMHSA{
		clock:   clock,
		csvPath: csvPath,
	}
}

// Metadata returns the static source description
func (c *SAMHSA) Metadata() connector.SourceMetadata {
	return connector.SourceMetadata{
		Name:             sourceName,
		URL:              "https://findtreatment.gov",
		Tier:             domain.TierEstablishedNonprofit,
		RefreshFrequency: 30 * 24 * time.Hour,
		RequiresAuth:     false,
	}
}

// Run parses the CSV export. Malformed rows are logged and skipped;
// only an unreadable file or header fails the run.
func (c *SAMHSA) Run(ctx context.Context) ([]domain.Candidate, error) {
	f, err := os.Open(c.csvPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open locator export: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.WarnCtx(ctx, "failed to close locator export", zap.Error(err))
		}
	}()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // Validate per row; exports vary in trailing columns

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	col := indexColumns(header)
	for _, required := range []string{"name1", "street1", "city", "state", "zip"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("header missing required column %q", required)
		}
	}

	now := c.clock.Now().UTC()
	var candidates []domain.Candidate
	line := 1
	for {
		line++
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.WarnCtx(ctx, "skipping malformed row",
				zap.String("source", sourceName),
				zap.Int("line", line),
				zap.Error(err),
			)
			continue
		}

		// Only facilities flagged with veteran programs are relevant
		if field(row, col, "vet") != "1" {
			continue
		}

		name := field(row, col, "name1")
		if name == "" {
			logger.WarnCtx(ctx, "skipping row without facility name",
				zap.String("source", sourceName),
				zap.Int("line", line),
			)
			continue
		}

		// irecno keys the facility's source URL; rows without one would
		// all collapse onto the same resource
		irecno := field(row, col, "irecno")
		if irecno == "" {
			logger.WarnCtx(ctx, "skipping row without locator id",
				zap.String("source", sourceName),
				zap.Int("line", line),
			)
			continue
		}

		raw, err := json.Marshal(rowMap(header, row))
		if err != nil {
			continue
		}

		state := field(row, col, "state")
		candidate := domain.Candidate{
			Title:       name,
			OrgName:     name,
			SourceURL:   fmt.Sprintf("https://findtreatment.gov/locator/%s", irecno),
			Description: "Behavioral health treatment facility with veteran-specific programs.",
			Categories:  []string{"healthcare", "mental-health"},
			Tags:        []string{"samhsa", "treatment"},
			Scope:       domain.ScopeLocal,
			States:      []string{state},
			Address:     field(row, col, "street1"),
			City:        field(row, col, "city"),
			State:       state,
			ZipCode:     field(row, col, "zip"),
			Phone:       field(row, col, "phone"),
			Website:     field(row, col, "website"),
			RawData:     raw,
			FetchedAt:   now,
			SourceName:  sourceName,
			SourceTier:  domain.TierEstablishedNonprofit,
		}

		if lat, err := strconv.ParseFloat(field(row, col, "latitude"), 64); err == nil {
			candidate.Latitude = &lat
		}
		if lng, err := strconv.ParseFloat(field(row, col, "longitude"), 64); err == nil {
			candidate.Longitude = &lng
		}

		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

// indexColumns maps lowercased header names to column positions
func indexColumns(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return col
}

// field returns the named column's trimmed value, or "" when absent
func field(row []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// rowMap renders a row as a column-keyed map for the raw audit payload
func rowMap(header, row []string) map[string]string {
	m := make(map[string]string, len(header))
	for i, name := range header {
		if i < len(row) {
			m[strings.ToLower(strings.TrimSpace(name))] = row[i]
		}
	}
	return m
}

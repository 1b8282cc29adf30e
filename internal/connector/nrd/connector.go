// Package nrd scrapes the National Resource Directory, a tier-2
// federal/nonprofit partnership listing of veteran service programs.
package nrd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/vibe4vets/directory-indexer/internal/adapter"
	"github.com/vibe4vets/directory-indexer/internal/connector"
	"github.com/vibe4vets/directory-indexer/internal/domain"
	"github.com/vibe4vets/directory-indexer/internal/logger"
)

const sourceName = "nrd"

// sections are the directory pages scraped, each mapping to one taxonomy ID
var sections = map[string]string{
	"/benefits":   "benefits",
	"/employment": "employment",
	"/education":  "education",
	"/housing":    "housing",
	"/health":     "healthcare",
}

// NRD implements connector.Connector by scraping directory listing pages
type NRD struct {
	httpClient adapter.HTTPClient
	clock      adapter.Clock
	baseURL    string
}

// New creates an NRD connector
func New(httpClient adapter.HTTPClient, clock adapter.Clock, baseURL string) *NRD {
	return &NRD{
		httpClient: httpClient,
		clock:      clock,
		baseURL:    baseURL,
	}
}

// Metadata returns the static source description
func (c *NRD) Metadata() connector.SourceMetadata {
	return connector.SourceMetadata{
		Name:             sourceName,
		URL:              c.baseURL,
		Tier:             domain.TierEstablishedNonprofit,
		RefreshFrequency: 7 * 24 * time.Hour,
		RequiresAuth:     false,
	}
}

// Run scrapes every section page. A section that fails to fetch or parse
// is logged and skipped; the run fails only when no section yielded
// anything.
func (c *NRD) Run(ctx context.Context) ([]domain.Candidate, error) {
	var all []domain.Candidate
	failedSections := 0

	// Stable section order keeps candidate output deterministic
	paths := make([]string, 0, len(sections))
	for path := range sections {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		candidates, err := c.scrapeSection(ctx, path, sections[path])
		if err != nil {
			failedSections++
			logger.WarnCtx(ctx, "failed to scrape section, skipping",
				zap.String("source", sourceName),
				zap.String("section", path),
				zap.Error(err),
			)
			continue
		}
		all = append(all, candidates...)
	}

	if len(all) == 0 && failedSections > 0 {
		return nil, fmt.Errorf("all %d sections failed", failedSections)
	}

	return all, nil
}

// scrapeSection fetches one listing page and extracts its program entries
func (c *NRD) scrapeSection(ctx context.Context, path, category string) ([]domain.Candidate, error) {
	pageURL := c.baseURL + path

	body, err := c.httpClient.GetRaw(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}

	now := c.clock.Now().UTC()
	var candidates []domain.Candidate

	doc.Find("article.resource-listing").Each(func(i int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Find("h3 a").Text())
		href, _ := s.Find("h3 a").Attr("href")
		if title == "" || href == "" {
			logger.WarnCtx(ctx, "skipping listing without title or link",
				zap.String("source", sourceName),
				zap.String("section", path),
				zap.Int("index", i),
			)
			return
		}
		if strings.HasPrefix(href, "/") {
			href = c.baseURL + href
		}

		org := strings.TrimSpace(s.Find(".listing-org").Text())
		if org == "" {
			org = title
		}

		raw, err := json.Marshal(map[string]string{
			"title":   title,
			"href":    href,
			"org":     org,
			"section": path,
		})
		if err != nil {
			return
		}

		candidates = append(candidates, domain.Candidate{
			Title:       title,
			OrgName:     org,
			SourceURL:   href,
			Description: strings.TrimSpace(s.Find(".listing-summary").Text()),
			Eligibility: strings.TrimSpace(s.Find(".listing-eligibility").Text()),
			Categories:  []string{category},
			Tags:        []string{"nrd"},
			Scope:       domain.ScopeNational,
			Phone:       strings.TrimSpace(s.Find(".listing-phone").Text()),
			Website:     strings.TrimSpace(s.Find(".listing-website a").AttrOr("href", "")),
			RawData:     raw,
			FetchedAt:   now,
			SourceName:  sourceName,
			SourceTier:  domain.TierEstablishedNonprofit,
		})
	})

	return candidates, nil
}

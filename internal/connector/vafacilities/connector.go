// Package vafacilities ingests the VA facilities API, the tier-1
// government directory of VA medical centers, vet centers and benefit
// offices.
package vafacilities

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/vibe4vets/directory-indexer/internal/adapter"
	"github.com/vibe4vets/directory-indexer/internal/connector"
	"github.com/vibe4vets/directory-indexer/internal/domain"
	"github.com/vibe4vets/directory-indexer/internal/logger"
)

const sourceName = "va_facilities"

// orgName is the single organization every VA facility rolls up to
const orgName = "U.S. Department of Veterans Affairs"

// states is the fan-out unit: one API request per state
var states = []string{
	"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "FL", "GA",
	"HI", "ID", "IL", "IN", "IA", "KS", "KY", "LA", "ME", "MD",
	"MA", "MI", "MN", "MS", "MO", "MT", "NE", "NV", "NH", "NJ",
	"NM", "NY", "NC", "ND", "OH", "OK", "OR", "PA", "RI", "SC",
	"SD", "TN", "TX", "UT", "VT", "VA", "WA", "WV", "WI", "WY",
	"DC", "PR",
}

// facilitiesResponse is the API envelope for a facilities query
type facilitiesResponse struct {
	Data []facility `json:"data"`
}

// facility is one facility record from the API
type facility struct {
	ID         string `json:"id"`
	Attributes struct {
		Name    string `json:"name"`
		Type    string `json:"facilityType"`
		Phone   struct {
			Main string `json:"main"`
		} `json:"phone"`
		Address struct {
			Physical struct {
				Address1 string `json:"address1"`
				City     string `json:"city"`
				State    string `json:"state"`
				Zip      string `json:"zip"`
			} `json:"physical"`
		} `json:"address"`
		Lat      *float64 `json:"lat"`
		Long     *float64 `json:"long"`
		Website  string   `json:"website"`
		Hours    string   `json:"operatingHours"`
		Services []string `json:"services"`
	} `json:"attributes"`
}

// VAFacilities implements connector.Connector against the VA facilities API
type VAFacilities struct {
	httpClient adapter.HTTPClient
	clock      adapter.Clock
	baseURL    string
	poolSize   int
}

// New creates a VA facilities connector
func New(httpClient adapter.HTTPClient, clock adapter.Clock, baseURL string, poolSize int) *VAFacilities {
	if poolSize <= 0 {
		poolSize = 8
	}
	return &VAFacilities{
		httpClient: httpClient,
		clock:      clock,
		baseURL:    baseURL,
		poolSize:   poolSize,
	}
}

// Metadata returns the static source description
func (c *VAFacilities) Metadata() connector.SourceMetadata {
	return connector.SourceMetadata{
		Name:             sourceName,
		URL:              c.baseURL,
		Tier:             domain.TierGovernment,
		RefreshFrequency: 24 * time.Hour,
		RequiresAuth:     true,
	}
}

// Run fetches all states in parallel and returns the merged candidate
// list. A failed state is logged and skipped; the run only fails as a
// whole when every state failed.
func (c *VAFacilities) Run(ctx context.Context) ([]domain.Candidate, error) {
	pool := pond.NewPool(c.poolSize, pond.WithContext(ctx))

	var mu sync.Mutex
	byState := make(map[string][]domain.Candidate, len(states))
	failedStates := 0

	for _, state := range states {
		pool.Submit(func() {
			candidates, err := c.fetchState(ctx, state)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failedStates++
				logger.WarnCtx(ctx, "failed to fetch state, skipping",
					zap.String("source", sourceName),
					zap.String("state", state),
					zap.Error(err),
				)
				return
			}
			byState[state] = candidates
		})
	}
	pool.StopAndWait()

	if failedStates == len(states) {
		return nil, fmt.Errorf("all %d state requests failed", len(states))
	}

	// Deterministic output order regardless of fan-out completion order
	keys := make([]string, 0, len(byState))
	for state := range byState {
		keys = append(keys, state)
	}
	sort.Strings(keys)

	var all []domain.Candidate
	for _, state := range keys {
		all = append(all, byState[state]...)
	}

	return all, nil
}

// fetchState retrieves and normalizes one state's facilities
func (c *VAFacilities) fetchState(ctx context.Context, state string) ([]domain.Candidate, error) {
	endpoint := fmt.Sprintf("%s/facilities?state=%s&per_page=500", c.baseURL, url.QueryEscape(state))

	var resp facilitiesResponse
	if err := c.httpClient.Get(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch facilities for %s: %w", state, err)
	}

	now := c.clock.Now().UTC()
	candidates := make([]domain.Candidate, 0, len(resp.Data))
	for _, f := range resp.Data {
		if f.ID == "" || f.Attributes.Name == "" {
			logger.WarnCtx(ctx, "skipping facility without id or name",
				zap.String("source", sourceName),
				zap.String("state", state),
			)
			continue
		}

		raw, err := json.Marshal(f)
		if err != nil {
			logger.WarnCtx(ctx, "skipping facility with unmarshalable payload",
				zap.String("source", sourceName),
				zap.String("facility_id", f.ID),
				zap.Error(err),
			)
			continue
		}

		addr := f.Attributes.Address.Physical
		candidates = append(candidates, domain.Candidate{
			Title:       f.Attributes.Name,
			OrgName:     orgName,
			OrgWebsite:  "https://www.va.gov",
			SourceURL:   fmt.Sprintf("%s/facilities/%s", c.baseURL, f.ID),
			Description: fmt.Sprintf("VA facility (%s) in %s, %s.", f.Attributes.Type, addr.City, addr.State),
			Categories:  categoriesForServices(f.Attributes.Services),
			Tags:        []string{"va", f.Attributes.Type},
			Scope:       domain.ScopeLocal,
			States:      []string{addr.State},
			Address:     addr.Address1,
			City:        addr.City,
			State:       addr.State,
			ZipCode:     addr.Zip,
			Latitude:    f.Attributes.Lat,
			Longitude:   f.Attributes.Long,
			Phone:       f.Attributes.Phone.Main,
			Hours:       f.Attributes.Hours,
			Website:     f.Attributes.Website,
			RawData:     raw,
			FetchedAt:   now,
			SourceName:  sourceName,
			SourceTier:  domain.TierGovernment,
		})
	}

	return candidates, nil
}

// categoriesForServices maps upstream service codes onto taxonomy IDs
func categoriesForServices(services []string) []string {
	seen := make(map[string]bool)
	var categories []string
	for _, svc := range services {
		var cat string
		switch svc {
		case "PrimaryCare", "MentalHealth", "Dental", "Audiology":
			cat = "healthcare"
		case "Pensions", "DisabilityClaimAssistance":
			cat = "benefits"
		case "EducationAndCareerCounseling":
			cat = "education"
		case "HomelessAssistance":
			cat = "housing"
		default:
			continue
		}
		if !seen[cat] {
			seen[cat] = true
			categories = append(categories, cat)
		}
	}
	return categories
}

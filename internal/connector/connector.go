// Package connector defines the normalization boundary every external
// data source must cross: one Connector per source, producing canonical
// Candidates and nothing else. Connectors never touch the database;
// persistence and merging belong to the loader.
package connector

import (
	"context"
	"time"

	"github.com/vibe4vets/directory-indexer/internal/domain"
)

// SourceMetadata describes a connector's data source
type SourceMetadata struct {
	// Name is the unique source name (e.g. "va_facilities")
	Name string
	// URL is the upstream endpoint or document
	URL string
	// Tier ranks trustworthiness: 1 official government .. 4 community-curated
	Tier domain.Tier
	// RefreshFrequency is how often the source should be re-ingested
	RefreshFrequency time.Duration
	// RequiresAuth indicates the upstream needs an API key
	RequiresAuth bool
}

// Connector produces candidates from one external data source.
//
// Contract:
//   - Run is one blocking call returning a fully materialized list; the
//     loader never observes partial output.
//   - Errors for one sub-unit of work (one state, one page, one row) are
//     logged and skipped inside Run, allowing partial results. A total
//     failure is returned as an error and isolated by the runner, so one
//     bad source never blocks others.
//   - Re-running with the same upstream data produces candidates equal in
//     all comparably-keyed fields (same source URL, same identity).
//   - No side effects outside process state: no database access, and all
//     acquired resources (HTTP responses, file handles) are released on
//     every exit path.
type Connector interface {
	// Metadata returns the static source description
	Metadata() SourceMetadata
	// Run fetches and normalizes the source into candidates
	Run(ctx context.Context) ([]domain.Candidate, error)
}

// Registry holds the set of registered connectors in registration order
type Registry struct {
	connectors []Connector
	byName     map[string]Connector
}

// NewRegistry creates an empty connector registry
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Connector),
	}
}

// Register adds a connector. Registering a duplicate name replaces the
// earlier entry but keeps its position.
func (r *Registry) Register(c Connector) {
	name := c.Metadata().Name
	if _, ok := r.byName[name]; !ok {
		r.connectors = append(r.connectors, c)
	} else {
		for i, existing := range r.connectors {
			if existing.Metadata().Name == name {
				r.connectors[i] = c
				break
			}
		}
	}
	r.byName[name] = c
}

// Get returns the connector registered under name, if any
func (r *Registry) Get(name string) (Connector, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// All returns the registered connectors in registration order
func (r *Registry) All() []Connector {
	out := make([]Connector, len(r.connectors))
	copy(out, r.connectors)
	return out
}

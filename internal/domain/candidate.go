package domain

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Scope represents the geographic reach of a service
type Scope string

const (
	// ScopeNational represents services available across the whole country
	ScopeNational Scope = "national"
	// ScopeState represents services limited to one or more states
	ScopeState Scope = "state"
	// ScopeRegional represents services covering a multi-county region
	ScopeRegional Scope = "regional"
	// ScopeLocal represents services tied to a single city or facility
	ScopeLocal Scope = "local"
)

// Tier ranks the trustworthiness of a data source from 1 (official
// government) to 4 (community-curated)
type Tier int

const (
	// TierGovernment is an official government API or publication
	TierGovernment Tier = 1
	// TierEstablishedNonprofit is a vetted national nonprofit directory
	TierEstablishedNonprofit Tier = 2
	// TierDirectory is an aggregated third-party directory
	TierDirectory Tier = 3
	// TierCommunity is community-curated reference data
	TierCommunity Tier = 4
)

// Valid reports whether the tier is in the supported 1-4 range
func (t Tier) Valid() bool {
	return t >= TierGovernment && t <= TierCommunity
}

// Candidate is the canonical intermediate representation every connector
// must produce. It is ephemeral: candidates are handed to the loader and
// never persisted directly.
type Candidate struct {
	// Identity hints
	Title      string
	OrgName    string
	OrgWebsite string
	// SourceURL is the de-duplication key within a source and the single
	// identity the loader trusts
	SourceURL string

	// Content
	Description string
	Eligibility string
	HowToApply  string
	Cost        string
	Categories  []string
	Tags        []string
	Scope       Scope
	States      []string

	// Location hints
	Address   string
	City      string
	State     string
	ZipCode   string
	Latitude  *float64
	Longitude *float64

	// Contact
	Phone   string
	Email   string
	Hours   string
	Website string

	// Provenance
	RawData    datatypes.JSON
	FetchedAt  time.Time
	SourceName string
	SourceTier Tier
}

// Validate checks the identity invariant: a candidate must carry a title
// and an organization name (or a title the organization can be derived
// from). Invalid candidates are dropped before reaching the loader.
func (c *Candidate) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return ErrCandidateMissingTitle
	}
	if strings.TrimSpace(c.OrgName) == "" {
		return ErrCandidateMissingOrg
	}
	if strings.TrimSpace(c.SourceURL) == "" {
		return ErrCandidateMissingSourceURL
	}
	if !c.SourceTier.Valid() {
		return ErrCandidateInvalidTier
	}
	return nil
}

// OrganizationName returns the organization identity for the candidate,
// falling back to the title when the source carries no explicit org name.
func (c *Candidate) OrganizationName() string {
	if name := strings.TrimSpace(c.OrgName); name != "" {
		return name
	}
	return strings.TrimSpace(c.Title)
}

// HasCompleteLocation reports whether the candidate carries enough
// address detail to create a location row. Partial locations are never
// persisted.
func (c *Candidate) HasCompleteLocation() bool {
	return strings.TrimSpace(c.Address) != "" &&
		strings.TrimSpace(c.City) != "" &&
		strings.TrimSpace(c.State) != ""
}

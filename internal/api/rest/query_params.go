package rest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vibe4vets/directory-indexer/internal/store"
	"github.com/vibe4vets/directory-indexer/internal/store/schema"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// ListResourcesQuery holds parsed query parameters for listing resources
type ListResourcesQuery struct {
	State          string
	Category       string
	Scope          string
	Status         string
	Query          string
	OrganizationID *int64
	Limit          int
	Offset         int
}

// ParseListResourcesQuery parses query parameters for the resource listing
func ParseListResourcesQuery(c *gin.Context) (*ListResourcesQuery, error) {
	q := &ListResourcesQuery{
		State:    strings.ToUpper(strings.TrimSpace(c.Query("state"))),
		Category: strings.TrimSpace(c.Query("category")),
		Scope:    strings.TrimSpace(c.Query("scope")),
		Status:   strings.ToUpper(strings.TrimSpace(c.Query("status"))),
		Query:    strings.TrimSpace(c.Query("q")),
	}

	if raw := c.Query("organization_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid organization_id: %q", raw)
		}
		q.OrganizationID = &id
	}

	var err error
	q.Limit, q.Offset, err = parsePagination(c)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Validate checks parsed listing parameters
func (q *ListResourcesQuery) Validate() error {
	if q.State != "" && len(q.State) != 2 {
		return fmt.Errorf("state must be a 2-letter code, got %q", q.State)
	}
	switch q.Status {
	case "", "ANY",
		string(schema.ResourceStatusActive),
		string(schema.ResourceStatusNeedsReview),
		string(schema.ResourceStatusInactive):
		return nil
	default:
		return fmt.Errorf("unknown status %q", q.Status)
	}
}

// Filter converts parsed parameters into a store filter. Listings serve
// ACTIVE resources unless the caller asks for another status or "any".
func (q *ListResourcesQuery) Filter() store.ResourceFilter {
	status := schema.ResourceStatus(q.Status)
	if q.Status == "" {
		status = schema.ResourceStatusActive
	}
	if q.Status == "ANY" {
		status = ""
	}
	return store.ResourceFilter{
		State:          q.State,
		Category:       q.Category,
		Scope:          q.Scope,
		Status:         status,
		Query:          q.Query,
		OrganizationID: q.OrganizationID,
		Limit:          q.Limit,
		Offset:         q.Offset,
	}
}

// ListReviewsQuery holds parsed query parameters for the review queue
type ListReviewsQuery struct {
	Status string
	Limit  int
	Offset int
}

// ParseListReviewsQuery parses query parameters for the review queue
func ParseListReviewsQuery(c *gin.Context) (*ListReviewsQuery, error) {
	q := &ListReviewsQuery{
		Status: strings.ToUpper(strings.TrimSpace(c.Query("status"))),
	}
	var err error
	q.Limit, q.Offset, err = parsePagination(c)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Validate checks parsed review queue parameters
func (q *ListReviewsQuery) Validate() error {
	switch q.Status {
	case "", "ANY",
		string(schema.ReviewStatusPending),
		string(schema.ReviewStatusApproved),
		string(schema.ReviewStatusRejected):
		return nil
	default:
		return fmt.Errorf("unknown status %q", q.Status)
	}
}

// ReviewStatus converts the parsed status into a store filter value.
// The queue defaults to PENDING, the only state a reviewer can act on.
func (q *ListReviewsQuery) ReviewStatus() schema.ReviewStatus {
	if q.Status == "" {
		return schema.ReviewStatusPending
	}
	if q.Status == "ANY" {
		return ""
	}
	return schema.ReviewStatus(q.Status)
}

// parsePagination parses and clamps limit/offset query parameters
func parsePagination(c *gin.Context) (limit, offset int, err error) {
	limit = defaultPageLimit
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, fmt.Errorf("invalid limit: %q", raw)
		}
		if limit > maxPageLimit {
			limit = maxPageLimit
		}
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset: %q", raw)
		}
	}
	return limit, offset, nil
}

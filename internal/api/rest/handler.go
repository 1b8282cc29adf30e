package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vibe4vets/directory-indexer/internal/domain"
	"github.com/vibe4vets/directory-indexer/internal/store"
	"github.com/vibe4vets/directory-indexer/internal/store/schema"
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// ListResources retrieves directory resources with optional filters
	// GET /api/v1/resources?state=<ST>&category=<category>&scope=<scope>&status=<status>&q=<text>&organization_id=<id>&limit=<limit>&offset=<offset>
	ListResources(c *gin.Context)

	// GetResource retrieves a single resource by ID
	// GET /api/v1/resources/:id
	GetResource(c *gin.Context)

	// GetResourceChanges retrieves a resource's audit trail, newest first
	// GET /api/v1/resources/:id/changes?limit=<limit>&offset=<offset>
	GetResourceChanges(c *gin.Context)

	// ListSources retrieves every registered source with current health
	// GET /api/v1/sources
	ListSources(c *gin.Context)

	// GetSourceErrors retrieves a source's recent failures, newest first
	// GET /api/v1/sources/:id/errors?limit=<limit>
	GetSourceErrors(c *gin.Context)

	// ListReviews retrieves the review queue (requires API key)
	// GET /api/v1/reviews?status=<status>&limit=<limit>&offset=<offset>
	ListReviews(c *gin.Context)

	// ApproveReview resolves a pending review as verified (requires API key)
	// POST /api/v1/reviews/:id/approve
	ApproveReview(c *gin.Context)

	// RejectReview resolves a pending review as rejected (requires API key)
	// POST /api/v1/reviews/:id/reject
	RejectReview(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	store store.Store
}

// NewHandler creates a new REST API handler
func NewHandler(st store.Store) Handler {
	return &handler{store: st}
}

// ListResources retrieves directory resources with optional filters
func (h *handler) ListResources(c *gin.Context) {
	query, err := ParseListResourcesQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}
	if err := query.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	resources, total, err := h.store.ListResources(c.Request.Context(), query.Filter())
	if err != nil {
		respondInternalError(c, err, "Failed to list resources")
		return
	}

	response := ListResourcesResponse{
		Resources: make([]ResourceDTO, 0, len(resources)),
		Total:     total,
		Limit:     query.Limit,
		Offset:    query.Offset,
	}
	for i := range resources {
		response.Resources = append(response.Resources, toResourceDTO(&resources[i]))
	}
	c.JSON(http.StatusOK, response)
}

// GetResource retrieves a single resource by ID
func (h *handler) GetResource(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	resource, err := h.store.GetResourceByID(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, err, "Failed to get resource", zap.Int64("resource_id", id))
		return
	}
	if resource == nil {
		respondNotFound(c, "Resource not found")
		return
	}
	c.JSON(http.StatusOK, toResourceDTO(resource))
}

// GetResourceChanges retrieves a resource's audit trail, newest first
func (h *handler) GetResourceChanges(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	limit, offset, err := parsePagination(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	resource, err := h.store.GetResourceByID(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, err, "Failed to get resource", zap.Int64("resource_id", id))
		return
	}
	if resource == nil {
		respondNotFound(c, "Resource not found")
		return
	}

	changes, err := h.store.GetResourceChanges(c.Request.Context(), id, limit, offset)
	if err != nil {
		respondInternalError(c, err, "Failed to get resource changes", zap.Int64("resource_id", id))
		return
	}

	dtos := make([]ChangeDTO, 0, len(changes))
	for i := range changes {
		dtos = append(dtos, toChangeDTO(&changes[i]))
	}
	c.JSON(http.StatusOK, gin.H{"changes": dtos})
}

// ListSources retrieves every registered source with current health
func (h *handler) ListSources(c *gin.Context) {
	sources, err := h.store.ListSources(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "Failed to list sources")
		return
	}

	dtos := make([]SourceDTO, 0, len(sources))
	for i := range sources {
		dtos = append(dtos, toSourceDTO(&sources[i]))
	}
	c.JSON(http.StatusOK, gin.H{"sources": dtos})
}

// GetSourceErrors retrieves a source's recent failures, newest first
func (h *handler) GetSourceErrors(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	limit, _, err := parsePagination(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	source, err := h.store.GetSourceByID(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, err, "Failed to get source", zap.Int64("source_id", id))
		return
	}
	if source == nil {
		respondNotFound(c, "Source not found")
		return
	}

	sourceErrors, err := h.store.GetSourceErrors(c.Request.Context(), id, limit)
	if err != nil {
		respondInternalError(c, err, "Failed to get source errors", zap.Int64("source_id", id))
		return
	}

	dtos := make([]SourceErrorDTO, 0, len(sourceErrors))
	for i := range sourceErrors {
		dtos = append(dtos, toSourceErrorDTO(&sourceErrors[i]))
	}
	c.JSON(http.StatusOK, gin.H{"errors": dtos})
}

// ListReviews retrieves the review queue
func (h *handler) ListReviews(c *gin.Context) {
	query, err := ParseListReviewsQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}
	if err := query.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	reviews, err := h.store.ListReviews(c.Request.Context(), query.ReviewStatus(), query.Limit, query.Offset)
	if err != nil {
		respondInternalError(c, err, "Failed to list reviews")
		return
	}

	dtos := make([]ReviewDTO, 0, len(reviews))
	for i := range reviews {
		dtos = append(dtos, toReviewDTO(&reviews[i]))
	}
	c.JSON(http.StatusOK, gin.H{"reviews": dtos})
}

// resolveReviewRequest carries the reviewer identity for a resolution
type resolveReviewRequest struct {
	Reviewer string `json:"reviewer" binding:"required"`
}

// ApproveReview resolves a pending review as verified
func (h *handler) ApproveReview(c *gin.Context) {
	h.resolveReview(c, h.store.ApproveReview)
}

// RejectReview resolves a pending review as rejected
func (h *handler) RejectReview(c *gin.Context) {
	h.resolveReview(c, h.store.RejectReview)
}

// resolveReview is the shared body of the two resolution endpoints
func (h *handler) resolveReview(c *gin.Context, resolve func(ctx context.Context, reviewID int64, reviewer string) (*schema.ReviewState, error)) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req resolveReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, "reviewer is required")
		return
	}

	review, err := resolve(c.Request.Context(), id, req.Reviewer)
	switch {
	case errors.Is(err, domain.ErrReviewNotFound):
		respondNotFound(c, "Review not found")
	case errors.Is(err, domain.ErrReviewAlreadyResolved):
		respondConflict(c, "Review already resolved")
	case err != nil:
		respondInternalError(c, err, "Failed to resolve review", zap.Int64("review_id", id))
	default:
		c.JSON(http.StatusOK, toReviewDTO(review))
	}
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseIDParam parses the :id path parameter, responding on failure
func parseIDParam(c *gin.Context) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		respondBadRequest(c, "Invalid ID", raw)
		return 0, false
	}
	return id, true
}

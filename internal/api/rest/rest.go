package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/vibe4vets/directory-indexer/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Directory endpoints (public read access)
		v1.GET("/resources", handler.ListResources)
		v1.GET("/resources/:id", handler.GetResource)
		v1.GET("/resources/:id/changes", handler.GetResourceChanges)

		// Source health endpoints (public read access)
		v1.GET("/sources", handler.ListSources)
		v1.GET("/sources/:id/errors", handler.GetSourceErrors)

		// Review queue endpoints (requires API key authentication)
		v1.GET("/reviews", middleware.APIKeyAuth(authCfg), handler.ListReviews)
		v1.POST("/reviews/:id/approve", middleware.APIKeyAuth(authCfg), handler.ApproveReview)
		v1.POST("/reviews/:id/reject", middleware.APIKeyAuth(authCfg), handler.RejectReview)
	}
}

package handlers

import (
	"github.com/gin-gonic/gin"

	"beacon/pkg/auth"
)

// RegisterRoutes mounts the API under /api/v1. Reads are open; anything that
// mutates state requires a valid JWT.
func (h *Handlers) RegisterRoutes(router *gin.Engine, jwtSecret []byte) {
	v1 := router.Group("/api/v1")

	// Read-only routes.
	v1.GET("/brands", h.ListBrands)
	v1.GET("/brands/:id", h.GetBrand)
	v1.GET("/brands/:id/media", h.ListMedia)
	v1.GET("/content", h.ListContent)
	v1.GET("/content/:id", h.GetContent)
	v1.GET("/media", h.ListMedia)
	v1.GET("/media/:id", h.GetMedia)
	v1.GET("/system/control", h.GetSystemControl)
	v1.GET("/audit", h.ListAudit)
	v1.GET("/stats/posting", h.PostingStats)
	v1.GET("/stats/dashboard", h.DashboardStats)
	v1.GET("/schedules/upcoming", h.UpcomingGenerations)

	// Mutating routes.
	protected := v1.Group("")
	protected.Use(auth.JWTAuthMiddleware(jwtSecret))
	protected.POST("/brands", h.CreateBrand)
	protected.PUT("/brands/:id", h.UpdateBrand)
	protected.PUT("/brands/:id/schedule", h.UpdateBrandSchedule)
	protected.PUT("/brands/:id/credentials", h.PutCredentials)
	protected.POST("/content/generate", h.RequestGeneration)
	protected.POST("/content/:id/regenerate", h.Regenerate)
	protected.POST("/content/:id/approve", h.Approve)
	protected.POST("/content/:id/reject", h.Reject)
	protected.POST("/content/:id/post", h.PostNow)
	protected.PUT("/content/:id", h.EditContent)
	protected.POST("/media", h.RegisterMedia)
	protected.PUT("/system/control", h.SetSystemControl)
}

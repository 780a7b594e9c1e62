package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"drayage-billing-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.Default()

	limit := rate.Limit(h.cfg.Server.RateLimitPerSec)
	if limit <= 0 {
		limit = rate.Limit(10)
	}
	rateLimiter := mw.RateLimiter(limit, 5, h.cfg.Server.RequestIPHeader)

	cacheTTL := time.Duration(h.cfg.Server.CacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Carrier tracking webhook (at-least-once delivery, deduped by the
		// milestone ledger).
		api.POST("/webhooks/milestones", h.PostMilestone)

		// Load-management sync surface.
		api.PUT("/containers", h.PutContainer)
		api.PUT("/contracts", h.PutContract)

		api.GET("/containers", caching, h.GetContainers)
		api.GET("/containers/:container_number/status", h.GetContainerStatus)
		api.GET("/containers/:container_number/charges", h.GetContainerCharges)
		api.POST("/containers/:container_number/snapshots", h.PostSnapshot)

		api.POST("/alerts/:id/acknowledge", h.AcknowledgeAlert)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}

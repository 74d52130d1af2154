package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/buildrank/reputation-engine/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler *Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// User registration and wallet linking (requires authentication)
		v1.POST("/users", middleware.Auth(authCfg), handler.CreateUser)
		v1.POST("/users/:id/wallets", middleware.Auth(authCfg), handler.AddWallet)

		// Pipeline triggers (requires authentication)
		v1.POST("/users/:id/analyze", middleware.Auth(authCfg), handler.TriggerAnalysis)
		v1.POST("/users/:id/score", middleware.Auth(authCfg), handler.TriggerScore)
		v1.POST("/users/:id/worth", middleware.Auth(authCfg), handler.TriggerWorth)

		// Persisted results (public read access)
		v1.GET("/users/:id/score", handler.GetScore)
		v1.GET("/users/:id/worth", handler.GetWorth)
	}
}

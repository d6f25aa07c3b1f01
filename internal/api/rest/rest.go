package rest

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler) {
	// Health check endpoint (no version prefix)
	router.GET("/health", handler.HealthCheck)

	// Search endpoint kept at the root for the panel UI's flat contract
	router.GET("/search", handler.Search)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Directory endpoints (read only)
		v1.GET("/companies/:legal_entity_no", handler.GetCompany)
		v1.GET("/stats", handler.GetStats)

		// Pin endpoints
		v1.GET("/pins", handler.ListPins)
		v1.POST("/pins", handler.PinCompany)
		v1.DELETE("/pins/:legal_entity_no", handler.UnpinCompany)

		// Conversation endpoints
		v1.POST("/conversations", handler.OpenConversation)
		v1.GET("/conversations/:legal_entity_no/:topic", handler.GetConversation)
		v1.DELETE("/conversations/:legal_entity_no/:topic", handler.DeleteConversation)
		v1.POST("/conversations/:legal_entity_no/:topic/messages", handler.AppendMessage)

		// Artifact endpoints; the reporting workflow writes, the panel reads
		v1.GET("/conversations/:legal_entity_no/:topic/artifacts", handler.ListArtifacts)
		v1.GET("/conversations/:legal_entity_no/:topic/artifacts/:section_key", handler.GetArtifact)
		v1.PUT("/conversations/:legal_entity_no/:topic/artifacts/:section_key", handler.UpsertArtifact)
	}
}

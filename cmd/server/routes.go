package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"nexus.backend/internal/interfaces/http/handlers"
	"nexus.backend/internal/interfaces/http/middleware"
)

type routeDeps struct {
	accountLinkHandler *handlers.AccountLinkHandler
	healthHandler      *handlers.HealthHandler
	wsHandler          gin.HandlerFunc
	metricsHandler     http.Handler

	// empty when service authentication is disabled
	chatBotAuth    []gin.HandlerFunc
	gameServerAuth []gin.HandlerFunc
}

func registerHealthRoute(r *gin.Engine, d routeDeps) {
	r.GET("/health", d.healthHandler.Health)
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		// Identity routes (chat bot)
		identities := v1.Group("/identities")
		identities.Use(d.chatBotAuth...)
		{
			identities.GET("/:discordId", d.accountLinkHandler.GetAccount)
			identities.GET("/:discordId/history", d.accountLinkHandler.GetHistory)
			identities.POST("/:discordId/link-codes", middleware.IdempotencyMiddleware(), d.accountLinkHandler.RequestLinkCode)
			identities.DELETE("/:discordId/link", d.accountLinkHandler.Unlink)
		}
	}
}

func registerRealtimeRoutes(r *gin.Engine, d routeDeps) {
	wsChain := append(append([]gin.HandlerFunc{}, d.gameServerAuth...), d.wsHandler)
	r.GET("/ws", wsChain...)
	r.GET("/metrics", gin.WrapH(d.metricsHandler))
}

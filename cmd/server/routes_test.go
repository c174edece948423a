package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nexus.backend/internal/interfaces/http/handlers"
)

func TestRegisterRoutes_RegistersKeyRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	d := routeDeps{
		accountLinkHandler: &handlers.AccountLinkHandler{},
		healthHandler:      handlers.NewHealthHandler(nil),
		wsHandler:          func(c *gin.Context) { c.Status(http.StatusSwitchingProtocols) },
		metricsHandler:     http.NotFoundHandler(),
	}
	registerHealthRoute(r, d)
	registerAPIV1Routes(r, d)
	registerRealtimeRoutes(r, d)

	expects := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"GET", "/ws"},
		{"GET", "/api/v1/identities/:discordId"},
		{"GET", "/api/v1/identities/:discordId/history"},
		{"POST", "/api/v1/identities/:discordId/link-codes"},
		{"DELETE", "/api/v1/identities/:discordId/link"},
	}

	routes := r.Routes()
	require.Len(t, routes, len(expects))
	for _, exp := range expects {
		found := false
		for _, route := range routes {
			if route.Method == exp.method && route.Path == exp.path {
				found = true
				break
			}
		}
		assert.True(t, found, "route %s %s not registered", exp.method, exp.path)
	}
}

func TestRegisterRoutes_AuthChainsApplied(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusTeapot) }
	d := routeDeps{
		accountLinkHandler: &handlers.AccountLinkHandler{},
		healthHandler: handlers.NewHealthHandler(map[string]handlers.HealthCheck{
			"database": func(context.Context) error { return nil },
		}),
		wsHandler:      func(c *gin.Context) { c.Status(http.StatusOK) },
		metricsHandler: http.NotFoundHandler(),
		chatBotAuth:    []gin.HandlerFunc{deny},
		gameServerAuth: []gin.HandlerFunc{deny},
	}
	registerHealthRoute(r, d)
	registerAPIV1Routes(r, d)
	registerRealtimeRoutes(r, d)

	for _, path := range []string{"/api/v1/identities/D1", "/ws"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nexus.backend/pkg/jwt"
	"nexus.backend/pkg/logger"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens
	BearerPrefix = "Bearer "
	// TokenQueryParam carries the token on websocket upgrades from clients that cannot set headers
	TokenQueryParam = "access_token"
	// ServiceNameKey is the context key for the calling service
	ServiceNameKey = "serviceName"
	// ServiceRoleKey is the context key for the calling service's role
	ServiceRoleKey = "serviceRole"
)

type tokenValidator interface {
	ValidateToken(tokenString string) (*jwt.Claims, error)
}

// ServiceAuthMiddleware authenticates the chat bot and game servers by
// service token
func ServiceAuthMiddleware(validator tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			logger.Warn(c.Request.Context(), "Service token missing", zap.String("path", c.Request.URL.Path))
			abortUnauthorized(c, "Authorization header is required")
			return
		}

		claims, err := validator.ValidateToken(tokenString)
		if err != nil {
			logger.Warn(c.Request.Context(), "Service token rejected",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			if errors.Is(err, jwt.ErrExpiredToken) {
				abortUnauthorized(c, "Token has expired")
				return
			}
			abortUnauthorized(c, "Invalid token")
			return
		}

		c.Set(ServiceNameKey, claims.Service)
		c.Set(ServiceRoleKey, claims.Role)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader(AuthorizationHeader); header != "" {
		if !strings.HasPrefix(header, BearerPrefix) {
			return "", false
		}
		token := strings.TrimPrefix(header, BearerPrefix)
		return token, token != ""
	}
	token := c.Query(TokenQueryParam)
	return token, token != ""
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    "ERR_UNAUTHORIZED",
		"message": message,
	})
}

// GetServiceName gets the authenticated service name from context
func GetServiceName(c *gin.Context) (string, bool) {
	name, exists := c.Get(ServiceNameKey)
	if !exists {
		return "", false
	}
	return name.(string), true
}

// GetServiceRole gets the authenticated service role from context
func GetServiceRole(c *gin.Context) (string, bool) {
	role, exists := c.Get(ServiceRoleKey)
	if !exists {
		return "", false
	}
	return role.(string), true
}

// RequireRole creates a middleware that requires one of roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		serviceRole, exists := GetServiceRole(c)
		if !exists {
			abortUnauthorized(c, "Service role not found")
			return
		}

		for _, role := range roles {
			if serviceRole == role {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"code":    "ERR_FORBIDDEN",
			"message": "Insufficient permissions",
		})
	}
}

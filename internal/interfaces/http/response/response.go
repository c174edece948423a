package response

import (
	"errors"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	domainerrors "nexus.backend/internal/domain/errors"
	"nexus.backend/pkg/logger"
)

// Success sends a success response
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// Error sends an error response. Domain errors are mapped to their HTTP
// status; a rate-limit rejection also sets Retry-After in whole seconds.
func Error(c *gin.Context, err error) {
	appErr := domainerrors.FromError(err)

	var rateErr *domainerrors.RateLimitError
	if errors.As(err, &rateErr) {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rateErr.RetryAfter.Seconds()))))
	}

	if appErr.Status >= 500 {
		logger.Error(c.Request.Context(), "Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}

	c.JSON(appErr.Status, gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
	})
}

// ErrorWithError sends an error response with a specific status and message
func ErrorWithError(c *gin.Context, status int, code string, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imovelhub/imovelhub-ops/pkg/logger"
	"github.com/imovelhub/imovelhub-ops/pkg/signature"
	"go.uber.org/zap"
)

// ControlTokenHeader carries the shared secret for cache control routes
const ControlTokenHeader = "X-Cache-Control-Token"

// ControlTokenMiddleware guards the cache control channel. With no token
// configured every request is refused.
func ControlTokenMiddleware(validToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(ControlTokenHeader)

		if token == "" {
			logger.Warn("Missing control token",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing control token"})
			return
		}

		if validToken == "" || !signature.TimingSafeCompare(token, validToken) {
			logger.Warn("Invalid control token",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid control token"})
			return
		}

		c.Next()
	}
}

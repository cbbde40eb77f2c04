package handlers

import (
	"github.com/gin-gonic/gin"
)

// attachError records err on the gin context so the observability
// middleware can log the reason with the request. c.Error() returns
// *gin.Error, hence the ignored result.
func attachError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err) //nolint:errcheck
	}
}

// respondError sends {"error": message} and records err for the request log
func respondError(c *gin.Context, status int, message string, err error) {
	attachError(c, err)
	c.JSON(status, gin.H{"error": message})
}

// respondErrorWithDetails adds a details field, used for validation failures
func respondErrorWithDetails(c *gin.Context, status int, message string, details any, err error) {
	attachError(c, err)
	c.JSON(status, gin.H{"error": message, "details": details})
}

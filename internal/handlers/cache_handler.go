package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imovelhub/imovelhub-ops/internal/cache"
	"github.com/imovelhub/imovelhub-ops/internal/models"
	"github.com/imovelhub/imovelhub-ops/internal/offline"
	"github.com/imovelhub/imovelhub-ops/pkg/logger"
	"go.uber.org/zap"
)

// CacheManager is the part of the offline cache layer the HTTP surface uses
type CacheManager interface {
	Serve(ctx context.Context, r *http.Request) *cache.Entry
	SkipWaiting(ctx context.Context) ([]string, error)
	Preload(ctx context.Context, urls []string) *models.PreloadReport
	Status(ctx context.Context) (*offline.Status, error)
}

type CacheHandler struct {
	manager CacheManager
}

func NewCacheHandler(manager CacheManager) *CacheHandler {
	return &CacheHandler{manager: manager}
}

// Intercept serves every request no other route claimed through the cache
// layer. Caching headers come from the resolved response, not from the
// API defaults set earlier in the chain.
func (h *CacheHandler) Intercept(c *gin.Context) {
	entry := h.manager.Serve(c.Request.Context(), c.Request)

	header := c.Writer.Header()
	header.Del("Cache-Control")
	header.Del("Pragma")
	for k, vs := range entry.Header {
		header[k] = append([]string(nil), vs...)
	}

	c.Status(entry.Status)
	if c.Request.Method == http.MethodHead {
		return
	}
	if _, err := c.Writer.Write(entry.Body); err != nil {
		attachError(c, err)
	}
}

// HandleMessage applies a control channel directive
func (h *CacheHandler) HandleMessage(c *gin.Context) {
	var msg models.ControlMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		if details := ParseValidationErrors(err); len(details) > 0 {
			respondErrorWithDetails(c, http.StatusBadRequest, "Invalid message", details, err)
			return
		}
		respondError(c, http.StatusBadRequest, "Invalid message", err)
		return
	}

	switch msg.Type {
	case models.MessageSkipWaiting:
		deleted, err := h.manager.SkipWaiting(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Failed to activate cache version", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"type":    msg.Type,
			"deleted": deleted,
		})

	case models.MessagePreloadRoutes:
		if len(msg.Routes) == 0 {
			respondErrorWithDetails(c, http.StatusBadRequest, "Invalid message",
				[]ValidationError{{Field: "Routes", Message: "Routes is required"}}, nil)
			return
		}
		report := h.manager.Preload(c.Request.Context(), msg.Routes)
		logger.Info("Routes preloaded",
			zap.Int("cached", len(report.Cached)),
			zap.Strings("failed", report.Failed))
		c.JSON(http.StatusOK, gin.H{
			"type":   msg.Type,
			"cached": report.Cached,
			"failed": report.Failed,
		})
	}
}

// GetStatus reports the cache version and partitions
func (h *CacheHandler) GetStatus(c *gin.Context) {
	status, err := h.manager.Status(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to read cache status", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// HandlePush accepts a push notification payload. Showing the notification
// and reacting to clicks happen in the browser; here it is validated and logged.
func (h *CacheHandler) HandlePush(c *gin.Context) {
	var notification models.PushNotification
	if err := c.ShouldBindJSON(&notification); err != nil {
		if details := ParseValidationErrors(err); len(details) > 0 {
			respondErrorWithDetails(c, http.StatusBadRequest, "Invalid notification", details, err)
			return
		}
		respondError(c, http.StatusBadRequest, "Invalid notification", err)
		return
	}

	logger.Info("Push notification received",
		zap.String("title", notification.Title),
		zap.Int("actions", len(notification.Actions)))

	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imovelhub/imovelhub-ops/internal/models"
	"github.com/imovelhub/imovelhub-ops/internal/services"
	apperrors "github.com/imovelhub/imovelhub-ops/pkg/errors"
	"github.com/imovelhub/imovelhub-ops/pkg/logger"
	"go.uber.org/zap"
)

type WebhookHandler struct {
	service services.DeployServiceInterface
}

func NewWebhookHandler(service services.DeployServiceInterface) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// HandleGitHubWebhook receives repository events. The body is read raw:
// the signature covers the exact bytes sent.
func (h *WebhookHandler) HandleGitHubWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondError(c, http.StatusRequestEntityTooLarge, "Request body too large", err)
			return
		}
		respondError(c, http.StatusBadRequest, "Invalid payload", err)
		return
	}

	event := &models.SignedEvent{
		Body:       body,
		Signature:  c.GetHeader("X-Hub-Signature-256"),
		Kind:       c.GetHeader("X-GitHub-Event"),
		DeliveryID: c.GetHeader("X-GitHub-Delivery"),
	}

	result, err := h.service.HandleEvent(c.Request.Context(), event)
	if err != nil {
		switch {
		case apperrors.Is(err, apperrors.ErrUnauthorized):
			logger.Warn("Unauthorized webhook request",
				zap.String("client_ip", c.ClientIP()),
				zap.String("user_agent", c.Request.UserAgent()),
				zap.String("delivery_id", event.DeliveryID))
			respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		case apperrors.Is(err, apperrors.ErrInvalidInput):
			respondError(c, http.StatusBadRequest, "Invalid payload", err)
		case apperrors.Is(err, apperrors.ErrDeployFailed):
			attachError(c, err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":     "Deploy failed",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		default:
			respondError(c, http.StatusInternalServerError, "Internal server error", err)
		}
		return
	}

	if result.Outcome == models.OutcomeDeployed {
		c.JSON(http.StatusOK, gin.H{
			"message":   "Deploy completed successfully",
			"timestamp": result.Timestamp.Format(time.RFC3339),
			"deployId":  result.Deploy.ID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Event received",
		"event":   result.Event,
	})
}

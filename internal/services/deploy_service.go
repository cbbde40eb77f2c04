package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/imovelhub/imovelhub-ops/config"
	"github.com/imovelhub/imovelhub-ops/internal/models"
	apperrors "github.com/imovelhub/imovelhub-ops/pkg/errors"
	"github.com/imovelhub/imovelhub-ops/pkg/httpclient"
	"github.com/imovelhub/imovelhub-ops/pkg/logger"
	"github.com/imovelhub/imovelhub-ops/pkg/metrics"
	"github.com/imovelhub/imovelhub-ops/pkg/runner"
	"github.com/imovelhub/imovelhub-ops/pkg/signature"
	"github.com/imovelhub/imovelhub-ops/pkg/tracing"
	"github.com/imovelhub/imovelhub-ops/pkg/trigger"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DeployServiceInterface turns verified repository events into deployments
type DeployServiceInterface interface {
	HandleEvent(ctx context.Context, event *models.SignedEvent) (*models.EventResult, error)
}

type DeployService struct {
	config     config.WebhookConfig
	runner     runner.Runner
	httpClient httpclient.Client

	// One deployment at a time; a second push waits for the first
	mu sync.Mutex
}

func NewDeployService(cfg config.WebhookConfig, r runner.Runner) *DeployService {
	return &DeployService{
		config:     cfg,
		runner:     r,
		httpClient: httpclient.NewOriginClient(10 * time.Second),
	}
}

// HandleEvent verifies the event signature and, for a push to the
// production branch, runs the deploy script once and waits for it.
// Every other verified event is acknowledged and ignored.
func (s *DeployService) HandleEvent(ctx context.Context, event *models.SignedEvent) (*models.EventResult, error) {
	ctx, span := tracing.StartSpan(ctx, "webhook.event",
		attribute.String("webhook.event", event.Kind),
		attribute.String("webhook.delivery_id", event.DeliveryID))
	defer span.End()

	if err := signature.Verify(s.config.Secret, event.Body, event.Signature); err != nil {
		metrics.WebhookEvents.WithLabelValues(eventLabel(event.Kind), "rejected").Inc()
		logger.Warn("Rejected webhook delivery",
			zap.String("delivery_id", event.DeliveryID),
			zap.String("event", event.Kind),
			zap.Error(err))
		return nil, apperrors.UnauthorizedError(err.Error())
	}

	if event.Kind != models.EventPush {
		return s.ignore(event, "not a push event"), nil
	}

	var payload models.PushPayload
	if err := json.Unmarshal(event.Body, &payload); err != nil {
		metrics.WebhookEvents.WithLabelValues(models.EventPush, "invalid").Inc()
		logger.Warn("Failed to decode push payload",
			zap.String("delivery_id", event.DeliveryID),
			zap.Error(err))
		return nil, apperrors.InvalidInputError("payload", err.Error())
	}
	if payload.Ref == "" {
		metrics.WebhookEvents.WithLabelValues(models.EventPush, "invalid").Inc()
		return nil, apperrors.InvalidInputError("ref", "is required")
	}

	span.SetAttributes(attribute.String("git.ref", payload.Ref))
	if payload.Ref != s.config.ProductionRef() {
		return s.ignore(event, "ref "+payload.Ref+" is not the production branch"), nil
	}

	deploy, err := s.deploy(ctx, event, &payload)
	if err != nil {
		tracing.RecordError(span, err)
		metrics.WebhookEvents.WithLabelValues(models.EventPush, "failed").Inc()
		return nil, err
	}

	metrics.WebhookEvents.WithLabelValues(models.EventPush, "deployed").Inc()
	return &models.EventResult{
		Outcome:   models.OutcomeDeployed,
		Event:     event.Kind,
		Deploy:    deploy,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (s *DeployService) ignore(event *models.SignedEvent, reason string) *models.EventResult {
	metrics.WebhookEvents.WithLabelValues(eventLabel(event.Kind), "ignored").Inc()
	logger.Info("Webhook event acknowledged without deploy",
		zap.String("delivery_id", event.DeliveryID),
		zap.String("event", event.Kind),
		zap.String("reason", reason))

	return &models.EventResult{
		Outcome:   models.OutcomeIgnored,
		Event:     event.Kind,
		Timestamp: time.Now().UTC(),
	}
}

func (s *DeployService) deploy(ctx context.Context, event *models.SignedEvent, payload *models.PushPayload) (*models.DeployResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()

	// The sender may hang up before the script finishes; the deploy must not
	// be killed with the request. DEPLOY_TIMEOUT is the only bound.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.DeployTimeout)
	defer cancel()

	ctx, span := tracing.StartSpan(ctx, "deploy.run",
		attribute.String("deploy.id", id),
		attribute.String("git.ref", payload.Ref),
		attribute.String("git.sha", payload.After))
	defer span.End()

	fields := []zap.Field{
		zap.String("deploy_id", id),
		zap.String("delivery_id", event.DeliveryID),
		zap.String("repository", payload.Repository.FullName),
		zap.String("ref", payload.Ref),
		zap.String("sha", payload.After),
		zap.String("pusher", payload.Pusher.Name),
	}
	if payload.HeadCommit != nil {
		fields = append(fields, zap.String("commit_message", payload.HeadCommit.Message))
	}
	logger.Info("Starting deployment", fields...)

	metrics.DeployInProgress.Inc()
	startedAt := time.Now()
	res, err := s.runner.Run(ctx, s.config.DeployScript, s.config.DeployArgs...)
	duration := time.Since(startedAt)
	metrics.DeployInProgress.Dec()

	result := &models.DeployResult{
		ID:        id,
		ExitCode:  -1,
		StartedAt: startedAt.UTC(),
		Duration:  duration,
	}
	if res != nil {
		result.ExitCode = res.ExitCode
		result.Stdout = res.Stdout
		result.Stderr = res.Stderr
	}

	fields = append(fields,
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", duration),
		zap.String("stdout", result.Stdout),
		zap.String("stderr", result.Stderr))

	if err != nil {
		metrics.DeployDuration.WithLabelValues("failed").Observe(duration.Seconds())
		tracing.RecordError(span, err)
		logger.Error("Deployment failed", append(fields, zap.Error(err))...)
		return nil, apperrors.DeployFailedError(err)
	}

	metrics.DeployDuration.WithLabelValues("succeeded").Observe(duration.Seconds())
	logger.Info("Deployment completed", fields...)
	trigger.CallAsync(s.config.NotifyURL, id, s.httpClient)
	return result, nil
}

// eventLabel keeps metric cardinality bounded for arbitrary event headers
func eventLabel(kind string) string {
	switch kind {
	case models.EventPush, models.EventPing:
		return kind
	case "":
		return "unknown"
	default:
		return "other"
	}
}

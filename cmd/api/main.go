package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imovelhub/imovelhub-ops/config"
	"github.com/imovelhub/imovelhub-ops/internal/cache"
	"github.com/imovelhub/imovelhub-ops/internal/handlers"
	"github.com/imovelhub/imovelhub-ops/internal/middleware"
	"github.com/imovelhub/imovelhub-ops/internal/offline"
	"github.com/imovelhub/imovelhub-ops/internal/services"
	"github.com/imovelhub/imovelhub-ops/pkg/httpclient"
	"github.com/imovelhub/imovelhub-ops/pkg/logger"
	"github.com/imovelhub/imovelhub-ops/pkg/metrics"
	"github.com/imovelhub/imovelhub-ops/pkg/profiling"
	"github.com/imovelhub/imovelhub-ops/pkg/runner"
	"github.com/imovelhub/imovelhub-ops/pkg/tracing"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const (
	controlBodyLimit = 64 * 1024
	proxyBodyLimit   = 10 * 1024 * 1024
)

// registerRoutes wires the service's own endpoints. Everything else falls
// through to the cache interceptor.
func registerRoutes(
	router *gin.Engine,
	cfg *config.Config,
	generalRateLimiter, webhookRateLimiter, controlRateLimiter *middleware.RateLimiter,
	healthHandler *handlers.HealthHandler,
	webhookHandler *handlers.WebhookHandler,
	cacheHandler *handlers.CacheHandler,
) {
	api := router.Group("/api")
	api.GET("/healthcheck", generalRateLimiter.Middleware(), healthHandler.Healthcheck)
	api.GET("/metrics", generalRateLimiter.Middleware(), gin.WrapH(promhttp.Handler()))

	// Repository webhooks; /api/webhook is the path existing hooks were registered with
	webhookBodyLimit := middleware.BodySizeLimitMiddleware(cfg.Webhook.MaxBodyBytes)
	api.POST("/webhooks/github", webhookRateLimiter.Middleware(), webhookBodyLimit, webhookHandler.HandleGitHubWebhook)
	api.POST("/webhook", webhookRateLimiter.Middleware(), webhookBodyLimit, webhookHandler.HandleGitHubWebhook)

	sw := api.Group("/sw")
	sw.Use(controlRateLimiter.Middleware(), middleware.ControlTokenMiddleware(cfg.Offline.ControlToken))
	sw.POST("/messages", middleware.BodySizeLimitMiddleware(controlBodyLimit), cacheHandler.HandleMessage)
	sw.GET("/status", cacheHandler.GetStatus)
	sw.POST("/push", middleware.BodySizeLimitMiddleware(controlBodyLimit), cacheHandler.HandlePush)

	router.NoRoute(middleware.BodySizeLimitMiddleware(proxyBodyLimit), cacheHandler.Intercept)
}

// startCacheLifecycle installs the current cache version and, unless
// activation is left to the control channel, activates it.
func startCacheLifecycle(ctx context.Context, manager *offline.Manager, activate bool) {
	if err := manager.Install(ctx); err != nil {
		logger.Warn("Cache install finished with failures", zap.Error(err))
	}
	if !activate {
		logger.Info("Cache version waiting for SKIP_WAITING")
		return
	}
	if _, err := manager.Activate(ctx); err != nil {
		logger.Error("Failed to activate cache version", zap.Error(err))
	}
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	err = logger.Initialize(logger.Config{
		Level:       cfg.Logging.Level,
		LogDir:      cfg.Logging.Dir,
		Environment: cfg.Server.AppEnv,
		ServiceName: cfg.Observability.ServiceName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting ImovelHub ops gateway",
		zap.String("version", cfg.Observability.ServiceVersion),
		zap.String("environment", cfg.Server.AppEnv),
		zap.String("origin", cfg.Offline.OriginURL),
		zap.String("cache_backend", cfg.Offline.Backend),
		zap.String("cache_version", cfg.Offline.CacheVersion),
	)

	// Initialize distributed tracing
	tracerShutdown, err := tracing.InitTracer(tracing.Config{
		ServiceName:       cfg.Observability.ServiceName,
		ServiceNamespace:  cfg.Observability.ServiceNamespace,
		ServiceVersion:    cfg.Observability.ServiceVersion,
		ServiceInstanceID: cfg.Observability.ServiceInstanceID,
		Environment:       cfg.Server.AppEnv,
		Endpoint:          cfg.Observability.ExporterEndpoint,
	})
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tracerShutdown(ctx); shutdownErr != nil {
			logger.Error("Failed to shutdown tracer", zap.Error(shutdownErr))
		}
	}()

	// Continuous profiling (opt-in)
	stopProfiler, err := profiling.InitProfiler(cfg.Profiling, cfg.Observability, cfg.Server.AppEnv)
	if err != nil {
		logger.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer stopProfiler()

	metrics.RecordInfrastructureMetrics()

	// Cache partitions
	store, err := cache.NewStore(cfg.Offline)
	if err != nil {
		logger.Fatal("Failed to open cache store", zap.Error(err))
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Error("Failed to close cache store", zap.Error(closeErr))
		}
	}()

	fetcher := offline.NewOriginFetcher(cfg.Offline.OriginURL, httpclient.NewOriginClient(cfg.Offline.OriginTimeout))
	manager := offline.NewManager(store, fetcher, cfg.Offline)

	lifecycleCtx, stopLifecycle := context.WithCancel(context.Background())
	defer stopLifecycle()
	go startCacheLifecycle(lifecycleCtx, manager, cfg.Offline.ActivateOnStart)

	// Deploy trigger
	deployService := services.NewDeployService(cfg.Webhook, runner.NewExecRunner(cfg.Webhook.DeployDir))

	// Only networked stores can become unreachable
	var pinger handlers.Pinger
	if p, ok := store.(handlers.Pinger); ok {
		pinger = p
	}

	healthHandler := handlers.NewHealthHandler(pinger)
	webhookHandler := handlers.NewWebhookHandler(deployService)
	cacheHandler := handlers.NewCacheHandler(manager)

	// Set up Gin router
	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Observability.ServiceName))
	router.Use(middleware.ObservabilityMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware(cfg.IsProduction()))

	allowedOrigins := cfg.Server.AllowedOrigins
	if cfg.IsDevelopment() {
		allowedOrigins = append(allowedOrigins, "http://localhost:3000", "http://127.0.0.1:3000")
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.ControlTokenHeader, "traceparent", "tracestate"},
		ExposeHeaders:    []string{"Content-Length", "X-Cache"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	generalRateLimiter := middleware.NewRateLimiter(100, 200) // 100 req/sec, burst of 200
	webhookRateLimiter := middleware.NewRateLimiter(1, 10)    // GitHub delivers a handful per push
	controlRateLimiter := middleware.NewRateLimiter(2, 5)
	defer generalRateLimiter.Stop()
	defer webhookRateLimiter.Stop()
	defer controlRateLimiter.Stop()

	registerRoutes(router, cfg, generalRateLimiter, webhookRateLimiter, controlRateLimiter,
		healthHandler, webhookHandler, cacheHandler)

	// Webhook responses are sent after the deploy script finishes
	writeTimeout := cfg.Webhook.DeployTimeout + 30*time.Second

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("Server started", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopLifecycle()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Let in-flight revalidations finish writing before the store closes
	drained := make(chan struct{})
	go func() {
		manager.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		logger.Warn("Background revalidations still running at shutdown")
	}

	logger.Info("Server exited")
}

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
//
//nolint:govet // Field alignment optimization would reduce readability
type Config struct {
	Server        ServerConfig
	Webhook       WebhookConfig
	Offline       OfflineConfig
	Logging       LoggingConfig
	Observability ObservabilityConfig
	Profiling     ProfilingConfig
}

type ServerConfig struct {
	Port           string
	GinMode        string
	AppEnv         string
	AllowedOrigins []string
}

// WebhookConfig configures the repository push -> deploy trigger
type WebhookConfig struct {
	Secret           string
	ProductionBranch string
	DeployScript     string
	DeployArgs       []string
	DeployDir        string
	DeployTimeout    time.Duration
	MaxBodyBytes     int64
	NotifyURL        string
}

// ProductionRef is the git ref a push must target to trigger a deploy
func (w WebhookConfig) ProductionRef() string {
	return "refs/heads/" + w.ProductionBranch
}

// OfflineConfig configures the caching front proxy
type OfflineConfig struct {
	OriginURL          string
	CacheVersion       string
	CachePrefix        string
	Backend            string // memory | leveldb | redis
	LevelDBPath        string
	RedisURL           string
	NetworkTimeout     time.Duration
	OriginTimeout      time.Duration
	StaticPathSegments []string
	APIPathPrefix      string
	PrecacheURLs       []string
	OfflinePagePath    string
	BypassCookies      []string
	ActivateOnStart    bool
	ControlToken       string
	MaxRevalidations   int
	PreloadConcurrency int
}

type LoggingConfig struct {
	Level string
	Dir   string
}

type ObservabilityConfig struct {
	ExporterEndpoint  string
	ServiceName       string
	ServiceNamespace  string
	ServiceVersion    string
	ServiceInstanceID string
}

type ProfilingConfig struct {
	Enabled               bool
	Endpoint              string
	AppName               string
	SampleTypes           string
	UploadIntervalSeconds int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("ALLOWED_CORS_ORIGINS", "https://imovelhub.com.br,https://www.imovelhub.com.br")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DIR", "/app/logs")

	v.SetDefault("PRODUCTION_BRANCH", "main")
	v.SetDefault("DEPLOY_DIR", "")
	v.SetDefault("DEPLOY_TIMEOUT", "15m")
	v.SetDefault("WEBHOOK_MAX_BODY_BYTES", 5*1024*1024) // GitHub caps payloads at 25MB, pushes are far smaller

	v.SetDefault("ORIGIN_URL", "http://localhost:3000")
	v.SetDefault("CACHE_VERSION", "v1")
	v.SetDefault("CACHE_PREFIX", "imovelhub")
	v.SetDefault("CACHE_BACKEND", "memory")
	v.SetDefault("CACHE_LEVELDB_PATH", "./data/cache")
	v.SetDefault("CACHE_NETWORK_TIMEOUT", "5s")
	v.SetDefault("ORIGIN_TIMEOUT", "30s")
	v.SetDefault("CACHE_STATIC_PATHS", "/_next/static/,/static/")
	v.SetDefault("CACHE_API_PREFIX", "/api/")
	v.SetDefault("CACHE_PRECACHE_URLS", "/,/offline,/manifest.json")
	v.SetDefault("CACHE_OFFLINE_PAGE", "/offline")
	v.SetDefault("CACHE_BYPASS_COOKIES", "next-auth.session-token,__Secure-next-auth.session-token")
	v.SetDefault("CACHE_ACTIVATE_ON_START", true)
	v.SetDefault("CACHE_MAX_REVALIDATIONS", 32)
	v.SetDefault("CACHE_PRELOAD_CONCURRENCY", 4)

	v.SetDefault("O11Y_EXPORTER_ENDPOINT", "")
	v.SetDefault("O11Y_SERVICE_NAME", "imovelhub-ops")
	v.SetDefault("O11Y_SERVICE_NAMESPACE", "imovelhub")
	v.SetDefault("O11Y_SERVICE_VERSION", "1.0.0")
	v.SetDefault("O11Y_PROFILING_ENABLED", false)
	v.SetDefault("O11Y_PROFILING_APP_NAME", "imovelhub-ops")
	v.SetDefault("O11Y_PROFILING_SAMPLE_TYPES", "cpu,alloc_space,goroutines,mutex")
	v.SetDefault("O11Y_PROFILING_UPLOAD_INTERVAL_SECONDS", 15)

	// Automatically read environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	_ = v.ReadInConfig() //nolint:errcheck // Ignore error if .env file doesn't exist

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("PORT"),
			GinMode:        v.GetString("GIN_MODE"),
			AppEnv:         v.GetString("APP_ENV"),
			AllowedOrigins: splitList(v.GetString("ALLOWED_CORS_ORIGINS")),
		},
		Webhook: WebhookConfig{
			Secret:           v.GetString("GITHUB_WEBHOOK_SECRET"),
			ProductionBranch: v.GetString("PRODUCTION_BRANCH"),
			DeployScript:     v.GetString("DEPLOY_SCRIPT"),
			DeployArgs:       strings.Fields(v.GetString("DEPLOY_ARGS")),
			DeployDir:        v.GetString("DEPLOY_DIR"),
			DeployTimeout:    v.GetDuration("DEPLOY_TIMEOUT"),
			MaxBodyBytes:     v.GetInt64("WEBHOOK_MAX_BODY_BYTES"),
			NotifyURL:        v.GetString("DEPLOY_NOTIFY_URL"),
		},
		Offline: OfflineConfig{
			OriginURL:          strings.TrimRight(v.GetString("ORIGIN_URL"), "/"),
			CacheVersion:       v.GetString("CACHE_VERSION"),
			CachePrefix:        v.GetString("CACHE_PREFIX"),
			Backend:            strings.ToLower(v.GetString("CACHE_BACKEND")),
			LevelDBPath:        v.GetString("CACHE_LEVELDB_PATH"),
			RedisURL:           v.GetString("CACHE_REDIS_URL"),
			NetworkTimeout:     v.GetDuration("CACHE_NETWORK_TIMEOUT"),
			OriginTimeout:      v.GetDuration("ORIGIN_TIMEOUT"),
			StaticPathSegments: splitList(v.GetString("CACHE_STATIC_PATHS")),
			APIPathPrefix:      v.GetString("CACHE_API_PREFIX"),
			PrecacheURLs:       splitList(v.GetString("CACHE_PRECACHE_URLS")),
			OfflinePagePath:    v.GetString("CACHE_OFFLINE_PAGE"),
			BypassCookies:      splitList(v.GetString("CACHE_BYPASS_COOKIES")),
			ActivateOnStart:    v.GetBool("CACHE_ACTIVATE_ON_START"),
			ControlToken:       v.GetString("CACHE_CONTROL_TOKEN"),
			MaxRevalidations:   v.GetInt("CACHE_MAX_REVALIDATIONS"),
			PreloadConcurrency: v.GetInt("CACHE_PRELOAD_CONCURRENCY"),
		},
		Logging: LoggingConfig{
			Level: v.GetString("LOG_LEVEL"),
			Dir:   v.GetString("LOG_DIR"),
		},
		Observability: ObservabilityConfig{
			ExporterEndpoint:  v.GetString("O11Y_EXPORTER_ENDPOINT"),
			ServiceName:       v.GetString("O11Y_SERVICE_NAME"),
			ServiceNamespace:  v.GetString("O11Y_SERVICE_NAMESPACE"),
			ServiceVersion:    v.GetString("O11Y_SERVICE_VERSION"),
			ServiceInstanceID: v.GetString("SERVICE_INSTANCE_ID"),
		},
		Profiling: ProfilingConfig{
			Enabled:               v.GetBool("O11Y_PROFILING_ENABLED"),
			Endpoint:              v.GetString("O11Y_PROFILING_ENDPOINT"),
			AppName:               v.GetString("O11Y_PROFILING_APP_NAME"),
			SampleTypes:           v.GetString("O11Y_PROFILING_SAMPLE_TYPES"),
			UploadIntervalSeconds: v.GetInt("O11Y_PROFILING_UPLOAD_INTERVAL_SECONDS"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	// Server configuration
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	// Webhook configuration: an unset secret would reject every delivery
	if c.Webhook.Secret == "" {
		return fmt.Errorf("GITHUB_WEBHOOK_SECRET is required")
	}
	if c.Webhook.DeployScript == "" {
		return fmt.Errorf("DEPLOY_SCRIPT is required")
	}
	if c.Webhook.ProductionBranch == "" {
		return fmt.Errorf("PRODUCTION_BRANCH is required")
	}
	if c.Webhook.DeployTimeout <= 0 {
		return fmt.Errorf("DEPLOY_TIMEOUT must be positive")
	}

	// Offline cache configuration
	origin, err := url.Parse(c.Offline.OriginURL)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return fmt.Errorf("ORIGIN_URL must be an absolute URL")
	}
	if c.Offline.CacheVersion == "" || strings.Contains(c.Offline.CacheVersion, "-") {
		return fmt.Errorf("CACHE_VERSION is required and must not contain '-'")
	}
	if c.Offline.CachePrefix == "" {
		return fmt.Errorf("CACHE_PREFIX is required")
	}
	switch c.Offline.Backend {
	case "memory":
	case "leveldb":
		if c.Offline.LevelDBPath == "" {
			return fmt.Errorf("CACHE_LEVELDB_PATH is required for the leveldb backend")
		}
	case "redis":
		if c.Offline.RedisURL == "" {
			return fmt.Errorf("CACHE_REDIS_URL is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported CACHE_BACKEND %q", c.Offline.Backend)
	}
	if c.Offline.NetworkTimeout <= 0 {
		return fmt.Errorf("CACHE_NETWORK_TIMEOUT must be positive")
	}

	if c.Profiling.Enabled && c.Profiling.Endpoint == "" {
		return fmt.Errorf("O11Y_PROFILING_ENDPOINT is required when profiling is enabled")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.AppEnv == "development" || c.Server.GinMode == "debug"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.AppEnv == "production"
}

// splitList parses a comma-separated list, dropping blanks
func splitList(value string) []string {
	out := []string{}
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

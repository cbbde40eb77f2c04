package offline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/imovelhub/imovelhub-ops/config"
	"github.com/imovelhub/imovelhub-ops/internal/cache"
	"github.com/imovelhub/imovelhub-ops/internal/models"
	"github.com/imovelhub/imovelhub-ops/pkg/logger"
	"github.com/imovelhub/imovelhub-ops/pkg/metrics"
	"github.com/imovelhub/imovelhub-ops/pkg/retry"
	"github.com/imovelhub/imovelhub-ops/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// State is the lifecycle state of the current cache version
type State string

const (
	StateInstalling State = "installing"
	StateWaiting    State = "waiting"
	StateActive     State = "active"
)

// Status describes the cache layer for the control channel
type Status struct {
	Version    string   `json:"version"`
	State      State    `json:"state"`
	Partitions []string `json:"partitions"`
}

// Manager owns the cache partitions of one version and resolves
// intercepted requests against them. It is created once at startup.
type Manager struct {
	store      cache.Store
	fetcher    Fetcher
	classifier *Classifier
	cfg        config.OfflineConfig

	group singleflight.Group
	bg    sync.WaitGroup
	bgSem chan struct{}

	mu    sync.RWMutex
	state State
}

func NewManager(store cache.Store, fetcher Fetcher, cfg config.OfflineConfig) *Manager {
	if cfg.NetworkTimeout <= 0 {
		cfg.NetworkTimeout = 5 * time.Second
	}
	if cfg.MaxRevalidations <= 0 {
		cfg.MaxRevalidations = 32
	}
	if cfg.PreloadConcurrency <= 0 {
		cfg.PreloadConcurrency = 4
	}

	return &Manager{
		store:      store,
		fetcher:    fetcher,
		classifier: NewClassifier(cfg),
		cfg:        cfg,
		bgSem:      make(chan struct{}, cfg.MaxRevalidations),
		state:      StateInstalling,
	}
}

func (m *Manager) partition(kind PartitionKind) Partition {
	return Partition{
		Name:  PartitionName(m.cfg.CachePrefix, kind, m.cfg.CacheVersion),
		Kind:  kind,
		store: m.store,
	}
}

// State returns the lifecycle state of the current version
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Status reports the current version, its state and every known partition
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	partitions, err := m.store.Partitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}
	return &Status{
		Version:    m.cfg.CacheVersion,
		State:      m.State(),
		Partitions: partitions,
	}, nil
}

// Install precaches the core documents into the legacy partition of the
// current version, after which the version waits for activation.
// Individual failures are returned joined; the version still moves on.
func (m *Manager) Install(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "offline.install",
		attribute.String("cache.version", m.cfg.CacheVersion))
	defer span.End()

	m.setState(StateInstalling)

	report := m.preload(ctx, m.cfg.PrecacheURLs, func(string) Partition {
		return m.partition(PartitionLegacy)
	})
	m.setState(StateWaiting)

	logger.Info("Cache version installed",
		zap.String("version", m.cfg.CacheVersion),
		zap.Int("precached", len(report.Cached)),
		zap.Strings("failed", report.Failed))

	if len(report.Failed) > 0 {
		err := fmt.Errorf("failed to precache %s", strings.Join(report.Failed, ", "))
		tracing.RecordError(span, err)
		return err
	}
	return nil
}

// Activate deletes every partition of this prefix whose version differs
// from the current one and marks the current version active. Partitions
// of the current version and of other prefixes are left untouched.
func (m *Manager) Activate(ctx context.Context) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "offline.activate",
		attribute.String("cache.version", m.cfg.CacheVersion))
	defer span.End()

	partitions, err := m.store.Partitions(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}

	deleted := []string{}
	var errs []error
	for _, name := range partitions {
		version, owned := partitionVersion(m.cfg.CachePrefix, name)
		if !owned || version == m.cfg.CacheVersion {
			continue
		}
		if err := m.store.DeletePartition(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete partition %s: %w", name, err))
			continue
		}
		metrics.CachePartitionsDeleted.Inc()
		deleted = append(deleted, name)
	}

	if err := errors.Join(errs...); err != nil {
		tracing.RecordError(span, err)
		return deleted, err
	}

	m.setState(StateActive)
	logger.Info("Cache version activated",
		zap.String("version", m.cfg.CacheVersion),
		zap.Strings("deleted_partitions", deleted))
	return deleted, nil
}

// SkipWaiting activates the waiting version right away
func (m *Manager) SkipWaiting(ctx context.Context) ([]string, error) {
	logger.Info("Skip waiting requested", zap.String("state", string(m.State())))
	return m.Activate(ctx)
}

// Preload fetches and caches urls. A failing URL is reported and does not
// stop the others.
func (m *Manager) Preload(ctx context.Context, urls []string) *models.PreloadReport {
	ctx, span := tracing.StartSpan(ctx, "offline.preload",
		attribute.Int("preload.urls", len(urls)))
	defer span.End()

	return m.preload(ctx, urls, func(path string) Partition {
		return m.partition(routeFor(m.classifier.KindOf(path)).Partition)
	})
}

func (m *Manager) preload(ctx context.Context, urls []string, partitionFor func(path string) Partition) *models.PreloadReport {
	ok := make([]bool, len(urls))

	var g errgroup.Group
	g.SetLimit(m.cfg.PreloadConcurrency)
	for i, raw := range urls {
		g.Go(func() error {
			ok[i] = m.preloadOne(ctx, raw, partitionFor)
			return nil
		})
	}
	_ = g.Wait()

	report := &models.PreloadReport{Cached: []string{}, Failed: []string{}}
	for i, raw := range urls {
		if ok[i] {
			report.Cached = append(report.Cached, raw)
		} else {
			report.Failed = append(report.Failed, raw)
		}
	}
	return report
}

func (m *Manager) preloadOne(ctx context.Context, raw string, partitionFor func(path string) Partition) bool {
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || !strings.HasPrefix(u.Path, "/") {
		logger.Warn("Skipping invalid preload URL", zap.String("url", raw))
		return false
	}

	req := &Request{
		Method: http.MethodGet,
		URI:    u.RequestURI(),
		Path:   u.Path,
		Header: http.Header{},
	}
	p := partitionFor(u.Path)

	entry, err := retry.DoWithResult(ctx, retry.PreloadConfig(), "preload "+req.URI, func() (*cache.Entry, error) {
		return m.fetcher.Fetch(ctx, req.Unconditional())
	})
	if err != nil {
		logger.Warn("Failed to preload route", zap.String("url", raw), zap.Error(err))
		return false
	}
	if !storable(entry) {
		logger.Warn("Preloaded route is not cacheable",
			zap.String("url", raw),
			zap.Int("status", entry.Status))
		return false
	}

	if err := m.store.Put(ctx, p.Name, req.URI, entry); err != nil {
		logStoreError(err, "put", p.Name, req.URI)
		return false
	}
	metrics.CacheWrites.WithLabelValues(string(p.Kind)).Inc()
	return true
}

// Serve resolves an intercepted request: classification, then strategy,
// then fallback when the strategy fails. It always returns a response; the
// returned entry is a private copy carrying the X-Cache header.
func (m *Manager) Serve(ctx context.Context, r *http.Request) *cache.Entry {
	route := m.classifier.Classify(r)

	ctx, span := tracing.StartSpan(ctx, "offline.serve",
		attribute.String("cache.kind", string(route.Kind)),
		attribute.String("cache.strategy", string(route.Strategy)))
	defer span.End()

	resp, err := m.strategy(route.Strategy)(ctx, NewRequest(r), m.partition(route.Partition))
	if err != nil {
		logger.Warn("Request could not be resolved, serving fallback",
			zap.String("method", r.Method),
			zap.String("uri", r.URL.RequestURI()),
			zap.String("strategy", string(route.Strategy)),
			zap.Error(err))
		tracing.RecordError(span, err)
		resp = m.fallback(ctx, r, route.Kind)
	}
	span.SetAttributes(attribute.String("cache.source", string(resp.Source)))

	out := resp.Entry.Clone()
	out.Header.Set("X-Cache", string(resp.Source))
	ensureExposedHeader(out.Header, "X-Cache")
	return out
}

// Wait blocks until every background revalidation has finished
func (m *Manager) Wait() {
	m.bg.Wait()
}

// ensureExposedHeader lets browser code read name in a CORS context
func ensureExposedHeader(h http.Header, name string) {
	const expose = "Access-Control-Expose-Headers"
	cur := h.Values(expose)
	if len(cur) == 0 {
		h.Set(expose, name)
		return
	}

	merged := strings.Join(cur, ",")
	for _, part := range strings.Split(merged, ",") {
		if strings.EqualFold(strings.TrimSpace(part), name) {
			return
		}
	}
	h.Set(expose, strings.TrimSpace(merged)+", "+name)
}

func logStoreError(err error, op, partition, key string) {
	logger.Error("Cache store operation failed",
		zap.String("operation", op),
		zap.String("partition", partition),
		zap.String("key", key),
		zap.Error(err))
}

package offline

import (
	"context"

	"github.com/imovelhub/imovelhub-ops/internal/cache"
	"github.com/imovelhub/imovelhub-ops/pkg/logger"
	"github.com/imovelhub/imovelhub-ops/pkg/metrics"
	"go.uber.org/zap"
)

// Source tells the client where a response came from (X-Cache header)
type Source string

const (
	SourceHit      Source = "hit"
	SourceMiss     Source = "miss"
	SourceStale    Source = "stale"
	SourceNetwork  Source = "network"
	SourceFallback Source = "fallback"
	SourceBypass   Source = "bypass"
)

// Response is a resolved entry together with where it came from
type Response struct {
	Entry  *cache.Entry
	Source Source
}

// Strategy resolves a request against one partition and the network
type Strategy func(ctx context.Context, req *Request, p Partition) (*Response, error)

func (m *Manager) strategy(name StrategyName) Strategy {
	switch name {
	case CacheFirst:
		return m.cacheFirst
	case StaleWhileRevalidate:
		return m.staleWhileRevalidate
	case NetworkFirst:
		return m.networkFirst
	default:
		return m.bypass
	}
}

// cacheFirst serves from cache and only goes to the network on a miss.
// Concurrent misses on the same key share one origin fetch.
func (m *Manager) cacheFirst(ctx context.Context, req *Request, p Partition) (*Response, error) {
	if entry, ok := p.Get(ctx, req.URI); ok {
		return &Response{Entry: entry, Source: SourceHit}, nil
	}

	// The shared fetch must survive the caller that started it going away,
	// and its answer must suit every caller waiting on it
	shared := context.WithoutCancel(ctx)
	sharedReq := req.Unconditional()
	v, err, _ := m.group.Do(p.Name+"\x00"+req.URI, func() (interface{}, error) {
		entry, err := m.fetcher.Fetch(shared, sharedReq)
		if err != nil {
			return nil, err
		}
		if storable(entry) {
			p.Put(shared, req.URI, entry)
		}
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return &Response{Entry: v.(*cache.Entry), Source: SourceMiss}, nil
}

// staleWhileRevalidate answers from cache immediately when it can and
// refreshes the entry in the background.
func (m *Manager) staleWhileRevalidate(ctx context.Context, req *Request, p Partition) (*Response, error) {
	if entry, ok := p.Get(ctx, req.URI); ok {
		m.revalidate(ctx, req, p)
		return &Response{Entry: entry, Source: SourceStale}, nil
	}

	entry, err := m.fetcher.Fetch(ctx, req.Unconditional())
	if err != nil {
		return nil, err
	}
	if storable(entry) {
		p.Put(ctx, req.URI, entry)
	}
	return &Response{Entry: entry, Source: SourceMiss}, nil
}

// networkFirst prefers a fresh answer and falls back to the cached copy when
// the origin fails or does not answer within the network timeout.
func (m *Manager) networkFirst(ctx context.Context, req *Request, p Partition) (*Response, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, m.cfg.NetworkTimeout)
	entry, err := m.fetcher.Fetch(fetchCtx, req.Unconditional())
	cancel()

	if err == nil {
		if storable(entry) {
			p.Put(ctx, req.URI, entry)
		}
		return &Response{Entry: entry, Source: SourceNetwork}, nil
	}

	if cached, ok := p.Get(ctx, req.URI); ok {
		logger.Debug("Network failed, serving cached response",
			zap.String("uri", req.URI),
			zap.Error(err))
		return &Response{Entry: cached, Source: SourceStale}, nil
	}
	return nil, err
}

// bypass proxies straight to the origin without touching the cache
func (m *Manager) bypass(ctx context.Context, req *Request, _ Partition) (*Response, error) {
	entry, err := m.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Response{Entry: entry, Source: SourceBypass}, nil
}

// revalidate refreshes an entry in the background. The fetch is detached
// from the request and has no deadline of its own beyond the origin client
// timeout. When too many revalidations are already running it is skipped.
func (m *Manager) revalidate(ctx context.Context, req *Request, p Partition) {
	select {
	case m.bgSem <- struct{}{}:
	default:
		metrics.CacheRevalidations.WithLabelValues(string(p.Kind), "skipped").Inc()
		return
	}

	bgCtx := context.WithoutCancel(ctx)
	bgReq := req.Unconditional()
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		defer func() { <-m.bgSem }()

		entry, err := m.fetcher.Fetch(bgCtx, bgReq)
		if err != nil {
			metrics.CacheRevalidations.WithLabelValues(string(p.Kind), "error").Inc()
			return
		}
		if !storable(entry) {
			metrics.CacheRevalidations.WithLabelValues(string(p.Kind), "not_stored").Inc()
			return
		}
		p.Put(bgCtx, bgReq.URI, entry)
		metrics.CacheRevalidations.WithLabelValues(string(p.Kind), "updated").Inc()
	}()
}

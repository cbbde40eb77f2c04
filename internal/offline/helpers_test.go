package offline

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/imovelhub/imovelhub-ops/config"
	"github.com/imovelhub/imovelhub-ops/internal/cache"
	"github.com/stretchr/testify/require"
)

// fakeFetcher answers from a fixed table and records every call.
// When gate is set, fetches block until it is closed.
type fakeFetcher struct {
	mu        sync.Mutex
	calls     map[string]int
	methods   []string
	responses map[string]*cache.Entry
	err       error
	// etag, when set, is sent with every response and answers a matching
	// If-None-Match with an empty 304
	etag    string
	headers []http.Header

	gate    chan struct{}
	started chan string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		calls:     map[string]int{},
		responses: map[string]*cache.Entry{},
	}
}

func (f *fakeFetcher) respond(uri string, status int, contentType, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[uri] = &cache.Entry{
		URL:    uri,
		Status: status,
		Header: http.Header{"Content-Type": []string{contentType}},
		Body:   []byte(body),
	}
}

func (f *fakeFetcher) callCount(uri string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[uri]
}

func (f *fakeFetcher) Fetch(ctx context.Context, req *Request) (*cache.Entry, error) {
	f.mu.Lock()
	f.calls[req.URI]++
	f.methods = append(f.methods, req.Method)
	f.headers = append(f.headers, req.Header.Clone())
	resp, ok := f.responses[req.URI]
	err := f.err
	etag := f.etag
	gate, started := f.gate, f.started
	f.mu.Unlock()

	if gate != nil {
		if started != nil {
			select {
			case started <- req.URI:
			default:
			}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	if !ok {
		return &cache.Entry{URL: req.URI, Status: http.StatusNotFound, Header: http.Header{}}, nil
	}
	if etag != "" && req.Header.Get("If-None-Match") == etag {
		return &cache.Entry{URL: req.URI, Status: http.StatusNotModified, Header: http.Header{"Etag": {etag}}}, nil
	}
	out := resp.Clone()
	if etag != "" {
		out.Header.Set("ETag", etag)
	}
	out.StoredAt = time.Now()
	return out, nil
}

func (f *fakeFetcher) sawHeader(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.headers {
		if h.Get(name) != "" {
			return true
		}
	}
	return false
}

func testOfflineConfig() config.OfflineConfig {
	return config.OfflineConfig{
		OriginURL:          "http://origin.test",
		CacheVersion:       "v2",
		CachePrefix:        "imovelhub",
		Backend:            "memory",
		NetworkTimeout:     time.Second,
		StaticPathSegments: []string{"/_next/static/", "/static/"},
		APIPathPrefix:      "/api/",
		PrecacheURLs:       []string{"/", "/offline", "/manifest.json"},
		OfflinePagePath:    "/offline",
		BypassCookies:      []string{"next-auth.session-token"},
		MaxRevalidations:   4,
		PreloadConcurrency: 2,
	}
}

func newTestManager(t *testing.T, fetcher Fetcher, mutate ...func(cfg *config.OfflineConfig)) (*Manager, *cache.MemoryStore) {
	t.Helper()

	cfg := testOfflineConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}
	store := cache.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	return NewManager(store, fetcher, cfg), store
}

func seed(t *testing.T, store cache.Store, partition, uri, body string) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), partition, uri, &cache.Entry{
		URL:      uri,
		Status:   http.StatusOK,
		Header:   http.Header{"Content-Type": []string{"text/plain"}},
		Body:     []byte(body),
		StoredAt: time.Now().Add(-time.Hour),
	}))
}

func getRequest(target, accept string) *http.Request {
	r, _ := http.NewRequest(http.MethodGet, "http://proxy.test"+target, http.NoBody)
	if accept != "" {
		r.Header.Set("Accept", accept)
	}
	return r
}

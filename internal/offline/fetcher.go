package offline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/imovelhub/imovelhub-ops/internal/cache"
	"github.com/imovelhub/imovelhub-ops/pkg/circuitbreaker"
	apperrors "github.com/imovelhub/imovelhub-ops/pkg/errors"
	"github.com/imovelhub/imovelhub-ops/pkg/httpclient"
	"github.com/imovelhub/imovelhub-ops/pkg/logger"
	"github.com/imovelhub/imovelhub-ops/pkg/metrics"
	"github.com/imovelhub/imovelhub-ops/pkg/tracing"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Request is the origin-facing copy of an intercepted request. It outlives
// the incoming *http.Request, so background revalidation can reuse it.
type Request struct {
	Method string
	// URI is path plus query; it is also the cache key
	URI    string
	Path   string
	Header http.Header
	Body   io.Reader
}

// NewRequest snapshots r for fetching from the origin
func NewRequest(r *http.Request) *Request {
	req := &Request{
		Method: r.Method,
		URI:    r.URL.RequestURI(),
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		req.Body = r.Body
	}
	return req
}

// Client-specific validators. A response fetched with them may be a 304 or
// a partial body that only makes sense to that one client.
var conditionalHeaders = []string{
	"If-None-Match",
	"If-Modified-Since",
	"If-Match",
	"If-Unmodified-Since",
	"If-Range",
	"Range",
}

// Unconditional returns a copy of req without conditional and range
// headers, for fetches whose result is shared through the cache.
func (r *Request) Unconditional() *Request {
	out := *r
	out.Header = r.Header.Clone()
	if out.Header == nil {
		out.Header = http.Header{}
	}
	for _, name := range conditionalHeaders {
		out.Header.Del(name)
	}
	return &out
}

// Fetcher retrieves a response from the network
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*cache.Entry, error)
}

// Headers that only make sense on a single hop and are never relayed
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// OriginFetcher fetches from the web application origin through a circuit
// breaker, so an unreachable origin fails fast into the cache path.
type OriginFetcher struct {
	origin  string
	client  httpclient.Client
	breaker *gobreaker.CircuitBreaker
}

func NewOriginFetcher(origin string, client httpclient.Client) *OriginFetcher {
	return &OriginFetcher{
		origin:  strings.TrimRight(origin, "/"),
		client:  client,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.OriginConfig("origin")),
	}
}

// Fetch sends req to the origin. Any HTTP status is a successful fetch;
// only transport failures and an open breaker produce an error.
func (f *OriginFetcher) Fetch(ctx context.Context, req *Request) (*cache.Entry, error) {
	ctx, span := tracing.StartSpan(ctx, "origin.fetch",
		attribute.String("http.request.method", req.Method),
		attribute.String("url.path", req.Path))
	defer span.End()

	start := time.Now()
	entry, err := circuitbreaker.Execute(f.breaker, func() (*cache.Entry, error) {
		entry, err := f.do(ctx, req)
		if err != nil && ctx.Err() != nil {
			// The caller gave up; the origin may be perfectly healthy
			return nil, circuitbreaker.Ignore(err)
		}
		return entry, err
	})
	duration := time.Since(start).Seconds()

	status := "error"
	if err == nil {
		status = strconv.Itoa(entry.Status)
		span.SetAttributes(attribute.Int("http.response.status_code", entry.Status))
	}
	metrics.OriginRequestDuration.WithLabelValues(req.Method, status).Observe(duration)
	metrics.OriginRequestTotal.WithLabelValues(req.Method, status).Inc()

	if err != nil {
		tracing.RecordError(span, err)
		logger.LogOriginCall("fetch", "error", duration,
			zap.String("method", req.Method),
			zap.String("uri", req.URI),
			zap.String("breaker_state", circuitbreaker.GetState(f.breaker)),
			zap.Error(err))
		return nil, apperrors.OriginUnavailableError(req.URI, err)
	}

	logger.LogOriginCall("fetch", status, duration,
		zap.String("method", req.Method),
		zap.String("uri", req.URI))
	return entry, nil
}

func (f *OriginFetcher) do(ctx context.Context, req *Request) (*cache.Entry, error) {
	outReq, err := http.NewRequestWithContext(ctx, req.Method, f.origin+req.URI, req.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to build origin request: %w", err)
	}
	copyHeaders(outReq.Header, req.Header)
	// Bodies are cached verbatim, keep them uncompressed
	outReq.Header.Set("Accept-Encoding", "identity")

	resp, err := f.client.Do(outReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read origin response: %w", err)
	}

	header := resp.Header.Clone()
	stripHopByHop(header)
	header.Del("Content-Length")

	return &cache.Entry{
		URL:      req.URI,
		Status:   resp.StatusCode,
		Header:   header,
		Body:     body,
		StoredAt: time.Now(),
	}, nil
}

func copyHeaders(dst, src http.Header) {
	for k, vs := range src {
		if strings.EqualFold(k, "Host") {
			continue
		}
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
	stripHopByHop(dst)
}

func stripHopByHop(h http.Header) {
	for _, name := range h.Values("Connection") {
		for _, field := range strings.Split(name, ",") {
			if field = strings.TrimSpace(field); field != "" {
				h.Del(field)
			}
		}
	}
	for _, name := range hopByHopHeaders {
		h.Del(name)
	}
}

// storable reports whether a fetched response may go into the shared cache
func storable(entry *cache.Entry) bool {
	if entry.Status != http.StatusOK {
		return false
	}
	if len(entry.Header.Values("Set-Cookie")) > 0 {
		return false
	}
	cc := strings.ToLower(entry.Header.Get("Cache-Control"))
	return !strings.Contains(cc, "no-store") && !strings.Contains(cc, "private")
}

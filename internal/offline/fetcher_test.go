package offline

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/imovelhub/imovelhub-ops/internal/cache"
	apperrors "github.com/imovelhub/imovelhub-ops/pkg/errors"
	"github.com/imovelhub/imovelhub-ops/pkg/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginFetcher_Fetch(t *testing.T) {
	var got *http.Request
	var gotBody string
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("X-Powered-By", "Next.js")
		w.Header().Set("Keep-Alive", "timeout=5")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer origin.Close()

	fetcher := NewOriginFetcher(origin.URL+"/", httpclient.NewOriginClient(5*time.Second))

	r := httptest.NewRequest(http.MethodPost, "http://proxy.test/api/leads?src=home", strings.NewReader(`{"a":1}`))
	r.Header.Set("Accept-Encoding", "gzip")
	r.Header.Set("Connection", "keep-alive, X-Hop")
	r.Header.Set("X-Hop", "drop-me")
	r.Header.Set("X-Request-ID", "abc")

	entry, err := fetcher.Fetch(context.Background(), NewRequest(r))
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, entry.Status)
	assert.Equal(t, "<html>ok</html>", string(entry.Body))
	assert.Equal(t, "/api/leads?src=home", entry.URL)
	assert.Equal(t, "Next.js", entry.Header.Get("X-Powered-By"))
	assert.Empty(t, entry.Header.Get("Keep-Alive"))
	assert.Empty(t, entry.Header.Get("Content-Length"))

	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/api/leads", got.URL.Path)
	assert.Equal(t, `{"a":1}`, gotBody)
	assert.Equal(t, "identity", got.Header.Get("Accept-Encoding"))
	assert.Equal(t, "abc", got.Header.Get("X-Request-ID"))
	assert.Empty(t, got.Header.Get("X-Hop"))
}

func TestOriginFetcher_Unreachable(t *testing.T) {
	origin := httptest.NewServer(http.NotFoundHandler())
	origin.Close()

	fetcher := NewOriginFetcher(origin.URL, httpclient.NewOriginClient(time.Second))

	entry, err := fetcher.Fetch(context.Background(), &Request{Method: http.MethodGet, URI: "/", Path: "/", Header: http.Header{}})

	assert.Nil(t, entry)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrOriginUnavailable))
}

func TestOriginFetcher_CallerCancellationDoesNotOpenBreaker(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(200 * time.Millisecond):
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>imoveis</html>"))
	}))
	defer origin.Close()

	fetcher := NewOriginFetcher(origin.URL, httpclient.NewOriginClient(5*time.Second))
	req := &Request{Method: http.MethodGet, URI: "/imoveis/z", Path: "/imoveis/z", Header: http.Header{}}

	for i := 0; i < 6; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := fetcher.Fetch(ctx, req)
		cancel()
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}

	entry, err := fetcher.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, entry.Status)
	assert.Equal(t, "<html>imoveis</html>", string(entry.Body))
}

func TestOriginFetcher_UnreachableOriginOpensBreaker(t *testing.T) {
	origin := httptest.NewServer(http.NotFoundHandler())
	origin.Close()

	fetcher := NewOriginFetcher(origin.URL, httpclient.NewOriginClient(time.Second))
	req := &Request{Method: http.MethodGet, URI: "/", Path: "/", Header: http.Header{}}

	for i := 0; i < 5; i++ {
		_, err := fetcher.Fetch(context.Background(), req)
		require.Error(t, err)
	}

	_, err := fetcher.Fetch(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker 'origin' is open")
}

func TestRequest_Unconditional(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://proxy.test/imoveis", http.NoBody)
	r.Header.Set("If-None-Match", `"a"`)
	r.Header.Set("If-Modified-Since", "Mon, 12 Oct 2026 10:00:00 GMT")
	r.Header.Set("If-Range", `"a"`)
	r.Header.Set("Range", "bytes=0-10")
	r.Header.Set("Accept", "text/html")
	req := NewRequest(r)

	out := req.Unconditional()

	assert.Equal(t, "text/html", out.Header.Get("Accept"))
	for _, name := range []string{"If-None-Match", "If-Modified-Since", "If-Range", "Range"} {
		assert.Empty(t, out.Header.Get(name), name)
	}
	assert.Equal(t, `"a"`, req.Header.Get("If-None-Match"))
	assert.Equal(t, req.URI, out.URI)
}

func TestStorable(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		header   http.Header
		expected bool
	}{
		{name: "plain 200", status: http.StatusOK, header: http.Header{}, expected: true},
		{name: "public max-age", status: http.StatusOK, header: http.Header{"Cache-Control": {"public, max-age=60"}}, expected: true},
		{name: "redirect", status: http.StatusFound, header: http.Header{}, expected: false},
		{name: "server error", status: http.StatusBadGateway, header: http.Header{}, expected: false},
		{name: "no-store", status: http.StatusOK, header: http.Header{"Cache-Control": {"no-store"}}, expected: false},
		{name: "private", status: http.StatusOK, header: http.Header{"Cache-Control": {"Private, max-age=0"}}, expected: false},
		{name: "set-cookie", status: http.StatusOK, header: http.Header{"Set-Cookie": {"sid=1"}}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, storable(&cache.Entry{Status: tt.status, Header: tt.header}))
		})
	}
}

package offline

import (
	"context"
	"net/http"
	"time"

	"github.com/imovelhub/imovelhub-ops/internal/cache"
	"github.com/imovelhub/imovelhub-ops/pkg/metrics"
)

const offlineHTML = `<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>ImovelHub - Offline</title>
</head>
<body>
<main>
<h1>Você está offline</h1>
<p>Não foi possível carregar esta página. Verifique sua conexão e tente novamente.</p>
</main>
</body>
</html>
`

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="400" height="300" viewBox="0 0 400 300">` +
	`<rect width="400" height="300" fill="#e5e7eb"/>` +
	`<text x="200" y="150" font-family="sans-serif" font-size="18" fill="#6b7280" text-anchor="middle" dominant-baseline="middle">Imagem indisponível</text>` +
	`</svg>`

const unavailableJSON = `{"error":"Service unavailable","offline":true}`

// fallback builds the response for a request no strategy could resolve.
// It always produces a response.
func (m *Manager) fallback(ctx context.Context, r *http.Request, kind Kind) *Response {
	legacy := m.partition(PartitionLegacy)

	if wantsHTML(r) {
		if root, ok := legacy.Get(ctx, "/"); ok {
			metrics.CacheFallbacks.WithLabelValues("document").Inc()
			return &Response{Entry: root, Source: SourceFallback}
		}
		if m.cfg.OfflinePagePath != "" {
			if page, ok := legacy.Get(ctx, m.cfg.OfflinePagePath); ok {
				page = page.Clone()
				page.Status = http.StatusServiceUnavailable
				metrics.CacheFallbacks.WithLabelValues("offline_page").Inc()
				return &Response{Entry: page, Source: SourceFallback}
			}
		}
		metrics.CacheFallbacks.WithLabelValues("offline_page").Inc()
		return &Response{
			Entry:  syntheticEntry(r, http.StatusServiceUnavailable, "text/html; charset=utf-8", offlineHTML),
			Source: SourceFallback,
		}
	}

	if wantsImage(r, kind) {
		metrics.CacheFallbacks.WithLabelValues("image").Inc()
		return &Response{
			Entry:  syntheticEntry(r, http.StatusOK, "image/svg+xml", placeholderSVG),
			Source: SourceFallback,
		}
	}

	metrics.CacheFallbacks.WithLabelValues("unavailable").Inc()
	return &Response{
		Entry:  syntheticEntry(r, http.StatusServiceUnavailable, "application/json; charset=utf-8", unavailableJSON),
		Source: SourceFallback,
	}
}

func syntheticEntry(r *http.Request, status int, contentType, body string) *cache.Entry {
	header := http.Header{}
	header.Set("Content-Type", contentType)
	header.Set("Cache-Control", "no-store")
	return &cache.Entry{
		URL:      r.URL.RequestURI(),
		Status:   status,
		Header:   header,
		Body:     []byte(body),
		StoredAt: time.Now(),
	}
}

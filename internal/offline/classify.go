package offline

import (
	"net/http"
	"path"
	"strings"

	"github.com/imovelhub/imovelhub-ops/config"
)

// Kind is the resource class of an intercepted request
type Kind string

const (
	KindStatic Kind = "static"
	KindImage  Kind = "image"
	KindAPI    Kind = "api"
	KindPage   Kind = "page"
)

// StrategyName identifies how a request is resolved against cache and network
type StrategyName string

const (
	CacheFirst           StrategyName = "cache-first"
	StaleWhileRevalidate StrategyName = "stale-while-revalidate"
	NetworkFirst         StrategyName = "network-first"
	Bypass               StrategyName = "bypass"
)

var staticExtensions = map[string]struct{}{
	".js": {}, ".mjs": {}, ".css": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {}, ".eot": {},
}

var imageExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {},
	".webp": {}, ".avif": {}, ".svg": {}, ".ico": {},
}

// Route is the classification result for one request
type Route struct {
	Kind      Kind
	Strategy  StrategyName
	Partition PartitionKind
}

// Classifier maps requests to a route. Rules are evaluated in order:
// static assets, images, API calls, then everything else as pages.
type Classifier struct {
	staticSegments []string
	apiPrefix      string
	bypassCookies  map[string]struct{}
}

func NewClassifier(cfg config.OfflineConfig) *Classifier {
	segments := cfg.StaticPathSegments
	if len(segments) == 0 {
		segments = []string{"/_next/static/", "/static/"}
	}
	apiPrefix := cfg.APIPathPrefix
	if apiPrefix == "" {
		apiPrefix = "/api/"
	}

	cookies := make(map[string]struct{}, len(cfg.BypassCookies))
	for _, name := range cfg.BypassCookies {
		cookies[name] = struct{}{}
	}

	return &Classifier{
		staticSegments: segments,
		apiPrefix:      apiPrefix,
		bypassCookies:  cookies,
	}
}

// KindOf classifies a URL path without looking at the rest of the request
func (c *Classifier) KindOf(urlPath string) Kind {
	ext := strings.ToLower(path.Ext(urlPath))

	if _, ok := staticExtensions[ext]; ok {
		return KindStatic
	}
	for _, segment := range c.staticSegments {
		if strings.Contains(urlPath, segment) {
			return KindStatic
		}
	}
	if _, ok := imageExtensions[ext]; ok {
		return KindImage
	}
	if strings.HasPrefix(urlPath, c.apiPrefix) {
		return KindAPI
	}
	return KindPage
}

// Classify picks the route for r. Non-GET requests, no-store requests and
// personalised page/API requests bypass the cache entirely.
func (c *Classifier) Classify(r *http.Request) Route {
	kind := c.KindOf(r.URL.Path)
	route := routeFor(kind)

	if r.Method != http.MethodGet {
		route.Strategy = Bypass
		return route
	}
	if strings.Contains(strings.ToLower(r.Header.Get("Cache-Control")), "no-store") {
		route.Strategy = Bypass
		return route
	}
	if (kind == KindAPI || kind == KindPage) && c.personalised(r) {
		route.Strategy = Bypass
	}
	return route
}

func routeFor(kind Kind) Route {
	switch kind {
	case KindStatic:
		return Route{Kind: kind, Strategy: CacheFirst, Partition: PartitionStatic}
	case KindImage:
		return Route{Kind: kind, Strategy: StaleWhileRevalidate, Partition: PartitionImage}
	case KindAPI:
		return Route{Kind: kind, Strategy: NetworkFirst, Partition: PartitionDynamic}
	default:
		return Route{Kind: KindPage, Strategy: StaleWhileRevalidate, Partition: PartitionDynamic}
	}
}

// personalised reports whether the response may depend on who is asking.
// Those responses must never land in a cache shared by every visitor.
func (c *Classifier) personalised(r *http.Request) bool {
	if r.Header.Get("Authorization") != "" {
		return true
	}
	if len(c.bypassCookies) == 0 {
		return false
	}
	for _, cookie := range r.Cookies() {
		if _, ok := c.bypassCookies[cookie.Name]; ok {
			return true
		}
	}
	return false
}

// wantsHTML reports whether the client is navigating to a document
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// wantsImage reports whether the client asked for an image
func wantsImage(r *http.Request, kind Kind) bool {
	return kind == KindImage || strings.HasPrefix(r.Header.Get("Accept"), "image/")
}

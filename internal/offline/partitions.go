package offline

import (
	"context"
	"strings"

	"github.com/imovelhub/imovelhub-ops/internal/cache"
	"github.com/imovelhub/imovelhub-ops/pkg/metrics"
)

// PartitionKind names one of the cache partitions of a version
type PartitionKind string

const (
	PartitionStatic  PartitionKind = "static"
	PartitionDynamic PartitionKind = "dynamic"
	PartitionImage   PartitionKind = "image"
	// PartitionLegacy holds the precached core documents
	PartitionLegacy PartitionKind = "legacy"
)

// PartitionName builds "<prefix>-<kind>-<version>"
func PartitionName(prefix string, kind PartitionKind, version string) string {
	return prefix + "-" + string(kind) + "-" + version
}

// partitionVersion extracts the version of a partition named
// "<prefix>-<kind>-<version>" with one of the known kinds. Anything else,
// including partitions of a longer prefix that starts with this one, is
// reported as not owned.
func partitionVersion(prefix, name string) (string, bool) {
	rest, ok := strings.CutPrefix(name, prefix+"-")
	if !ok {
		return "", false
	}
	kind, version, ok := strings.Cut(rest, "-")
	if !ok || version == "" || strings.Contains(version, "-") {
		return "", false
	}
	switch PartitionKind(kind) {
	case PartitionStatic, PartitionDynamic, PartitionImage, PartitionLegacy:
		return version, true
	default:
		return "", false
	}
}

// Partition is a named view over the store, passed explicitly to strategies
type Partition struct {
	Name  string
	Kind  PartitionKind
	store cache.Store
}

// Get looks up key. Store errors are treated as misses: a broken cache must
// not take down a request the network can still answer.
func (p Partition) Get(ctx context.Context, key string) (*cache.Entry, bool) {
	entry, ok, err := p.store.Get(ctx, p.Name, key)
	if err != nil {
		logStoreError(err, "get", p.Name, key)
		return nil, false
	}
	if !ok {
		metrics.CacheMisses.WithLabelValues(string(p.Kind)).Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues(string(p.Kind)).Inc()
	return entry, true
}

// Put stores entry under key, logging instead of failing
func (p Partition) Put(ctx context.Context, key string, entry *cache.Entry) {
	if err := p.store.Put(ctx, p.Name, key, entry); err != nil {
		logStoreError(err, "put", p.Name, key)
		return
	}
	metrics.CacheWrites.WithLabelValues(string(p.Kind)).Inc()
}

package cache

import (
	"context"
	"fmt"

	"github.com/imovelhub/imovelhub-ops/config"
)

// Store holds cache entries grouped into named partitions. A partition
// exists from its first Put until DeletePartition removes it with all of
// its entries.
type Store interface {
	Get(ctx context.Context, partition, key string) (*Entry, bool, error)
	Put(ctx context.Context, partition, key string, entry *Entry) error
	Partitions(ctx context.Context) ([]string, error)
	DeletePartition(ctx context.Context, partition string) error
	Close() error
}

// NewStore builds the backend selected by CACHE_BACKEND
func NewStore(cfg config.OfflineConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "leveldb":
		return NewLevelDBStore(cfg.LevelDBPath)
	case "redis":
		return NewRedisStoreFromURL(cfg.RedisURL, cfg.CachePrefix)
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
	}
}

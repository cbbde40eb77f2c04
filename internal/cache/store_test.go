package cache

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/imovelhub/imovelhub-ops/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(url, body string) *Entry {
	return &Entry{
		URL:      url,
		Status:   http.StatusOK,
		Header:   http.Header{"Content-Type": []string{"text/css"}},
		Body:     []byte(body),
		StoredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func storeBackends(t *testing.T) map[string]Store {
	t.Helper()

	ldb, err := NewLevelDBStore(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ldb.Close() })

	mr := miniredis.RunT(t)
	rdb := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "imovelhub-test")
	t.Cleanup(func() { _ = rdb.Close() })

	return map[string]Store{
		"memory":  NewMemoryStore(),
		"leveldb": ldb,
		"redis":   rdb,
	}
}

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()

	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, found, err := store.Get(ctx, "imovelhub-static-v1", "/app.css")
			require.NoError(t, err)
			assert.False(t, found)

			want := newEntry("/app.css", "body{}")
			require.NoError(t, store.Put(ctx, "imovelhub-static-v1", "/app.css", want))

			got, found, err := store.Get(ctx, "imovelhub-static-v1", "/app.css")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, want.Status, got.Status)
			assert.Equal(t, want.Body, got.Body)
			assert.Equal(t, "text/css", got.Header.Get("Content-Type"))
			assert.True(t, want.StoredAt.Equal(got.StoredAt))

			// Same key in another partition is independent
			_, found, err = store.Get(ctx, "imovelhub-image-v1", "/app.css")
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestStore_Overwrite(t *testing.T) {
	ctx := context.Background()

	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "p", "/logo.png", newEntry("/logo.png", "old")))
			require.NoError(t, store.Put(ctx, "p", "/logo.png", newEntry("/logo.png", "new")))

			got, found, err := store.Get(ctx, "p", "/logo.png")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, "new", string(got.Body))
		})
	}
}

func TestStore_DeletePartition(t *testing.T) {
	ctx := context.Background()

	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "imovelhub-static-v1", "/a.js", newEntry("/a.js", "a")))
			require.NoError(t, store.Put(ctx, "imovelhub-static-v1", "/b.js", newEntry("/b.js", "b")))
			require.NoError(t, store.Put(ctx, "imovelhub-static-v2", "/a.js", newEntry("/a.js", "a2")))

			names, err := store.Partitions(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"imovelhub-static-v1", "imovelhub-static-v2"}, names)

			require.NoError(t, store.DeletePartition(ctx, "imovelhub-static-v1"))

			names, err = store.Partitions(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"imovelhub-static-v2"}, names)

			_, found, err := store.Get(ctx, "imovelhub-static-v1", "/a.js")
			require.NoError(t, err)
			assert.False(t, found)

			got, found, err := store.Get(ctx, "imovelhub-static-v2", "/a.js")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, "a2", string(got.Body))

			// Deleting a missing partition is a no-op
			assert.NoError(t, store.DeletePartition(ctx, "never-created"))
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	entry := newEntry("/a.js", "original")
	require.NoError(t, store.Put(ctx, "p", "/a.js", entry))
	entry.Body[0] = 'X'

	got, _, err := store.Get(ctx, "p", "/a.js")
	require.NoError(t, err)
	got.Header.Set("Content-Type", "mutated")

	again, _, err := store.Get(ctx, "p", "/a.js")
	require.NoError(t, err)
	assert.Equal(t, "original", string(again.Body))
	assert.Equal(t, "text/css", again.Header.Get("Content-Type"))
	assert.Equal(t, 1, store.Len("p"))
}

func TestRedisStore_Ping(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStoreFromURL("redis://"+mr.Addr()+"/0", "ns")
	require.NoError(t, err)
	defer store.Close()

	assert.NoError(t, store.Ping(context.Background()))
}

func TestNewStore(t *testing.T) {
	store, err := NewStore(config.OfflineConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = NewStore(config.OfflineConfig{Backend: "leveldb", LevelDBPath: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	assert.IsType(t, &LevelDBStore{}, store)
	require.NoError(t, store.Close())

	_, err = NewStore(config.OfflineConfig{Backend: "memcached"})
	assert.Error(t, err)
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares partitions between proxy replicas. Each partition is a
// hash of url -> gob-encoded Entry; a set tracks which partitions exist.
type RedisStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisStore wraps an existing client
func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	return &RedisStore{client: client, namespace: namespace}
}

// NewRedisStoreFromURL connects using a redis:// URL
func NewRedisStoreFromURL(rawURL, namespace string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_REDIS_URL: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), namespace), nil
}

func (s *RedisStore) registryKey() string {
	return s.namespace + ":partitions"
}

func (s *RedisStore) partitionKey(partition string) string {
	return s.namespace + ":partition:" + partition
}

func (s *RedisStore) Get(ctx context.Context, partition, key string) (*Entry, bool, error) {
	b, err := s.client.HGet(ctx, s.partitionKey(partition), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis hget %s: %w", key, err)
	}

	entry, err := decodeEntry(b)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

func (s *RedisStore) Put(ctx context.Context, partition, key string, entry *Entry) error {
	b, err := encodeEntry(entry)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.registryKey(), partition)
		pipe.HSet(ctx, s.partitionKey(partition), key, b)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Partitions(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.registryKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list partitions: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *RedisStore) DeletePartition(ctx context.Context, partition string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.partitionKey(partition))
		pipe.SRem(ctx, s.registryKey(), partition)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete partition %s: %w", partition, err)
	}
	return nil
}

// Ping checks connectivity, used by the health check
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

package cache

import (
	"context"
	"sort"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps each partition in its own go-cache instance.
// Entries never expire; partitions are dropped wholesale.
type MemoryStore struct {
	mu         sync.RWMutex
	partitions map[string]*gocache.Cache
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{partitions: make(map[string]*gocache.Cache)}
}

func (s *MemoryStore) Get(_ context.Context, partition, key string) (*Entry, bool, error) {
	s.mu.RLock()
	c, ok := s.partitions[partition]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	data, found := c.Get(key)
	if !found {
		return nil, false, nil
	}

	entry, ok := data.(*Entry)
	if !ok {
		c.Delete(key)
		return nil, false, nil
	}

	return entry.Clone(), true, nil
}

func (s *MemoryStore) Put(_ context.Context, partition, key string, entry *Entry) error {
	s.mu.Lock()
	c, ok := s.partitions[partition]
	if !ok {
		// No janitor: nothing expires
		c = gocache.New(gocache.NoExpiration, 0)
		s.partitions[partition] = c
	}
	s.mu.Unlock()

	c.Set(key, entry.Clone(), gocache.NoExpiration)
	return nil
}

func (s *MemoryStore) Partitions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.partitions))
	for name := range s.partitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) DeletePartition(_ context.Context, partition string) error {
	s.mu.Lock()
	c, ok := s.partitions[partition]
	delete(s.partitions, partition)
	s.mu.Unlock()

	if ok {
		c.Flush()
	}
	return nil
}

// Len returns the number of entries in a partition
func (s *MemoryStore) Len(partition string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.partitions[partition]; ok {
		return c.ItemCount()
	}
	return 0
}

func (s *MemoryStore) Close() error {
	return nil
}

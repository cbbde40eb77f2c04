package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Key layout:
//
//	p:<partition>              partition registry (empty value)
//	e:<partition>\x00<url>     gob-encoded Entry
const (
	partitionKeyPrefix = "p:"
	entryKeyPrefix     = "e:"
	keySeparator       = "\x00"
)

// LevelDBStore persists partitions on local disk so cached pages survive
// restarts of the proxy.
type LevelDBStore struct {
	db *leveldb.DB
}

// NewLevelDBStore opens (or creates) a store at path
func NewLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb cache at %s: %w", path, err)
	}
	return &LevelDBStore{db: db}, nil
}

func entryKey(partition, key string) []byte {
	return []byte(entryKeyPrefix + partition + keySeparator + key)
}

func (s *LevelDBStore) Get(_ context.Context, partition, key string) (*Entry, bool, error) {
	b, err := s.db.Get(entryKey(partition, key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("leveldb get %s: %w", key, err)
	}

	entry, err := decodeEntry(b)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

func (s *LevelDBStore) Put(_ context.Context, partition, key string, entry *Entry) error {
	b, err := encodeEntry(entry)
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	batch.Put([]byte(partitionKeyPrefix+partition), nil)
	batch.Put(entryKey(partition, key), b)
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("leveldb put %s: %w", key, err)
	}
	return nil
}

func (s *LevelDBStore) Partitions(_ context.Context) ([]string, error) {
	it := s.db.NewIterator(util.BytesPrefix([]byte(partitionKeyPrefix)), nil)
	defer it.Release()

	names := []string{}
	for it.Next() {
		names = append(names, string(it.Key()[len(partitionKeyPrefix):]))
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("leveldb list partitions: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *LevelDBStore) DeletePartition(_ context.Context, partition string) error {
	it := s.db.NewIterator(util.BytesPrefix([]byte(entryKeyPrefix+partition+keySeparator)), nil)

	batch := new(leveldb.Batch)
	for it.Next() {
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	it.Release()
	if err := it.Error(); err != nil {
		return fmt.Errorf("leveldb scan partition %s: %w", partition, err)
	}

	batch.Delete([]byte(partitionKeyPrefix + partition))
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("leveldb delete partition %s: %w", partition, err)
	}
	return nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

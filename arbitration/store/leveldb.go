// Copyright 2021-2023, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/syndtr/goleveldb/leveldb"
)

// LevelDBStorage keeps documents in an ethdb database.
type LevelDBStorage struct {
	// lock serializes iterators against batch writes.
	lock sync.Mutex
	db   ethdb.Database
}

func NewLevelDBStorage(db ethdb.Database) *LevelDBStorage {
	return &LevelDBStorage{db: db}
}

// OpenLevelDBStorage opens or creates the database at dir.
func OpenLevelDBStorage(dir, namespace string) (*LevelDBStorage, error) {
	db, err := rawdb.NewLevelDBDatabase(dir, 16, 16, namespace, false)
	if err != nil {
		return nil, fmt.Errorf("opening leveldb at %s: %w", dir, err)
	}
	return NewLevelDBStorage(db), nil
}

func (s *LevelDBStorage) Get(_ context.Context, key string) ([]byte, error) {
	val, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return val, nil
}

func (s *LevelDBStorage) Put(_ context.Context, key string, value []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.db.Put([]byte(key), value)
}

func (s *LevelDBStorage) Delete(_ context.Context, keys ...string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	b := s.db.NewBatch()
	for _, key := range keys {
		if err := b.Delete([]byte(key)); err != nil {
			return fmt.Errorf("deleting key %s: %w", key, err)
		}
	}
	return b.Write()
}

func (s *LevelDBStorage) Keys(_ context.Context, prefix string) ([]string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	it := s.db.NewIterator([]byte(prefix), nil)
	defer it.Release()
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	return keys, it.Error()
}

func (s *LevelDBStorage) IsPersistent() bool {
	return true
}

func (s *LevelDBStorage) Close() error {
	return s.db.Close()
}

// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStorage keeps everything in a map. It is lost on restart.
type MemoryStorage struct {
	mutex sync.RWMutex
	items map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string][]byte)}
}

func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	value, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (m *MemoryStorage) Put(_ context.Context, key string, value []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.items[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, keys ...string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, key := range keys {
		delete(m.items, key)
	}
	return nil
}

func (m *MemoryStorage) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	var keys []string
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStorage) IsPersistent() bool {
	return false
}

func (m *MemoryStorage) Close() error {
	return nil
}

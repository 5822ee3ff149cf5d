// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

// JSONFileStorage keeps all documents in one JSON file, rewritten on every
// change. A lock file next to it keeps a second process out.
type JSONFileStorage struct {
	mutex sync.Mutex
	path  string
	lock  *flock.Flock
	items map[string]json.RawMessage
}

func OpenJSONFileStorage(path string) (*JSONFileStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s is in use by another process", path)
	}
	s := &JSONFileStorage{path: path, lock: lock, items: make(map[string]json.RawMessage)}
	contents, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = lock.Unlock()
		return nil, err
	}
	if len(contents) > 0 {
		if err := json.Unmarshal(contents, &s.items); err != nil {
			_ = lock.Unlock()
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	}
	return s, nil
}

func (s *JSONFileStorage) flush() error {
	contents, err := json.MarshalIndent(s.items, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, contents, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *JSONFileStorage) Get(_ context.Context, key string) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	value, ok := s.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *JSONFileStorage) Put(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("value for %s is not JSON", key)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.items[key] = append(json.RawMessage(nil), value...)
	return s.flush()
}

func (s *JSONFileStorage) Delete(_ context.Context, keys ...string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, key := range keys {
		delete(s.items, key)
	}
	return s.flush()
}

func (s *JSONFileStorage) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var keys []string
	for key := range s.items {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *JSONFileStorage) IsPersistent() bool {
	return true
}

func (s *JSONFileStorage) Close() error {
	return s.lock.Unlock()
}

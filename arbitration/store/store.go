// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package store is a path addressed JSON document store over pluggable byte
// storage. Paths look like "/a/b/c"; every path holds its own document.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("not found")

// Storage is the byte level backend. Get returns ErrNotFound for missing keys.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	// Keys lists every key starting with prefix, in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	IsPersistent() bool
	Close() error
}

type Store struct {
	mutex   sync.Mutex
	storage Storage
}

func New(storage Storage) *Store {
	return &Store{storage: storage}
}

func (s *Store) Close() error {
	return s.storage.Close()
}

func (s *Store) IsPersistent() bool {
	return s.storage.IsPersistent()
}

func pathToKey(path string) (string, error) {
	var parts []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("invalid path %q", path)
	}
	return strings.Join(parts, "/"), nil
}

// Get decodes the document at path into out. It reports false if there is none.
func (s *Store) Get(ctx context.Context, path string, out any) (bool, error) {
	key, err := pathToKey(path)
	if err != nil {
		return false, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	raw, err := s.storage.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decoding %s: %w", path, err)
	}
	return true, nil
}

// Set stores value at path. When both the stored document and value are JSON
// objects their top level fields are merged, value winning.
func (s *Store) Set(ctx context.Context, path string, value any) error {
	key, err := pathToKey(path)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	existing, err := s.storage.Get(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return fmt.Errorf("reading %s: %w", path, err)
	default:
		if merged, ok := mergeObjects(existing, encoded); ok {
			encoded = merged
		}
	}
	return s.storage.Put(ctx, key, encoded)
}

func mergeObjects(existing, update []byte) ([]byte, bool) {
	if !isObject(existing) || !isObject(update) {
		return nil, false
	}
	var base, patch map[string]json.RawMessage
	if json.Unmarshal(existing, &base) != nil || json.Unmarshal(update, &patch) != nil {
		return nil, false
	}
	for k, v := range patch {
		base[k] = v
	}
	merged, err := json.Marshal(base)
	if err != nil {
		return nil, false
	}
	return merged, true
}

func isObject(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// Delete removes the document at path and every document below it.
func (s *Store) Delete(ctx context.Context, path string) error {
	key, err := pathToKey(path)
	if err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	below, err := s.storage.Keys(ctx, key+"/")
	if err != nil {
		return fmt.Errorf("listing %s: %w", path, err)
	}
	return s.storage.Delete(ctx, append(below, key)...)
}

// Children lists the names of the direct children of path, sorted.
func (s *Store) Children(ctx context.Context, path string) ([]string, error) {
	key, err := pathToKey(path)
	if err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	prefix := key + "/"
	keys, err := s.storage.Keys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}
	seen := make(map[string]bool)
	var children []string
	for _, k := range keys {
		child := strings.TrimPrefix(k, prefix)
		if i := strings.IndexByte(child, '/'); i >= 0 {
			child = child[:i]
		}
		if child == "" || seen[child] {
			continue
		}
		seen[child] = true
		children = append(children, child)
	}
	sort.Strings(children)
	return children, nil
}

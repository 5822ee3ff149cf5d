// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package containers

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ExpiringCache drops entries ttl after they were added. Safe for concurrent use.
type ExpiringCache[K comparable, V any] struct {
	inner *expirable.LRU[K, V]
}

func NewExpiringCache[K comparable, V any](size int, ttl time.Duration) *ExpiringCache[K, V] {
	return &ExpiringCache[K, V]{
		inner: expirable.NewLRU[K, V](size, nil, ttl),
	}
}

func (c *ExpiringCache[K, V]) Add(key K, value V) {
	c.inner.Add(key, value)
}

func (c *ExpiringCache[K, V]) Get(key K) (V, bool) {
	return c.inner.Get(key)
}

func (c *ExpiringCache[K, V]) Remove(key K) {
	c.inner.Remove(key)
}

func (c *ExpiringCache[K, V]) Len() int {
	return c.inner.Len()
}

func (c *ExpiringCache[K, V]) Purge() {
	c.inner.Purge()
}

// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package liveconfig

import (
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

type OnChangeHook func(old *Runtime, new *Runtime) error

// LiveConfig publishes whole Runtime values. Readers never see a partial update.
type LiveConfig struct {
	mutex   sync.RWMutex
	current *Runtime
	hooks   []OnChangeHook
}

func NewLiveConfig(initial *Runtime) *LiveConfig {
	return &LiveConfig{current: initial}
}

func (c *LiveConfig) Get() *Runtime {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.current
}

// Set publishes next and runs the change hooks. Hook failures are logged
// and do not undo the change.
func (c *LiveConfig) Set(next *Runtime) {
	c.mutex.Lock()
	old := c.current
	c.current = next
	hooks := c.hooks
	c.mutex.Unlock()
	for _, hook := range hooks {
		if err := hook(old, next); err != nil {
			log.Error("failed to apply runtime config change", "err", err)
		}
	}
}

// AddHook registers a hook run after every Set.
func (c *LiveConfig) AddHook(hook OnChangeHook) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.hooks = append(c.hooks, hook)
}

// Config returns the current unparsed settings.
func (c *LiveConfig) Config() RuntimeConfig {
	return c.Get().Config
}

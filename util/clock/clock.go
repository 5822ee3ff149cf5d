// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package clock provides the time source used by polling loops and timing-window
// checks, so tests can move time without real delays.
package clock

import (
	"context"
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func NewRealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ArtificialClock only moves when told to. Sleep advances it by the requested
// duration and returns immediately.
type ArtificialClock struct {
	mutex   sync.Mutex
	current time.Time
	slept   []time.Duration
}

func NewArtificialClock(start time.Time) *ArtificialClock {
	return &ArtificialClock{current: start}
}

func (c *ArtificialClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.current
}

func (c *ArtificialClock) Set(t time.Time) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.current = t
}

func (c *ArtificialClock) Add(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.current = c.current.Add(d)
}

func (c *ArtificialClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.current = c.current.Add(d)
	c.slept = append(c.slept, d)
	return nil
}

// Sleeps returns every duration passed to Sleep so far.
func (c *ArtificialClock) Sleeps() []time.Duration {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

// Unix is a helper for the second-resolution timestamps used on chain.
func Unix(c Clock) uint64 {
	now := c.Now().Unix()
	if now < 0 {
		return 0
	}
	return uint64(now)
}

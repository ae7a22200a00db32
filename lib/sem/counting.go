// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sem

import (
	"context"
	"sync"
)

// counting is a counting semaphore whose value can be read and
// overwritten. Every change closes the current broadcast channel so
// that all waiters re-check the value.
type counting struct {
	mu      sync.Mutex
	value   int
	changed chan struct{}
}

func newCounting() *counting {
	return &counting{changed: make(chan struct{})}
}

func (c *counting) add(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value += n
	c.broadcast()
}

func (c *counting) set(value int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
	c.broadcast()
}

func (c *counting) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (c *counting) tryTake() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value <= 0 {
		return false
	}
	c.value--
	return true
}

// broadcast wakes every waiter. Caller holds c.mu.
func (c *counting) broadcast() {
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *counting) wait(ctx context.Context, removed <-chan struct{}) error {
	for {
		c.mu.Lock()
		if c.value > 0 {
			c.value--
			c.mu.Unlock()
			return nil
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-changed:
		case <-removed:
			return ErrRemoved
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

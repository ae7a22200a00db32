// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// Fake returns a FakeClock stopped at start. Time moves only when
// Advance is called.
func Fake(start time.Time) *FakeClock {
	clock := &FakeClock{now: start}
	clock.registered = sync.NewCond(&clock.mu)
	return clock
}

// FakeClock is a manually stepped Clock. Sleeps, After channels and
// tickers register a pending deadline which fires when Advance moves
// the clock past it. Safe for concurrent use.
type FakeClock struct {
	mu         sync.Mutex
	now        time.Time
	pending    []*deadline
	registered *sync.Cond
}

type deadline struct {
	at       time.Time
	channel  chan time.Time
	interval time.Duration // non-zero for tickers
	stopped  bool
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After registers a one-shot deadline d from now.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.now
		return channel
	}
	c.register(&deadline{at: c.now.Add(d), channel: channel})
	return channel
}

// NewTicker registers a repeating deadline every d.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	entry := &deadline{at: c.now.Add(d), channel: channel, interval: d}
	c.register(entry)
	return &Ticker{
		C: channel,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			entry.stopped = true
		},
	}
}

// Sleep blocks until Advance moves the clock d past the current time.
func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.After(d)
}

// register appends a deadline. Caller holds c.mu.
func (c *FakeClock) register(entry *deadline) {
	c.pending = append(c.pending, entry)
	c.registered.Broadcast()
}

// Advance moves the clock forward by d and fires every deadline that
// falls inside the new window, earliest first. A ticker whose interval
// divides the window several times fires once per interval, subject to
// its one-slot buffer.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	for {
		var due []*deadline
		kept := c.pending[:0]
		for _, entry := range c.pending {
			switch {
			case entry.stopped:
			case !entry.at.After(c.now):
				due = append(due, entry)
			default:
				kept = append(kept, entry)
			}
		}
		c.pending = kept
		if len(due) == 0 {
			return
		}

		slices.SortStableFunc(due, func(a, b *deadline) int { return a.at.Compare(b.at) })
		for _, entry := range due {
			select {
			case entry.channel <- entry.at:
			default:
			}
			if entry.interval > 0 {
				entry.at = entry.at.Add(entry.interval)
				c.pending = append(c.pending, entry)
			}
		}
	}
}

// Pending reports how many deadlines are registered and not stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.livePending()
}

func (c *FakeClock) livePending() int {
	count := 0
	for _, entry := range c.pending {
		if !entry.stopped {
			count++
		}
	}
	return count
}

// WaitForPending blocks until at least n deadlines are registered.
// Tests call it before Advance so that a goroutine's Sleep is known to
// be in place.
func (c *FakeClock) WaitForPending(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.livePending() < n {
		c.registered.Wait()
	}
}

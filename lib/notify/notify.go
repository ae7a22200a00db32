// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/postoffice/lib/clock"
	"github.com/bureau-foundation/postoffice/lib/office"
)

// Event is a bitmask of notifications. Pending events of the same kind
// coalesce: posting Wake twice before the owner looks leaves one Wake.
type Event uint8

const (
	DayStart Event = 1 << iota
	DayEnd
	Terminate
	// Wake tells the owner that the shared state it waits on changed:
	// a ticket was queued for an operator's service, a user's slot was
	// completed or rejected, or the office closed.
	Wake
	// CounterFreed tells a waiting operator that a counter was handed
	// to it.
	CounterFreed
)

// Has reports whether every bit of other is set in e.
func (e Event) Has(other Event) bool { return e&other == other && other != 0 }

func (e Event) String() string {
	if e == 0 {
		return "none"
	}
	var names []string
	for _, entry := range []struct {
		bit  Event
		name string
	}{
		{DayStart, "day-start"},
		{DayEnd, "day-end"},
		{Terminate, "terminate"},
		{Wake, "wake"},
		{CounterFreed, "counter-freed"},
	} {
		if e&entry.bit != 0 {
			names = append(names, entry.name)
		}
	}
	return strings.Join(names, "|")
}

// Mailbox receives events for one participant.
type Mailbox struct {
	owner office.ProcessID
	clock clock.Clock

	mu      sync.Mutex
	pending Event
	kick    chan struct{}
}

// NewMailbox creates an empty mailbox for owner.
func NewMailbox(owner office.ProcessID, clk clock.Clock) *Mailbox {
	return &Mailbox{owner: owner, clock: clk, kick: make(chan struct{}, 1)}
}

// Owner returns the participant the mailbox belongs to.
func (m *Mailbox) Owner() office.ProcessID { return m.owner }

// Post adds events without blocking.
func (m *Mailbox) Post(events Event) {
	m.mu.Lock()
	m.pending |= events
	m.mu.Unlock()
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Drain returns and clears the pending events.
func (m *Mailbox) Drain() Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := m.pending
	m.pending = 0
	return events
}

// Wait blocks until an event is pending, timeout elapses or ctx is
// done, and returns the drained events. A zero result means the wait
// timed out; the caller re-checks shared state either way, which is
// what makes a wakeup lost between a check and the wait harmless.
func (m *Mailbox) Wait(ctx context.Context, timeout time.Duration) (Event, error) {
	if events := m.Drain(); events != 0 {
		return events, nil
	}
	select {
	case <-m.kick:
		return m.Drain(), nil
	case <-m.clock.After(timeout):
		return m.Drain(), nil
	case <-ctx.Done():
		return m.Drain(), ctx.Err()
	}
}

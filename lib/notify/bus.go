// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"sync"

	"github.com/bureau-foundation/postoffice/lib/clock"
	"github.com/bureau-foundation/postoffice/lib/office"
)

// Bus delivers events to mailboxes by participant id. It takes the
// place of process-directed and group-directed signals.
type Bus struct {
	clock clock.Clock

	mu        sync.RWMutex
	mailboxes map[office.ProcessID]*Mailbox
	kinds     map[office.ProcessID]office.Kind
}

// NewBus returns an empty bus.
func NewBus(clk clock.Clock) *Bus {
	return &Bus{
		clock:     clk,
		mailboxes: make(map[office.ProcessID]*Mailbox),
		kinds:     make(map[office.ProcessID]office.Kind),
	}
}

// Register creates the mailbox of a participant. Registering the same
// id twice returns the existing mailbox.
func (b *Bus) Register(id office.ProcessID, kind office.Kind) *Mailbox {
	b.mu.Lock()
	defer b.mu.Unlock()
	if mailbox, exists := b.mailboxes[id]; exists {
		return mailbox
	}
	mailbox := NewMailbox(id, b.clock)
	b.mailboxes[id] = mailbox
	b.kinds[id] = kind
	return mailbox
}

// Unregister drops a participant's mailbox. Later sends to it are
// ignored.
func (b *Bus) Unregister(id office.ProcessID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.mailboxes, id)
	delete(b.kinds, id)
}

// Send posts events to one participant. It reports whether the
// participant is registered.
func (b *Bus) Send(id office.ProcessID, events Event) bool {
	b.mu.RLock()
	mailbox, exists := b.mailboxes[id]
	b.mu.RUnlock()
	if !exists {
		return false
	}
	mailbox.Post(events)
	return true
}

// Broadcast posts events to every registered participant and returns
// how many received them.
func (b *Bus) Broadcast(events Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, mailbox := range b.mailboxes {
		mailbox.Post(events)
	}
	return len(b.mailboxes)
}

// BroadcastKind posts events to every participant of one kind.
func (b *Bus) BroadcastKind(kind office.Kind, events Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	count := 0
	for id, mailbox := range b.mailboxes {
		if b.kinds[id] == kind {
			mailbox.Post(events)
			count++
		}
	}
	return count
}

// Len returns the number of registered participants.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.mailboxes)
}

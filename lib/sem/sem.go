// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sem

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/bureau-foundation/postoffice/lib/office"
)

// Index names one semaphore of a Set.
type Index int

const (
	// Mutex guards the aggregate statistics.
	Mutex Index = iota
	// Queue guards request-slot allocation and the daily arena reset.
	Queue
	// TicketReady counts tickets queued by the issuer.
	TicketReady
	// Counters guards counter bindings and operator status.
	Counters
	// DayStart is the day-start rendezvous.
	DayStart
	// DayOver counts participants that have finished the current
	// day. The director waits for all of them before closing the
	// books.
	DayOver

	firstServiceLock
)

// ServiceLock returns the index of the lock guarding one service's
// queue and the request slots filed under that service.
func ServiceLock(service office.ServiceID) Index {
	return firstServiceLock + Index(service)
}

func (i Index) String() string {
	switch i {
	case Mutex:
		return "mutex"
	case Queue:
		return "queue"
	case TicketReady:
		return "ticket-ready"
	case Counters:
		return "counters"
	case DayStart:
		return "day-start"
	case DayOver:
		return "day-over"
	}
	return fmt.Sprintf("service-%d", int(i-firstServiceLock))
}

// ErrRemoved is returned by every operation on a Set after Remove.
var ErrRemoved = errors.New("sem: semaphore set removed")

// Set is the fixed array of semaphores shared by all participants.
// Mutex, Queue, Counters and the service locks are binary locks taken
// through Lock. TicketReady, DayStart and DayOver are counting semaphores
// driven with Post and Wait.
//
// Locks must be taken in this order: Counters, Queue, service locks
// in ascending service order, Mutex. No lock is held while sleeping.
type Set struct {
	binary      []*semaphore.Weighted
	ticketReady *counting
	dayStart    *counting
	dayOver     *counting
	services    int

	removed     chan struct{}
	removeOnce  sync.Once
	removedFlag atomic.Bool
}

// NewSet creates the semaphores for a catalog of the given size. All
// locks start free and every counting semaphore starts at zero.
func NewSet(services int) *Set {
	set := &Set{
		binary:      make([]*semaphore.Weighted, int(firstServiceLock)+services),
		ticketReady: newCounting(),
		dayStart:    newCounting(),
		dayOver:     newCounting(),
		services:    services,
		removed:     make(chan struct{}),
	}
	for index := range set.binary {
		if set.isCounting(Index(index)) {
			continue
		}
		set.binary[index] = semaphore.NewWeighted(1)
	}
	return set
}

// Services returns the number of per-service locks.
func (s *Set) Services() int { return s.services }

func (s *Set) isCounting(index Index) bool {
	return index == TicketReady || index == DayStart || index == DayOver
}

func (s *Set) lockFor(index Index) (*semaphore.Weighted, error) {
	if index < 0 || int(index) >= len(s.binary) || s.isCounting(index) {
		return nil, fmt.Errorf("sem: %v is not a lock", index)
	}
	return s.binary[index], nil
}

func (s *Set) countingFor(index Index) (*counting, error) {
	switch index {
	case TicketReady:
		return s.ticketReady, nil
	case DayStart:
		return s.dayStart, nil
	case DayOver:
		return s.dayOver, nil
	}
	return nil, fmt.Errorf("sem: %v is not a counting semaphore", index)
}

// Lock acquires a binary lock. It fails only when ctx is done or the
// set has been removed; the caller then abandons its operation.
func (s *Set) Lock(ctx context.Context, index Index) (*Guard, error) {
	if s.removedFlag.Load() {
		return nil, ErrRemoved
	}
	lock, err := s.lockFor(index)
	if err != nil {
		return nil, err
	}
	if err := lock.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquiring %v: %w", index, err)
	}
	if s.removedFlag.Load() {
		lock.Release(1)
		return nil, ErrRemoved
	}
	return &Guard{set: s, index: index}, nil
}

// LockServices takes every service lock in ascending order. On
// failure the locks already taken are released.
func (s *Set) LockServices(ctx context.Context) (Guards, error) {
	guards := make(Guards, 0, s.services)
	for service := range s.services {
		guard, err := s.Lock(ctx, ServiceLock(office.ServiceID(service)))
		if err != nil {
			guards.Unlock()
			return nil, err
		}
		guards = append(guards, guard)
	}
	return guards, nil
}

// Post adds n to a counting semaphore, waking waiters.
func (s *Set) Post(index Index, n int) error {
	if s.removedFlag.Load() {
		return ErrRemoved
	}
	counter, err := s.countingFor(index)
	if err != nil {
		return err
	}
	counter.add(n)
	return nil
}

// Wait takes one unit from a counting semaphore, blocking until one is
// available, ctx is done or the set is removed.
func (s *Set) Wait(ctx context.Context, index Index) error {
	counter, err := s.countingFor(index)
	if err != nil {
		return err
	}
	return counter.wait(ctx, s.removed)
}

// TryWait takes one unit if one is available.
func (s *Set) TryWait(index Index) bool {
	counter, err := s.countingFor(index)
	if err != nil || s.removedFlag.Load() {
		return false
	}
	return counter.tryTake()
}

// Value returns the current value of a counting semaphore.
func (s *Set) Value(index Index) int {
	counter, err := s.countingFor(index)
	if err != nil {
		return 0
	}
	return counter.get()
}

// SetValue overwrites the value of a counting semaphore.
func (s *Set) SetValue(index Index, value int) error {
	if s.removedFlag.Load() {
		return ErrRemoved
	}
	counter, err := s.countingFor(index)
	if err != nil {
		return err
	}
	counter.set(value)
	return nil
}

// Remove destroys the set. Blocked Wait calls return ErrRemoved, as
// does every later call. Locks already held stay valid until
// unlocked. Remove is idempotent.
func (s *Set) Remove() {
	s.removeOnce.Do(func() {
		s.removedFlag.Store(true)
		close(s.removed)
	})
}

// Removed reports whether Remove has been called.
func (s *Set) Removed() bool { return s.removedFlag.Load() }

// Guard is proof that a binary lock is held. Views of the shared
// region are handed out only against a Guard for the right lock.
type Guard struct {
	set      *Set
	index    Index
	released atomic.Bool
}

// Unlock releases the lock. A second Unlock panics.
func (g *Guard) Unlock() {
	if !g.released.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("sem: %v unlocked twice", g.index))
	}
	g.set.binary[g.index].Release(1)
}

// Holds reports whether g is a live guard for index.
func (g *Guard) Holds(index Index) bool {
	return g != nil && g.index == index && !g.released.Load()
}

// Index returns the lock g holds.
func (g *Guard) Index() Index { return g.index }

// Guards is a set of held locks released together, in reverse order.
type Guards []*Guard

// Unlock releases every guard in reverse acquisition order.
func (gs Guards) Unlock() {
	for index := len(gs) - 1; index >= 0; index-- {
		gs[index].Unlock()
	}
}

// For returns the guard holding index, or nil.
func (gs Guards) For(index Index) *Guard {
	for _, guard := range gs {
		if guard.Holds(index) {
			return guard
		}
	}
	return nil
}

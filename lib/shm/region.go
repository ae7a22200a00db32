// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shm

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/bureau-foundation/postoffice/lib/office"
	"github.com/bureau-foundation/postoffice/lib/sem"
)

var (
	// ErrArenaFull is returned when every request slot of the day is
	// taken.
	ErrArenaFull = errors.New("shm: request arena full")

	// ErrQueueFull is returned when a service queue has no room.
	ErrQueueFull = errors.New("shm: service queue full")

	// ErrBadSlot is returned for a slot index out of range or filed
	// under a different service.
	ErrBadSlot = errors.New("shm: invalid request slot")
)

// Layout sizes the region. It is fixed for the region's lifetime.
type Layout struct {
	Catalog       office.Catalog
	Counters      int
	Operators     int
	Users         int
	Requests      int
	QueueCapacity int
}

// Region is the state shared by every participant. Fields are reached
// through views that demand a guard for their lock:
//
//	Desk      counters mutex   counters and operator records
//	Arena     queue mutex      slot allocation
//	Queue     service lock     one service queue and its slots
//	Stats     global mutex     statistics and the process table
//
// The day number and the two flags are atomics polled without a lock.
type Region struct {
	layout Layout

	day           atomic.Int32
	dayInProgress atomic.Bool
	terminating   atomic.Bool

	counters  []Counter
	operators []Operator

	requests    []Request
	nextRequest int

	queues []serviceQueue

	stats     Stats
	processes ProcessTable
}

// New allocates a region for layout with every counter inactive, every
// operator Undefined, every slot Undefined and every queue empty with
// its sequence at 1.
func New(layout Layout) (*Region, error) {
	if err := layout.Catalog.Validate(); err != nil {
		return nil, fmt.Errorf("creating region: %w", err)
	}
	if layout.Requests <= 0 || layout.QueueCapacity <= 0 {
		return nil, fmt.Errorf("creating region: request arena and queues need a positive capacity")
	}
	services := len(layout.Catalog)
	region := &Region{
		layout:    layout,
		counters:  make([]Counter, layout.Counters),
		operators: make([]Operator, layout.Operators),
		requests:  make([]Request, layout.Requests),
		queues:    make([]serviceQueue, services),
		stats:     newStats(services),
	}
	for index := range region.operators {
		region.operators[index].Counter = NoCounter
	}
	for index := range region.requests {
		region.requests[index].Counter = NoCounter
	}
	for service := range region.queues {
		region.queues[service] = newServiceQueue(layout.QueueCapacity)
	}
	region.processes = newProcessTable(layout.Operators, layout.Users)
	return region, nil
}

// Catalog returns the service catalog.
func (r *Region) Catalog() office.Catalog { return r.layout.Catalog }

// Layout returns the sizes the region was created with.
func (r *Region) Layout() Layout { return r.layout }

// Day returns the current simulated day, starting at 1. Zero before
// the first day.
func (r *Region) Day() int { return int(r.day.Load()) }

// SetDay records the current simulated day.
func (r *Region) SetDay(day int) { r.day.Store(int32(day)) }

// DayInProgress reports whether the office is open.
func (r *Region) DayInProgress() bool { return r.dayInProgress.Load() }

// SetDayInProgress opens or closes the office.
func (r *Region) SetDayInProgress(open bool) { r.dayInProgress.Store(open) }

// Terminating reports whether the simulation is shutting down.
func (r *Region) Terminating() bool { return r.terminating.Load() }

// SetTerminating marks the simulation as shutting down.
func (r *Region) SetTerminating() { r.terminating.Store(true) }

func mustHold(guard *sem.Guard, index sem.Index, view string) {
	if guard.Holds(index) {
		return
	}
	held := "no lock"
	if guard != nil {
		held = guard.Index().String()
	}
	panic(fmt.Sprintf("shm: %s view requires the %v lock, got %s", view, index, held))
}

// Desk returns the counters and operator records.
func (r *Region) Desk(guard *sem.Guard) *Desk {
	mustHold(guard, sem.Counters, "desk")
	return &Desk{region: r}
}

// Arena returns the request-slot allocator.
func (r *Region) Arena(guard *sem.Guard) *Arena {
	mustHold(guard, sem.Queue, "arena")
	return &Arena{region: r}
}

// Queue returns one service's queue and the slots filed under it.
func (r *Region) Queue(guard *sem.Guard, service office.ServiceID) *Queue {
	if !r.layout.Catalog.Valid(service) {
		panic(fmt.Sprintf("shm: no service %d", service))
	}
	mustHold(guard, sem.ServiceLock(service), "queue")
	return &Queue{region: r, service: service, queue: &r.queues[service]}
}

// Stats returns the statistics and the process table.
func (r *Region) Stats(guard *sem.Guard) *StatsView {
	mustHold(guard, sem.Mutex, "stats")
	return &StatsView{region: r}
}

// ResetDay empties every service queue, restarts every ticket
// sequence at 1, rewinds slot allocation and clears every slot that
// is not still Pending or Processing. It needs the queue mutex and
// every service lock, so it cannot overlap ticket issuing or serving.
// Calling it twice leaves the same state as calling it once.
func (r *Region) ResetDay(queue *sem.Guard, services sem.Guards) {
	mustHold(queue, sem.Queue, "reset")
	r.mustHoldServices(services, "reset")

	for service := range r.queues {
		r.queues[service].reset()
	}
	for index := range r.requests {
		switch r.requests[index].Status {
		case office.RequestPending, office.RequestProcessing:
		default:
			r.requests[index] = Request{Counter: NoCounter}
		}
	}
	r.nextRequest = 0
}

// PurgeQueues empties every service queue without touching the
// slots or the ticket sequences.
func (r *Region) PurgeQueues(services sem.Guards) int {
	r.mustHoldServices(services, "purge")
	purged := 0
	for service := range r.queues {
		purged += r.queues[service].waiting
		r.queues[service].clear()
	}
	return purged
}

// ResetSequences restarts every service's ticket numbering at 1.
func (r *Region) ResetSequences(services sem.Guards) {
	r.mustHoldServices(services, "reset sequences")
	for service := range r.queues {
		r.queues[service].nextTicket = 1
	}
}

// EachIssued calls fn for every slot allocated today, in allocation
// order.
func (r *Region) EachIssued(queue *sem.Guard, services sem.Guards, fn func(index int, request *Request)) {
	mustHold(queue, sem.Queue, "sweep")
	r.mustHoldServices(services, "sweep")
	for index := range r.nextRequest {
		fn(index, &r.requests[index])
	}
}

func (r *Region) mustHoldServices(services sem.Guards, view string) {
	for service := range r.queues {
		if services.For(sem.ServiceLock(office.ServiceID(service))) == nil {
			panic(fmt.Sprintf("shm: %s requires every service lock, missing service %d", view, service))
		}
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shm

import (
	"fmt"

	"github.com/bureau-foundation/postoffice/lib/office"
)

// serviceQueue is a fixed-capacity ring of request-slot indices.
// waiting always equals (tail - head) mod capacity, with a full ring
// distinguished from an empty one by waiting itself.
type serviceQueue struct {
	slots      []int
	head       int
	tail       int
	waiting    int
	nextTicket int
}

func newServiceQueue(capacity int) serviceQueue {
	return serviceQueue{slots: make([]int, capacity), nextTicket: 1}
}

func (q *serviceQueue) push(index int) error {
	if q.waiting == len(q.slots) {
		return ErrQueueFull
	}
	q.slots[q.tail] = index
	q.tail = (q.tail + 1) % len(q.slots)
	q.waiting++
	return nil
}

func (q *serviceQueue) pop() (int, bool) {
	if q.waiting == 0 {
		return 0, false
	}
	index := q.slots[q.head]
	q.head = (q.head + 1) % len(q.slots)
	q.waiting--
	return index, true
}

func (q *serviceQueue) clear() {
	q.head, q.tail, q.waiting = 0, 0, 0
}

func (q *serviceQueue) reset() {
	q.clear()
	q.nextTicket = 1
}

// Queue is the view of one service's queue and the request slots
// filed under that service.
type Queue struct {
	region  *Region
	service office.ServiceID
	queue   *serviceQueue
}

// Service returns the service this view covers.
func (q *Queue) Service() office.ServiceID { return q.service }

// Waiting returns the number of queued tickets.
func (q *Queue) Waiting() int { return q.queue.waiting }

// Push appends a slot index at the tail.
func (q *Queue) Push(index int) error { return q.queue.push(index) }

// Pop removes the slot index at the head.
func (q *Queue) Pop() (int, bool) { return q.queue.pop() }

// IssueNumber returns the next ticket number and advances the
// sequence.
func (q *Queue) IssueNumber() int {
	number := q.queue.nextTicket
	q.queue.nextTicket++
	return number
}

// NextNumber returns the ticket number the next IssueNumber will give.
func (q *Queue) NextNumber() int { return q.queue.nextTicket }

// Indices returns the queued slot indices from head to tail.
func (q *Queue) Indices() []int {
	indices := make([]int, 0, q.queue.waiting)
	for offset := range q.queue.waiting {
		indices = append(indices, q.queue.slots[(q.queue.head+offset)%len(q.queue.slots)])
	}
	return indices
}

// Consistent reports whether the ring's counters agree with each
// other.
func (q *Queue) Consistent() bool {
	capacity := len(q.queue.slots)
	return q.queue.waiting >= 0 && q.queue.waiting <= capacity &&
		q.queue.waiting%capacity == ((q.queue.tail-q.queue.head)%capacity+capacity)%capacity
}

// Slot returns the request at index. The slot must be filed under this
// view's service.
func (q *Queue) Slot(index int) (*Request, error) {
	if index < 0 || index >= len(q.region.requests) {
		return nil, fmt.Errorf("%w: index %d outside arena of %d", ErrBadSlot, index, len(q.region.requests))
	}
	request := &q.region.requests[index]
	if request.Service != q.service {
		return nil, fmt.Errorf("%w: slot %d belongs to service %d, not %d", ErrBadSlot, index, request.Service, q.service)
	}
	return request, nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shm

import (
	"time"

	"github.com/bureau-foundation/postoffice/lib/office"
)

// NoCounter marks a request or operator without a counter.
const NoCounter = -1

// Request is one slot of the request arena.
//
// Status is the authoritative state: Undefined, then Pending (written
// by the user), Processing and Completed (issuer) or Rejected. While a
// Completed ticket waits, BeingServed marks an operator's claim and
// ServedSuccessfully marks a service that ran to the end.
type Request struct {
	User             office.ProcessID
	Service          office.ServiceID
	RequestedAt      time.Time
	ServiceStartedAt time.Time
	Status           office.RequestStatus
	Ticket           int
	Label            string
	Counter          int

	ServedBy           office.ProcessID
	BeingServed        bool
	ServedSuccessfully bool
	Wait               time.Duration
}

// Arena is the view used to allocate request slots.
type Arena struct {
	region *Region
}

// Allocate writes a Pending slot for user and returns its index. Slots
// left Pending by a previous day are skipped. Returns ErrArenaFull
// once the day's capacity is used up.
func (a *Arena) Allocate(user office.ProcessID, service office.ServiceID, now time.Time) (int, error) {
	requests := a.region.requests
	for a.region.nextRequest < len(requests) {
		index := a.region.nextRequest
		a.region.nextRequest++
		if requests[index].Status != office.RequestUndefined {
			continue
		}
		requests[index] = Request{
			User:        user,
			Service:     service,
			RequestedAt: now,
			Status:      office.RequestPending,
			Counter:     NoCounter,
		}
		return index, nil
	}
	return 0, ErrArenaFull
}

// Issued returns how many slots have been handed out today.
func (a *Arena) Issued() int { return a.region.nextRequest }

// Capacity returns the size of the arena.
func (a *Arena) Capacity() int { return len(a.region.requests) }

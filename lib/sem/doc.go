// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sem is the semaphore set of the post office: the global
// statistics mutex, the queue mutex, the counters mutex, one lock per
// service, the day-start rendezvous, the day-over departure count and
// the ticket-ready counter.
//
// Binary locks hand out a *Guard. The shared region (package shm)
// gives out mutable views only against a guard for the lock that
// protects them, which keeps the locking discipline visible at every
// call site:
//
//	guard, err := set.Lock(ctx, sem.ServiceLock(service))
//	if err != nil {
//	    return err
//	}
//	queue := region.Queue(guard, service)
//	index, ok := queue.Pop()
//	guard.Unlock()
//
// Waits end only on success, on ctx cancellation (termination of the
// participant) or on removal of the set. Notifications delivered to a
// participant's mailbox never interrupt a semaphore wait, so callers
// never need to retry an interrupted acquisition.
package sem

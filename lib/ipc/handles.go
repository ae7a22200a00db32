// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/postoffice/lib/clock"
	"github.com/bureau-foundation/postoffice/lib/config"
	"github.com/bureau-foundation/postoffice/lib/mq"
	"github.com/bureau-foundation/postoffice/lib/notify"
	"github.com/bureau-foundation/postoffice/lib/office"
	"github.com/bureau-foundation/postoffice/lib/sem"
	"github.com/bureau-foundation/postoffice/lib/shm"
)

// Handles is everything a participant attaches to: the shared region,
// the semaphore set, the ticket-request queue and the notification
// bus, plus the configuration and clock they were created with.
type Handles struct {
	Config *config.Config
	Clock  clock.Clock
	Region *shm.Region
	Sems   *sem.Set
	Queue  *mq.Queue
	Bus    *notify.Bus

	destroyOnce sync.Once
}

// Create builds the IPC resources for cfg. Only the director calls it.
func Create(cfg *config.Config, clk clock.Clock) (*Handles, error) {
	region, err := shm.New(shm.Layout{
		Catalog:       cfg.Services,
		Counters:      cfg.Counters,
		Operators:     cfg.Operators,
		Users:         cfg.Users,
		Requests:      cfg.MaxRequests,
		QueueCapacity: cfg.QueueCapacity,
	})
	if err != nil {
		return nil, fmt.Errorf("creating shared region: %w", err)
	}
	return &Handles{
		Config: cfg,
		Clock:  clk,
		Region: region,
		Sems:   sem.NewSet(len(cfg.Services)),
		Queue:  mq.New(max(cfg.Users, 1)),
		Bus:    notify.NewBus(clk),
	}, nil
}

// Destroy removes the queue and the semaphore set. Participants
// blocked on either return with a removal error. Idempotent.
func (h *Handles) Destroy() {
	h.destroyOnce.Do(func() {
		h.Region.SetTerminating()
		h.Region.SetDayInProgress(false)
		h.Queue.Remove()
		h.Sems.Remove()
	})
}

// WithLock runs fn while holding one lock. A failure to acquire is
// returned without calling fn.
func (h *Handles) WithLock(ctx context.Context, index sem.Index, fn func(guard *sem.Guard)) error {
	guard, err := h.Sems.Lock(ctx, index)
	if err != nil {
		return err
	}
	defer guard.Unlock()
	fn(guard)
	return nil
}

// WithStats runs fn with the statistics view.
func (h *Handles) WithStats(ctx context.Context, fn func(*shm.StatsView)) error {
	return h.WithLock(ctx, sem.Mutex, func(guard *sem.Guard) { fn(h.Region.Stats(guard)) })
}

// WithDesk runs fn with the counters and operator records.
func (h *Handles) WithDesk(ctx context.Context, fn func(*shm.Desk)) error {
	return h.WithLock(ctx, sem.Counters, func(guard *sem.Guard) { fn(h.Region.Desk(guard)) })
}

// WithQueue runs fn with one service's queue.
func (h *Handles) WithQueue(ctx context.Context, service office.ServiceID, fn func(*shm.Queue)) error {
	return h.WithLock(ctx, sem.ServiceLock(service), func(guard *sem.Guard) {
		fn(h.Region.Queue(guard, service))
	})
}

// WithEverySlot runs fn with the queue mutex and every service lock
// held, the scope needed for day-boundary sweeps and resets.
func (h *Handles) WithEverySlot(ctx context.Context, fn func(queue *sem.Guard, services sem.Guards)) error {
	queue, err := h.Sems.Lock(ctx, sem.Queue)
	if err != nil {
		return err
	}
	defer queue.Unlock()
	services, err := h.Sems.LockServices(ctx)
	if err != nil {
		return err
	}
	defer services.Unlock()
	fn(queue, services)
	return nil
}

// PassRendezvous blocks on the day-start rendezvous and records the
// pass in the process table. It returns the day the participant joins.
func (h *Handles) PassRendezvous(ctx context.Context, self Participant) (int, error) {
	if err := h.Sems.Wait(ctx, sem.DayStart); err != nil {
		return 0, err
	}
	day := h.Region.Day()
	passedAt := h.Clock.Now()
	err := h.WithStats(ctx, func(stats *shm.StatsView) {
		stats.Processes().Passed(self.ID, day, passedAt)
	})
	if err != nil {
		return 0, err
	}
	self.Logger.Debug("passed day-start rendezvous", "day", day)
	return day, nil
}

// LeaveDay records that the participant is done with day and posts
// the day-over semaphore the director counts departures on. Everything
// the participant tallies for day must be recorded before the call.
func (h *Handles) LeaveDay(ctx context.Context, self Participant, day int) error {
	leftAt := h.Clock.Now()
	err := h.WithStats(context.WithoutCancel(ctx), func(stats *shm.StatsView) {
		stats.Processes().Left(self.ID, day, leftAt)
	})
	if err != nil {
		return err
	}
	if err := h.Sems.Post(sem.DayOver, 1); err != nil {
		return err
	}
	self.Logger.Debug("left day", "day", day)
	return nil
}

// Open reports whether day is the day in progress.
func (h *Handles) Open(day int) bool {
	return h.Region.DayInProgress() && h.Region.Day() == day
}

// WaitWhileOpen sleeps for d in slices no longer than slice, returning
// false as soon as the office closes or ctx is done.
func (h *Handles) WaitWhileOpen(ctx context.Context, d, slice time.Duration) bool {
	for d > 0 {
		step := min(d, slice)
		select {
		case <-h.Clock.After(step):
		case <-ctx.Done():
			return false
		}
		d -= step
		if !h.Region.DayInProgress() {
			return false
		}
	}
	return h.Region.DayInProgress()
}

// Participant identifies the caller of a shared helper.
type Participant struct {
	ID     office.ProcessID
	Logger *slog.Logger
}

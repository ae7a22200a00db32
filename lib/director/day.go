// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package director

import (
	"context"
	"fmt"
	"time"

	"github.com/bureau-foundation/postoffice/lib/notify"
	"github.com/bureau-foundation/postoffice/lib/office"
	"github.com/bureau-foundation/postoffice/lib/report"
	"github.com/bureau-foundation/postoffice/lib/sem"
	"github.com/bureau-foundation/postoffice/lib/shm"
)

// runDay plays one day from opening to the reset that follows the
// report.
func (d *Director) runDay(ctx context.Context, day int) error {
	logger := d.logger.With("day", day)
	if err := d.open(ctx, day); err != nil {
		return err
	}
	logger.Info("office open")

	if err := d.tick(ctx); err != nil {
		d.handles.Region.SetDayInProgress(false)
		return err
	}

	d.handles.Region.SetDayInProgress(false)
	d.handles.Bus.Broadcast(notify.Wake)
	logger.Info("office closed", "grace", d.cfg.GracePeriod)
	select {
	case <-d.clock.After(d.cfg.GracePeriod):
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := d.awaitDepartures(ctx); err != nil {
		return fmt.Errorf("director: closing day %d: %w", day, err)
	}
	if stale := d.handles.Queue.Drain(); stale > 0 {
		logger.Debug("discarded late ticket requests", "count", stale)
	}

	timedOut, purged, err := d.reconcile(ctx)
	if err != nil {
		return fmt.Errorf("director: reconciling day %d: %w", day, err)
	}
	logger.Debug("queues purged", "timed_out", timedOut, "purged", purged)

	summary, err := d.summarize(ctx, day)
	if err != nil {
		return fmt.Errorf("director: reporting day %d: %w", day, err)
	}
	if users := summary.Overall.Users(); users != d.cfg.Users {
		logger.Warn("users not fully accounted for", "accounted", users, "users", d.cfg.Users)
	}
	logger.Info("day completed",
		"served", summary.Overall.Served,
		"returned_home", summary.Overall.ReturnedHome,
		"no_ticket", summary.Overall.NoTicket,
		"timed_out", summary.Overall.TimedOut,
		"not_arrived", summary.Overall.NotArrived,
	)

	if err := d.reset(ctx); err != nil {
		return fmt.Errorf("director: resetting after day %d: %w", day, err)
	}
	return nil
}

// open assigns today's counters and releases every participant
// through the day-start rendezvous.
func (d *Director) open(ctx context.Context, day int) error {
	region := d.handles.Region
	region.SetDay(day)

	err := d.handles.WithDesk(ctx, func(desk *shm.Desk) {
		for index := range d.cfg.Counters {
			service := office.ServiceID(d.rng.IntN(len(d.cfg.Services)))
			if index < len(d.cfg.CounterServices) {
				service = d.cfg.CounterServices[index]
			}
			*desk.Counter(index) = shm.Counter{
				Active:      true,
				Service:     service,
				TotalServed: desk.Counter(index).TotalServed,
			}
		}
	})
	if err != nil {
		return fmt.Errorf("director: assigning counters for day %d: %w", day, err)
	}

	d.handles.Bus.Broadcast(notify.DayStart)
	region.SetDayInProgress(true)

	participants := 0
	if err := d.handles.WithStats(ctx, func(stats *shm.StatsView) {
		table := stats.Processes()
		table.ReleasedAt = d.clock.Now()
		participants = table.Participants()
	}); err != nil {
		return fmt.Errorf("director: opening day %d: %w", day, err)
	}
	if err := d.handles.Sems.Post(sem.DayStart, participants); err != nil {
		return fmt.Errorf("director: releasing day %d: %w", day, err)
	}
	return nil
}

// awaitDepartures blocks until every participant has left the day.
// Whatever a participant tallies for the day is recorded before it
// leaves.
func (d *Director) awaitDepartures(ctx context.Context) error {
	for range d.participants {
		if err := d.handles.Sems.Wait(ctx, sem.DayOver); err != nil {
			return err
		}
	}
	return nil
}

// tick waits out the day, checking once per tick that the queues have
// not exploded.
func (d *Director) tick(ctx context.Context) error {
	ticker := d.clock.NewTicker(min(time.Second, d.cfg.DayDuration))
	defer ticker.Stop()
	closing := d.clock.After(d.cfg.DayDuration)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-closing:
			return nil
		case <-ticker.C:
			waiting, err := d.waiting(ctx)
			if err != nil {
				return err
			}
			if waiting > d.cfg.ExplodeThreshold {
				d.logger.Error("explosion", "waiting", waiting, "threshold", d.cfg.ExplodeThreshold)
				return fmt.Errorf("%w: %d waiting, threshold %d", ErrExplosion, waiting, d.cfg.ExplodeThreshold)
			}
		}
	}
}

// waiting sums the tickets queued across every service.
func (d *Director) waiting(ctx context.Context) (int, error) {
	total := 0
	for service := range d.cfg.Services {
		err := d.handles.WithQueue(ctx, office.ServiceID(service), func(queue *shm.Queue) {
			total += queue.Waiting()
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// reconcile counts every ticket issued today and never served as
// timed out, then empties the queues and restarts ticket numbering.
func (d *Director) reconcile(ctx context.Context) (timedOut, purged int, err error) {
	var statsErr error
	err = d.handles.WithEverySlot(ctx, func(queue *sem.Guard, services sem.Guards) {
		perService := make([]int, len(d.cfg.Services))
		d.handles.Region.EachIssued(queue, services, func(_ int, request *shm.Request) {
			if request.Status == office.RequestCompleted && !request.ServedSuccessfully {
				perService[request.Service]++
				timedOut++
			}
		})
		if timedOut > 0 {
			statsErr = d.handles.WithStats(ctx, func(stats *shm.StatsView) {
				for service, count := range perService {
					if count == 0 {
						continue
					}
					stats.Record(office.ServiceID(service), func(tally *shm.ServiceTally) { tally.TimedOut += count })
				}
			})
		}
		purged = d.handles.Region.PurgeQueues(services)
		d.handles.Region.ResetSequences(services)
	})
	if err == nil {
		err = statsErr
	}
	return timedOut, purged, err
}

// summarize builds, stores and prints the day's summary.
func (d *Director) summarize(ctx context.Context, day int) (report.Day, error) {
	inputs := report.Inputs{Day: day, Catalog: d.cfg.Services, Scale: d.cfg.Scale()}
	if err := d.handles.WithStats(ctx, func(stats *shm.StatsView) {
		inputs.Daily = stats.Daily()
		inputs.Total = stats.Total()
	}); err != nil {
		return report.Day{}, err
	}
	if err := d.handles.WithDesk(ctx, func(desk *shm.Desk) {
		inputs.Counters = desk.Counters()
		inputs.Operators = desk.Operators()
	}); err != nil {
		return report.Day{}, err
	}

	summary := report.Build(inputs)
	d.mu.Lock()
	d.history = append(d.history, summary)
	d.total = inputs.Total
	d.mu.Unlock()

	if d.opts.Recorder != nil {
		if err := d.opts.Recorder.RecordDay(ctx, d.opts.RunID, summary); err != nil {
			d.logger.Warn("could not record day", "day", day, "error", err)
		}
	}
	if d.printer != nil {
		if err := d.printer.Day(summary); err != nil {
			d.logger.Warn("could not print day report", "day", day, "error", err)
		}
	}
	if d.opts.OnDay != nil {
		d.opts.OnDay(summary)
	}
	return summary, nil
}

// reset zeroes the daily figures and the semaphores, then tells
// everyone the day is over.
func (d *Director) reset(ctx context.Context) error {
	if err := d.handles.WithStats(ctx, func(stats *shm.StatsView) { stats.ResetDaily() }); err != nil {
		return err
	}
	if err := d.handles.WithDesk(ctx, func(desk *shm.Desk) { desk.ResetDaily() }); err != nil {
		return err
	}
	if err := d.handles.Sems.SetValue(sem.DayStart, 0); err != nil {
		return err
	}
	if err := d.handles.Sems.SetValue(sem.TicketReady, 0); err != nil {
		return err
	}
	if err := d.handles.Sems.SetValue(sem.DayOver, 0); err != nil {
		return err
	}
	d.handles.Bus.Broadcast(notify.DayEnd)
	return nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package operator

import (
	"context"
	"time"

	"github.com/bureau-foundation/postoffice/lib/notify"
	"github.com/bureau-foundation/postoffice/lib/office"
	"github.com/bureau-foundation/postoffice/lib/shm"
)

// ServeNext serves the next ticket of the operator's service. The
// service lock is held only to pop and claim the ticket and again to
// publish the result; the service time itself runs unlocked so that
// several operators of one service work in parallel.
func (o *Operator) ServeNext(ctx context.Context) Outcome {
	waiting := 0
	if err := o.handles.WithQueue(ctx, o.service, func(queue *shm.Queue) {
		waiting = queue.Waiting()
	}); err != nil {
		return Unavailable
	}
	if waiting == 0 {
		return Idle
	}

	if o.takeBreak(ctx) {
		return OnBreak
	}

	index, outcome := o.claim(ctx)
	if outcome != Served {
		return outcome
	}

	duration := ServiceDuration(o.base, o.rng)
	completed := o.handles.WaitWhileOpen(ctx, duration, serviceSlice)
	return o.publish(ctx, index, duration, completed)
}

// claim pops the head of the queue and marks it as being served by
// this operator. A ticket already claimed by someone else goes back to
// the tail.
func (o *Operator) claim(ctx context.Context) (int, Outcome) {
	outcome := Idle
	index := 0
	err := o.handles.WithQueue(ctx, o.service, func(queue *shm.Queue) {
		popped, ok := queue.Pop()
		if !ok {
			return
		}
		request, err := queue.Slot(popped)
		if err != nil || request.Status != office.RequestCompleted || request.ServedSuccessfully {
			o.logger.Warn("discarding stale ticket", "slot", popped)
			outcome = NoOp
			return
		}
		if request.BeingServed {
			if err := queue.Push(popped); err != nil {
				o.logger.Warn("could not requeue claimed ticket", "slot", popped, "error", err)
			}
			outcome = NoOp
			return
		}

		now := o.handles.Clock.Now()
		request.BeingServed = true
		request.ServedBy = o.id
		request.Counter = o.counter
		request.ServiceStartedAt = now
		request.Wait = now.Sub(request.RequestedAt)
		index = popped
		outcome = Served
	})
	if err != nil {
		return 0, Unavailable
	}
	return index, outcome
}

// publish records the end of a service. A service counts only if it
// ran to the end and the office is still open when the result is
// published under the service lock; otherwise the claim is released
// and the day-end sweep counts the ticket as timed out.
func (o *Operator) publish(ctx context.Context, index int, duration time.Duration, completed bool) Outcome {
	outcome := Interrupted
	err := o.handles.WithQueue(context.WithoutCancel(ctx), o.service, func(queue *shm.Queue) {
		request, err := queue.Slot(index)
		if err != nil {
			return
		}
		if !completed || !o.handles.Region.DayInProgress() {
			request.BeingServed = false
			request.ServedBy = 0
			return
		}

		request.ServedSuccessfully = true
		request.BeingServed = false
		wait := request.Wait
		if err := o.handles.WithStats(context.WithoutCancel(ctx), func(stats *shm.StatsView) {
			stats.Record(o.service, func(tally *shm.ServiceTally) {
				tally.Served++
				tally.Wait.Add(wait)
				tally.Service.Add(duration)
			})
		}); err != nil {
			o.logger.Warn("service not counted", "slot", index, "error", err)
		}
		outcome = Served
	})
	if err != nil {
		return Interrupted
	}
	if outcome != Served {
		o.logger.Debug("service interrupted by closing", "slot", index)
		return outcome
	}

	if err := o.handles.WithDesk(context.WithoutCancel(ctx), func(desk *shm.Desk) {
		record := desk.Operator(o.index)
		record.DailyServed++
		record.TotalServed++
		if o.counter != shm.NoCounter {
			counter := desk.Counter(o.counter)
			counter.Served++
			counter.TotalServed++
		}
	}); err != nil {
		o.logger.Warn("operator totals not updated", "error", err)
	}
	return Served
}

// takeBreak decides whether the operator goes on break now. A break
// needs the roll to succeed and the simulation-wide pause budget to
// have room; the counter is then freed and offered to a waiting
// colleague of the same service.
func (o *Operator) takeBreak(ctx context.Context) bool {
	cfg := o.handles.Config
	if cfg.BreakProbability <= 0 {
		return false
	}

	granted := false
	if err := o.handles.WithStats(ctx, func(stats *shm.StatsView) {
		if stats.TotalPauses() < cfg.PauseBudget && o.rng.IntN(100) < cfg.BreakProbability {
			stats.Pause()
			granted = true
		}
	}); err != nil || !granted {
		return false
	}

	var successor office.ProcessID
	if err := o.handles.WithDesk(ctx, func(desk *shm.Desk) {
		record := desk.Operator(o.index)
		record.DailyPauses++
		record.TotalPauses++
		counter := record.Counter
		desk.Unbind(record, office.OperatorOnBreak)
		if counter != shm.NoCounter {
			successor = desk.HandOver(counter)
		}
	}); err != nil {
		o.logger.Warn("break not recorded", "error", err)
	}
	o.counter = shm.NoCounter
	o.logger.Info("going on break")

	if successor != 0 {
		o.handles.Bus.Send(successor, notify.CounterFreed)
	}
	return true
}

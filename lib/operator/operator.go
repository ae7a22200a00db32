// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package operator

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/bureau-foundation/postoffice/lib/ipc"
	"github.com/bureau-foundation/postoffice/lib/mq"
	"github.com/bureau-foundation/postoffice/lib/notify"
	"github.com/bureau-foundation/postoffice/lib/office"
	"github.com/bureau-foundation/postoffice/lib/sem"
	"github.com/bureau-foundation/postoffice/lib/shm"
)

const (
	// serviceSlice is the granularity at which a service in progress
	// notices the office closing.
	serviceSlice = 50 * time.Millisecond

	// idleWait bounds how long an operator sleeps without a wakeup
	// before looking at its queue or the counters again.
	idleWait = 500 * time.Millisecond
)

// Outcome is the result of one ServeNext call.
type Outcome uint8

const (
	// Idle: no ticket waiting for the operator's service.
	Idle Outcome = iota
	// OnBreak: the operator left its counter for the rest of the day.
	OnBreak
	// NoOp: the ticket popped was already claimed or stale.
	NoOp
	// Interrupted: the office closed mid-service.
	Interrupted
	// Served: a ticket was served to the end.
	Served
	// Unavailable: shared state could not be locked.
	Unavailable
)

func (o Outcome) String() string {
	switch o {
	case Idle:
		return "idle"
	case OnBreak:
		return "on-break"
	case NoOp:
		return "no-op"
	case Interrupted:
		return "interrupted"
	case Served:
		return "served"
	case Unavailable:
		return "unavailable"
	}
	return "unknown"
}

// Operator serves the tickets of one service at whatever counter it
// can get each day.
type Operator struct {
	handles *ipc.Handles
	index   int
	id      office.ProcessID
	service office.ServiceID
	base    time.Duration
	rng     *rand.Rand
	mailbox *notify.Mailbox
	self    ipc.Participant
	logger  *slog.Logger

	counter int
}

// New registers operator index as id. The service is pinned by the
// configuration if it lists one for index; otherwise it is drawn from
// rng and kept for the operator's lifetime.
func New(ctx context.Context, handles *ipc.Handles, index int, id office.ProcessID, rng *rand.Rand, logger *slog.Logger) (*Operator, error) {
	cfg := handles.Config
	service := office.ServiceID(rng.IntN(len(cfg.Services)))
	if index < len(cfg.OperatorServices) {
		service = cfg.OperatorServices[index]
	}

	logger = logger.With("process", office.KindOperator.String(), "index", index, "service", cfg.Services[service].Name)
	operator := &Operator{
		handles: handles,
		index:   index,
		id:      id,
		service: service,
		base:    cfg.BaseServiceTime(service),
		rng:     rng,
		mailbox: handles.Bus.Register(id, office.KindOperator),
		self:    ipc.Participant{ID: id, Logger: logger},
		logger:  logger,
		counter: shm.NoCounter,
	}
	err := handles.WithDesk(ctx, func(desk *shm.Desk) {
		*desk.Operator(index) = shm.Operator{
			ID:      id,
			Service: service,
			Status:  office.OperatorUndefined,
			Counter: shm.NoCounter,
		}
	})
	if err != nil {
		return nil, err
	}
	return operator, nil
}

// Service returns the operator's fixed service.
func (o *Operator) Service() office.ServiceID { return o.service }

// ID returns the operator's participant id.
func (o *Operator) ID() office.ProcessID { return o.id }

// Run works one day after another until the simulation is torn down.
// Each day ends with a departure on the day-over semaphore, so the
// director never closes the books on a day the operator is still in.
func (o *Operator) Run(ctx context.Context) error {
	for {
		day, err := o.handles.PassRendezvous(ctx, o.self)
		if err != nil {
			return ignoreShutdown(err)
		}
		o.startDay(ctx)
		o.logger.Debug("day started", "day", day)
		o.workDay(ctx, day)
		o.endDay(ctx)
		if ctx.Err() != nil || o.handles.Region.Terminating() {
			return nil
		}
		if err := o.handles.LeaveDay(ctx, o.self, day); err != nil {
			return ignoreShutdown(err)
		}
	}
}

func (o *Operator) workDay(ctx context.Context, day int) {
	for o.handles.Open(day) && ctx.Err() == nil {
		if !o.TakeCounter(ctx) {
			o.wait(ctx)
			continue
		}
		switch outcome := o.ServeNext(ctx); outcome {
		case Idle, Unavailable:
			o.wait(ctx)
		case OnBreak:
			o.sitOut(ctx, day)
			return
		case Interrupted:
			return
		}
	}
}

// wait blocks until a notification arrives or idleWait passes. A
// ticket queued since the last look, signalled on the ticket-ready
// semaphore, ends the wait at once.
func (o *Operator) wait(ctx context.Context) {
	if o.handles.Sems.TryWait(sem.TicketReady) {
		return
	}
	o.mailbox.Wait(ctx, idleWait)
}

// sitOut waits for the end of the day. Events only wake the operator
// early; the day flag and number decide.
func (o *Operator) sitOut(ctx context.Context, day int) {
	for o.handles.Open(day) && !o.handles.Region.Terminating() {
		if _, err := o.mailbox.Wait(ctx, idleWait); err != nil {
			return
		}
	}
}

// startDay brings the operator back from a break or the previous
// day's end.
func (o *Operator) startDay(ctx context.Context) {
	o.counter = shm.NoCounter
	err := o.handles.WithDesk(ctx, func(desk *shm.Desk) {
		record := desk.Operator(o.index)
		if record.Status != office.OperatorWorking {
			record.Status = office.OperatorWaiting
			record.Counter = shm.NoCounter
		}
	})
	if err != nil {
		o.logger.Warn("could not reset operator status", "error", err)
	}
}

// endDay leaves the counter and marks the operator Finished.
func (o *Operator) endDay(ctx context.Context) {
	err := o.handles.WithDesk(context.WithoutCancel(ctx), func(desk *shm.Desk) {
		desk.Unbind(desk.Operator(o.index), office.OperatorFinished)
	})
	if err != nil && !errors.Is(err, sem.ErrRemoved) {
		o.logger.Warn("could not release counter", "error", err)
	}
	o.counter = shm.NoCounter
}

// TakeCounter makes sure the operator is seated. It keeps a counter
// already bound to it (possibly handed over by a colleague going on
// break), otherwise takes the first free counter of its service. With
// none free the operator is marked Waiting and false is returned.
func (o *Operator) TakeCounter(ctx context.Context) bool {
	seated := false
	err := o.handles.WithDesk(ctx, func(desk *shm.Desk) {
		record := desk.Operator(o.index)
		if record.Status == office.OperatorOnBreak || record.Status == office.OperatorFinished {
			return
		}
		if current := desk.CounterOf(o.id); current != shm.NoCounter {
			if record.Counter != current || record.Status != office.OperatorWorking {
				desk.Bind(current, record)
			}
			o.counter = current
			seated = true
			return
		}
		if free := desk.FreeCounter(o.service); free != shm.NoCounter {
			desk.Bind(free, record)
			o.counter = free
			seated = true
			return
		}
		record.Status = office.OperatorWaiting
		record.Counter = shm.NoCounter
		o.counter = shm.NoCounter
	})
	if err != nil {
		return false
	}
	return seated
}

// ServiceDuration draws a service time uniformly within ±50% of base,
// in whole percent steps: base × (50 + U[0,100]) / 100.
func ServiceDuration(base time.Duration, rng *rand.Rand) time.Duration {
	return base * time.Duration(50+rng.IntN(101)) / 100
}

func ignoreShutdown(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, sem.ErrRemoved) || errors.Is(err, mq.ErrRemoved) {
		return nil
	}
	return err
}

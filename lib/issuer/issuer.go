// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package issuer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bureau-foundation/postoffice/lib/ipc"
	"github.com/bureau-foundation/postoffice/lib/mq"
	"github.com/bureau-foundation/postoffice/lib/notify"
	"github.com/bureau-foundation/postoffice/lib/office"
	"github.com/bureau-foundation/postoffice/lib/sem"
	"github.com/bureau-foundation/postoffice/lib/shm"
)

// Outcome is what HandleRequest did with a message.
type Outcome uint8

const (
	// Dropped: the message named a slot that is out of range, filed
	// under another service, owned by another user or not Pending.
	Dropped Outcome = iota
	// Issued: the slot got a ticket and sits in its service queue.
	Issued
	// Rejected: the office was closed or the service queue was full.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Dropped:
		return "dropped"
	case Issued:
		return "issued"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// Issuer turns ticket requests into queued, numbered tickets. There is
// exactly one per simulation and it handles one message at a time.
type Issuer struct {
	handles *ipc.Handles
	self    ipc.Participant
	mailbox *notify.Mailbox
	logger  *slog.Logger
}

// New returns the issuer registered as id.
func New(handles *ipc.Handles, id office.ProcessID, logger *slog.Logger) *Issuer {
	logger = logger.With("process", office.KindIssuer.String())
	return &Issuer{
		handles: handles,
		self:    ipc.Participant{ID: id, Logger: logger},
		mailbox: handles.Bus.Register(id, office.KindIssuer),
		logger:  logger,
	}
}

// Run serves one day after another: pass the rendezvous, purge the
// previous day, then take messages until the office closes. It returns
// nil when the simulation is torn down.
func (i *Issuer) Run(ctx context.Context) error {
	for {
		day, err := i.handles.PassRendezvous(ctx, i.self)
		if err != nil {
			return ignoreShutdown(err)
		}
		if err := i.ResetDay(ctx); err != nil {
			return ignoreShutdown(err)
		}
		i.logger.Info("issuing tickets", "day", day)
		if err := i.serveDay(ctx, day); err != nil {
			return ignoreShutdown(err)
		}
		if i.handles.Region.Terminating() {
			return nil
		}
		if err := i.handles.LeaveDay(ctx, i.self, day); err != nil {
			return ignoreShutdown(err)
		}
	}
}

// serveDay receives messages until day closes, then answers whatever
// is still queued (those requests are rejected).
func (i *Issuer) serveDay(ctx context.Context, day int) error {
	dayCtx, closeDay := context.WithCancel(ctx)
	defer closeDay()
	go func() {
		defer closeDay()
		for i.handles.Open(day) && !i.handles.Region.Terminating() {
			if _, err := i.mailbox.Wait(dayCtx, dayPoll); err != nil {
				return
			}
		}
	}()

	for {
		msg, err := i.handles.Queue.Receive(dayCtx)
		switch {
		case err == nil:
			i.HandleRequest(ctx, msg)
		case errors.Is(err, mq.ErrMalformed):
			i.logger.Warn("dropping malformed ticket request", "error", err)
		case ctx.Err() != nil:
			return ctx.Err()
		case dayCtx.Err() != nil:
			i.drain(ctx)
			return nil
		default:
			return err
		}
	}
}

// drain answers the requests that arrived after closing.
func (i *Issuer) drain(ctx context.Context) {
	for i.handles.Queue.Len() > 0 {
		msg, err := i.handles.Queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, mq.ErrMalformed) {
				continue
			}
			return
		}
		i.HandleRequest(ctx, msg)
	}
}

// HandleRequest processes one ticket request. Invalid or stale
// requests are logged and dropped without an answer.
func (i *Issuer) HandleRequest(ctx context.Context, msg office.TicketRequestMessage) Outcome {
	region := i.handles.Region
	catalog := region.Catalog()
	logger := i.logger.With("slot", msg.Slot, "user", msg.User)

	if !catalog.Valid(msg.Service) {
		logger.Warn("dropping ticket request for unknown service", "service", msg.Service)
		return Dropped
	}

	outcome := Dropped
	var label string
	err := i.handles.WithQueue(ctx, msg.Service, func(queue *shm.Queue) {
		request, err := queue.Slot(msg.Slot)
		if err != nil {
			logger.Warn("dropping ticket request", "error", err)
			return
		}
		if request.Status != office.RequestPending || request.User != msg.User {
			logger.Warn("dropping stale ticket request", "status", request.Status, "owner", request.User)
			return
		}
		if !region.DayInProgress() {
			request.Status = office.RequestRejected
			outcome = Rejected
			return
		}

		request.Status = office.RequestProcessing
		if err := queue.Push(msg.Slot); err != nil {
			logger.Warn("rejecting ticket request", "error", err)
			request.Status = office.RequestRejected
			outcome = Rejected
			return
		}
		request.Ticket = queue.IssueNumber()
		request.Label = catalog.Label(msg.Service, request.Ticket)
		request.Status = office.RequestCompleted
		label = request.Label
		outcome = Issued

		if err := i.handles.WithStats(ctx, func(stats *shm.StatsView) {
			stats.Record(msg.Service, func(tally *shm.ServiceTally) { tally.Tickets++ })
		}); err != nil {
			logger.Warn("ticket not counted", "error", err)
		}
	})
	if err != nil {
		logger.Warn("abandoning ticket request", "error", err)
		return Dropped
	}

	switch outcome {
	case Issued:
		logger.Debug("ticket issued", "ticket", label)
		i.handles.Sems.Post(sem.TicketReady, 1)
		i.wakeOperators(ctx, msg.Service)
		i.handles.Bus.Send(msg.User, notify.Wake)
	case Rejected:
		logger.Debug("ticket request rejected")
		i.handles.Bus.Send(msg.User, notify.Wake)
	}
	return outcome
}

// wakeOperators nudges every operator Working on service. Operators
// also poll, so a failure here only costs latency.
func (i *Issuer) wakeOperators(ctx context.Context, service office.ServiceID) {
	var working []office.ProcessID
	if err := i.handles.WithDesk(ctx, func(desk *shm.Desk) {
		working = desk.WorkingOn(service)
	}); err != nil {
		return
	}
	for _, id := range working {
		i.handles.Bus.Send(id, notify.Wake)
	}
}

// ResetDay empties the queues, restarts ticket numbering at 1 and
// clears finished slots. It runs on the issuer's own goroutine, so it
// never overlaps HandleRequest.
func (i *Issuer) ResetDay(ctx context.Context) error {
	return i.handles.WithEverySlot(ctx, func(queue *sem.Guard, services sem.Guards) {
		i.handles.Region.ResetDay(queue, services)
	})
}

func ignoreShutdown(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, sem.ErrRemoved) || errors.Is(err, mq.ErrRemoved) {
		return nil
	}
	return err
}

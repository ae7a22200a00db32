// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package user

import (
	"context"
	"errors"
	"fmt"
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
	// arrivalSlice is the granularity at which a user on the way to
	// the office notices it closing.
	arrivalSlice = 5 * time.Millisecond

	// ticketPoll bounds each wait for the issuer's answer.
	ticketPoll = 200 * time.Millisecond

	// dayEndPoll bounds each wait for the office to close.
	dayEndPoll = 500 * time.Millisecond
)

// errNotSent reports a ticket request that never reached the issuer.
var errNotSent = errors.New("user: ticket request not sent")

// Outcome is what one day's visit came to, from the user's side.
type Outcome uint8

const (
	// Stayed: the user decided not to go today.
	Stayed Outcome = iota
	// Ticketed: the user holds a ticket; serving it is up to the
	// operators.
	Ticketed
	// WentHome: the user gave up; the reason is in Visit.Reason.
	WentHome
	// NoTicket: the office closed before the request was answered.
	NoTicket
	// Aborted: shared state was torn down mid-visit.
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case Stayed:
		return "stayed"
	case Ticketed:
		return "ticketed"
	case WentHome:
		return "went-home"
	case NoTicket:
		return "no-ticket"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

// Visit describes one day for one user.
type Visit struct {
	Service office.ServiceID
	Outcome Outcome
	Reason  office.HomeReason
	Slot    int
	Label   string
}

// User is one customer of the office.
type User struct {
	handles     *ipc.Handles
	index       int
	id          office.ProcessID
	probability int
	rng         *rand.Rand
	mailbox     *notify.Mailbox
	self        ipc.Participant
	logger      *slog.Logger
}

// New registers user index as id and draws its personal visit
// probability, which stays fixed for the run.
func New(handles *ipc.Handles, index int, id office.ProcessID, rng *rand.Rand, logger *slog.Logger) *User {
	cfg := handles.Config
	probability := cfg.VisitProbabilityMin
	if spread := cfg.VisitProbabilityMax - cfg.VisitProbabilityMin; spread > 0 {
		probability += rng.IntN(spread + 1)
	}
	logger = logger.With("process", office.KindUser.String(), "index", index)
	return &User{
		handles:     handles,
		index:       index,
		id:          id,
		probability: probability,
		rng:         rng,
		mailbox:     handles.Bus.Register(id, office.KindUser),
		self:        ipc.Participant{ID: id, Logger: logger},
		logger:      logger,
	}
}

// ID returns the user's participant id.
func (u *User) ID() office.ProcessID { return u.id }

// Probability returns the personal visit probability in percent.
func (u *User) Probability() int { return u.probability }

// Run lives one day after another until the simulation is torn down.
// Every visit is counted before the user leaves the day.
func (u *User) Run(ctx context.Context) error {
	for {
		day, err := u.handles.PassRendezvous(ctx, u.self)
		if err != nil {
			return ignoreShutdown(err)
		}
		visit := u.VisitDay(ctx)
		u.logger.Debug("day over", "day", day, "outcome", visit.Outcome.String(), "ticket", visit.Label)
		if visit.Outcome == Aborted || ctx.Err() != nil {
			return nil
		}
		u.awaitClosing(ctx, day)
		if u.handles.Region.Terminating() {
			return nil
		}
		if err := u.handles.LeaveDay(ctx, u.self, day); err != nil {
			return ignoreShutdown(err)
		}
	}
}

// awaitClosing keeps the user home until day has closed, so that the
// next rendezvous belongs to the next day.
func (u *User) awaitClosing(ctx context.Context, day int) {
	for u.handles.Open(day) && !u.handles.Region.Terminating() {
		if _, err := u.mailbox.Wait(ctx, dayEndPoll); err != nil {
			return
		}
	}
}

// VisitDay plays one day: decide, travel, request a ticket and wait for
// the answer. Every outcome except Ticketed and Aborted is recorded in
// the statistics here; what happens to a ticket is recorded by whoever
// serves it or by the day-end sweep.
func (u *User) VisitDay(ctx context.Context) Visit {
	service := office.ServiceID(u.rng.IntN(len(u.handles.Config.Services)))
	visit := Visit{Service: service, Slot: -1}

	if u.rng.IntN(100)+1 > u.probability {
		visit.Outcome = Stayed
		u.record(ctx, service, func(tally *shm.ServiceTally) { tally.NotArrived++ })
		return visit
	}

	if !u.handles.WaitWhileOpen(ctx, u.arrivalDelay(), arrivalSlice) {
		if ctx.Err() != nil {
			visit.Outcome = Aborted
			return visit
		}
		return u.goHome(ctx, visit, office.HomeArrivedLate)
	}

	available := false
	if err := u.handles.WithDesk(ctx, func(desk *shm.Desk) {
		available = desk.Available(service)
	}); err != nil {
		visit.Outcome = Aborted
		return visit
	}
	if !available {
		return u.goHome(ctx, visit, office.HomeNoService)
	}

	slot, err := u.request(ctx, service)
	if err != nil {
		if errors.Is(err, shm.ErrArenaFull) || errors.Is(err, errNotSent) {
			u.logger.Warn("ticket request failed", "error", err)
			return u.goHome(ctx, visit, office.HomeRequestFailed)
		}
		visit.Outcome = Aborted
		return visit
	}
	visit.Slot = slot

	return u.awaitTicket(ctx, visit)
}

// arrivalDelay draws the arrival minute strictly inside the opening
// hours and converts it to wall-clock time.
func (u *User) arrivalDelay() time.Duration {
	cfg := u.handles.Config
	minute := cfg.OpenMinute + 1
	if span := cfg.CloseMinute - cfg.OpenMinute - 1; span > 0 {
		minute = cfg.OpenMinute + 1 + u.rng.IntN(span)
	}
	return cfg.Scale().Minutes(float64(minute))
}

// request writes a Pending slot and tells the issuer about it. A
// message that cannot be sent leaves no Pending slot behind.
func (u *User) request(ctx context.Context, service office.ServiceID) (int, error) {
	var slot int
	var allocErr error
	if err := u.handles.WithLock(ctx, sem.Queue, func(guard *sem.Guard) {
		slot, allocErr = u.handles.Region.Arena(guard).Allocate(u.id, service, u.handles.Clock.Now())
	}); err != nil {
		return 0, err
	}
	if allocErr != nil {
		return 0, allocErr
	}

	msg := office.TicketRequestMessage{User: u.id, Service: service, Slot: slot, SentAt: u.handles.Clock.Now()}
	if err := u.handles.Queue.Send(ctx, msg); err != nil {
		u.withdraw(context.WithoutCancel(ctx), service, slot, false)
		if errors.Is(err, mq.ErrRemoved) || ctx.Err() != nil {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %w", errNotSent, err)
	}
	return slot, nil
}

// awaitTicket polls the slot until the issuer answers or the office
// closes.
func (u *User) awaitTicket(ctx context.Context, visit Visit) Visit {
	for {
		var status office.RequestStatus
		if err := u.handles.WithQueue(ctx, visit.Service, func(queue *shm.Queue) {
			request, err := queue.Slot(visit.Slot)
			if err != nil {
				return
			}
			status = request.Status
			visit.Label = request.Label
		}); err != nil {
			visit.Outcome = Aborted
			return visit
		}

		switch status {
		case office.RequestCompleted:
			visit.Outcome = Ticketed
			return visit
		case office.RequestRejected:
			return u.goHome(ctx, visit, office.HomeRejected)
		}

		if !u.handles.Region.DayInProgress() {
			if u.withdraw(ctx, visit.Service, visit.Slot, true) {
				visit.Outcome = NoTicket
				return visit
			}
			// The issuer answered between the check and the withdrawal.
			continue
		}
		if _, err := u.mailbox.Wait(ctx, ticketPoll); err != nil {
			visit.Outcome = Aborted
			return visit
		}
	}
}

// withdraw rejects a still-Pending slot so the issuer ignores it. With
// count set, the withdrawal is counted as a user left without a
// ticket, in the same critical section. It reports whether the slot
// was still Pending.
func (u *User) withdraw(ctx context.Context, service office.ServiceID, slot int, count bool) bool {
	withdrawn := false
	err := u.handles.WithQueue(ctx, service, func(queue *shm.Queue) {
		request, err := queue.Slot(slot)
		if err != nil || request.Status != office.RequestPending || request.User != u.id {
			return
		}
		request.Status = office.RequestRejected
		withdrawn = true
		if !count {
			return
		}
		if err := u.handles.WithStats(ctx, func(stats *shm.StatsView) {
			stats.Record(service, func(tally *shm.ServiceTally) { tally.NoTicket++ })
		}); err != nil {
			u.logger.Warn("missing ticket not counted", "error", err)
		}
	})
	if err != nil {
		u.logger.Warn("could not withdraw request", "slot", slot, "error", err)
	}
	return withdrawn
}

func (u *User) goHome(ctx context.Context, visit Visit, reason office.HomeReason) Visit {
	visit.Outcome = WentHome
	visit.Reason = reason
	u.record(ctx, visit.Service, func(tally *shm.ServiceTally) { tally.Home[reason]++ })
	return visit
}

func (u *User) record(ctx context.Context, service office.ServiceID, fn func(*shm.ServiceTally)) {
	if err := u.handles.WithStats(context.WithoutCancel(ctx), func(stats *shm.StatsView) {
		stats.Record(service, fn)
	}); err != nil && !errors.Is(err, sem.ErrRemoved) {
		u.logger.Warn("visit not counted", "error", err)
	}
}

func ignoreShutdown(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, sem.ErrRemoved) || errors.Is(err, mq.ErrRemoved) {
		return nil
	}
	return err
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package director

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/postoffice/lib/clock"
	"github.com/bureau-foundation/postoffice/lib/config"
	"github.com/bureau-foundation/postoffice/lib/ipc"
	"github.com/bureau-foundation/postoffice/lib/issuer"
	"github.com/bureau-foundation/postoffice/lib/notify"
	"github.com/bureau-foundation/postoffice/lib/office"
	"github.com/bureau-foundation/postoffice/lib/operator"
	"github.com/bureau-foundation/postoffice/lib/report"
	"github.com/bureau-foundation/postoffice/lib/shm"
	"github.com/bureau-foundation/postoffice/lib/user"
)

var (
	// ErrExplosion aborts a run with too many tickets waiting.
	ErrExplosion = errors.New("director: too many tickets waiting")

	// ErrTerminated ends a run on request.
	ErrTerminated = errors.New("director: terminated")

	// ErrWatchdog ends a run that overran its time budget.
	ErrWatchdog = errors.New("director: run exceeded its time budget")
)

// watchdogSlack is added to the expected run length before the
// watchdog fires.
const watchdogSlack = 10 * time.Second

// Recorder persists day reports.
type Recorder interface {
	RecordDay(ctx context.Context, runID string, day report.Day) error
}

// Options configures a Director. Zero values are usable.
type Options struct {
	RunID  string
	Logger *slog.Logger
	Clock  clock.Clock

	// Output receives the printed day and run reports. Nil prints
	// nothing.
	Output io.Writer

	Recorder Recorder

	// OnDay is called after each day has been reported.
	OnDay func(report.Day)
}

// Director runs a simulation: it creates the shared state, spawns
// every participant and drives the days.
type Director struct {
	cfg     *config.Config
	handles *ipc.Handles
	opts    Options
	logger  *slog.Logger
	clock   clock.Clock
	printer *report.Printer
	seed    uint64
	rng     *rand.Rand

	// participants is how many departures close a day.
	participants int

	stopOnce sync.Once
	stopped  chan struct{}

	mu      sync.Mutex
	history []report.Day
	total   shm.Tally
}

// New creates the shared state for cfg.
func New(cfg *config.Config, opts Options) (*Director, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	handles, err := ipc.Create(cfg, opts.Clock)
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	logger := opts.Logger.With("process", office.KindDirector.String())
	d := &Director{
		cfg:     cfg,
		handles: handles,
		opts:    opts,
		logger:  logger,
		clock:   opts.Clock,
		seed:    seed,
		rng:     rand.New(rand.NewPCG(seed, 0)),
		stopped: make(chan struct{}),
	}
	if opts.Output != nil {
		d.printer = report.NewPrinter(opts.Output)
	}
	return d, nil
}

// Handles returns the shared state of the run.
func (d *Director) Handles() *ipc.Handles { return d.handles }

// Seed returns the seed every random draw derives from.
func (d *Director) Seed() uint64 { return d.seed }

// Budget is the longest a run may take before the watchdog stops it.
func (d *Director) Budget() time.Duration {
	return time.Duration(d.cfg.Days)*(d.cfg.DayDuration+d.cfg.GracePeriod) + watchdogSlack
}

// Terminate asks a running simulation to stop after tearing down as
// usual. Safe to call from any goroutine, any number of times.
func (d *Director) Terminate() {
	d.stopOnce.Do(func() { close(d.stopped) })
}

// History returns the reports of the days completed so far.
func (d *Director) History() []report.Day {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]report.Day(nil), d.history...)
}

// Run drives the simulation to its end and tears it down. It returns
// the run summary, which covers every completed day even when the run
// was cut short, together with the reason it was: ErrExplosion,
// ErrTerminated, ErrWatchdog, a participant failure or ctx's error.
func (d *Director) Run(ctx context.Context) (report.Run, error) {
	run := report.Run{RunID: d.opts.RunID, Digest: d.cfg.Digest(), StartedAt: d.clock.Now()}
	d.logger.Info("simulation starting",
		"run_id", d.opts.RunID,
		"days", d.cfg.Days,
		"operators", d.cfg.Operators,
		"users", d.cfg.Users,
		"counters", d.cfg.Counters,
		"seed", d.seed,
	)

	runCtx, cancelRun := context.WithCancelCause(ctx)
	defer cancelRun(nil)
	go d.watch(runCtx, cancelRun)

	participantCtx, cancelParticipants := context.WithCancel(runCtx)
	defer cancelParticipants()
	group, groupCtx := errgroup.WithContext(participantCtx)
	if err := d.spawn(groupCtx, group); err != nil {
		d.teardown(group, cancelParticipants)
		return d.finish(run, err), err
	}

	var runErr error
	for day := 1; day <= d.cfg.Days; day++ {
		if err := d.runDay(groupCtx, day); err != nil {
			runErr = d.cause(runCtx, groupCtx, err)
			break
		}
	}

	groupErr := d.teardown(group, cancelParticipants)
	if runErr == nil && groupErr != nil {
		runErr = fmt.Errorf("director: participant failed: %w", groupErr)
	}
	return d.finish(run, runErr), runErr
}

// watch cancels the run when the watchdog fires or Terminate is
// called.
func (d *Director) watch(ctx context.Context, cancel context.CancelCauseFunc) {
	select {
	case <-d.clock.After(d.Budget()):
		d.logger.Error("watchdog fired", "budget", d.Budget())
		cancel(ErrWatchdog)
	case <-d.stopped:
		d.logger.Info("termination requested")
		cancel(ErrTerminated)
	case <-ctx.Done():
	}
}

// cause picks the error that explains why a day did not complete.
func (d *Director) cause(runCtx, groupCtx context.Context, err error) error {
	if errors.Is(err, ErrExplosion) {
		return err
	}
	if cause := context.Cause(runCtx); cause != nil {
		return cause
	}
	if cause := context.Cause(groupCtx); cause != nil && !errors.Is(cause, context.Canceled) {
		return fmt.Errorf("director: participant failed: %w", cause)
	}
	return err
}

// spawn registers every participant in the process table and starts
// it on the group.
func (d *Director) spawn(ctx context.Context, group *errgroup.Group) error {
	var issuerID office.ProcessID
	operatorIDs := make([]office.ProcessID, d.cfg.Operators)
	userIDs := make([]office.ProcessID, d.cfg.Users)
	err := d.handles.WithStats(ctx, func(stats *shm.StatsView) {
		table := stats.Processes()
		issuerID = table.Spawn(office.KindIssuer, 0)
		for index := range operatorIDs {
			operatorIDs[index] = table.Spawn(office.KindOperator, index)
		}
		for index := range userIDs {
			userIDs[index] = table.Spawn(office.KindUser, index)
		}
	})
	if err != nil {
		return fmt.Errorf("director: spawning participants: %w", err)
	}

	ticketIssuer := issuer.New(d.handles, issuerID, d.opts.Logger)
	group.Go(func() error { return ticketIssuer.Run(ctx) })

	for index, id := range operatorIDs {
		clerk, err := operator.New(ctx, d.handles, index, id, d.participantRNG(id), d.opts.Logger)
		if err != nil {
			return fmt.Errorf("director: spawning operator %d: %w", index, err)
		}
		group.Go(func() error { return clerk.Run(ctx) })
	}
	for index, id := range userIDs {
		customer := user.New(d.handles, index, id, d.participantRNG(id), d.opts.Logger)
		group.Go(func() error { return customer.Run(ctx) })
	}
	d.participants = 1 + len(operatorIDs) + len(userIDs)
	d.logger.Debug("participants spawned", "count", d.participants)
	return nil
}

func (d *Director) participantRNG(id office.ProcessID) *rand.Rand {
	return rand.New(rand.NewPCG(d.seed, uint64(id)))
}

// teardown tells everyone the simulation is over, waits for them and
// removes the shared resources.
func (d *Director) teardown(group *errgroup.Group, cancel context.CancelFunc) error {
	d.handles.Region.SetDayInProgress(false)
	d.handles.Region.SetTerminating()
	d.handles.Bus.Broadcast(notify.Terminate)
	cancel()
	err := group.Wait()

	if statsErr := d.handles.WithStats(context.Background(), func(stats *shm.StatsView) {
		total := stats.Total()
		d.mu.Lock()
		d.total = total
		d.mu.Unlock()
	}); statsErr != nil {
		d.logger.Warn("could not read final statistics", "error", statsErr)
	}
	d.handles.Destroy()
	d.logger.Info("simulation torn down")
	return err
}

func (d *Director) finish(run report.Run, err error) report.Run {
	run.Days = d.History()
	run.FinishedAt = d.clock.Now()
	if err != nil {
		run.Aborted = true
		run.Reason = reason(err)
	}
	d.mu.Lock()
	total := d.total.Clone()
	d.mu.Unlock()
	if total.Services == nil {
		total.Services = make([]shm.ServiceTally, len(d.cfg.Services))
	}
	run = report.Finish(run, d.cfg.Services, d.cfg.Scale(), total)
	if d.printer != nil {
		if printErr := d.printer.Run(run); printErr != nil {
			d.logger.Warn("could not print run summary", "error", printErr)
		}
	}
	return run
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrExplosion):
		return "explosion"
	case errors.Is(err, ErrTerminated):
		return "terminated"
	case errors.Is(err, ErrWatchdog):
		return "watchdog"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return err.Error()
	}
}

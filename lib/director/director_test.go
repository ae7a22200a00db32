// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package director

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/postoffice/lib/config"
	"github.com/bureau-foundation/postoffice/lib/office"
	"github.com/bureau-foundation/postoffice/lib/report"
	"github.com/bureau-foundation/postoffice/lib/sem"
	"github.com/bureau-foundation/postoffice/lib/shm"
	"github.com/bureau-foundation/postoffice/lib/testutil"
)

// smallOffice is two services, each with one pinned operator and one
// pinned counter, and five users who always go.
func smallOffice() *config.Config {
	cfg := config.Default()
	cfg.Days = 2
	cfg.DayDuration = time.Second
	cfg.GracePeriod = 500 * time.Millisecond
	cfg.Operators = 2
	cfg.Counters = 2
	cfg.Users = 5
	cfg.VisitProbabilityMin = 100
	cfg.VisitProbabilityMax = 100
	cfg.ExplodeThreshold = 1000
	cfg.Seed = 42
	cfg.Services = office.Catalog{
		{Name: "alpha", Prefix: "A", Minutes: 5},
		{Name: "beta", Prefix: "B", Minutes: 5},
	}
	cfg.OperatorServices = []office.ServiceID{0, 1}
	cfg.CounterServices = []office.ServiceID{0, 1}
	return cfg
}

type recorder struct {
	mu   sync.Mutex
	days []report.Day
}

func (r *recorder) RecordDay(_ context.Context, runID string, day report.Day) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if runID != "run-test" {
		return errors.New("unexpected run id " + runID)
	}
	r.days = append(r.days, day)
	return nil
}

func newDirector(t *testing.T, cfg *config.Config, opts Options) *Director {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	director, err := New(cfg, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(director.Handles().Destroy)
	return director
}

func TestRunAccountsForEveryUser(t *testing.T) {
	cfg := smallOffice()
	var output bytes.Buffer
	store := &recorder{}
	var director *Director
	director = newDirector(t, cfg, Options{
		RunID:    "run-test",
		Output:   &output,
		Recorder: store,
		OnDay: func(day report.Day) {
			// Every participant passed today's rendezvous after its
			// release.
			director.Handles().WithStats(context.Background(), func(stats *shm.StatsView) {
				table := stats.Processes()
				for _, process := range table.All() {
					if process.Day != day.Day || process.PassedAt.Before(table.ReleasedAt) {
						t.Errorf("day %d: %v %d passed day %d at %v, released at %v",
							day.Day, process.Kind, process.Index, process.Day, process.PassedAt, table.ReleasedAt)
					}
					if process.LeftDay != day.Day {
						t.Errorf("day %d reported while %v %d last left day %d", day.Day, process.Kind, process.Index, process.LeftDay)
					}
				}
			})
		},
	})

	run, err := director.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Aborted || len(run.Days) != 2 {
		t.Fatalf("run aborted %v with %d days, want complete with 2", run.Aborted, len(run.Days))
	}
	for _, day := range run.Days {
		if users := day.Overall.Users(); users != cfg.Users {
			t.Errorf("day %d accounts for %d users, want %d: %+v", day.Day, users, cfg.Users, day.Overall)
		}
		if day.Overall.NotArrived != 0 {
			t.Errorf("day %d: %d users did not arrive with probability 100", day.Day, day.Overall.NotArrived)
		}
	}
	if users := run.Overall.Users(); users != 2*cfg.Users {
		t.Errorf("run accounts for %d users, want %d", users, 2*cfg.Users)
	}
	if run.Digest != cfg.Digest() || run.RunID != "run-test" {
		t.Errorf("run id %q digest %q", run.RunID, run.Digest)
	}

	if len(store.days) != 2 {
		t.Errorf("recorder got %d days, want 2", len(store.days))
	}
	if !strings.Contains(output.String(), "Day 2") || !strings.Contains(output.String(), "Simulation run-test") {
		t.Errorf("output lacks day or run report:\n%s", output.String())
	}
	if !director.Handles().Sems.Removed() {
		t.Error("semaphores not removed after Run")
	}
}

// TestRunShortGraceKeepsDaysApart runs days whose grace period is
// shorter than any participant's poll interval. Every participant must
// be out of a day before it is reported and must pass every day's
// rendezvous exactly once.
func TestRunShortGraceKeepsDaysApart(t *testing.T) {
	for _, grace := range []time.Duration{100 * time.Millisecond, 0} {
		t.Run(grace.String(), func(t *testing.T) {
			cfg := smallOffice()
			cfg.Days = 4
			cfg.Users = 60
			cfg.DayDuration = 300 * time.Millisecond
			cfg.GracePeriod = grace

			var director *Director
			var mu sync.Mutex
			passed := make(map[office.ProcessID][]int)
			director = newDirector(t, cfg, Options{
				OnDay: func(day report.Day) {
					director.Handles().WithStats(context.Background(), func(stats *shm.StatsView) {
						mu.Lock()
						defer mu.Unlock()
						for _, process := range stats.Processes().All() {
							if process.LeftDay != day.Day {
								t.Errorf("day %d reported while %v %d last left day %d", day.Day, process.Kind, process.Index, process.LeftDay)
							}
							passed[process.ID] = append(passed[process.ID], process.Day)
						}
					})
				},
			})

			run, err := director.Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(run.Days) != cfg.Days {
				t.Fatalf("run has %d days, want %d", len(run.Days), cfg.Days)
			}
			for _, day := range run.Days {
				if users := day.Overall.Users(); users != cfg.Users {
					t.Errorf("day %d accounts for %d users, want %d: %+v", day.Day, users, cfg.Users, day.Overall)
				}
			}
			if users := run.Overall.Users(); users != cfg.Days*cfg.Users {
				t.Errorf("run accounts for %d users, want %d", users, cfg.Days*cfg.Users)
			}

			mu.Lock()
			defer mu.Unlock()
			if len(passed) != 1+cfg.Operators+cfg.Users {
				t.Fatalf("%d participants reported, want %d", len(passed), 1+cfg.Operators+cfg.Users)
			}
			for id, days := range passed {
				for index, day := range days {
					if day != index+1 {
						t.Errorf("participant %d passed days %v, want 1 through %d", id, days, cfg.Days)
						break
					}
				}
			}
		})
	}
}

// TestRunTwoSecondDay is the plain scenario: one operator and one
// counter per service, five users, one two-second day.
func TestRunTwoSecondDay(t *testing.T) {
	cfg := config.Default()
	cfg.Days = 1
	cfg.DayDuration = 2 * time.Second
	cfg.Operators = 2
	cfg.Counters = 2
	cfg.Users = 5
	cfg.ExplodeThreshold = 1000
	cfg.Seed = 7
	cfg.Services = office.Catalog{
		{Name: "A", Prefix: "A", Minutes: 5},
		{Name: "B", Prefix: "B", Minutes: 5},
	}
	cfg.OperatorServices = []office.ServiceID{0, 1}
	cfg.CounterServices = []office.ServiceID{0, 1}

	director := newDirector(t, cfg, Options{})
	run, err := director.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(run.Days) != 1 {
		t.Fatalf("run has %d days, want 1", len(run.Days))
	}
	overall := run.Days[0].Overall
	accounted := overall.Served + overall.ReturnedHome + overall.NoTicket + overall.TimedOut + overall.NotArrived
	if accounted != 5 {
		t.Fatalf("served %d + returned home %d + no ticket %d + timed out %d + not arrived %d = %d, want 5",
			overall.Served, overall.ReturnedHome, overall.NoTicket, overall.TimedOut, overall.NotArrived, accounted)
	}
}

func TestRunExplodes(t *testing.T) {
	cfg := smallOffice()
	cfg.Days = 3
	cfg.DayDuration = 2 * time.Second
	cfg.Operators = 1
	cfg.Counters = 1
	cfg.Users = 20
	cfg.ExplodeThreshold = 1
	cfg.Services = office.Catalog{{Name: "slow", Prefix: "S", Minutes: 400}}
	cfg.OperatorServices = []office.ServiceID{0}
	cfg.CounterServices = []office.ServiceID{0}

	director := newDirector(t, cfg, Options{})
	run, err := director.Run(context.Background())
	if !errors.Is(err, ErrExplosion) {
		t.Fatalf("Run = %v, want %v", err, ErrExplosion)
	}
	if !run.Aborted || run.Reason != "explosion" || len(run.Days) != 0 {
		t.Fatalf("run aborted %v reason %q days %d, want aborted by explosion on day 1", run.Aborted, run.Reason, len(run.Days))
	}
	if !director.Handles().Region.Terminating() {
		t.Fatal("region not marked terminating")
	}
}

func TestTerminateStopsRun(t *testing.T) {
	cfg := smallOffice()
	cfg.Days = 5
	cfg.DayDuration = 3 * time.Second
	director := newDirector(t, cfg, Options{})

	type result struct {
		run report.Run
		err error
	}
	done := make(chan result, 1)
	go func() {
		run, err := director.Run(context.Background())
		done <- result{run, err}
	}()

	region := director.Handles().Region
	testutil.Eventually(t, 5*time.Second, func() bool { return region.DayInProgress() }, "first day open")
	snapshot, err := director.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snapshot.Day != 1 || len(snapshot.Queues) != 2 || len(snapshot.Operators) != 2 {
		t.Fatalf("Snapshot = %+v", snapshot)
	}
	director.Terminate()
	director.Terminate()

	got := testutil.RequireReceive(t, done, 10*time.Second, "Run after Terminate")
	if !errors.Is(got.err, ErrTerminated) {
		t.Fatalf("Run = %v, want %v", got.err, ErrTerminated)
	}
	if got.run.Reason != "terminated" {
		t.Fatalf("Reason = %q, want %q", got.run.Reason, "terminated")
	}
}

func TestReconcileCountsTimedOutTickets(t *testing.T) {
	cfg := smallOffice()
	director := newDirector(t, cfg, Options{})
	handles := director.Handles()
	ctx := context.Background()

	// Three tickets for alpha: one served, two left waiting.
	var indices []int
	handles.WithLock(ctx, sem.Queue, func(guard *sem.Guard) {
		for user := range 3 {
			index, err := handles.Region.Arena(guard).Allocate(office.ProcessID(100+user), 0, time.Now())
			if err != nil {
				t.Fatalf("Allocate: %v", err)
			}
			indices = append(indices, index)
		}
	})
	handles.WithQueue(ctx, 0, func(queue *shm.Queue) {
		for position, index := range indices {
			request, _ := queue.Slot(index)
			request.Status = office.RequestCompleted
			request.Ticket = queue.IssueNumber()
			if position == 0 {
				request.ServedSuccessfully = true
				continue
			}
			queue.Push(index)
		}
	})

	timedOut, purged, err := director.reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if timedOut != 2 || purged != 2 {
		t.Fatalf("reconcile = %d timed out, %d purged; want 2 and 2", timedOut, purged)
	}
	handles.WithStats(ctx, func(stats *shm.StatsView) {
		if got := stats.Daily().Services[0].TimedOut; got != 2 {
			t.Errorf("daily TimedOut = %d, want 2", got)
		}
		if got := stats.Total().Services[0].TimedOut; got != 2 {
			t.Errorf("total TimedOut = %d, want 2", got)
		}
	})
	handles.WithQueue(ctx, 0, func(queue *shm.Queue) {
		if queue.Waiting() != 0 || queue.NextNumber() != 1 {
			t.Errorf("after reconcile: waiting %d next %d, want 0 and 1", queue.Waiting(), queue.NextNumber())
		}
	})
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := smallOffice()
	cfg.Counters = 0
	if _, err := New(cfg, Options{}); err == nil {
		t.Fatal("New accepted zero counters")
	}
}

func TestBudget(t *testing.T) {
	cfg := smallOffice()
	director := newDirector(t, cfg, Options{})
	want := 2*(time.Second+500*time.Millisecond) + watchdogSlack
	if got := director.Budget(); got != want {
		t.Fatalf("Budget() = %v, want %v", got, want)
	}
}

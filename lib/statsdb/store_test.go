// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package statsdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/postoffice/lib/report"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Config{Path: filepath.Join(t.TempDir(), "stats.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleDay(number int) report.Day {
	return report.Day{
		Day:             number,
		ActiveOperators: 3,
		Pauses:          1,
		TotalPauses:     number,
		Services: []report.ServiceDay{
			{
				Name:     "packages",
				Tickets:  10,
				Served:   8,
				TimedOut: 2,
				Wait:     report.Timing{Count: 8, Average: 120 * time.Millisecond},
				Service:  report.Timing{Count: 8, Average: 90 * time.Millisecond},
			},
			{
				Name:       "letters",
				Reasons:    report.Reasons{NoService: 2, ArrivedLate: 1},
				NoTicket:   1,
				NotArrived: 4,
			},
		},
	}
}

func TestJournalModeIsWAL(t *testing.T) {
	store := openTestStore(t)
	conn, err := store.take(context.Background())
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	defer store.pool.Put(conn)

	var mode string
	err = sqlitex.Execute(conn, "PRAGMA journal_mode", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			mode = stmt.ColumnText(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode = %q, want %q", mode, "wal")
	}
}

func TestRunLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if err := store.BeginRun(ctx, "run-1", "digest", started); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	for day := 1; day <= 2; day++ {
		if err := store.RecordDay(ctx, "run-1", sampleDay(day)); err != nil {
			t.Fatalf("RecordDay(%d): %v", day, err)
		}
	}
	if err := store.FinishRun(ctx, "run-1", started.Add(time.Minute), OutcomeCompleted); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	record, err := store.Run(ctx, "run-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if record.Days != 2 || record.Outcome != OutcomeCompleted || !record.StartedAt.Equal(started) {
		t.Fatalf("Run = %+v", record)
	}
	if got := record.FinishedAt.Sub(record.StartedAt); got != time.Minute {
		t.Fatalf("run lasted %v, want 1m", got)
	}

	days, err := store.Days(ctx, "run-1")
	if err != nil {
		t.Fatalf("Days: %v", err)
	}
	if len(days) != 2 || days[1].Day != 2 || days[1].TotalPauses != 2 {
		t.Fatalf("Days = %+v", days)
	}
	if len(days[0].Services) != 2 {
		t.Fatalf("day 1 has %d services, want 2", len(days[0].Services))
	}
	packages, letters := days[0].Services[0], days[0].Services[1]
	if packages.Name != "packages" || packages.Served != 8 || packages.Wait.Average != 120*time.Millisecond {
		t.Fatalf("packages = %+v", packages)
	}
	if letters.ReturnedHome != 3 || letters.Users() != 8 {
		t.Fatalf("letters home %d users %d, want 3 and 8", letters.ReturnedHome, letters.Users())
	}
}

func TestRecordDayTwiceFails(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.BeginRun(ctx, "run-1", "digest", time.Now()); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := store.RecordDay(ctx, "run-1", sampleDay(1)); err != nil {
		t.Fatalf("RecordDay: %v", err)
	}
	if err := store.RecordDay(ctx, "run-1", sampleDay(1)); err == nil {
		t.Fatal("RecordDay accepted the same day twice")
	}
	days, err := store.Days(ctx, "run-1")
	if err != nil {
		t.Fatalf("Days: %v", err)
	}
	if len(days) != 1 || len(days[0].Services) != 2 {
		t.Fatalf("after failed RecordDay: %d days, want 1 with 2 services", len(days))
	}
}

func TestRecordDayUnknownRun(t *testing.T) {
	store := openTestStore(t)
	if err := store.RecordDay(context.Background(), "missing", sampleDay(1)); err == nil {
		t.Fatal("RecordDay accepted a day for an unknown run")
	}
	if err := store.FinishRun(context.Background(), "missing", time.Now(), OutcomeAborted); err == nil {
		t.Fatal("FinishRun accepted an unknown run")
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Fatal("Open accepted an empty path")
	}
}

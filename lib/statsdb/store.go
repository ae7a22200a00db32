// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package statsdb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/postoffice/lib/report"
)

// Outcome values stored in runs.outcome.
const (
	OutcomeRunning   = "running"
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
)

// Config holds the parameters for opening a store.
type Config struct {
	// Path is the database file. It is created if missing; the parent
	// directory must exist.
	Path string

	// PoolSize defaults to 2: the director writes, the status socket
	// may read.
	PoolSize int

	Logger *slog.Logger
}

// Store persists day reports of simulation runs.
type Store struct {
	pool   *sqlitex.Pool
	path   string
	logger *slog.Logger
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID      string
	Digest     string
	StartedAt  time.Time
	FinishedAt time.Time
	Days       int
	Outcome    string
}

// Open opens or creates the store at cfg.Path.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("statsdb: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	size := cfg.PoolSize
	if size <= 0 {
		size = 2
	}
	pool, err := openPool(cfg.Path, size)
	if err != nil {
		return nil, fmt.Errorf("statsdb: opening %s: %w", cfg.Path, err)
	}
	logger.Info("statistics store opened", "path", cfg.Path)
	return &Store{pool: pool, path: cfg.Path, logger: logger}, nil
}

// Close closes every connection. It blocks until borrowed connections
// are returned.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("statsdb: closing %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("statsdb: take: %w", err)
	}
	return conn, nil
}

// BeginRun records the start of a run.
func (s *Store) BeginRun(ctx context.Context, runID, digest string, startedAt time.Time) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO runs (run_id, digest, started_at, outcome) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{runID, digest, startedAt.UnixNano(), OutcomeRunning}})
	if err != nil {
		return fmt.Errorf("statsdb: begin run %s: %w", runID, err)
	}
	return nil
}

// RecordDay stores one day report in a single transaction.
func (s *Store) RecordDay(ctx context.Context, runID string, day report.Day) (err error) {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("statsdb: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn,
		`INSERT INTO days (run_id, day, active_operators, pauses, total_pauses) VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{runID, day.Day, day.ActiveOperators, day.Pauses, day.TotalPauses}})
	if err != nil {
		return fmt.Errorf("statsdb: record day %d: %w", day.Day, err)
	}

	for _, service := range day.Services {
		err = sqlitex.Execute(conn, `
			INSERT INTO service_days (
				run_id, day, service, tickets, served,
				no_service, request_failed, arrived_late, rejected,
				no_ticket, timed_out, not_arrived,
				wait_count, wait_avg, service_count, service_avg
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{
				runID, day.Day, service.Name, service.Tickets, service.Served,
				service.Reasons.NoService, service.Reasons.RequestFailed,
				service.Reasons.ArrivedLate, service.Reasons.Rejected,
				service.NoTicket, service.TimedOut, service.NotArrived,
				service.Wait.Count, int64(service.Wait.Average),
				service.Service.Count, int64(service.Service.Average),
			}})
		if err != nil {
			return fmt.Errorf("statsdb: record service %s of day %d: %w", service.Name, day.Day, err)
		}
	}

	err = sqlitex.Execute(conn, `UPDATE runs SET days = ? WHERE run_id = ?`,
		&sqlitex.ExecOptions{Args: []any{day.Day, runID}})
	if err != nil {
		return fmt.Errorf("statsdb: update run %s: %w", runID, err)
	}
	return nil
}

// FinishRun records how a run ended.
func (s *Store) FinishRun(ctx context.Context, runID string, finishedAt time.Time, outcome string) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `UPDATE runs SET finished_at = ?, outcome = ? WHERE run_id = ?`,
		&sqlitex.ExecOptions{Args: []any{finishedAt.UnixNano(), outcome, runID}})
	if err != nil {
		return fmt.Errorf("statsdb: finish run %s: %w", runID, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("statsdb: finish run %s: no such run", runID)
	}
	return nil
}

// Run returns the runs row of runID.
func (s *Store) Run(ctx context.Context, runID string) (RunRecord, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return RunRecord{}, err
	}
	defer s.pool.Put(conn)

	var record RunRecord
	found := false
	err = sqlitex.Execute(conn,
		`SELECT run_id, digest, started_at, finished_at, days, outcome FROM runs WHERE run_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{runID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				record = RunRecord{
					RunID:     stmt.ColumnText(0),
					Digest:    stmt.ColumnText(1),
					StartedAt: time.Unix(0, stmt.ColumnInt64(2)),
					Days:      stmt.ColumnInt(4),
					Outcome:   stmt.ColumnText(5),
				}
				if stmt.ColumnType(3) != sqlite.TypeNull {
					record.FinishedAt = time.Unix(0, stmt.ColumnInt64(3))
				}
				return nil
			},
		})
	if err != nil {
		return RunRecord{}, fmt.Errorf("statsdb: run %s: %w", runID, err)
	}
	if !found {
		return RunRecord{}, fmt.Errorf("statsdb: run %s not found", runID)
	}
	return record, nil
}

// Days returns the stored day reports of runID in day order. Timing
// figures come back as count and average only.
func (s *Store) Days(ctx context.Context, runID string) ([]report.Day, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var days []report.Day
	err = sqlitex.Execute(conn,
		`SELECT day, active_operators, pauses, total_pauses FROM days WHERE run_id = ? ORDER BY day`,
		&sqlitex.ExecOptions{
			Args: []any{runID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				days = append(days, report.Day{
					Day:             stmt.ColumnInt(0),
					ActiveOperators: stmt.ColumnInt(1),
					Pauses:          stmt.ColumnInt(2),
					TotalPauses:     stmt.ColumnInt(3),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("statsdb: days of %s: %w", runID, err)
	}

	index := make(map[int]int, len(days))
	for position, day := range days {
		index[day.Day] = position
	}
	err = sqlitex.Execute(conn, `
		SELECT day, service, tickets, served,
			no_service, request_failed, arrived_late, rejected,
			no_ticket, timed_out, not_arrived,
			wait_count, wait_avg, service_count, service_avg
		FROM service_days WHERE run_id = ? ORDER BY day, rowid`,
		&sqlitex.ExecOptions{
			Args: []any{runID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				position, exists := index[stmt.ColumnInt(0)]
				if !exists {
					return nil
				}
				service := report.ServiceDay{
					Name:    stmt.ColumnText(1),
					Tickets: stmt.ColumnInt(2),
					Served:  stmt.ColumnInt(3),
					Reasons: report.Reasons{
						NoService:     stmt.ColumnInt(4),
						RequestFailed: stmt.ColumnInt(5),
						ArrivedLate:   stmt.ColumnInt(6),
						Rejected:      stmt.ColumnInt(7),
					},
					NoTicket:   stmt.ColumnInt(8),
					TimedOut:   stmt.ColumnInt(9),
					NotArrived: stmt.ColumnInt(10),
					Wait:       report.Timing{Count: stmt.ColumnInt(11), Average: time.Duration(stmt.ColumnInt64(12))},
					Service:    report.Timing{Count: stmt.ColumnInt(13), Average: time.Duration(stmt.ColumnInt64(14))},
				}
				reasons := service.Reasons
				service.ReturnedHome = reasons.NoService + reasons.RequestFailed + reasons.ArrivedLate + reasons.Rejected
				days[position].Services = append(days[position].Services, service)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("statsdb: service days of %s: %w", runID, err)
	}
	return days, nil
}

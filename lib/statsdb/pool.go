// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package statsdb

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// pragmas applied to every connection. WAL lets the status socket
// read while the director writes; NORMAL synchronous survives a crash
// of the simulation but not of the machine, which is enough for an
// export.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
	"PRAGMA temp_store=MEMORY",
}

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id      TEXT PRIMARY KEY,
		digest      TEXT NOT NULL,
		started_at  INTEGER NOT NULL,
		finished_at INTEGER,
		days        INTEGER NOT NULL DEFAULT 0,
		outcome     TEXT NOT NULL DEFAULT 'running'
	);

	CREATE TABLE IF NOT EXISTS days (
		run_id           TEXT NOT NULL REFERENCES runs(run_id),
		day              INTEGER NOT NULL,
		active_operators INTEGER NOT NULL,
		pauses           INTEGER NOT NULL,
		total_pauses     INTEGER NOT NULL,
		PRIMARY KEY (run_id, day)
	);

	CREATE TABLE IF NOT EXISTS service_days (
		run_id         TEXT NOT NULL,
		day            INTEGER NOT NULL,
		service        TEXT NOT NULL,
		tickets        INTEGER NOT NULL,
		served         INTEGER NOT NULL,
		no_service     INTEGER NOT NULL,
		request_failed INTEGER NOT NULL,
		arrived_late   INTEGER NOT NULL,
		rejected       INTEGER NOT NULL,
		no_ticket      INTEGER NOT NULL,
		timed_out      INTEGER NOT NULL,
		not_arrived    INTEGER NOT NULL,
		wait_count     INTEGER NOT NULL,
		wait_avg       INTEGER NOT NULL,
		service_count  INTEGER NOT NULL,
		service_avg    INTEGER NOT NULL,
		PRIMARY KEY (run_id, day, service),
		FOREIGN KEY (run_id, day) REFERENCES days(run_id, day)
	);
`

func openPool(path string, size int) (*sqlitex.Pool, error) {
	return sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    size,
		PrepareConn: prepareConnection,
	})
}

// prepareConnection runs once per pooled connection, on first use.
func prepareConnection(conn *sqlite.Conn) error {
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("statsdb: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("statsdb: creating schema: %w", err)
	}
	return nil
}

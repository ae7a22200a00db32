// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package statsdb stores simulation results in SQLite.
//
// A run is one row of runs; each completed day adds one row to days
// and one row per service to service_days. The store is optional: the
// director writes to it only when a database path is configured.
//
// Connections come from a zombiezen sqlitex.Pool. Every connection is
// prepared with WAL journaling and a busy timeout, and creates the
// schema if it is missing. Writes of one day share one IMMEDIATE
// transaction.
package statsdb

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package report turns the office statistics into day and run
// summaries, prints them as tables and stores them as compressed CBOR
// archives.
//
// Times are reported both as wall-clock durations and as simulated
// office minutes; see [SimulatedMinutes].
package report

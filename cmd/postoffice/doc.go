// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Postoffice runs the post-office simulation.
//
// The director creates the shared state, starts the ticket issuer,
// the operators and the users, and drives the configured number of
// days, printing a report after each. The configuration comes from
// --config, from $POSTOFFICE_CONFIG, or from a named scenario:
//
//	postoffice timeout
//	postoffice explode
//
// read from --scenario-dir. SIGINT and SIGTERM end the run after
// tearing everything down; SIGUSR1 logs the state of the office.
//
// Exit status is 0 after a complete run, 2 when too many tickets were
// waiting, and 1 for any other failure.
package main

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package director drives a post-office simulation.
//
// The director creates the shared state, spawns the ticket issuer, the
// operators and the users as goroutines, and then plays the days. Each
// day it assigns the counters, releases everyone through the
// day-start rendezvous, keeps the office open for the configured
// duration while watching for an explosion of waiting tickets, closes,
// lets in-flight work settle, waits until every participant has left
// the day, counts unserved tickets as timed out and reports. When the last day is done, or the run is cut short, it
// tells every participant to stop, waits for them and removes the
// shared resources.
package director

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source of the simulation.
//
// Participants never call time.Now, time.After or time.Sleep directly.
// They take a Clock: Real() in the binary, Fake() in tests, where the
// test registers the goroutine's sleep with WaitForPending and then
// steps time with Advance:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
//	go op.serve(ctx)            // sleeps in 50ms slices
//	fake.WaitForPending(1)
//	fake.Advance(50 * time.Millisecond)
//
// Scale converts between wall-clock durations and simulated office
// minutes, following the configured length of the simulated day.
package clock

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds test helpers shared across packages: bounded
// channel receives, polling on shared state, and a socket directory
// short enough for unix socket paths.
//
// The helpers call t.Fatalf instead of returning errors; a failed
// setup step is never recoverable.
package testutil

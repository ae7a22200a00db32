// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package runstate keeps a small JSON marker on disk while a
// simulation runs.
//
// The marker is written when the run starts and after every day. A
// clean run removes it; an aborted run leaves it with phase "aborted"
// and the reason. A marker still saying "running" at the next start
// means the previous process died without tearing down, which the
// binary reports before starting over.
//
// Writes go to a temporary file that is fsynced and renamed into
// place, so a reader never sees a partial marker.
package runstate

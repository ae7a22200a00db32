// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package runstate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/postoffice/lib/clock"
)

var epoch = time.Date(2026, 2, 10, 15, 30, 0, 0, time.UTC)

func TestMarkerLifecycle(t *testing.T) {
	dir := t.TempDir()
	fake := clock.Fake(epoch)

	marker, err := Begin(dir, fake, State{RunID: "run-1", Digest: "abc", Days: 3})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	got, err := Read(marker.Path())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Phase != PhaseRunning || got.RunID != "run-1" || got.PID != os.Getpid() || !got.StartedAt.Equal(epoch) {
		t.Fatalf("after Begin: %+v", got)
	}

	fake.Advance(5 * time.Second)
	if err := marker.Advance(1); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	got, _ = Read(marker.Path())
	if got.Day != 1 || !got.UpdatedAt.Equal(epoch.Add(5*time.Second)) {
		t.Fatalf("after Advance: day %d updated %v", got.Day, got.UpdatedAt)
	}

	if err := marker.Complete(); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := Read(marker.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Read after Complete: %v, want ErrNotExist", err)
	}
	if _, err := os.Stat(marker.Path() + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temporary file left behind: %v", err)
	}
}

func TestAbortLeavesMarker(t *testing.T) {
	dir := t.TempDir()
	fake := clock.Fake(epoch)
	marker, err := Begin(dir, fake, State{RunID: "run-2", Days: 5})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	marker.Advance(2)
	if err := marker.Abort("explosion"); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	state, found, err := Leftover(dir, epoch.Add(time.Minute), time.Hour)
	if err != nil || !found {
		t.Fatalf("Leftover = %v, %v; want a marker", found, err)
	}
	if state.Phase != PhaseAborted || state.Reason != "explosion" || state.Day != 2 {
		t.Fatalf("Leftover state = %+v", state)
	}
}

func TestLeftoverIgnoresStaleAndMissing(t *testing.T) {
	dir := t.TempDir()
	if _, found, err := Leftover(dir, epoch, time.Hour); found || err != nil {
		t.Fatalf("Leftover on empty dir = %v, %v; want false, nil", found, err)
	}

	if _, err := Begin(dir, clock.Fake(epoch), State{RunID: "old"}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, found, err := Leftover(dir, epoch.Add(2*time.Hour), time.Hour); found || err != nil {
		t.Fatalf("Leftover on stale marker = %v, %v; want false, nil", found, err)
	}
}

func TestLeftoverCorrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Leftover(dir, epoch, time.Hour); err == nil {
		t.Fatal("Leftover accepted a corrupt marker")
	}
}

func TestClearIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := Clear(path); err != nil {
		t.Fatalf("Clear on missing file: %v", err)
	}
}

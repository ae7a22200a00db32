// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfoUsesInjectedCommit(t *testing.T) {
	savedCommit, savedDirty, savedTime := GitCommit, GitDirty, BuildTime
	t.Cleanup(func() { GitCommit, GitDirty, BuildTime = savedCommit, savedDirty, savedTime })

	GitCommit, GitDirty, BuildTime = "abc1234", "true", "2026-03-01T09:00:00Z"
	want := Version + " (abc1234-dirty, 2026-03-01T09:00:00Z)"
	if got := Info(); got != want {
		t.Fatalf("Info() = %q, want %q", got, want)
	}
}

func TestFullIncludesRuntime(t *testing.T) {
	full := Full()
	if !strings.HasPrefix(full, Info()) || !strings.Contains(full, runtime.Version()) {
		t.Fatalf("Full() = %q", full)
	}
}

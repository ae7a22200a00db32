// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/postoffice/lib/office"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.WorkDayMinutes() != 480 {
		t.Fatalf("WorkDayMinutes() = %d, want 480", cfg.WorkDayMinutes())
	}
	// Ten simulated minutes of packages in a five-second day.
	want := 5 * time.Second * 10 / 480
	if got := cfg.BaseServiceTime(0); got < want-time.Microsecond || got > want+time.Microsecond {
		t.Fatalf("BaseServiceTime(0) = %v, want about %v", got, want)
	}
}

func TestLoadFileKeyValue(t *testing.T) {
	path := writeFile(t, "timeout.conf", `
# short run
NOF_WORKERS=2
NOF_USERS = 5
DAY_SIMULATION_TIME=2
SIM_DURATION=1
BREAK_PROBABILITY=10
GRACE_PERIOD_MS=250
UNKNOWN_KEY=17
this line has no assignment
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Operators != 2 || cfg.Users != 5 || cfg.Days != 1 || cfg.BreakProbability != 10 {
		t.Fatalf("parsed %+v", cfg)
	}
	if cfg.DayDuration != 2*time.Second {
		t.Fatalf("DayDuration = %v, want 2s", cfg.DayDuration)
	}
	if cfg.GracePeriod != 250*time.Millisecond {
		t.Fatalf("GracePeriod = %v, want 250ms", cfg.GracePeriod)
	}
	if cfg.Counters != 8 {
		t.Fatalf("Counters = %d, want the default 8", cfg.Counters)
	}
}

func TestLoadFileClampsLimits(t *testing.T) {
	path := writeFile(t, "big.conf", "NOF_WORKERS=5000\nNOF_USERS=99999\nNOF_WORKER_SEATS=1000\nSIM_DURATION=40\n")
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Operators != MaxOperators || cfg.Users != MaxUsers || cfg.Counters != MaxCounters || cfg.Days != MaxDays {
		t.Fatalf("limits not clamped: %d operators, %d users, %d counters, %d days",
			cfg.Operators, cfg.Users, cfg.Counters, cfg.Days)
	}
}

func TestLoadFileRejectsBadValue(t *testing.T) {
	path := writeFile(t, "bad.conf", "NOF_USERS=many\n")
	if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Fatalf("LoadFile = %v, want an error naming line 1", err)
	}
}

func TestLoadFileRejectsInconsistentValues(t *testing.T) {
	path := writeFile(t, "range.conf", "P_SERV_MIN=90\nP_SERV_MAX=40\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("LoadFile accepted min > max visit probability")
	}
}

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.conf"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Digest() != Default().Digest() {
		t.Fatal("missing file did not yield the defaults")
	}
}

func TestLoadFileYAML(t *testing.T) {
	path := writeFile(t, "office.yaml", `
operators: 2
users: 5
counters: 2
day_duration: 2s
days: 1
services:
  - {name: alpha, prefix: A, minutes: 10}
  - {name: beta, prefix: B, minutes: 8}
operator_services: [0, 1]
counter_services: [0, 1]
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(cfg.Services) != 2 || cfg.Services[1].Prefix != "B" {
		t.Fatalf("Services = %+v", cfg.Services)
	}
	if cfg.DayDuration != 2*time.Second {
		t.Fatalf("DayDuration = %v, want 2s", cfg.DayDuration)
	}
	if got := cfg.CounterServices; len(got) != 2 || got[1] != office.ServiceID(1) {
		t.Fatalf("CounterServices = %v", got)
	}
}

func TestLoadFileYAMLRejectsUnknownPin(t *testing.T) {
	path := writeFile(t, "office.yml", "operator_services: [7]\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("LoadFile accepted an operator pinned to an unknown service")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	path := writeFile(t, "env.conf", "NOF_USERS=12\n")
	t.Setenv(EnvVar, path)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Users != 12 {
		t.Fatalf("Users = %d, want 12", cfg.Users)
	}

	t.Setenv(EnvVar, "")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Users != 150 {
		t.Fatalf("Users = %d, want the default 150", cfg.Users)
	}
}

func TestDigestChangesWithParameters(t *testing.T) {
	first := Default()
	second := Default()
	if first.Digest() != second.Digest() {
		t.Fatal("equal configurations have different digests")
	}
	second.Users++
	if first.Digest() == second.Digest() {
		t.Fatal("different configurations share a digest")
	}
	if len(first.Digest()) != 64 {
		t.Fatalf("digest length = %d, want 64 hex characters", len(first.Digest()))
	}
}

func TestProfilePath(t *testing.T) {
	path, err := ProfilePath("/etc/postoffice", "explode")
	if err != nil {
		t.Fatalf("ProfilePath: %v", err)
	}
	if path != "/etc/postoffice/explode.conf" {
		t.Fatalf("ProfilePath = %q", path)
	}
	if _, err := ProfilePath("/etc/postoffice", "lunch"); err == nil {
		t.Fatal("ProfilePath accepted an unknown scenario")
	}
}

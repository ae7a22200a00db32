// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package runstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/postoffice/lib/clock"
)

// FileName is the marker's name inside the state directory.
const FileName = "postoffice.run.json"

// Phase is where a run stands.
type Phase string

const (
	PhaseRunning Phase = "running"
	PhaseAborted Phase = "aborted"
)

// State is the content of the marker.
type State struct {
	RunID  string `json:"run_id"`
	Digest string `json:"digest"`
	PID    int    `json:"pid"`
	Phase  Phase  `json:"phase"`

	// Day is the last completed day, out of Days.
	Day  int `json:"day"`
	Days int `json:"days"`

	// Reason says why an aborted run stopped.
	Reason string `json:"reason,omitempty"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Marker keeps the state file of the current run up to date.
type Marker struct {
	path  string
	clock clock.Clock
	state State
}

// Begin writes the marker for a new run in dir.
func Begin(dir string, clk clock.Clock, state State) (*Marker, error) {
	now := clk.Now()
	state.Phase = PhaseRunning
	state.PID = os.Getpid()
	state.StartedAt = now
	state.UpdatedAt = now
	marker := &Marker{path: filepath.Join(dir, FileName), clock: clk, state: state}
	if err := Write(marker.path, marker.state); err != nil {
		return nil, err
	}
	return marker, nil
}

// Path returns the marker file path.
func (m *Marker) Path() string { return m.path }

// State returns the last written state.
func (m *Marker) State() State { return m.state }

// Advance records a completed day.
func (m *Marker) Advance(day int) error {
	m.state.Day = day
	m.state.UpdatedAt = m.clock.Now()
	return Write(m.path, m.state)
}

// Abort leaves the marker behind with the reason the run stopped.
func (m *Marker) Abort(reason string) error {
	m.state.Phase = PhaseAborted
	m.state.Reason = reason
	m.state.UpdatedAt = m.clock.Now()
	return Write(m.path, m.state)
}

// Complete removes the marker.
func (m *Marker) Complete() error { return Clear(m.path) }

// Write atomically replaces the state file at path: temporary file,
// fsync, rename, then fsync of the directory.
func Write(path string, state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run state: %w", err)
	}
	data = append(data, '\n')

	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating temporary run state file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary run state file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary run state file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary run state file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming run state file into place: %w", err)
	}

	if parent, err := os.Open(filepath.Dir(path)); err == nil {
		parent.Sync()
		parent.Close()
	}
	return nil
}

// Read parses the state file at path. A missing file yields an error
// wrapping os.ErrNotExist.
func Read(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parsing run state file %s: %w", path, err)
	}
	return state, nil
}

// Leftover reports the marker a previous run left in dir, if any.
// Markers older than maxAge are ignored.
func Leftover(dir string, now time.Time, maxAge time.Duration) (State, bool, error) {
	state, err := Read(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, false, nil
		}
		return State{}, false, err
	}
	if now.Sub(state.UpdatedAt) > maxAge {
		return State{}, false, nil
	}
	return state, true, nil
}

// Clear removes the state file at path. A missing file is not an
// error.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing run state file: %w", err)
	}
	return nil
}

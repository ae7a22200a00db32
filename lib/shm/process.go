// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shm

import (
	"time"

	"github.com/bureau-foundation/postoffice/lib/office"
)

// Process is one row of the process table.
type Process struct {
	ID    office.ProcessID
	Kind  office.Kind
	Index int

	// Day and PassedAt record the last day-start rendezvous the
	// participant passed.
	Day      int
	PassedAt time.Time

	// LeftDay and LeftAt record the last day the participant
	// finished.
	LeftDay int
	LeftAt  time.Time
}

// ProcessTable lists every participant. Ids are assigned when the
// director spawns them and never change.
type ProcessTable struct {
	Issuer    office.ProcessID
	Operators []office.ProcessID
	Users     []office.ProcessID

	rows   map[office.ProcessID]*Process
	nextID office.ProcessID

	// ReleasedAt is when the director last released the rendezvous.
	ReleasedAt time.Time
}

func newProcessTable(operators, users int) ProcessTable {
	return ProcessTable{
		Operators: make([]office.ProcessID, operators),
		Users:     make([]office.ProcessID, users),
		rows:      make(map[office.ProcessID]*Process),
		nextID:    1,
	}
}

// Spawn assigns an id to a new participant and records it.
func (t *ProcessTable) Spawn(kind office.Kind, index int) office.ProcessID {
	id := t.nextID
	t.nextID++
	t.rows[id] = &Process{ID: id, Kind: kind, Index: index}
	switch kind {
	case office.KindIssuer:
		t.Issuer = id
	case office.KindOperator:
		t.Operators[index] = id
	case office.KindUser:
		t.Users[index] = id
	}
	return id
}

// Passed records that id passed the rendezvous of day at the given
// time.
func (t *ProcessTable) Passed(id office.ProcessID, day int, at time.Time) {
	if row, exists := t.rows[id]; exists {
		row.Day = day
		row.PassedAt = at
	}
}

// Left records that id finished day at the given time.
func (t *ProcessTable) Left(id office.ProcessID, day int, at time.Time) {
	if row, exists := t.rows[id]; exists {
		row.LeftDay = day
		row.LeftAt = at
	}
}

// Lookup returns a copy of the row for id.
func (t *ProcessTable) Lookup(id office.ProcessID) (Process, bool) {
	row, exists := t.rows[id]
	if !exists {
		return Process{}, false
	}
	return *row, true
}

// All returns a copy of every row.
func (t *ProcessTable) All() []Process {
	rows := make([]Process, 0, len(t.rows))
	for _, row := range t.rows {
		rows = append(rows, *row)
	}
	return rows
}

// Participants is the number of participants that take part in the
// day-start rendezvous.
func (t *ProcessTable) Participants() int { return len(t.rows) }

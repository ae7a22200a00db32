// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shm

import (
	"github.com/bureau-foundation/postoffice/lib/office"
)

// Counter is one service position.
type Counter struct {
	Active      bool
	Service     office.ServiceID
	Operator    office.ProcessID
	Served      int
	TotalServed int
}

// Bound reports whether an operator sits at the counter.
func (c Counter) Bound() bool { return c.Operator != 0 }

// Operator is the record of one operator participant. Service is fixed
// for the operator's lifetime; Status and Counter change under the
// counters mutex.
type Operator struct {
	ID          office.ProcessID
	Service     office.ServiceID
	Status      office.OperatorStatus
	Counter     int
	DailyServed int
	DailyPauses int
	TotalServed int
	TotalPauses int
}

// Desk is the view of counters and operator records. Binding a counter
// and changing the operator's status always happen together through
// it.
type Desk struct {
	region *Region
}

// Counters returns a copy of every counter.
func (d *Desk) Counters() []Counter {
	return append([]Counter(nil), d.region.counters...)
}

// Operators returns a copy of every operator record.
func (d *Desk) Operators() []Operator {
	return append([]Operator(nil), d.region.operators...)
}

// Counter returns counter index for mutation.
func (d *Desk) Counter(index int) *Counter { return &d.region.counters[index] }

// Operator returns operator record index for mutation.
func (d *Desk) Operator(index int) *Operator { return &d.region.operators[index] }

// OperatorByID returns the operator record of id, or nil.
func (d *Desk) OperatorByID(id office.ProcessID) *Operator {
	for index := range d.region.operators {
		if d.region.operators[index].ID == id {
			return &d.region.operators[index]
		}
	}
	return nil
}

// CounterOf returns the index of the counter bound to id, or
// NoCounter.
func (d *Desk) CounterOf(id office.ProcessID) int {
	for index, counter := range d.region.counters {
		if counter.Operator == id {
			return index
		}
	}
	return NoCounter
}

// FreeCounter returns the first active, unbound counter serving
// service, or NoCounter.
func (d *Desk) FreeCounter(service office.ServiceID) int {
	for index, counter := range d.region.counters {
		if counter.Active && counter.Service == service && !counter.Bound() {
			return index
		}
	}
	return NoCounter
}

// Bind seats operator at counter and marks it Working.
func (d *Desk) Bind(counter int, operator *Operator) {
	d.region.counters[counter].Operator = operator.ID
	operator.Counter = counter
	operator.Status = office.OperatorWorking
}

// Unbind frees the operator's counter, if any, and gives the operator
// status.
func (d *Desk) Unbind(operator *Operator, status office.OperatorStatus) {
	if operator.Counter != NoCounter && d.region.counters[operator.Counter].Operator == operator.ID {
		d.region.counters[operator.Counter].Operator = 0
	}
	operator.Counter = NoCounter
	operator.Status = status
}

// Available reports whether service has an active counter with an
// operator seated at it.
func (d *Desk) Available(service office.ServiceID) bool {
	for _, counter := range d.region.counters {
		if !counter.Active || counter.Service != service || !counter.Bound() {
			continue
		}
		if d.OperatorByID(counter.Operator) != nil {
			return true
		}
	}
	return false
}

// WorkingOn returns the ids of operators Working on service.
func (d *Desk) WorkingOn(service office.ServiceID) []office.ProcessID {
	var ids []office.ProcessID
	for _, operator := range d.region.operators {
		if operator.Status == office.OperatorWorking && operator.Service == service {
			ids = append(ids, operator.ID)
		}
	}
	return ids
}

// HandOver seats the first Waiting operator of the counter's service
// at counter and returns its id, or 0 when nobody is waiting.
func (d *Desk) HandOver(counter int) office.ProcessID {
	target := d.region.counters[counter]
	if !target.Active || target.Bound() {
		return 0
	}
	for index := range d.region.operators {
		operator := &d.region.operators[index]
		if operator.Status == office.OperatorWaiting && operator.Service == target.Service && operator.Counter == NoCounter {
			d.Bind(counter, operator)
			return operator.ID
		}
	}
	return 0
}

// ResetDaily zeroes the per-day operator and counter figures.
func (d *Desk) ResetDaily() {
	for index := range d.region.operators {
		d.region.operators[index].DailyServed = 0
		d.region.operators[index].DailyPauses = 0
	}
	for index := range d.region.counters {
		d.region.counters[index].Served = 0
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shm

import (
	"time"

	"github.com/bureau-foundation/postoffice/lib/office"
)

// Durations accumulates min, max, total and count of a set of
// durations. The zero value is empty.
type Durations struct {
	Min   time.Duration `cbor:"min"`
	Max   time.Duration `cbor:"max"`
	Total time.Duration `cbor:"total"`
	Count int           `cbor:"count"`
}

// Add records one duration.
func (d *Durations) Add(value time.Duration) {
	if d.Count == 0 || value < d.Min {
		d.Min = value
	}
	if value > d.Max {
		d.Max = value
	}
	d.Total += value
	d.Count++
}

// Merge folds other into d.
func (d *Durations) Merge(other Durations) {
	if other.Count == 0 {
		return
	}
	if d.Count == 0 || other.Min < d.Min {
		d.Min = other.Min
	}
	d.Max = max(d.Max, other.Max)
	d.Total += other.Total
	d.Count += other.Count
}

// Average returns Total / Count, or zero when empty.
func (d Durations) Average() time.Duration {
	if d.Count == 0 {
		return 0
	}
	return d.Total / time.Duration(d.Count)
}

// ServiceTally counts what happened to the users of one service.
type ServiceTally struct {
	Tickets    int                         `cbor:"tickets"`
	Served     int                         `cbor:"served"`
	NoTicket   int                         `cbor:"no_ticket"`
	TimedOut   int                         `cbor:"timed_out"`
	NotArrived int                         `cbor:"not_arrived"`
	Home       [office.HomeReasonCount]int `cbor:"home"`
	Wait       Durations                   `cbor:"wait"`
	Service    Durations                   `cbor:"service"`
}

// ReturnedHome is the number of users sent home for any reason.
func (t ServiceTally) ReturnedHome() int {
	total := 0
	for _, count := range t.Home {
		total += count
	}
	return total
}

// Users is the number of users accounted for: every user ends the day
// in exactly one of these outcomes.
func (t ServiceTally) Users() int {
	return t.Served + t.ReturnedHome() + t.NoTicket + t.TimedOut + t.NotArrived
}

// Merge folds other into t.
func (t *ServiceTally) Merge(other ServiceTally) {
	t.Tickets += other.Tickets
	t.Served += other.Served
	t.NoTicket += other.NoTicket
	t.TimedOut += other.TimedOut
	t.NotArrived += other.NotArrived
	for reason := range t.Home {
		t.Home[reason] += other.Home[reason]
	}
	t.Wait.Merge(other.Wait)
	t.Service.Merge(other.Service)
}

// Tally is a per-service breakdown plus the pause count.
type Tally struct {
	Services []ServiceTally `cbor:"services"`
	Pauses   int            `cbor:"pauses"`
}

func newTally(services int) Tally {
	return Tally{Services: make([]ServiceTally, services)}
}

// Overall sums the per-service tallies.
func (t Tally) Overall() ServiceTally {
	var overall ServiceTally
	for _, service := range t.Services {
		overall.Merge(service)
	}
	return overall
}

// Clone returns a deep copy.
func (t Tally) Clone() Tally {
	clone := t
	clone.Services = append([]ServiceTally(nil), t.Services...)
	return clone
}

// Stats holds today's figures and the figures since the start of the
// simulation. Daily figures are zeroed every day; cumulative figures
// are never reset.
type Stats struct {
	Daily Tally
	Total Tally
}

func newStats(services int) Stats {
	return Stats{Daily: newTally(services), Total: newTally(services)}
}

// StatsView is the view of statistics and the process table.
type StatsView struct {
	region *Region
}

// Record applies fn to the daily and the cumulative tally of service.
func (v *StatsView) Record(service office.ServiceID, fn func(*ServiceTally)) {
	fn(&v.region.stats.Daily.Services[service])
	fn(&v.region.stats.Total.Services[service])
}

// Pause counts one operator break, today and in total.
func (v *StatsView) Pause() {
	v.region.stats.Daily.Pauses++
	v.region.stats.Total.Pauses++
}

// TotalPauses returns the breaks taken since the start.
func (v *StatsView) TotalPauses() int { return v.region.stats.Total.Pauses }

// Daily returns a copy of today's tally.
func (v *StatsView) Daily() Tally { return v.region.stats.Daily.Clone() }

// Total returns a copy of the cumulative tally.
func (v *StatsView) Total() Tally { return v.region.stats.Total.Clone() }

// ResetDaily zeroes today's tally.
func (v *StatsView) ResetDaily() {
	v.region.stats.Daily = newTally(len(v.region.stats.Daily.Services))
}

// Processes returns the process table.
func (v *StatsView) Processes() *ProcessTable { return &v.region.processes }

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"time"

	"github.com/bureau-foundation/postoffice/lib/clock"
	"github.com/bureau-foundation/postoffice/lib/office"
	"github.com/bureau-foundation/postoffice/lib/shm"
)

// Reasons breaks the users sent home down by reason.
type Reasons struct {
	NoService     int `cbor:"no_service"`
	RequestFailed int `cbor:"request_failed"`
	ArrivedLate   int `cbor:"arrived_late"`
	Rejected      int `cbor:"rejected"`
}

// Timing summarizes a set of durations in wall-clock time and in
// simulated minutes.
type Timing struct {
	Count   int           `cbor:"count"`
	Min     time.Duration `cbor:"min"`
	Max     time.Duration `cbor:"max"`
	Average time.Duration `cbor:"average"`

	MinMinutes     float64 `cbor:"min_minutes"`
	MaxMinutes     float64 `cbor:"max_minutes"`
	AverageMinutes float64 `cbor:"average_minutes"`
}

// ServiceDay is the outcome of the users of one service, or of all
// services together.
type ServiceDay struct {
	Name         string  `cbor:"name"`
	Tickets      int     `cbor:"tickets"`
	Served       int     `cbor:"served"`
	ReturnedHome int     `cbor:"returned_home"`
	Reasons      Reasons `cbor:"reasons"`
	NoTicket     int     `cbor:"no_ticket"`
	TimedOut     int     `cbor:"timed_out"`
	NotArrived   int     `cbor:"not_arrived"`
	Wait         Timing  `cbor:"wait"`
	Service      Timing  `cbor:"service"`
}

// Users is the number of users the figures account for.
func (s ServiceDay) Users() int {
	return s.Served + s.ReturnedHome + s.NoTicket + s.TimedOut + s.NotArrived
}

// NotServed is every user who did not get served: sent home, no
// ticket or timed out.
func (s ServiceDay) NotServed() int {
	return s.ReturnedHome + s.NoTicket + s.TimedOut
}

// Staffing is how one service was manned on a day.
type Staffing struct {
	Service   string  `cbor:"service"`
	Counters  int     `cbor:"counters"`
	Operators int     `cbor:"operators"`
	Active    int     `cbor:"active"`
	Ratio     float64 `cbor:"ratio"`
}

// Day is the report of one simulated day.
type Day struct {
	Day        int          `cbor:"day"`
	Services   []ServiceDay `cbor:"services"`
	Overall    ServiceDay   `cbor:"overall"`
	Cumulative ServiceDay   `cbor:"cumulative"`
	Staffing   []Staffing   `cbor:"staffing"`

	// ActiveOperators counts operators who served at least one ticket.
	ActiveOperators int `cbor:"active_operators"`
	Pauses          int `cbor:"pauses"`
	TotalPauses     int `cbor:"total_pauses"`
}

// Run is the report of a whole simulation.
type Run struct {
	RunID      string       `cbor:"run_id"`
	Digest     string       `cbor:"digest"`
	StartedAt  time.Time    `cbor:"started_at"`
	FinishedAt time.Time    `cbor:"finished_at"`
	Days       []Day        `cbor:"days"`
	Services   []ServiceDay `cbor:"services"`
	Overall    ServiceDay   `cbor:"overall"`
	Pauses     int          `cbor:"pauses"`

	// Aborted is set when the run ended early; Reason says why.
	Aborted bool   `cbor:"aborted"`
	Reason  string `cbor:"reason,omitempty"`
}

// PerDay divides n by the number of completed days.
func (r Run) PerDay(n int) float64 {
	if len(r.Days) == 0 {
		return 0
	}
	return float64(n) / float64(len(r.Days))
}

// Inputs is what Build reads from the shared region at the end of a
// day.
type Inputs struct {
	Day       int
	Catalog   office.Catalog
	Scale     clock.Scale
	Daily     shm.Tally
	Total     shm.Tally
	Counters  []shm.Counter
	Operators []shm.Operator
}

// Build summarizes one day.
func Build(in Inputs) Day {
	day := Day{
		Day:         in.Day,
		Services:    make([]ServiceDay, len(in.Catalog)),
		Staffing:    make([]Staffing, len(in.Catalog)),
		Pauses:      in.Daily.Pauses,
		TotalPauses: in.Total.Pauses,
	}
	for index, service := range in.Catalog {
		day.Services[index] = summarize(service.Name, in.Daily.Services[index], in.Scale)
		day.Staffing[index].Service = service.Name
	}
	day.Overall = summarize("overall", in.Daily.Overall(), in.Scale)
	day.Cumulative = summarize("cumulative", in.Total.Overall(), in.Scale)

	for _, counter := range in.Counters {
		if counter.Active && in.Catalog.Valid(counter.Service) {
			day.Staffing[counter.Service].Counters++
		}
	}
	for _, operator := range in.Operators {
		if !in.Catalog.Valid(operator.Service) {
			continue
		}
		staffing := &day.Staffing[operator.Service]
		staffing.Operators++
		if operator.DailyServed > 0 {
			staffing.Active++
			day.ActiveOperators++
		}
	}
	for index := range day.Staffing {
		if counters := day.Staffing[index].Counters; counters > 0 {
			day.Staffing[index].Ratio = float64(day.Staffing[index].Operators) / float64(counters)
		}
	}
	return day
}

// Finish builds the run summary from the cumulative tally and the
// days reported so far.
func Finish(run Run, catalog office.Catalog, scale clock.Scale, total shm.Tally) Run {
	run.Services = make([]ServiceDay, len(catalog))
	for index, service := range catalog {
		run.Services[index] = summarize(service.Name, total.Services[index], scale)
	}
	run.Overall = summarize("overall", total.Overall(), scale)
	run.Pauses = total.Pauses
	return run
}

func summarize(name string, tally shm.ServiceTally, scale clock.Scale) ServiceDay {
	return ServiceDay{
		Name:         name,
		Tickets:      tally.Tickets,
		Served:       tally.Served,
		ReturnedHome: tally.ReturnedHome(),
		Reasons: Reasons{
			NoService:     tally.Home[office.HomeNoService],
			RequestFailed: tally.Home[office.HomeRequestFailed],
			ArrivedLate:   tally.Home[office.HomeArrivedLate],
			Rejected:      tally.Home[office.HomeRejected],
		},
		NoTicket:   tally.NoTicket,
		TimedOut:   tally.TimedOut,
		NotArrived: tally.NotArrived,
		Wait:       timing(tally.Wait, scale),
		Service:    timing(tally.Service, scale),
	}
}

func timing(d shm.Durations, scale clock.Scale) Timing {
	average := d.Average()
	return Timing{
		Count:          d.Count,
		Min:            d.Min,
		Max:            d.Max,
		Average:        average,
		MinMinutes:     SimulatedMinutes(d.Min, scale),
		MaxMinutes:     SimulatedMinutes(d.Max, scale),
		AverageMinutes: SimulatedMinutes(average, scale),
	}
}

// SimulatedMinutes converts wall-clock time to simulated office
// minutes: (seconds / day seconds) × work-day minutes.
func SimulatedMinutes(d time.Duration, scale clock.Scale) float64 {
	return scale.Simulated(d)
}

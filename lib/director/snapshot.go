// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package director

import (
	"context"

	"github.com/bureau-foundation/postoffice/lib/office"
	"github.com/bureau-foundation/postoffice/lib/sem"
	"github.com/bureau-foundation/postoffice/lib/shm"
)

// Snapshot is a point-in-time view of a running simulation.
type Snapshot struct {
	RunID         string          `cbor:"run_id"`
	Day           int             `cbor:"day"`
	DayInProgress bool            `cbor:"day_in_progress"`
	Terminating   bool            `cbor:"terminating"`
	DaysCompleted int             `cbor:"days_completed"`
	TicketReady   int             `cbor:"ticket_ready"`
	Queues        []QueueState    `cbor:"queues"`
	Counters      []CounterState  `cbor:"counters"`
	Operators     []OperatorState `cbor:"operators"`
}

// QueueState is one service queue.
type QueueState struct {
	Service    string `cbor:"service"`
	Waiting    int    `cbor:"waiting"`
	NextTicket int    `cbor:"next_ticket"`
}

// CounterState is one counter and who sits at it.
type CounterState struct {
	Active   bool             `cbor:"active"`
	Service  string           `cbor:"service"`
	Operator office.ProcessID `cbor:"operator"`
	Served   int              `cbor:"served"`
}

// OperatorState is one operator's record.
type OperatorState struct {
	ID          office.ProcessID `cbor:"id"`
	Service     string           `cbor:"service"`
	Status      string           `cbor:"status"`
	Counter     int              `cbor:"counter"`
	DailyServed int              `cbor:"daily_served"`
	TotalPauses int              `cbor:"total_pauses"`
}

// Snapshot reads the current state. It takes each lock in turn, so
// the parts are individually consistent but not taken at one instant.
func (d *Director) Snapshot(ctx context.Context) (Snapshot, error) {
	region := d.handles.Region
	snapshot := Snapshot{
		RunID:         d.opts.RunID,
		Day:           region.Day(),
		DayInProgress: region.DayInProgress(),
		Terminating:   region.Terminating(),
		DaysCompleted: len(d.History()),
		TicketReady:   d.handles.Sems.Value(sem.TicketReady),
	}

	catalog := region.Catalog()
	for service := range catalog {
		state := QueueState{Service: catalog[service].Name}
		if err := d.handles.WithQueue(ctx, office.ServiceID(service), func(queue *shm.Queue) {
			state.Waiting = queue.Waiting()
			state.NextTicket = queue.NextNumber()
		}); err != nil {
			return Snapshot{}, err
		}
		snapshot.Queues = append(snapshot.Queues, state)
	}

	err := d.handles.WithDesk(ctx, func(desk *shm.Desk) {
		for _, counter := range desk.Counters() {
			snapshot.Counters = append(snapshot.Counters, CounterState{
				Active:   counter.Active,
				Service:  serviceName(catalog, counter.Service),
				Operator: counter.Operator,
				Served:   counter.Served,
			})
		}
		for _, operator := range desk.Operators() {
			snapshot.Operators = append(snapshot.Operators, OperatorState{
				ID:          operator.ID,
				Service:     serviceName(catalog, operator.Service),
				Status:      operator.Status.String(),
				Counter:     operator.Counter,
				DailyServed: operator.DailyServed,
				TotalPauses: operator.TotalPauses,
			})
		}
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}

func serviceName(catalog office.Catalog, service office.ServiceID) string {
	if !catalog.Valid(service) {
		return ""
	}
	return catalog[service].Name
}

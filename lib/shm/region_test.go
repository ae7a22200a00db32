// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shm

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/postoffice/lib/office"
	"github.com/bureau-foundation/postoffice/lib/sem"
)

var morning = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func twoServices() office.Catalog {
	return office.Catalog{
		{Name: "alpha", Prefix: "A", Minutes: 10},
		{Name: "beta", Prefix: "B", Minutes: 8},
	}
}

func newTestRegion(t *testing.T, layout Layout) (*Region, *sem.Set) {
	t.Helper()
	if layout.Catalog == nil {
		layout.Catalog = twoServices()
	}
	if layout.Requests == 0 {
		layout.Requests = 64
	}
	if layout.QueueCapacity == 0 {
		layout.QueueCapacity = 16
	}
	region, err := New(layout)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return region, sem.NewSet(len(layout.Catalog))
}

func lock(t *testing.T, set *sem.Set, index sem.Index) *sem.Guard {
	t.Helper()
	guard, err := set.Lock(context.Background(), index)
	if err != nil {
		t.Fatalf("Lock(%v): %v", index, err)
	}
	return guard
}

func TestViewRequiresMatchingGuard(t *testing.T) {
	region, set := newTestRegion(t, Layout{})
	guard := lock(t, set, sem.ServiceLock(0))
	defer guard.Unlock()

	defer func() {
		if recover() == nil {
			t.Fatal("Queue(1) with the service 0 lock did not panic")
		}
	}()
	region.Queue(guard, 1)
}

func TestViewRejectsReleasedGuard(t *testing.T) {
	region, set := newTestRegion(t, Layout{})
	guard := lock(t, set, sem.Mutex)
	guard.Unlock()

	defer func() {
		if recover() == nil {
			t.Fatal("Stats with a released guard did not panic")
		}
	}()
	region.Stats(guard)
}

func TestQueueWaitingMatchesLiveIndices(t *testing.T) {
	region, set := newTestRegion(t, Layout{QueueCapacity: 8, Requests: 8})
	const service = office.ServiceID(1)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inFlight = make(map[int]bool)
	)
	// Producers push distinct indices, consumers pop them. Every
	// operation checks the ring against the set of indices that are
	// known to be queued.
	for worker := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(uint64(worker), 7))
			for range 2000 {
				guard, err := set.Lock(context.Background(), sem.ServiceLock(service))
				if err != nil {
					t.Errorf("Lock: %v", err)
					return
				}
				queue := region.Queue(guard, service)
				if rng.IntN(2) == 0 {
					index := rng.IntN(1 << 20)
					mu.Lock()
					duplicate := inFlight[index]
					mu.Unlock()
					if !duplicate && queue.Push(index) == nil {
						mu.Lock()
						inFlight[index] = true
						mu.Unlock()
					}
				} else if index, ok := queue.Pop(); ok {
					mu.Lock()
					if !inFlight[index] {
						t.Errorf("popped index %d that was not queued", index)
					}
					delete(inFlight, index)
					mu.Unlock()
				}
				mu.Lock()
				live := len(inFlight)
				mu.Unlock()
				if queue.Waiting() != live {
					t.Errorf("Waiting() = %d, live indices = %d", queue.Waiting(), live)
				}
				if !queue.Consistent() {
					t.Error("ring counters inconsistent")
				}
				guard.Unlock()
			}
		}()
	}
	wg.Wait()

	guard := lock(t, set, sem.ServiceLock(service))
	defer guard.Unlock()
	queue := region.Queue(guard, service)
	seen := make(map[int]bool)
	for _, index := range queue.Indices() {
		if seen[index] {
			t.Fatalf("index %d queued twice", index)
		}
		seen[index] = true
		if !inFlight[index] {
			t.Fatalf("index %d queued but not live", index)
		}
	}
	if len(seen) != len(inFlight) {
		t.Fatalf("queued %d indices, want %d", len(seen), len(inFlight))
	}
}

func TestQueueFull(t *testing.T) {
	region, set := newTestRegion(t, Layout{QueueCapacity: 2})
	guard := lock(t, set, sem.ServiceLock(0))
	defer guard.Unlock()
	queue := region.Queue(guard, 0)

	queue.Push(1)
	queue.Push(2)
	if err := queue.Push(3); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Push on full queue = %v, want ErrQueueFull", err)
	}
	if !queue.Consistent() || queue.Waiting() != 2 {
		t.Fatalf("full queue inconsistent, Waiting() = %d", queue.Waiting())
	}
	first, _ := queue.Pop()
	if first != 1 {
		t.Fatalf("Pop() = %d, want 1", first)
	}
}

func TestArenaAllocateUntilFull(t *testing.T) {
	region, set := newTestRegion(t, Layout{Requests: 3})
	guard := lock(t, set, sem.Queue)
	defer guard.Unlock()
	arena := region.Arena(guard)

	for want := range 3 {
		index, err := arena.Allocate(office.ProcessID(10+want), 0, morning)
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		if index != want {
			t.Fatalf("Allocate() = %d, want %d", index, want)
		}
	}
	if _, err := arena.Allocate(99, 0, morning); !errors.Is(err, ErrArenaFull) {
		t.Fatalf("Allocate on full arena = %v, want ErrArenaFull", err)
	}
}

func TestSlotChecksService(t *testing.T) {
	region, set := newTestRegion(t, Layout{})
	arenaGuard := lock(t, set, sem.Queue)
	index, _ := region.Arena(arenaGuard).Allocate(5, 1, morning)
	arenaGuard.Unlock()

	guard := lock(t, set, sem.ServiceLock(0))
	if _, err := region.Queue(guard, 0).Slot(index); !errors.Is(err, ErrBadSlot) {
		t.Fatalf("Slot under the wrong service = %v, want ErrBadSlot", err)
	}
	if _, err := region.Queue(guard, 0).Slot(-1); !errors.Is(err, ErrBadSlot) {
		t.Fatalf("Slot(-1) = %v, want ErrBadSlot", err)
	}
	guard.Unlock()

	guard = lock(t, set, sem.ServiceLock(1))
	defer guard.Unlock()
	request, err := region.Queue(guard, 1).Slot(index)
	if err != nil {
		t.Fatalf("Slot: %v", err)
	}
	if request.Status != office.RequestPending || request.User != 5 {
		t.Fatalf("slot = %+v, want pending request of user 5", request)
	}
}

// fillDay allocates and queues a few requests in every state.
func fillDay(t *testing.T, region *Region, set *sem.Set) {
	t.Helper()
	arenaGuard := lock(t, set, sem.Queue)
	arena := region.Arena(arenaGuard)
	indices := make([]int, 5)
	for position := range indices {
		indices[position], _ = arena.Allocate(office.ProcessID(position+1), office.ServiceID(position%2), morning)
	}
	arenaGuard.Unlock()

	for position, index := range indices {
		service := office.ServiceID(position % 2)
		guard := lock(t, set, sem.ServiceLock(service))
		queue := region.Queue(guard, service)
		request, _ := queue.Slot(index)
		switch position {
		case 0, 1, 2:
			request.Status = office.RequestCompleted
			request.Ticket = queue.IssueNumber()
			queue.Push(index)
		case 3:
			request.Status = office.RequestRejected
		}
		guard.Unlock()
	}
}

type dayState struct {
	waiting     [2]int
	nextNumber  [2]int
	issued      int
	statuses    []office.RequestStatus
	consistency [2]bool
}

func captureDay(t *testing.T, region *Region, set *sem.Set) dayState {
	t.Helper()
	var state dayState
	queueGuard := lock(t, set, sem.Queue)
	services, err := set.LockServices(context.Background())
	if err != nil {
		t.Fatalf("LockServices: %v", err)
	}
	for service := range 2 {
		queue := region.Queue(services.For(sem.ServiceLock(office.ServiceID(service))), office.ServiceID(service))
		state.waiting[service] = queue.Waiting()
		state.nextNumber[service] = queue.NextNumber()
		state.consistency[service] = queue.Consistent()
	}
	state.issued = region.Arena(queueGuard).Issued()
	for _, request := range region.requests {
		state.statuses = append(state.statuses, request.Status)
	}
	services.Unlock()
	queueGuard.Unlock()
	return state
}

func resetDay(t *testing.T, region *Region, set *sem.Set) {
	t.Helper()
	queueGuard := lock(t, set, sem.Queue)
	services, err := set.LockServices(context.Background())
	if err != nil {
		t.Fatalf("LockServices: %v", err)
	}
	region.ResetDay(queueGuard, services)
	services.Unlock()
	queueGuard.Unlock()
}

func TestResetDayIdempotent(t *testing.T) {
	region, set := newTestRegion(t, Layout{Requests: 8})
	fillDay(t, region, set)

	resetDay(t, region, set)
	once := captureDay(t, region, set)
	resetDay(t, region, set)
	twice := captureDay(t, region, set)

	for service := range 2 {
		if once.waiting[service] != 0 || once.nextNumber[service] != 1 || !once.consistency[service] {
			t.Fatalf("service %d after reset: waiting %d, next %d, consistent %v",
				service, once.waiting[service], once.nextNumber[service], once.consistency[service])
		}
		if twice.waiting[service] != once.waiting[service] || twice.nextNumber[service] != once.nextNumber[service] {
			t.Fatalf("service %d differs between one and two resets", service)
		}
	}
	if once.issued != 0 || twice.issued != 0 {
		t.Fatalf("Issued() = %d/%d, want 0", once.issued, twice.issued)
	}
	for index := range once.statuses {
		if once.statuses[index] != twice.statuses[index] {
			t.Fatalf("slot %d: %v after one reset, %v after two", index, once.statuses[index], twice.statuses[index])
		}
	}
	// Slot 4 was left Pending and survives the reset; everything else
	// is cleared.
	if once.statuses[4] != office.RequestPending {
		t.Fatalf("pending slot status = %v, want pending", once.statuses[4])
	}
	for _, index := range []int{0, 1, 2, 3} {
		if once.statuses[index] != office.RequestUndefined {
			t.Fatalf("slot %d status = %v, want undefined", index, once.statuses[index])
		}
	}
}

func TestAllocateSkipsLeftoverPending(t *testing.T) {
	region, set := newTestRegion(t, Layout{Requests: 8})
	fillDay(t, region, set)
	resetDay(t, region, set)

	guard := lock(t, set, sem.Queue)
	defer guard.Unlock()
	arena := region.Arena(guard)
	for want := range 4 {
		index, err := arena.Allocate(50, 0, morning)
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		if index != want {
			t.Fatalf("Allocate() = %d, want %d", index, want)
		}
	}
	index, _ := arena.Allocate(51, 0, morning)
	if index != 5 {
		t.Fatalf("Allocate() = %d, want 5 (slot 4 is still pending)", index)
	}
}

func TestPurgeQueuesThenResetSequences(t *testing.T) {
	region, set := newTestRegion(t, Layout{Requests: 8})
	fillDay(t, region, set)

	services, _ := set.LockServices(context.Background())
	if purged := region.PurgeQueues(services); purged != 3 {
		t.Fatalf("PurgeQueues() = %d, want 3", purged)
	}
	queue := region.Queue(services.For(sem.ServiceLock(0)), 0)
	if queue.Waiting() != 0 || queue.NextNumber() != 3 {
		t.Fatalf("after purge: waiting %d, next %d; want 0 and 3", queue.Waiting(), queue.NextNumber())
	}
	region.ResetSequences(services)
	if queue.NextNumber() != 1 {
		t.Fatalf("after ResetSequences: next %d, want 1", queue.NextNumber())
	}
	services.Unlock()
}

func TestDeskBindingAndHandOver(t *testing.T) {
	region, set := newTestRegion(t, Layout{Counters: 2, Operators: 3})
	guard := lock(t, set, sem.Counters)
	defer guard.Unlock()
	desk := region.Desk(guard)

	for index, service := range []office.ServiceID{0, 0, 1} {
		operator := desk.Operator(index)
		operator.ID = office.ProcessID(index + 1)
		operator.Service = service
		operator.Status = office.OperatorWaiting
	}
	*desk.Counter(0) = Counter{Active: true, Service: 0}
	*desk.Counter(1) = Counter{Active: true, Service: 1}

	if desk.Available(0) {
		t.Fatal("service 0 available with nobody seated")
	}
	free := desk.FreeCounter(0)
	if free != 0 {
		t.Fatalf("FreeCounter(0) = %d, want 0", free)
	}
	desk.Bind(free, desk.Operator(0))
	if !desk.Available(0) || desk.FreeCounter(0) != NoCounter {
		t.Fatal("binding did not take the counter")
	}
	if ids := desk.WorkingOn(0); len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("WorkingOn(0) = %v, want [1]", ids)
	}

	desk.Unbind(desk.Operator(0), office.OperatorOnBreak)
	if got := desk.HandOver(0); got != 2 {
		t.Fatalf("HandOver(0) = %d, want operator 2", got)
	}
	if desk.Operator(1).Status != office.OperatorWorking || desk.CounterOf(2) != 0 {
		t.Fatal("hand-over did not seat operator 2")
	}
	if got := desk.HandOver(0); got != 0 {
		t.Fatalf("HandOver on a bound counter = %d, want 0", got)
	}
}

func TestDurations(t *testing.T) {
	var durations Durations
	for _, value := range []time.Duration{30, 10, 20} {
		durations.Add(value * time.Millisecond)
	}
	if durations.Min != 10*time.Millisecond || durations.Max != 30*time.Millisecond {
		t.Fatalf("min/max = %v/%v, want 10ms/30ms", durations.Min, durations.Max)
	}
	if durations.Average() != 20*time.Millisecond {
		t.Fatalf("Average() = %v, want 20ms", durations.Average())
	}

	var merged Durations
	merged.Merge(Durations{})
	merged.Merge(durations)
	merged.Merge(Durations{Min: 5 * time.Millisecond, Max: 5 * time.Millisecond, Total: 5 * time.Millisecond, Count: 1})
	if merged.Min != 5*time.Millisecond || merged.Count != 4 {
		t.Fatalf("merged = %+v", merged)
	}
}

func TestStatsDailyAndTotal(t *testing.T) {
	region, set := newTestRegion(t, Layout{})
	guard := lock(t, set, sem.Mutex)
	defer guard.Unlock()
	stats := region.Stats(guard)

	stats.Record(1, func(tally *ServiceTally) {
		tally.Served++
		tally.Home[office.HomeNoService]++
	})
	stats.Pause()
	stats.ResetDaily()
	stats.Record(1, func(tally *ServiceTally) { tally.NotArrived++ })

	daily, total := stats.Daily(), stats.Total()
	if daily.Services[1].Users() != 1 || daily.Pauses != 0 {
		t.Fatalf("daily = %+v, want one user and no pauses", daily.Services[1])
	}
	if total.Services[1].Users() != 3 || total.Pauses != 1 {
		t.Fatalf("total = %+v, want three users and one pause", total.Services[1])
	}
	if total.Overall().ReturnedHome() != 1 {
		t.Fatalf("ReturnedHome() = %d, want 1", total.Overall().ReturnedHome())
	}
}

func TestProcessTable(t *testing.T) {
	region, set := newTestRegion(t, Layout{Operators: 2, Users: 3})
	guard := lock(t, set, sem.Mutex)
	defer guard.Unlock()
	table := region.Stats(guard).Processes()

	issuer := table.Spawn(office.KindIssuer, 0)
	operator := table.Spawn(office.KindOperator, 1)
	user := table.Spawn(office.KindUser, 2)
	if table.Issuer != issuer || table.Operators[1] != operator || table.Users[2] != user {
		t.Fatal("spawned ids not recorded in the identity arrays")
	}
	if table.Participants() != 3 {
		t.Fatalf("Participants() = %d, want 3", table.Participants())
	}

	table.Passed(user, 4, morning)
	row, ok := table.Lookup(user)
	if !ok || row.Day != 4 || !row.PassedAt.Equal(morning) {
		t.Fatalf("Lookup(user) = %+v, %v", row, ok)
	}
}

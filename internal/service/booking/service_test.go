package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ilyakh/busline/internal/domain"
	"github.com/ilyakh/busline/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTicketStore mirrors the database contract in memory: Create rejects a
// taken (record, seat) pair with repository.ErrConflict under a mutex, which
// is exactly the race the allocator must survive.
type fakeTicketStore struct {
	mu       sync.Mutex
	capacity map[int64]int
	tickets  map[uuid.UUID]domain.Ticket
}

func newFakeTicketStore() *fakeTicketStore {
	return &fakeTicketStore{
		capacity: make(map[int64]int),
		tickets:  make(map[uuid.UUID]domain.Ticket),
	}
}

func (f *fakeTicketStore) RecordCapacity(_ context.Context, recordID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.capacity[recordID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return c, nil
}

func (f *fakeTicketStore) OccupiedSeats(_ context.Context, recordID int64) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []int
	for _, t := range f.tickets {
		if t.RecordID == recordID {
			out = append(out, t.SeatNo)
		}
	}
	return out, nil
}

func (f *fakeTicketStore) Create(_ context.Context, t domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, have := range f.tickets {
		if have.RecordID == t.RecordID && have.SeatNo == t.SeatNo {
			return repository.ErrConflict
		}
	}
	f.tickets[t.ID] = t
	return nil
}

func (f *fakeTicketStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.tickets[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.tickets, id)
	return nil
}

func (f *fakeTicketStore) RecordByTicket(_ context.Context, id uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.tickets[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return t.RecordID, nil
}

func (f *fakeTicketStore) ListByPassenger(_ context.Context, passengerID uuid.UUID) ([]domain.TicketView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.TicketView
	for _, t := range f.tickets {
		if t.PassengerID == passengerID {
			out = append(out, domain.TicketView{ID: t.ID, SeatNo: t.SeatNo})
		}
	}
	return out, nil
}

func (f *fakeTicketStore) ListCreatedBetween(_ context.Context, from, to time.Time, passengerID *uuid.UUID) ([]domain.TicketView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.TicketView
	for _, t := range f.tickets {
		if t.CreatedAt.Before(from) || t.CreatedAt.After(to) {
			continue
		}
		if passengerID != nil && t.PassengerID != *passengerID {
			continue
		}
		out = append(out, domain.TicketView{ID: t.ID, SeatNo: t.SeatNo, PassengerID: t.PassengerID})
	}
	return out, nil
}

func (f *fakeTicketStore) liveCount(recordID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, t := range f.tickets {
		if t.RecordID == recordID {
			n++
		}
	}
	return n
}

type fakePassengers struct {
	byID map[uuid.UUID]*domain.Passenger
}

func (f *fakePassengers) GetByID(_ context.Context, id uuid.UUID) (*domain.Passenger, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func strptr(s string) *string { return &s }

func newTestService(t *testing.T, capacity int, cfg Config) (*Service, *fakeTicketStore, uuid.UUID) {
	t.Helper()

	store := newFakeTicketStore()
	store.capacity[1] = capacity

	pid := uuid.New()
	passengers := &fakePassengers{byID: map[uuid.UUID]*domain.Passenger{
		pid: {ID: pid, DocumentNumber: strptr("AB123456")},
	}}

	return New(store, passengers, nil, nil, cfg), store, pid
}

func TestPurchaseAssignsLowestFreeSeat(t *testing.T) {
	svc, store, pid := newTestService(t, 3, Config{})
	ctx := context.Background()

	first, err := svc.Purchase(ctx, 1, pid)
	require.NoError(t, err)
	assert.Equal(t, 1, first.SeatNo)

	second, err := svc.Purchase(ctx, 1, pid)
	require.NoError(t, err)
	assert.Equal(t, 2, second.SeatNo)

	// deleting the first ticket frees seat 1 for the next purchase
	require.NoError(t, svc.DeleteTicket(ctx, first.ID))

	third, err := svc.Purchase(ctx, 1, pid)
	require.NoError(t, err)
	assert.Equal(t, 1, third.SeatNo)

	assert.Equal(t, 2, store.liveCount(1))
}

func TestPurchaseCapacityExhausted(t *testing.T) {
	svc, _, pid := newTestService(t, 1, Config{})
	ctx := context.Background()

	_, err := svc.Purchase(ctx, 1, pid)
	require.NoError(t, err)

	_, err = svc.Purchase(ctx, 1, pid)
	assert.ErrorIs(t, err, ErrNoSeatsLeft)
}

func TestPurchaseConcurrentLastSeats(t *testing.T) {
	svc, store, pid := newTestService(t, 2, Config{})
	ctx := context.Background()

	type result struct {
		ticket *domain.Ticket
		err    error
	}

	results := make(chan result, 3)
	var start, done sync.WaitGroup
	start.Add(1)

	for i := 0; i < 3; i++ {
		done.Add(1)
		go func() {
			defer done.Done()
			start.Wait()
			tk, err := svc.Purchase(ctx, 1, pid)
			results <- result{ticket: tk, err: err}
		}()
	}

	start.Done()
	done.Wait()
	close(results)

	seats := make(map[int]bool)
	failures := 0
	for r := range results {
		if r.err != nil {
			failures++
			assert.ErrorIs(t, r.err, ErrNoSeatsLeft)
			continue
		}
		assert.False(t, seats[r.ticket.SeatNo], "seat %d allocated twice", r.ticket.SeatNo)
		seats[r.ticket.SeatNo] = true
	}

	assert.Equal(t, 1, failures)
	assert.Equal(t, map[int]bool{1: true, 2: true}, seats)
	assert.Equal(t, 2, store.liveCount(1))
}

func TestPurchaseConcurrentStress(t *testing.T) {
	const capacity, callers = 10, 25

	svc, store, pid := newTestService(t, capacity, Config{MaxAllocRetries: callers})
	ctx := context.Background()

	errs := make(chan error, callers)
	var start, done sync.WaitGroup
	start.Add(1)

	for i := 0; i < callers; i++ {
		done.Add(1)
		go func() {
			defer done.Done()
			start.Wait()
			_, err := svc.Purchase(ctx, 1, pid)
			errs <- err
		}()
	}

	start.Done()
	done.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrNoSeatsLeft)
		}
	}

	assert.Equal(t, capacity, ok)
	assert.Equal(t, capacity, store.liveCount(1))

	occupied, err := store.OccupiedSeats(ctx, 1)
	require.NoError(t, err)
	seen := make(map[int]bool)
	for _, seat := range occupied {
		assert.GreaterOrEqual(t, seat, 1)
		assert.LessOrEqual(t, seat, capacity)
		assert.False(t, seen[seat], "duplicate seat %d", seat)
		seen[seat] = true
	}
}

// conflictOnceStore makes the first insert lose its race so the retry path
// is exercised deterministically.
type conflictOnceStore struct {
	*fakeTicketStore
	mu        sync.Mutex
	conflicts int
}

func (s *conflictOnceStore) Create(ctx context.Context, t domain.Ticket) error {
	s.mu.Lock()
	first := s.conflicts == 0
	if first {
		s.conflicts++
	}
	s.mu.Unlock()

	if first {
		// somebody else grabbed the seat between read and insert
		taken := t
		taken.ID = uuid.New()
		if err := s.fakeTicketStore.Create(ctx, taken); err != nil {
			return err
		}
		return repository.ErrConflict
	}

	return s.fakeTicketStore.Create(ctx, t)
}

func TestPurchaseRetriesOnConflict(t *testing.T) {
	inner := newFakeTicketStore()
	inner.capacity[1] = 5
	store := &conflictOnceStore{fakeTicketStore: inner}

	pid := uuid.New()
	passengers := &fakePassengers{byID: map[uuid.UUID]*domain.Passenger{
		pid: {ID: pid, DocumentNumber: strptr("AB123456")},
	}}

	svc := New(store, passengers, nil, nil, Config{})

	tk, err := svc.Purchase(context.Background(), 1, pid)
	require.NoError(t, err)

	// seat 1 went to the racing writer, the retry picked seat 2
	assert.Equal(t, 2, tk.SeatNo)
	assert.Equal(t, 1, store.conflicts)
}

func TestPurchaseProfileIncomplete(t *testing.T) {
	store := newFakeTicketStore()
	store.capacity[1] = 2

	noDoc := uuid.New()
	emptyDoc := uuid.New()
	passengers := &fakePassengers{byID: map[uuid.UUID]*domain.Passenger{
		noDoc:    {ID: noDoc},
		emptyDoc: {ID: emptyDoc, DocumentNumber: strptr("")},
	}}

	svc := New(store, passengers, nil, nil, Config{})
	ctx := context.Background()

	_, err := svc.Purchase(ctx, 1, noDoc)
	assert.ErrorIs(t, err, ErrProfileIncomplete)

	_, err = svc.Purchase(ctx, 1, emptyDoc)
	assert.ErrorIs(t, err, ErrProfileIncomplete)

	assert.Equal(t, 0, store.liveCount(1), "failed purchase must not create tickets")
}

func TestPurchaseRecordNotFound(t *testing.T) {
	svc, _, pid := newTestService(t, 2, Config{})

	_, err := svc.Purchase(context.Background(), 42, pid)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestPurchaseUnknownPassenger(t *testing.T) {
	svc, _, _ := newTestService(t, 2, Config{})

	_, err := svc.Purchase(context.Background(), 1, uuid.New())
	assert.ErrorIs(t, err, ErrPassengerNotFound)
}

func TestDeleteTicketNotFound(t *testing.T) {
	svc, _, _ := newTestService(t, 2, Config{})

	err := svc.DeleteTicket(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestAvailabilityTracksPurchasesAndDeletes(t *testing.T) {
	svc, _, pid := newTestService(t, 2, Config{})
	ctx := context.Background()

	avail, err := svc.availability(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, recordAvailability{Capacity: 2, Sold: 0}, avail)

	tk, err := svc.Purchase(ctx, 1, pid)
	require.NoError(t, err)

	avail, err = svc.availability(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, recordAvailability{Capacity: 2, Sold: 1}, avail)

	require.NoError(t, svc.DeleteTicket(ctx, tk.ID))

	avail, err = svc.availability(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, recordAvailability{Capacity: 2, Sold: 0}, avail)

	_, err = svc.availability(ctx, 42)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLowestFreeSeat(t *testing.T) {
	assert.Equal(t, 1, lowestFreeSeat(nil))
	assert.Equal(t, 1, lowestFreeSeat([]int{2, 3}))
	assert.Equal(t, 3, lowestFreeSeat([]int{1, 2, 4}))
	assert.Equal(t, 4, lowestFreeSeat([]int{3, 1, 2}))
}

package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ilyakh/busline/internal/domain"
	redisx "github.com/ilyakh/busline/internal/redis"
	"github.com/ilyakh/busline/internal/repository"
	postgresrepo "github.com/ilyakh/busline/internal/repository/postgres"
	redisrepo "github.com/ilyakh/busline/internal/repository/redis"
)

// TicketStore is the persistent view of the live-ticket set. Create must be
// atomic and reject a (record, seat) pair that is already held with
// repository.ErrConflict; that constraint is the serialization point the
// allocator retries against.
type TicketStore interface {
	RecordCapacity(ctx context.Context, recordID int64) (int, error)
	OccupiedSeats(ctx context.Context, recordID int64) ([]int, error)
	Create(ctx context.Context, t domain.Ticket) error
	Delete(ctx context.Context, id uuid.UUID) error
	RecordByTicket(ctx context.Context, id uuid.UUID) (int64, error)
	ListByPassenger(ctx context.Context, passengerID uuid.UUID) ([]domain.TicketView, error)
	ListCreatedBetween(ctx context.Context, from, to time.Time, passengerID *uuid.UUID) ([]domain.TicketView, error)
}

// PassengerDirectory resolves the purchasing passenger.
type PassengerDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Passenger, error)
}

type Config struct {
	// MaxAllocRetries bounds how many times a purchase recomputes the
	// lowest free seat after losing an insert race.
	MaxAllocRetries int
	// AvailabilityTTL caps how stale the cached per-record seat picture
	// may get between invalidations.
	AvailabilityTTL time.Duration
}

type Service struct {
	tickets    TicketStore
	passengers PassengerDirectory
	cache      *redisrepo.Cache
	pubsub     *redisx.RecordsPubSub
	cfg        Config
}

func New(
	tickets TicketStore,
	passengers PassengerDirectory,
	cache *redisrepo.Cache,
	pubsub *redisx.RecordsPubSub,
	cfg Config,
) *Service {
	if cfg.MaxAllocRetries <= 0 {
		cfg.MaxAllocRetries = 3
	}

	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = 15 * time.Second
	}

	return &Service{
		tickets:    tickets,
		passengers: passengers,
		cache:      cache,
		pubsub:     pubsub,
		cfg:        cfg,
	}
}

// Purchase assigns the lowest free seat on a scheduled departure to the
// passenger and creates the ticket.
//
// Two concurrent purchases may compute the same seat number; the loser of
// the insert race gets repository.ErrConflict and the sequence is retried
// with a fresh occupied set, up to cfg.MaxAllocRetries times. A seat number
// past the bus capacity means the record is sold out.
//
// Returns:
//   - error: booking.ErrRecordNotFound if the record does not exist.
//   - error: booking.ErrPassengerNotFound if the caller no longer exists.
//   - error: booking.ErrProfileIncomplete if the caller has no document number.
//   - error: booking.ErrNoSeatsLeft if the record is at capacity.
//   - error: booking.ErrSeatConflict if every retry lost its race.
func (s *Service) Purchase(ctx context.Context, recordID int64, passengerID uuid.UUID) (*domain.Ticket, error) {
	const op = "service.booking.Purchase"

	p, err := s.passengers.GetByID(ctx, passengerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrPassengerNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if p.DocumentNumber == nil || *p.DocumentNumber == "" {
		return nil, fmt.Errorf("%s:%w", op, ErrProfileIncomplete)
	}

	// Sold-out fast path off the cached seat picture. The allocator below
	// never trusts it: seat selection always re-reads the live occupied set.
	avail, err := s.availability(ctx, recordID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrRecordNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if avail.Sold >= avail.Capacity {
		return nil, fmt.Errorf("%s:%w", op, ErrNoSeatsLeft)
	}

	for attempt := 0; attempt < s.cfg.MaxAllocRetries; attempt++ {
		capacity, err := s.tickets.RecordCapacity(ctx, recordID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%s:%w", op, ErrRecordNotFound)
			}

			return nil, fmt.Errorf("%s:%w", op, err)
		}

		occupied, err := s.tickets.OccupiedSeats(ctx, recordID)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}

		seat := lowestFreeSeat(occupied)
		if seat > capacity {
			return nil, fmt.Errorf("%s:%w", op, ErrNoSeatsLeft)
		}

		t := domain.Ticket{
			ID:          uuid.New(),
			RecordID:    recordID,
			PassengerID: passengerID,
			SeatNo:      seat,
			CreatedAt:   time.Now().UTC(),
		}

		if err := s.tickets.Create(ctx, t); err != nil {
			if errors.Is(err, repository.ErrConflict) || postgresrepo.IsRetryable(err) {
				continue
			}

			return nil, fmt.Errorf("%s:%w", op, err)
		}

		s.recordChanged(ctx, recordID)

		return &t, nil
	}

	return nil, fmt.Errorf("%s:%w", op, ErrSeatConflict)
}

// DeleteTicket removes a ticket, freeing its seat number for a future
// purchase on the same record.
//
// Returns:
//   - error: booking.ErrTicketNotFound if the ticket does not exist.
func (s *Service) DeleteTicket(ctx context.Context, id uuid.UUID) error {
	const op = "service.booking.DeleteTicket"

	recordID, err := s.tickets.RecordByTicket(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrTicketNotFound)
		}

		return fmt.Errorf("%s:%w", op, err)
	}

	if err := s.tickets.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrTicketNotFound)
		}

		return fmt.Errorf("%s:%w", op, err)
	}

	s.recordChanged(ctx, recordID)

	return nil
}

// UserTickets lists the caller's own tickets with trip details.
func (s *Service) UserTickets(ctx context.Context, passengerID uuid.UUID) ([]domain.TicketView, error) {
	const op = "service.booking.UserTickets"

	out, err := s.tickets.ListByPassenger(ctx, passengerID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// TicketsWindow lists all tickets purchased inside [from, to], optionally
// narrowed to one passenger. Admin-only at the transport layer.
func (s *Service) TicketsWindow(
	ctx context.Context,
	from, to time.Time,
	passengerID *uuid.UUID,
) ([]domain.TicketView, error) {
	const op = "service.booking.TicketsWindow"

	out, err := s.tickets.ListCreatedBetween(ctx, from, to, passengerID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// recordAvailability is the per-record seat picture served through the
// cache. Purchases and ticket deletions invalidate it; the TTL bounds
// staleness when an invalidation is lost.
type recordAvailability struct {
	Capacity int `json:"capacity"`
	Sold     int `json:"sold"`
}

func (s *Service) availability(ctx context.Context, recordID int64) (recordAvailability, error) {
	load := func(ctx context.Context) (recordAvailability, error) {
		capacity, err := s.tickets.RecordCapacity(ctx, recordID)
		if err != nil {
			return recordAvailability{}, err
		}

		occupied, err := s.tickets.OccupiedSeats(ctx, recordID)
		if err != nil {
			return recordAvailability{}, err
		}

		return recordAvailability{Capacity: capacity, Sold: len(occupied)}, nil
	}

	if s.cache == nil {
		return load(ctx)
	}

	return redisrepo.GetOrSetJSON(ctx, s.cache, redisx.KeyRecordAvailability(recordID), s.cfg.AvailabilityTTL, load)
}

func (s *Service) recordChanged(ctx context.Context, recordID int64) {
	if s.cache != nil {
		_ = s.cache.InvalidateRecord(ctx, recordID)
	}

	if s.pubsub != nil {
		_ = s.pubsub.PublishRecordChanged(ctx, recordID)
	}
}

// lowestFreeSeat returns the smallest positive integer absent from the
// occupied set.
func lowestFreeSeat(occupied []int) int {
	taken := make(map[int]struct{}, len(occupied))
	for _, n := range occupied {
		taken[n] = struct{}{}
	}

	seat := 1
	for {
		if _, ok := taken[seat]; !ok {
			return seat
		}
		seat++
	}
}

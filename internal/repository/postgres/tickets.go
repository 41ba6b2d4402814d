package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ilyakh/busline/internal/domain"
	"github.com/ilyakh/busline/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TicketRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *TicketRepo) With(db DB) *TicketRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *TicketRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// RecordCapacity resolves the seat capacity of a scheduled departure via its
// bus relation.
//
// Returns:
//   - error: repository.ErrNotFound if the record does not exist.
func (r *TicketRepo) RecordCapacity(ctx context.Context, recordID int64) (int, error) {
	const op = "postgres.TicketRepo.RecordCapacity"

	db := r.handle()

	var capacity int
	err := db.QueryRow(ctx,
		`SELECT b.seats_amount
       	 FROM route_records rr
      	 JOIN buses b ON b.id = rr.bus_id
      	 WHERE rr.id = $1`,
		recordID,
	).Scan(&capacity)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return capacity, nil
}

// OccupiedSeats returns the seat numbers held by live tickets for a record,
// ascending.
func (r *TicketRepo) OccupiedSeats(ctx context.Context, recordID int64) ([]int, error) {
	const op = "postgres.TicketRepo.OccupiedSeats"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT seat_no FROM tickets WHERE record_id = $1 ORDER BY seat_no`,
		recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Create inserts a ticket. The tickets table carries a unique constraint on
// (record_id, seat_no); a concurrent purchase that raced for the same seat
// surfaces as repository.ErrConflict and the caller is expected to retry
// with a recomputed seat number.
func (r *TicketRepo) Create(ctx context.Context, t domain.Ticket) error {
	const op = "postgres.TicketRepo.Create"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO tickets(id, record_id, passenger_id, seat_no)
       	 VALUES ($1, $2, $3, $4)`,
		t.ID, t.RecordID, t.PassengerID, t.SeatNo,
	); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// Delete removes a ticket, freeing its seat number for reuse.
//
// Returns:
//   - error: repository.ErrNotFound if the ticket does not exist.
func (r *TicketRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.TicketRepo.Delete"

	db := r.handle()

	tag, err := db.Exec(ctx, `DELETE FROM tickets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// RecordByTicket resolves the record a ticket belongs to.
func (r *TicketRepo) RecordByTicket(ctx context.Context, id uuid.UUID) (int64, error) {
	const op = "postgres.TicketRepo.RecordByTicket"

	db := r.handle()

	var recordID int64
	if err := db.QueryRow(ctx,
		`SELECT record_id FROM tickets WHERE id = $1`,
		id,
	).Scan(&recordID); err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return recordID, nil
}

const ticketViewSelect = `
	SELECT t.id, t.seat_no, t.passenger_id, p.first_name, p.last_name,
       	   rr.price, r.duration, dc.city_name, ac.city_name,
       	   rr.departure_ts, t.created_at
 	  FROM tickets t
 	  JOIN passengers p    ON p.id = t.passenger_id
 	  JOIN route_records rr ON rr.id = t.record_id
 	  JOIN routes r  ON r.id = rr.route_id
 	  JOIN cities dc ON dc.id = r.departure_city_id
 	  JOIN cities ac ON ac.id = r.destination_city_id`

// ListByPassenger lists a passenger's tickets with trip details.
func (r *TicketRepo) ListByPassenger(ctx context.Context, passengerID uuid.UUID) ([]domain.TicketView, error) {
	const op = "postgres.TicketRepo.ListByPassenger"

	db := r.handle()

	rows, err := db.Query(ctx,
		ticketViewSelect+`
      	 WHERE t.passenger_id = $1
      	 ORDER BY t.created_at, t.id`,
		passengerID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return scanTicketViews(op, rows)
}

// ListCreatedBetween lists tickets purchased inside [from, to], optionally
// narrowed to one passenger.
func (r *TicketRepo) ListCreatedBetween(
	ctx context.Context,
	from, to time.Time,
	passengerID *uuid.UUID,
) ([]domain.TicketView, error) {
	const op = "postgres.TicketRepo.ListCreatedBetween"

	db := r.handle()

	rows, err := db.Query(ctx,
		ticketViewSelect+`
      	 WHERE t.created_at BETWEEN $1 AND $2
        	AND ($3::uuid IS NULL OR t.passenger_id = $3)
      	 ORDER BY t.created_at, t.id`,
		from, to, passengerID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return scanTicketViews(op, rows)
}

// Stats computes the per-passenger counters: total tickets and the most
// visited city across departure and destination legs. Ties go to the city
// seen on the earliest ticket, preferring its departure leg.
func (r *TicketRepo) Stats(ctx context.Context, passengerID uuid.UUID) (*domain.PassengerStats, error) {
	const op = "postgres.TicketRepo.Stats"

	db := r.handle()

	var st domain.PassengerStats
	if err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE passenger_id = $1`,
		passengerID,
	).Scan(&st.TicketsAmount); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if st.TicketsAmount == 0 {
		return &st, nil
	}

	err := db.QueryRow(ctx,
		`WITH legs AS (
        	SELECT r.departure_city_id AS city_id, t.created_at, 0 AS leg
          	  FROM tickets t
          	  JOIN route_records rr ON rr.id = t.record_id
          	  JOIN routes r ON r.id = rr.route_id
         	 WHERE t.passenger_id = $1
        	UNION ALL
        	SELECT r.destination_city_id, t.created_at, 1 AS leg
          	  FROM tickets t
          	  JOIN route_records rr ON rr.id = t.record_id
          	  JOIN routes r ON r.id = rr.route_id
         	 WHERE t.passenger_id = $1
     	 )
     	 SELECT c.city_name, COUNT(*) AS visits
       	   FROM legs l
       	   JOIN cities c ON c.id = l.city_id
      	 GROUP BY c.id, c.city_name
      	 ORDER BY visits DESC, MIN(l.created_at), MIN(l.leg), c.id
      	 LIMIT 1`,
		passengerID,
	).Scan(&st.FavouriteCity, &st.FavouriteCityCount)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &st, nil
}

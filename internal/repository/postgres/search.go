package postgres

import (
	"context"
	"fmt"

	"github.com/ilyakh/busline/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dayWindowMillis is the width of the departure-date filter: a single
// calendar day in epoch millis, half-open.
const dayWindowMillis = 86_399_000

type SearchRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *SearchRepo) With(db DB) *SearchRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *SearchRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// TripFilter narrows the availability search. Nil fields are not applied.
type TripFilter struct {
	DepartureCityID   *int64
	DestinationCityID *int64
	DepartureDateTS   *int64 // start of the day window, unix millis
}

// SearchTrips returns scheduled departures matching the filter that still
// have at least one free seat. Occupancy is computed per record against the
// bus capacity. Ordering is stable for a fixed snapshot.
func (r *SearchRepo) SearchTrips(ctx context.Context, f TripFilter) ([]domain.TripOption, error) {
	const op = "postgres.SearchRepo.SearchTrips"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT rr.id, rr.price, rr.departure_ts, r.duration, dc.city_name, ac.city_name
       	 FROM route_records rr
      	 JOIN routes r  ON r.id = rr.route_id
      	 JOIN buses b   ON b.id = rr.bus_id
      	 JOIN cities dc ON dc.id = r.departure_city_id
      	 JOIN cities ac ON ac.id = r.destination_city_id
      	 WHERE ($1::bigint IS NULL OR r.departure_city_id = $1)
        	AND ($2::bigint IS NULL OR r.destination_city_id = $2)
        	AND ($3::bigint IS NULL OR (rr.departure_ts >= $3 AND rr.departure_ts < $3 + $4))
        	AND (SELECT COUNT(*) FROM tickets t WHERE t.record_id = rr.id) < b.seats_amount
      	 ORDER BY rr.departure_ts, rr.id`,
		f.DepartureCityID, f.DestinationCityID, f.DepartureDateTS, int64(dayWindowMillis),
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.TripOption
	for rows.Next() {
		var t domain.TripOption
		if err := rows.Scan(
			&t.RecordID,
			&t.Price,
			&t.DepartureTS,
			&t.Duration,
			&t.DepartureCity,
			&t.DestinationCity,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

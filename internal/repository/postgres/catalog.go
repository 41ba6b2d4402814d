package postgres

import (
	"context"
	"fmt"

	"github.com/ilyakh/busline/internal/domain"
	"github.com/ilyakh/busline/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CatalogRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *CatalogRepo) With(db DB) *CatalogRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *CatalogRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// CreateCity inserts a city and returns its ID.
//
// Returns:
//   - error: repository.ErrConflict if a city with the same name exists.
func (r *CatalogRepo) CreateCity(ctx context.Context, name string) (int64, error) {
	const op = "postgres.CatalogRepo.CreateCity"

	db := r.handle()

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO cities(city_name)
       	 VALUES ($1)
     	 RETURNING id`,
		name,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return id, nil
}

// GetCityByName looks up a city by its canonical name.
//
// Returns:
//   - error: repository.ErrNotFound if the city does not exist.
func (r *CatalogRepo) GetCityByName(ctx context.Context, name string) (*domain.City, error) {
	const op = "postgres.CatalogRepo.GetCityByName"

	db := r.handle()

	var c domain.City
	err := db.QueryRow(ctx,
		`SELECT id, city_name
       	 FROM cities WHERE city_name = $1`,
		name,
	).Scan(&c.ID, &c.Name)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &c, nil
}

// ListCities lists cities, optionally narrowed to a canonical name prefix.
func (r *CatalogRepo) ListCities(ctx context.Context, prefix string) ([]domain.City, error) {
	const op = "postgres.CatalogRepo.ListCities"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, city_name
       	 FROM cities
      	 WHERE $1 = '' OR city_name LIKE $1 || '%'
      	 ORDER BY city_name, id`,
		prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.City
	for rows.Next() {
		var c domain.City
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// UpdateCityName renames a city.
//
// Returns:
//   - error: repository.ErrNotFound if the city does not exist.
//   - error: repository.ErrConflict if the new name is taken.
func (r *CatalogRepo) UpdateCityName(ctx context.Context, id int64, name string) error {
	const op = "postgres.CatalogRepo.UpdateCityName"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE cities SET city_name = $2 WHERE id = $1`,
		id, name,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// DeleteCity removes a city.
//
// Returns:
//   - error: repository.ErrNotFound if the city does not exist.
//   - error: repository.ErrReferenced if a route still references it.
func (r *CatalogRepo) DeleteCity(ctx context.Context, id int64) error {
	const op = "postgres.CatalogRepo.DeleteCity"

	db := r.handle()

	tag, err := db.Exec(ctx, `DELETE FROM cities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// CreateRoute inserts a route between two cities.
//
// Returns:
//   - error: repository.ErrConflict if the city pair is already registered.
func (r *CatalogRepo) CreateRoute(
	ctx context.Context,
	departureCityID, destinationCityID int64,
	duration int,
) (int64, error) {
	const op = "postgres.CatalogRepo.CreateRoute"

	db := r.handle()

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO routes(departure_city_id, destination_city_id, duration)
       	 VALUES ($1, $2, $3)
     	 RETURNING id`,
		departureCityID, destinationCityID, duration,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return id, nil
}

// GetRouteByCities resolves a route by its (departure, destination) city pair.
//
// Returns:
//   - error: repository.ErrNotFound if no such route is registered.
func (r *CatalogRepo) GetRouteByCities(
	ctx context.Context,
	departureCityID, destinationCityID int64,
) (*domain.Route, error) {
	const op = "postgres.CatalogRepo.GetRouteByCities"

	db := r.handle()

	var rt domain.Route
	err := db.QueryRow(ctx,
		`SELECT id, departure_city_id, destination_city_id, duration
       	 FROM routes
      	 WHERE departure_city_id = $1 AND destination_city_id = $2`,
		departureCityID, destinationCityID,
	).Scan(&rt.ID, &rt.DepartureCityID, &rt.DestinationCityID, &rt.Duration)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &rt, nil
}

// ListRoutes lists routes with resolved city names, optionally filtered by
// exact departure and/or destination city name.
func (r *CatalogRepo) ListRoutes(
	ctx context.Context,
	departureCity, destinationCity string,
) ([]domain.RouteView, error) {
	const op = "postgres.CatalogRepo.ListRoutes"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT r.id, dc.city_name, ac.city_name, r.duration
       	 FROM routes r
      	 JOIN cities dc ON dc.id = r.departure_city_id
      	 JOIN cities ac ON ac.id = r.destination_city_id
      	 WHERE ($1 = '' OR dc.city_name = $1)
        	AND ($2 = '' OR ac.city_name = $2)
      	 ORDER BY r.id`,
		departureCity, destinationCity,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.RouteView
	for rows.Next() {
		var rv domain.RouteView
		if err := rows.Scan(&rv.ID, &rv.DepartureCity, &rv.DestinationCity, &rv.Duration); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (r *CatalogRepo) UpdateRouteDuration(ctx context.Context, id int64, duration int) error {
	const op = "postgres.CatalogRepo.UpdateRouteDuration"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE routes SET duration = $2 WHERE id = $1`,
		id, duration,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *CatalogRepo) DeleteRoute(ctx context.Context, id int64) error {
	const op = "postgres.CatalogRepo.DeleteRoute"

	db := r.handle()

	tag, err := db.Exec(ctx, `DELETE FROM routes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// CreateBus registers a bus.
//
// Returns:
//   - error: repository.ErrConflict if the registration number is taken.
func (r *CatalogRepo) CreateBus(
	ctx context.Context,
	model, regNumber string,
	seatsAmount int,
) (int64, error) {
	const op = "postgres.CatalogRepo.CreateBus"

	db := r.handle()

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO buses(model, reg_number, seats_amount)
       	 VALUES ($1, $2, $3)
     	 RETURNING id`,
		model, regNumber, seatsAmount,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return id, nil
}

// GetBusByRegNumber looks up a bus by its registration number.
//
// Returns:
//   - error: repository.ErrNotFound if no such bus is registered.
func (r *CatalogRepo) GetBusByRegNumber(ctx context.Context, regNumber string) (*domain.Bus, error) {
	const op = "postgres.CatalogRepo.GetBusByRegNumber"

	db := r.handle()

	var b domain.Bus
	err := db.QueryRow(ctx,
		`SELECT id, model, reg_number, seats_amount
       	 FROM buses WHERE reg_number = $1`,
		regNumber,
	).Scan(&b.ID, &b.Model, &b.RegNumber, &b.SeatsAmount)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &b, nil
}

// CreateRecord inserts a scheduled departure.
//
// Returns:
//   - error: repository.ErrConflict if (route, bus, departure) already exists.
func (r *CatalogRepo) CreateRecord(
	ctx context.Context,
	routeID, busID int64,
	price int,
	departureTS int64,
) (int64, error) {
	const op = "postgres.CatalogRepo.CreateRecord"

	db := r.handle()

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO route_records(route_id, bus_id, price, departure_ts)
       	 VALUES ($1, $2, $3, $4)
     	 RETURNING id`,
		routeID, busID, price, departureTS,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return id, nil
}

// UpdateRecord patches the whitelisted record fields. Nil pointers leave the
// corresponding column untouched.
func (r *CatalogRepo) UpdateRecord(
	ctx context.Context,
	id int64,
	price *int,
	departureTS *int64,
) error {
	const op = "postgres.CatalogRepo.UpdateRecord"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE route_records
        	SET price = COALESCE($2, price),
            	departure_ts = COALESCE($3, departure_ts)
      	 WHERE id = $1`,
		id, price, departureTS,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// DeleteRecord removes a scheduled departure.
//
// Returns:
//   - error: repository.ErrNotFound if the record does not exist.
//   - error: repository.ErrReferenced if sold tickets still reference it.
func (r *CatalogRepo) DeleteRecord(ctx context.Context, id int64) error {
	const op = "postgres.CatalogRepo.DeleteRecord"

	db := r.handle()

	tag, err := db.Exec(ctx, `DELETE FROM route_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

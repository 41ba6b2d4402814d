package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/ilyakh/busline/internal/domain"
	redisx "github.com/ilyakh/busline/internal/redis"
	"github.com/ilyakh/busline/internal/repository"
	postgresrepo "github.com/ilyakh/busline/internal/repository/postgres"
	redisrepo "github.com/ilyakh/busline/internal/repository/redis"
	"github.com/ilyakh/busline/internal/uow"
)

// Service is the admin write-side of the reference data: cities, routes,
// buses and scheduled departures. Writes run inside a unit of work and
// invalidate the read caches only after the transaction commits.
type Service struct {
	store  *postgresrepo.Store
	uow    *uow.UoW
	cache  *redisrepo.Cache
	pubsub *redisx.RecordsPubSub
}

func New(
	store *postgresrepo.Store,
	u *uow.UoW,
	cache *redisrepo.Cache,
	pubsub *redisx.RecordsPubSub,
) *Service {
	return &Service{store: store, uow: u, cache: cache, pubsub: pubsub}
}

// AddCity registers a city under its canonical name and returns its id.
//
// Returns:
//   - error: catalog.ErrCityExists if the name is taken.
func (s *Service) AddCity(ctx context.Context, name string) (int64, error) {
	const op = "service.catalog.AddCity"

	name = domain.CanonicalCityName(name)

	var id int64
	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		var err error
		id, err = s.store.Catalog().With(tx).CreateCity(ctx, name)
		if err != nil {
			return err
		}

		after(func(ctx context.Context) { s.invalidateCities(ctx) })

		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return 0, fmt.Errorf("%s:%w", op, ErrCityExists)
		}

		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return id, nil
}

// AddRoute registers a route between two known cities and returns its id.
//
// Returns:
//   - error: catalog.ErrCityNotFound if either city is unknown.
//   - error: catalog.ErrRouteExists if the city pair is already connected.
func (s *Service) AddRoute(ctx context.Context, departureCity, destinationCity string, duration int) (int64, error) {
	const op = "service.catalog.AddRoute"

	var id int64
	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		repo := s.store.Catalog().With(tx)

		dep, err := repo.GetCityByName(ctx, domain.CanonicalCityName(departureCity))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrCityNotFound
			}
			return err
		}

		dst, err := repo.GetCityByName(ctx, domain.CanonicalCityName(destinationCity))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrCityNotFound
			}
			return err
		}

		id, err = repo.CreateRoute(ctx, dep.ID, dst.ID, duration)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrCityNotFound):
			return 0, fmt.Errorf("%s:%w", op, ErrCityNotFound)
		case errors.Is(err, repository.ErrConflict):
			return 0, fmt.Errorf("%s:%w", op, ErrRouteExists)
		}

		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return id, nil
}

// AddBus registers a bus and returns its id.
//
// Returns:
//   - error: catalog.ErrBusExists if the registration number is taken.
func (s *Service) AddBus(ctx context.Context, model, regNumber string, seatsAmount int) (int64, error) {
	const op = "service.catalog.AddBus"

	id, err := s.store.Catalog().CreateBus(ctx, model, regNumber, seatsAmount)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return 0, fmt.Errorf("%s:%w", op, ErrBusExists)
		}

		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return id, nil
}

// AddRecord schedules a departure: a (route, bus, time, price) tuple. The
// route is addressed by its city names and the bus by its registration
// number.
//
// Returns:
//   - error: catalog.ErrCityNotFound / ErrRouteNotFound / ErrBusNotFound.
//   - error: catalog.ErrRecordExists if the same departure is scheduled.
func (s *Service) AddRecord(
	ctx context.Context,
	departureCity, destinationCity, regNumber string,
	price int,
	departureTS int64,
) (int64, error) {
	const op = "service.catalog.AddRecord"

	var id int64
	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		repo := s.store.Catalog().With(tx)

		dep, err := repo.GetCityByName(ctx, domain.CanonicalCityName(departureCity))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrCityNotFound
			}
			return err
		}

		dst, err := repo.GetCityByName(ctx, domain.CanonicalCityName(destinationCity))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrCityNotFound
			}
			return err
		}

		route, err := repo.GetRouteByCities(ctx, dep.ID, dst.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrRouteNotFound
			}
			return err
		}

		bus, err := repo.GetBusByRegNumber(ctx, regNumber)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrBusNotFound
			}
			return err
		}

		id, err = repo.CreateRecord(ctx, route.ID, bus.ID, price, departureTS)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrCityNotFound),
			errors.Is(err, ErrRouteNotFound),
			errors.Is(err, ErrBusNotFound):
			return 0, fmt.Errorf("%s:%w", op, err)
		case errors.Is(err, repository.ErrConflict):
			return 0, fmt.Errorf("%s:%w", op, ErrRecordExists)
		}

		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return id, nil
}

// RenameCity changes a city's canonical name.
//
// Returns:
//   - error: catalog.ErrCityNotFound if the city does not exist.
//   - error: catalog.ErrCityExists if the new name is taken.
func (s *Service) RenameCity(ctx context.Context, id int64, name string) error {
	const op = "service.catalog.RenameCity"

	name = domain.CanonicalCityName(name)

	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		if err := s.store.Catalog().With(tx).UpdateCityName(ctx, id, name); err != nil {
			return err
		}

		after(func(ctx context.Context) { s.invalidateCities(ctx) })

		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("%s:%w", op, ErrCityNotFound)
		case errors.Is(err, repository.ErrConflict):
			return fmt.Errorf("%s:%w", op, ErrCityExists)
		}

		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// SetRouteDuration updates a route's travel time.
//
// Returns:
//   - error: catalog.ErrRouteNotFound if the route does not exist.
func (s *Service) SetRouteDuration(ctx context.Context, id int64, duration int) error {
	const op = "service.catalog.SetRouteDuration"

	if err := s.store.Catalog().UpdateRouteDuration(ctx, id, duration); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrRouteNotFound)
		}

		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// UpdateRecord patches a scheduled departure's price and/or departure time.
//
// Returns:
//   - error: catalog.ErrRecordNotFound if the record does not exist.
func (s *Service) UpdateRecord(ctx context.Context, id int64, price *int, departureTS *int64) error {
	const op = "service.catalog.UpdateRecord"

	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		if err := s.store.Catalog().With(tx).UpdateRecord(ctx, id, price, departureTS); err != nil {
			return err
		}

		after(func(ctx context.Context) { s.recordChanged(ctx, id) })

		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrRecordNotFound)
		}

		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// DeleteCity removes a city.
//
// Returns:
//   - error: catalog.ErrCityNotFound if the city does not exist.
//   - error: catalog.ErrInUse if a route still references it.
func (s *Service) DeleteCity(ctx context.Context, id int64) error {
	const op = "service.catalog.DeleteCity"

	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		if err := s.store.Catalog().With(tx).DeleteCity(ctx, id); err != nil {
			return err
		}

		after(func(ctx context.Context) { s.invalidateCities(ctx) })

		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("%s:%w", op, ErrCityNotFound)
		case errors.Is(err, repository.ErrReferenced):
			return fmt.Errorf("%s:%w", op, ErrInUse)
		}

		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// DeleteRoute removes a route.
//
// Returns:
//   - error: catalog.ErrRouteNotFound if the route does not exist.
//   - error: catalog.ErrInUse if a record still references it.
func (s *Service) DeleteRoute(ctx context.Context, id int64) error {
	const op = "service.catalog.DeleteRoute"

	if err := s.store.Catalog().DeleteRoute(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("%s:%w", op, ErrRouteNotFound)
		case errors.Is(err, repository.ErrReferenced):
			return fmt.Errorf("%s:%w", op, ErrInUse)
		}

		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// DeleteRecord removes a scheduled departure.
//
// Returns:
//   - error: catalog.ErrRecordNotFound if the record does not exist.
//   - error: catalog.ErrInUse if sold tickets still reference it.
func (s *Service) DeleteRecord(ctx context.Context, id int64) error {
	const op = "service.catalog.DeleteRecord"

	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		if err := s.store.Catalog().With(tx).DeleteRecord(ctx, id); err != nil {
			return err
		}

		after(func(ctx context.Context) { s.recordChanged(ctx, id) })

		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("%s:%w", op, ErrRecordNotFound)
		case errors.Is(err, repository.ErrReferenced):
			return fmt.Errorf("%s:%w", op, ErrInUse)
		}

		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (s *Service) invalidateCities(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.InvalidateCities(ctx)
	}
}

func (s *Service) recordChanged(ctx context.Context, recordID int64) {
	if s.cache != nil {
		_ = s.cache.InvalidateRecord(ctx, recordID)
	}
	if s.pubsub != nil {
		_ = s.pubsub.PublishRecordChanged(ctx, recordID)
	}
}

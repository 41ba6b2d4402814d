package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ilyakh/busline/internal/domain"
	redisx "github.com/ilyakh/busline/internal/redis"
	"github.com/ilyakh/busline/internal/repository"
	postgresrepo "github.com/ilyakh/busline/internal/repository/postgres"
	redisrepo "github.com/ilyakh/busline/internal/repository/redis"
)

// Catalog is the read-side of the city/route reference data.
type Catalog interface {
	GetCityByName(ctx context.Context, name string) (*domain.City, error)
	ListCities(ctx context.Context, prefix string) ([]domain.City, error)
	GetRouteByCities(ctx context.Context, departureCityID, destinationCityID int64) (*domain.Route, error)
	ListRoutes(ctx context.Context, departureCity, destinationCity string) ([]domain.RouteView, error)
}

// Trips answers availability queries over scheduled departures.
type Trips interface {
	SearchTrips(ctx context.Context, f postgresrepo.TripFilter) ([]domain.TripOption, error)
}

type Config struct {
	CitiesCacheTTL time.Duration
}

type Service struct {
	catalog Catalog
	trips   Trips
	cache   *redisrepo.Cache
	cfg     Config
}

func New(catalog Catalog, trips Trips, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.CitiesCacheTTL <= 0 {
		cfg.CitiesCacheTTL = time.Minute
	}

	return &Service{catalog: catalog, trips: trips, cache: cache, cfg: cfg}
}

// Trips finds scheduled departures that still have at least one free seat.
// Filters are optional and combine: departure city, destination city, and a
// calendar day given as unix milliseconds of its midnight. City names match
// case-insensitively. When both cities are given, the route between them
// must exist.
//
// Returns:
//   - error: *search.CityNotFoundError if a named city is unknown.
//   - error: search.ErrRouteNotFound if both cities are known but unconnected.
func (s *Service) Trips(ctx context.Context, departureCity, destinationCity string, dateMS *int64) ([]domain.TripOption, error) {
	const op = "service.search.Trips"

	var f postgresrepo.TripFilter
	f.DepartureDateTS = dateMS

	if departureCity != "" {
		city, err := s.cityByName(ctx, departureCity)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		f.DepartureCityID = &city.ID
	}

	if destinationCity != "" {
		city, err := s.cityByName(ctx, destinationCity)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		f.DestinationCityID = &city.ID
	}

	if f.DepartureCityID != nil && f.DestinationCityID != nil {
		if _, err := s.catalog.GetRouteByCities(ctx, *f.DepartureCityID, *f.DestinationCityID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%s:%w", op, ErrRouteNotFound)
			}

			return nil, fmt.Errorf("%s:%w", op, err)
		}
	}

	out, err := s.trips.SearchTrips(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Cities lists known cities, optionally narrowed to a name prefix. Results
// are served through the shared cache; catalog writes invalidate it.
func (s *Service) Cities(ctx context.Context, prefix string) ([]domain.City, error) {
	const op = "service.search.Cities"

	if prefix != "" {
		prefix = domain.CanonicalCityName(prefix)
	}

	if s.cache == nil {
		out, err := s.catalog.ListCities(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}

		return out, nil
	}

	out, err := redisrepo.GetOrSetJSON(ctx, s.cache, redisx.KeyCities(prefix), s.cfg.CitiesCacheTTL,
		func(ctx context.Context) ([]domain.City, error) {
			return s.catalog.ListCities(ctx, prefix)
		})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Routes lists routes with city names resolved, optionally filtered by
// either endpoint.
func (s *Service) Routes(ctx context.Context, departureCity, destinationCity string) ([]domain.RouteView, error) {
	const op = "service.search.Routes"

	if departureCity != "" {
		departureCity = domain.CanonicalCityName(departureCity)
	}
	if destinationCity != "" {
		destinationCity = domain.CanonicalCityName(destinationCity)
	}

	out, err := s.catalog.ListRoutes(ctx, departureCity, destinationCity)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (s *Service) cityByName(ctx context.Context, raw string) (*domain.City, error) {
	name := domain.CanonicalCityName(raw)

	city, err := s.catalog.GetCityByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &CityNotFoundError{Name: name}
		}

		return nil, err
	}

	return city, nil
}

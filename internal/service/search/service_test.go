package search

import (
	"context"
	"testing"

	"github.com/ilyakh/busline/internal/domain"
	"github.com/ilyakh/busline/internal/repository"
	postgresrepo "github.com/ilyakh/busline/internal/repository/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	cities map[string]*domain.City
	routes map[[2]int64]*domain.Route

	listCitiesPrefix string
	listRoutesArgs   [2]string
}

func (f *fakeCatalog) GetCityByName(_ context.Context, name string) (*domain.City, error) {
	c, ok := f.cities[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (f *fakeCatalog) ListCities(_ context.Context, prefix string) ([]domain.City, error) {
	f.listCitiesPrefix = prefix

	var out []domain.City
	for _, c := range f.cities {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeCatalog) GetRouteByCities(_ context.Context, dep, dst int64) (*domain.Route, error) {
	r, ok := f.routes[[2]int64{dep, dst}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r, nil
}

func (f *fakeCatalog) ListRoutes(_ context.Context, dep, dst string) ([]domain.RouteView, error) {
	f.listRoutesArgs = [2]string{dep, dst}
	return nil, nil
}

type fakeTrips struct {
	lastFilter postgresrepo.TripFilter
	out        []domain.TripOption
}

func (f *fakeTrips) SearchTrips(_ context.Context, filter postgresrepo.TripFilter) ([]domain.TripOption, error) {
	f.lastFilter = filter
	return f.out, nil
}

func newTestService() (*Service, *fakeCatalog, *fakeTrips) {
	catalog := &fakeCatalog{
		cities: map[string]*domain.City{
			"Moscow": {ID: 1, Name: "Moscow"},
			"Kazan":  {ID: 2, Name: "Kazan"},
			"Tver":   {ID: 3, Name: "Tver"},
		},
		routes: map[[2]int64]*domain.Route{
			{1, 2}: {ID: 10, DepartureCityID: 1, DestinationCityID: 2, Duration: 720},
		},
	}
	trips := &fakeTrips{}

	return New(catalog, trips, nil, Config{}), catalog, trips
}

func TestTripsCanonicalizesCityNames(t *testing.T) {
	svc, _, trips := newTestService()

	trips.out = []domain.TripOption{{RecordID: 5, DepartureCity: "Moscow", DestinationCity: "Kazan"}}

	out, err := svc.Trips(context.Background(), "moscow", "KAZAN", nil)
	require.NoError(t, err)
	require.Len(t, out, 1)

	require.NotNil(t, trips.lastFilter.DepartureCityID)
	require.NotNil(t, trips.lastFilter.DestinationCityID)
	assert.Equal(t, int64(1), *trips.lastFilter.DepartureCityID)
	assert.Equal(t, int64(2), *trips.lastFilter.DestinationCityID)
}

func TestTripsUnknownCity(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Trips(context.Background(), "gotham", "", nil)
	require.Error(t, err)

	var notFound *CityNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Gotham", notFound.Name)
}

func TestTripsNoRouteBetweenKnownCities(t *testing.T) {
	svc, _, _ := newTestService()

	// both cities exist but only Moscow->Kazan is registered
	_, err := svc.Trips(context.Background(), "moscow", "tver", nil)
	assert.ErrorIs(t, err, ErrRouteNotFound)
}

func TestTripsDatePassedThrough(t *testing.T) {
	svc, _, trips := newTestService()

	date := int64(1_700_000_000_000)
	_, err := svc.Trips(context.Background(), "", "", &date)
	require.NoError(t, err)

	require.NotNil(t, trips.lastFilter.DepartureDateTS)
	assert.Equal(t, date, *trips.lastFilter.DepartureDateTS)
	assert.Nil(t, trips.lastFilter.DepartureCityID)
	assert.Nil(t, trips.lastFilter.DestinationCityID)
}

func TestCitiesPrefixCanonicalized(t *testing.T) {
	svc, catalog, _ := newTestService()

	_, err := svc.Cities(context.Background(), "mos")
	require.NoError(t, err)
	assert.Equal(t, "Mos", catalog.listCitiesPrefix)
}

func TestRoutesFiltersCanonicalized(t *testing.T) {
	svc, catalog, _ := newTestService()

	_, err := svc.Routes(context.Background(), "moscow", "")
	require.NoError(t, err)
	assert.Equal(t, [2]string{"Moscow", ""}, catalog.listRoutesArgs)
}

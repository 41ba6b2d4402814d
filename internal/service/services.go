// Package service wires the application services over the shared stores.
package service

import (
	redisx "github.com/ilyakh/busline/internal/redis"
	postgresrepo "github.com/ilyakh/busline/internal/repository/postgres"
	redisrepo "github.com/ilyakh/busline/internal/repository/redis"
	"github.com/ilyakh/busline/internal/service/booking"
	"github.com/ilyakh/busline/internal/service/catalog"
	"github.com/ilyakh/busline/internal/service/passenger"
	"github.com/ilyakh/busline/internal/service/search"
	"github.com/ilyakh/busline/internal/token"
	"github.com/ilyakh/busline/internal/uow"
)

type Config struct {
	Search    search.Config
	Booking   booking.Config
	Passenger passenger.Config
}

type Services struct {
	Search    *search.Service
	Booking   *booking.Service
	Catalog   *catalog.Service
	Passenger *passenger.Service
}

func NewServices(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisx.RecordsPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	tokens *token.Manager,
	cfg Config,
) *Services {
	u := uow.NewUoW(store)

	return &Services{
		Search:    search.New(store.Catalog(), store.Search(), cache, cfg.Search),
		Booking:   booking.New(store.Tickets(), store.Passengers(), cache, pubsub, cfg.Booking),
		Catalog:   catalog.New(store, u, cache, pubsub),
		Passenger: passenger.New(store.Passengers(), store.Tickets(), tokens, limiter, cfg.Passenger),
	}
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ilyakh/busline/internal/config"
	"github.com/ilyakh/busline/internal/postgres"
	redisx "github.com/ilyakh/busline/internal/redis"
	postgresrepo "github.com/ilyakh/busline/internal/repository/postgres"
	redisrepo "github.com/ilyakh/busline/internal/repository/redis"
	"github.com/ilyakh/busline/internal/service"
	"github.com/ilyakh/busline/internal/service/booking"
	"github.com/ilyakh/busline/internal/service/passenger"
	"github.com/ilyakh/busline/internal/service/search"
	"github.com/ilyakh/busline/internal/token"
	httpgin "github.com/ilyakh/busline/internal/transport/http/gin"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	cache      *redisrepo.Cache
	pubsub     *redisx.RecordsPubSub
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redisx.New(context.Background(), redisx.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisx.NewRecordsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, redisx.KeyRateLimit("auth"), 10, 1*time.Minute)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	tokens := token.NewManager(cfg.Auth.Secret, cfg.Auth.TokenTTL)

	// Initialize services
	services := service.NewServices(store, cache, pubsub, limiter, tokens, service.Config{
		Search:    search.Config{CitiesCacheTTL: time.Minute},
		Booking:   booking.Config{MaxAllocRetries: 3, AvailabilityTTL: 15 * time.Second},
		Passenger: passenger.Config{BcryptCost: cfg.Auth.BcryptCost},
	})

	// Initialize Gin router
	router := httpgin.NewRouter(services, tokens, idempotencyStore, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
		cache:  cache,
		pubsub: pubsub,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Drop locally cached availability when another instance changes a record
	g.Go(func() error {
		err := a.pubsub.Subscribe(gCtx, func(ctx context.Context, recordID int64) {
			if err := a.cache.InvalidateRecord(ctx, recordID); err != nil {
				a.logger.Warn("failed to invalidate record cache", "record_id", recordID, "error", err)
			}
		})
		if err != nil && gCtx.Err() == nil {
			return fmt.Errorf("records subscription stopped: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

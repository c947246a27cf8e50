// Package bootstrap assembles stores, the event pipeline and services for
// the API server and lockerctl.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/locker-service/internal/config"
	"github.com/spec-kit/locker-service/internal/events"
	"github.com/spec-kit/locker-service/internal/observability"
	"github.com/spec-kit/locker-service/internal/persistence"
	"github.com/spec-kit/locker-service/internal/repository"
	"github.com/spec-kit/locker-service/internal/repository/memory"
	"github.com/spec-kit/locker-service/internal/service"
	"github.com/spec-kit/locker-service/internal/worker"
)

// Stores is the repository set services run against.
type Stores struct {
	Users        repository.UserRepository
	Admins       repository.AdminRepository
	Lockers      repository.LockerRepository
	Reservations repository.ReservationRepository
}

// Runtime holds connections and services shared by both binaries.
type Runtime struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Postgres *persistence.Postgres
	Redis    *persistence.Redis
	Stores   Stores

	Dispatcher events.Dispatcher
	Feed       events.Feed

	Auth         *service.AuthService
	Lockers      *service.LockerService
	Reservations *service.ReservationService
	Sweeper      *worker.ExpirySweeper
}

// New connects backing stores and builds the service graph. Without a
// Postgres DSN state lives in process memory; without Redis the change feed
// and sweep lock stay local.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	rt.Postgres = pg

	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				pg.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		pool := pg.PoolHandle()
		retry := persistence.NewRetryPolicy(cfg.Retry)
		rt.Stores = Stores{
			Users:        repository.NewUserRepository(pool, retry),
			Admins:       repository.NewAdminRepository(pool, retry),
			Lockers:      repository.NewLockerRepository(pool, retry),
			Reservations: repository.NewReservationRepository(pool, retry),
		}
	} else {
		store := memory.NewStore()
		rt.Stores = Stores{
			Users:        store.Users(),
			Admins:       store.Admins(),
			Lockers:      store.Lockers(),
			Reservations: store.Reservations(),
		}
	}

	rt.Redis = persistence.NewRedis(cfg.Redis, logger)
	rt.Dispatcher = events.NewInMemoryDispatcher()
	rt.Feed = newFeed(ctx, rt.Redis, logger)

	rt.Auth = service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:  rt.Stores.Users,
		AdminRepo: rt.Stores.Admins,
	})
	rt.Lockers = service.NewLockerService(rt.Stores.Lockers)
	rt.Reservations = service.NewReservationService(*cfg, service.ReservationDependencies{
		ReservationRepo: rt.Stores.Reservations,
		LockerRepo:      rt.Stores.Lockers,
		Dispatcher:      rt.Dispatcher,
		Logger:          logger,
	})

	worker.StartNotificationWorker(service.NewNotificationService(rt.Dispatcher, rt.Feed, logger), logger)

	rt.Sweeper = worker.NewExpirySweeper(rt.Reservations, rt.Redis, cfg.Reservation, logger, rt.Metrics)
	rt.Reservations.SetSweepTrigger(rt.Sweeper)

	return rt, nil
}

// Close releases connections.
func (rt *Runtime) Close() {
	rt.Redis.Close()
	rt.Postgres.Close()
}

func newFeed(ctx context.Context, r *persistence.Redis, logger *zap.Logger) events.Feed {
	if err := r.Ping(ctx); err != nil {
		logger.Warn("change feed is process-local", zap.Error(err))
		return events.NewLocalFeed()
	}
	feed, err := events.NewRedisFeed(r, logger)
	if err != nil {
		logger.Warn("change feed is process-local", zap.Error(err))
		return events.NewLocalFeed()
	}
	return feed
}

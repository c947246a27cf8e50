package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/locker-service/internal/api/http"
	"github.com/spec-kit/locker-service/internal/api/http/handlers"
	"github.com/spec-kit/locker-service/internal/auth"
	"github.com/spec-kit/locker-service/internal/bootstrap"
	"github.com/spec-kit/locker-service/internal/config"
	"github.com/spec-kit/locker-service/internal/observability"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer rt.Close()

	go rt.Sweeper.Run(ctx)

	authMiddleware := auth.NewAuthMiddleware(rt.Auth.TokenManager(), rt.Stores.Users, rt.Stores.Admins)

	app := httptransport.NewApp(cfg.App, logger, rt.Metrics)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, rt.Postgres, rt.Redis, rt.Metrics),
		Users:          handlers.NewUsersHandler(rt.Auth),
		Admins:         handlers.NewAdminHandler(rt.Auth),
		Lockers:        handlers.NewLockersHandler(rt.Lockers),
		Reservations:   handlers.NewReservationsHandler(rt.Reservations, rt.Sweeper),
		Streams:        handlers.NewStreamHandler(ctx, rt.Reservations, rt.Feed, cfg.Reservation.StreamInterval(), logger),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	// Streams and the sweeper hang off ctx; end them before draining requests.
	cancel()
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/locker-service/internal/config"
	"github.com/spec-kit/locker-service/internal/observability"
	"github.com/spec-kit/locker-service/internal/persistence"
)

const sweepLockName = "sweep-lock"

// Expirer removes stale reservations.
type Expirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// ExpirySweeper periodically deletes unconfirmed reservations past their hold.
// With Redis configured only one instance sweeps at a time.
type ExpirySweeper struct {
	expirer  Expirer
	redis    *persistence.Redis
	interval time.Duration
	lockTTL  time.Duration
	logger   *zap.Logger
	metrics  *observability.Metrics
	trigger  chan struct{}
}

// NewExpirySweeper builds a sweeper. redis and metrics may be nil.
func NewExpirySweeper(expirer Expirer, redis *persistence.Redis, cfg config.ReservationConfig, logger *zap.Logger, metrics *observability.Metrics) *ExpirySweeper {
	return &ExpirySweeper{
		expirer:  expirer,
		redis:    redis,
		interval: cfg.SweepInterval(),
		lockTTL:  cfg.SweepLockTTL(),
		logger:   logger,
		metrics:  metrics,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests a sweep soon. Pending requests coalesce and the call never blocks.
func (s *ExpirySweeper) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run sweeps once at start, then on every tick and trigger until ctx is
// cancelled.
func (s *ExpirySweeper) Run(ctx context.Context) {
	interval := s.interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("expiry sweeper started", zap.Duration("interval", interval))
	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
		case <-s.trigger:
		}
		s.sweep(ctx)
	}
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
	}
}

// RunOnce performs a single sweep. A lock held by another instance skips the
// run; a Redis failure does not, since the delete is condition-checked.
func (s *ExpirySweeper) RunOnce(ctx context.Context) (int, error) {
	if s.redis != nil {
		lease, err := persistence.AcquireLock(ctx, s.redis, sweepLockName, s.lockTTL)
		switch {
		case errors.Is(err, persistence.ErrLockHeld):
			s.logger.Debug("expiry sweep skipped, lock held elsewhere")
			s.metrics.Add("sweep_skipped", 1)
			return 0, nil
		case err != nil:
			s.logger.Warn("sweep lock unavailable, sweeping without it", zap.Error(err))
		default:
			defer func() {
				if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
					s.logger.Warn("sweep lock release failed", zap.Error(err))
				}
			}()
		}
	}

	removed, err := s.expirer.ExpireStale(ctx)
	if err != nil {
		return 0, err
	}
	s.metrics.Add("sweep_runs", 1)
	s.metrics.Add("reservations_expired", int64(removed))
	if removed > 0 {
		s.logger.Info("expired stale reservations", zap.Int("count", removed))
	}
	return removed, nil
}

package cycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/socialecho/echokit/pkg/subscription"
)

const sweepLockKey = "echokit:cycle:sweep"

// Locker serializes the sweep across instances.
type Locker interface {
	// TryLock attempts to acquire the named lock for ttl.
	// Returns false without error when another holder owns it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type redisLocker struct {
	client *redis.Client
}

// NewRedisLocker returns a Locker backed by Redis SET NX.
func NewRedisLocker(client *redis.Client) Locker {
	if client == nil {
		panic("cycle: redis client is required")
	}
	return &redisLocker{client: client}
}

func (l *redisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, "1", ttl).Result()
}

func (l *redisLocker) Unlock(ctx context.Context, key string) error {
	return l.client.Del(ctx, key).Err()
}

// NopLocker always grants the lock. Suitable for single-instance
// deployments and tests.
type NopLocker struct{}

func (NopLocker) TryLock(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (NopLocker) Unlock(context.Context, string) error                        { return nil }

// SweeperConfig tunes the background sweep.
type SweeperConfig struct {
	Interval  time.Duration `env:"CYCLE_SWEEP_INTERVAL" envDefault:"1h"`
	BatchSize int           `env:"CYCLE_SWEEP_BATCH_SIZE" envDefault:"500"`
}

// Sweeper periodically rolls forward subscriptions whose period has lapsed
// without any request touching them. It is a belt-and-braces companion to
// the lazy reset, not the primary mechanism.
type Sweeper struct {
	subs   subscription.Store
	engine *Engine
	locker Locker
	cfg    SweeperConfig
	log    *slog.Logger
}

// NewSweeper creates a sweeper. Pass NopLocker when running a single
// instance.
func NewSweeper(subs subscription.Store, engine *Engine, locker Locker, cfg SweeperConfig, log *slog.Logger) *Sweeper {
	if subs == nil {
		panic("cycle: subscription store is required")
	}
	if engine == nil {
		panic("cycle: engine is required")
	}
	if locker == nil {
		locker = NopLocker{}
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}

	return &Sweeper{subs: subs, engine: engine, locker: locker, cfg: cfg, log: log}
}

// Run sweeps on the configured interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.log.ErrorContext(ctx, "cycle sweep failed", slog.Any("error", err))
			}
		}
	}
}

// SweepOnce rolls forward every due subscription in one batch and returns
// how many were advanced. Individual failures are logged and skipped so one
// bad row cannot stall the rest of the batch.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	acquired, err := s.locker.TryLock(ctx, sweepLockKey, s.cfg.Interval)
	if err != nil {
		return 0, err
	}
	if !acquired {
		return 0, nil
	}
	defer func() {
		if err := s.locker.Unlock(ctx, sweepLockKey); err != nil {
			s.log.WarnContext(ctx, "failed to release sweep lock", slog.Any("error", err))
		}
	}()

	now := s.engine.now()
	due, err := s.subs.ListDue(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, sub := range due {
		if _, err := s.engine.EnsureFresh(ctx, sub); err != nil {
			s.log.ErrorContext(ctx, "failed to reset subscription cycle",
				slog.String("tenant_id", sub.TenantID.String()),
				slog.Any("error", err))
			continue
		}
		swept++
	}

	if swept > 0 {
		s.log.InfoContext(ctx, "cycle sweep completed", slog.Int("swept", swept))
	}
	return swept, nil
}

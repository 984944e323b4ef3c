package scheduler

import (
	"context"
	"errors"

	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/ratelimit"
	"go.uber.org/zap"
)

const reaperLockKey = "foodfund:reaper:lock"

// withJobLock runs fn while holding the redis job lock so that only one replica reaps at a
// time. Without a locker, or when redis is unreachable, fn runs unguarded: every item is
// re-checked under a row lock, so an overlapping run only repeats gateway reads.
func (s *Scheduler) withJobLock(ctx context.Context, job string, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	err := s.locker.WithLock(ctx, reaperLockKey, s.cfg.JobTimeout, fn)
	switch {
	case errors.Is(err, ratelimit.ErrLockHeld):
		s.metrics.IncJobSkipped(job)
		s.logger(ctx).Info("scheduler.job.skipped", zap.String("job", job), zap.String("reason", "lock_held"))
		return nil
	case errors.Is(err, ratelimit.ErrLockUnavailable):
		s.logger(ctx).Warn("scheduler.lock.unavailable", zap.String("job", job), zap.Error(err))
		return fn(ctx)
	case errors.Is(err, ratelimit.ErrLockRelease):
		s.logger(ctx).Warn("scheduler.lock.release_failed", zap.String("job", job), zap.Error(err))
		return nil
	}
	return err
}

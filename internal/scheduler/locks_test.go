package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/ratelimit"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func unreachableLocker(t *testing.T) *ratelimit.Locker {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })
	return ratelimit.NewLocker(client)
}

func TestWithJobLockRunsUnguardedWhenRedisIsDown(t *testing.T) {
	s := &Scheduler{log: zap.NewNop(), cfg: DefaultConfig(), locker: unreachableLocker(t)}

	calls := 0
	err := s.withJobLock(context.Background(), JobReapStaleLinks, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithJobLockReturnsJobError(t *testing.T) {
	s := &Scheduler{log: zap.NewNop(), cfg: DefaultConfig(), locker: unreachableLocker(t)}

	boom := errors.New("boom")
	err := s.withJobLock(context.Background(), JobReapStaleLinks, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
}

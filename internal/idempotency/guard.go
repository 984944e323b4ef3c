// Package idempotency answers "has this gateway notification been processed already?".
package idempotency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// DefaultTTL covers late gateway retries and manual reconciliation replays.
const DefaultTTL = 7 * 24 * time.Hour

// Store marks keys atomically. SetIfAbsent reports true only for the caller that created the key.
type Store interface {
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

type Guard struct {
	store Store
	ttl   time.Duration
	log   *zap.Logger
}

type Params struct {
	fx.In

	Store  Store
	Config config.Config
	Log    *zap.Logger
}

func NewGuard(p Params) *Guard {
	ttl := p.Config.Idempotency.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{
		store: p.Store,
		ttl:   ttl,
		log:   p.Log.Named("idempotency.guard"),
	}
}

// Key builds the cache key for a gateway notification.
func Key(gateway, eventID, referenceCode string) string {
	return fmt.Sprintf("%s:webhook:%s:%s",
		strings.ToLower(strings.TrimSpace(gateway)),
		strings.TrimSpace(eventID),
		strings.TrimSpace(referenceCode),
	)
}

// CheckAndMark returns true when key was already marked. A store failure is treated as
// not seen; ledger uniqueness constraints catch anything that slips through.
func (g *Guard) CheckAndMark(ctx context.Context, key string) bool {
	created, err := g.store.SetIfAbsent(ctx, key, g.ttl)
	if err != nil {
		g.log.Warn("idempotency store unavailable, processing without dedupe",
			zap.String("key", key),
			zap.Error(err),
		)
		return false
	}
	return !created
}

// Release forgets key so a redelivery of a notification that failed transiently is processed.
func (g *Guard) Release(ctx context.Context, key string) {
	if err := g.store.Delete(ctx, key); err != nil {
		g.log.Warn("idempotency release failed", zap.String("key", key), zap.Error(err))
	}
}

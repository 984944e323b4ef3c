package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyDonationCreate = "foodfund:ratelimit:donation:%s"

// DonationLimiter throttles checkout link creation per client.
type DonationLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewDonationLimiter(cfg config.Config, client *redis.Client) *DonationLimiter {
	limits := cfg.RateLimit
	if client == nil || limits.DonationCapacity <= 0 || limits.DonationRefill <= 0 || limits.DonationWindow <= 0 {
		return nil
	}
	return &DonationLimiter{
		bucket: NewTokenBucket(client),
		rate:   float64(limits.DonationRefill) / limits.DonationWindow.Seconds(),
		burst:  int(limits.DonationCapacity),
	}
}

func (l *DonationLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *DonationLimiter) Allow(ctx context.Context, clientKey string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyDonationCreate, strings.TrimSpace(clientKey)), l.rate, l.burst)
}

package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

var _ Limiter = (*TokenBucketLimiter)(nil)

// TokenBucketLimiter shares one token bucket between all methods.
type TokenBucketLimiter struct {
	limiter *rate.Limiter
}

// NewTokenBucketLimiter produces one token every interval and caches at most
// burst tokens.
func NewTokenBucketLimiter(interval time.Duration, burst int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		limiter: rate.NewLimiter(rate.Every(interval), burst),
	}
}

func (t *TokenBucketLimiter) Wait(ctx context.Context, _ string) error {
	return t.limiter.Wait(ctx)
}

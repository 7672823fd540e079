package ratelimit

import (
	"context"
	_ "embed"
	"math/rand"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v9"
)

//go:embed lua/slide_window.lua
var luaSlideWindow string

var _ Limiter = (*RedisSlideWindowLimiter)(nil)

// RedisSlideWindowLimiter keeps its window in a redis sorted set, so every
// client process using the same key shares one limit.
type RedisSlideWindowLimiter struct {
	client redis.Cmdable
	key    string
	// calls allowed inside one window
	maxRate int
	// window size in milliseconds
	interval int64
	// pause between two attempts of a rejected Wait
	retry time.Duration
	now   func() time.Time

	owner string
	seq   uint64
}

func NewRedisSlideWindowLimiter(client redis.Cmdable, key string, maxRate int, interval time.Duration) *RedisSlideWindowLimiter {
	retry := interval
	if maxRate > 0 {
		retry = interval / time.Duration(maxRate)
	}
	return &RedisSlideWindowLimiter{
		client:   client,
		key:      key,
		maxRate:  maxRate,
		interval: interval.Milliseconds(),
		retry:    retry,
		now:      time.Now,
		owner:    strconv.FormatInt(rand.Int63(), 36),
	}
}

// Wait asks redis for a slot until one is granted. Redis errors are returned
// as they are: the call is not sent when the limit cannot be checked.
func (l *RedisSlideWindowLimiter) Wait(ctx context.Context, _ string) error {
	for {
		limited, err := l.limit(ctx)
		if err != nil {
			return err
		}
		if !limited {
			return nil
		}
		timer := time.NewTimer(l.retry)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

func (l *RedisSlideWindowLimiter) limit(ctx context.Context) (bool, error) {
	now := l.now().UnixMilli()
	member := l.owner + "-" + strconv.FormatUint(atomic.AddUint64(&l.seq, 1), 10)
	return l.client.Eval(ctx, luaSlideWindow, []string{l.key},
		l.maxRate, l.interval, now, member).Bool()
}

package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"
)

var _ Limiter = (*SlideWindowLimiter)(nil)

// SlideWindowLimiter lets at most maxRate calls through in any interval.
type SlideWindowLimiter struct {
	maxRate int
	// timestamps of the calls inside the current window
	queue    *list.List
	mutex    sync.Mutex
	interval time.Duration
	now      func() time.Time
}

func NewSlideWindowLimiter(maxRate int, interval time.Duration) *SlideWindowLimiter {
	return &SlideWindowLimiter{
		maxRate:  maxRate,
		interval: interval,
		queue:    list.New(),
		now:      time.Now,
	}
}

func (l *SlideWindowLimiter) Wait(ctx context.Context, _ string) error {
	for {
		wait := l.reserve()
		if wait <= 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve records a call and returns 0, or returns how long to wait before
// the oldest call leaves the window.
func (l *SlideWindowLimiter) reserve() time.Duration {
	current := l.now()
	l.mutex.Lock()
	defer l.mutex.Unlock()
	windowStart := current.Add(-l.interval)
	front := l.queue.Front()
	for front != nil && !front.Value.(time.Time).After(windowStart) {
		l.queue.Remove(front)
		front = l.queue.Front()
	}
	if l.queue.Len() < l.maxRate {
		l.queue.PushBack(current)
		return 0
	}
	return front.Value.(time.Time).Sub(windowStart)
}

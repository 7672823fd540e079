package ratelimit

import "context"

//go:generate mockgen -package=mocks -destination=mocks/limiter.mock.go -source=types.go Limiter

// Limiter throttles outbound calls. Wait blocks until the call identified by
// method may be sent, or returns the context error.
type Limiter interface {
	Wait(ctx context.Context, method string) error
}

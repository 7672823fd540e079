package ratelimit

import "context"

var _ Limiter = (*MethodLimiter)(nil)

// MethodLimiter only throttles the wire method it was built for; other
// methods pass straight through.
type MethodLimiter struct {
	Limiter
	Method string
}

func NewMethodLimiter(method string, limiter Limiter) *MethodLimiter {
	return &MethodLimiter{
		Limiter: limiter,
		Method:  method,
	}
}

func (m *MethodLimiter) Wait(ctx context.Context, method string) error {
	if method == m.Method {
		return m.Limiter.Wait(ctx, method)
	}
	return ctx.Err()
}

// Chain waits on every limiter in order.
type Chain []Limiter

func (c Chain) Wait(ctx context.Context, method string) error {
	for _, l := range c {
		if err := l.Wait(ctx, method); err != nil {
			return err
		}
	}
	return nil
}

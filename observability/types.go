package observability

import "context"

//go:generate mockgen -package=mocks -destination=mocks/observer.mock.go -source=types.go Observer

// Kind tells whether an observed call waits for a response.
type Kind uint8

const (
	KindRequest Kind = iota
	KindNotification
)

func (k Kind) String() string {
	if k == KindNotification {
		return "notification"
	}
	return "request"
}

// Observer is told about every call a stage sends. The returned func is
// invoked exactly once: when the call is resolved for requests, right after
// the enqueue for notifications. A nil error means success.
type Observer interface {
	Observe(ctx context.Context, method string, kind Kind) func(err error)
}

// Observers fans out to several observers in order.
type Observers []Observer

func (os Observers) Observe(ctx context.Context, method string, kind Kind) func(err error) {
	dones := make([]func(error), 0, len(os))
	for _, o := range os {
		dones = append(dones, o.Observe(ctx, method, kind))
	}
	return func(err error) {
		for _, done := range dones {
			done(err)
		}
	}
}

package ejrpc

import (
	"github.com/gotomicro/ekit/bean/option"
	"go.uber.org/zap"

	"ejrpc/observability"
	"ejrpc/ratelimit"
	"ejrpc/rpc/serialize"
)

// WithLogger -> option
func WithLogger(l *zap.Logger) option.Option[Stage] {
	return func(s *Stage) {
		s.logger = l
	}
}

// WithSerializer replaces the JSON serializer used for params and results.
// It must produce JSON.
func WithSerializer(sz serialize.Serializer) option.Option[Stage] {
	return func(s *Stage) {
		s.serializer = sz
	}
}

// WithOutboundBuffer sets how many messages may wait on the outbound
// endpoint before proxy calls start to block.
func WithOutboundBuffer(n int) option.Option[Stage] {
	return func(s *Stage) {
		s.buffer = n
	}
}

// WithObserver -> option
func WithObserver(o observability.Observer) option.Option[Stage] {
	return func(s *Stage) {
		s.observer = o
	}
}

// WithLimiter throttles calls before they are enqueued.
func WithLimiter(l ratelimit.Limiter) option.Option[Stage] {
	return func(s *Stage) {
		s.limiter = l
	}
}

package opentelemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ejrpc"
	"ejrpc/observability"
)

const instrumentationName = "ejrpc/observability/opentelemetry"

var _ observability.Observer = (*Observer)(nil)

// Observer opens a client span per call and ends it when the call is
// resolved.
type Observer struct {
	tracer trace.Tracer
}

// NewObserver uses the global tracer provider when tracer is nil.
func NewObserver(tracer trace.Tracer) *Observer {
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	return &Observer{tracer: tracer}
}

func (o *Observer) Observe(ctx context.Context, method string, kind observability.Kind) func(err error) {
	_, span := o.tracer.Start(ctx, method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.system", "jsonrpc"),
			attribute.String("rpc.method", method),
			attribute.String("rpc.jsonrpc.kind", kind.String()),
		))
	return func(err error) {
		defer span.End()
		if err == nil {
			span.SetStatus(codes.Ok, "OK")
			return
		}
		var rpcErr *ejrpc.RPCError
		if errors.As(err, &rpcErr) {
			span.SetAttributes(
				attribute.Int("rpc.jsonrpc.error_code", rpcErr.Code),
				attribute.String("rpc.jsonrpc.error_message", rpcErr.Message),
			)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

package prometheus

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ejrpc"
	"ejrpc/observability"
)

var _ observability.Observer = (*Observer)(nil)

type ObserverBuilder struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
	// Registerer defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// Observer records, per method and kind, how long calls take to resolve,
// how many are in flight and how many fail.
type Observer struct {
	summaryVec *prometheus.SummaryVec
	errCntVec  *prometheus.CounterVec
	activeVec  *prometheus.GaugeVec
}

func (b ObserverBuilder) Build() (*Observer, error) {
	labels := []string{"method", "kind"}
	o := &Observer{
		summaryVec: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Namespace: b.Namespace,
			Subsystem: b.Subsystem,
			Name:      b.Name + "_response",
			Help:      b.Help,
			Objectives: map[float64]float64{
				0.5:   0.01,
				0.75:  0.01,
				0.9:   0.01,
				0.99:  0.001,
				0.999: 0.0001,
			},
		}, append(labels, "status")),
		errCntVec: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: b.Namespace,
			Subsystem: b.Subsystem,
			Name:      b.Name + "_error_cnt",
			Help:      b.Help,
		}, labels),
		activeVec: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: b.Namespace,
			Subsystem: b.Subsystem,
			Name:      b.Name + "_active_req_cnt",
			Help:      b.Help,
		}, labels),
	}
	reg := b.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{o.summaryVec, o.errCntVec, o.activeVec} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *Observer) Observe(_ context.Context, method string, kind observability.Kind) func(err error) {
	active := o.activeVec.WithLabelValues(method, kind.String())
	active.Inc()
	startTime := time.Now()
	return func(err error) {
		active.Dec()
		if err != nil {
			o.errCntVec.WithLabelValues(method, kind.String()).Inc()
		}
		duration := float64(time.Since(startTime).Milliseconds())
		o.summaryVec.WithLabelValues(method, kind.String(), status(err)).Observe(duration)
	}
}

func status(err error) string {
	var rpcErr *ejrpc.RPCError
	switch {
	case err == nil:
		return "OK"
	case errors.As(err, &rpcErr):
		return strconv.Itoa(rpcErr.Code)
	case ejrpc.IsClosed(err):
		return "closed"
	case errors.Is(err, ejrpc.ErrProtocol):
		return "protocol"
	default:
		return "error"
	}
}

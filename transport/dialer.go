package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/gotomicro/ekit/bean/option"
	"go.uber.org/zap"

	"ejrpc/loadbalance"
	"ejrpc/loadbalance/roundrobin"
	"ejrpc/registry"
)

// Dialer opens connections to services found in a registry.
type Dialer struct {
	registry registry.Registry
	balancer loadbalance.Balancer
	timeout  time.Duration
	network  string
	logger   *zap.Logger
	dialer   net.Dialer

	mutex     sync.Mutex
	resolvers map[string]*Resolver
}

// DialerWithBalancer -> option
func DialerWithBalancer(b loadbalance.Balancer) option.Option[Dialer] {
	return func(d *Dialer) {
		d.balancer = b
	}
}

// DialerWithTimeout bounds both registry lookups and connection attempts.
func DialerWithTimeout(timeout time.Duration) option.Option[Dialer] {
	return func(d *Dialer) {
		d.timeout = timeout
		d.dialer.Timeout = timeout
	}
}

// DialerWithLogger -> option
func DialerWithLogger(l *zap.Logger) option.Option[Dialer] {
	return func(d *Dialer) {
		d.logger = l
	}
}

func NewDialer(r registry.Registry, opts ...option.Option[Dialer]) *Dialer {
	d := &Dialer{
		registry:  r,
		balancer:  roundrobin.NewBalancer(loadbalance.GroupFilter),
		timeout:   3 * time.Second,
		network:   "tcp",
		logger:    zap.NewNop(),
		dialer:    net.Dialer{Timeout: 3 * time.Second},
		resolvers: make(map[string]*Resolver, 4),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial connects to one instance of service picked by the balancer.
func (d *Dialer) Dial(ctx context.Context, service string) (net.Conn, error) {
	res, err := d.resolver(service)
	if err != nil {
		return nil, err
	}
	picked, err := d.balancer.Pick(loadbalance.PickInfo{Ctx: ctx, Service: service}, res.Instances())
	if err != nil {
		return nil, err
	}
	conn, err := d.dialer.DialContext(ctx, d.network, picked.Instance.Address)
	picked.Done(loadbalance.DoneInfo{Err: err})
	if err != nil {
		d.logger.Error("dial instance", zap.String("service", service),
			zap.String("address", picked.Instance.Address), zap.Error(err))
		return nil, err
	}
	return conn, nil
}

func (d *Dialer) resolver(service string) (*Resolver, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if res, ok := d.resolvers[service]; ok {
		return res, nil
	}
	res, err := NewResolver(d.registry, service, d.timeout, d.logger)
	if err != nil {
		return nil, err
	}
	d.resolvers[service] = res
	return res, nil
}

// Close stops the resolvers. The registry is left open.
func (d *Dialer) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	for name, res := range d.resolvers {
		_ = res.Close()
		delete(d.resolvers, name)
	}
	return nil
}

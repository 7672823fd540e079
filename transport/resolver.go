package transport

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"ejrpc/registry"
)

// Resolver caches the instances of one service. Every registry event
// refreshes the whole list.
type Resolver struct {
	registry registry.Registry
	service  string
	timeout  time.Duration
	logger   *zap.Logger

	mutex     sync.RWMutex
	instances []registry.ServiceInstance

	close     chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

func NewResolver(r registry.Registry, service string, timeout time.Duration, logger *zap.Logger) (*Resolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	res := &Resolver{
		registry: r,
		service:  service,
		timeout:  timeout,
		logger:   logger,
		close:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	if err := res.ResolveNow(); err != nil {
		return nil, err
	}
	events, err := r.Subscribe(service)
	if err != nil {
		return nil, err
	}
	go res.watch(events)
	return res, nil
}

// ResolveNow asks the registry for the current instances.
func (r *Resolver) ResolveNow() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	instances, err := r.registry.ListServices(ctx, r.service)
	cancel()
	if err != nil {
		return err
	}
	r.mutex.Lock()
	r.instances = instances
	r.mutex.Unlock()
	return nil
}

func (r *Resolver) Instances() []registry.ServiceInstance {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	res := make([]registry.ServiceInstance, len(r.instances))
	copy(res, r.instances)
	return res
}

func (r *Resolver) watch(events <-chan registry.Event) {
	defer close(r.done)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := r.ResolveNow(); err != nil {
				r.logger.Warn("refresh instances", zap.String("service", r.service),
					zap.Stringer("event", event.Type), zap.Error(err))
			}
		case <-r.close:
			return
		}
	}
}

// Close stops watching. The registry itself stays open.
func (r *Resolver) Close() error {
	r.closeOnce.Do(func() {
		close(r.close)
	})
	<-r.done
	return nil
}

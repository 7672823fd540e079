package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/gotomicro/ekit/bean/option"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
	"go.uber.org/zap"

	"ejrpc/internal/errs"
	"ejrpc/registry"
)

var _ registry.Registry = (*Registry)(nil)

var typesMap = map[mvccpb.Event_EventType]registry.EventType{
	mvccpb.PUT:    registry.EventTypeAdd,
	mvccpb.DELETE: registry.EventTypeDelete,
}

// Registry keeps instances under <prefix>/<service>/<address>, bound to the
// lease of one session so they vanish when the process dies.
type Registry struct {
	kv      clientv3.KV
	watcher clientv3.Watcher
	leaseID func() clientv3.LeaseID
	closeFn func() error

	prefix string
	ttl    int
	logger *zap.Logger

	mutex       sync.Mutex
	watchCancel []func()
}

// WithPrefix -> option
func WithPrefix(prefix string) option.Option[Registry] {
	return func(r *Registry) {
		r.prefix = strings.TrimSuffix(prefix, "/")
	}
}

// WithTTL sets the session lease, in seconds.
func WithTTL(seconds int) option.Option[Registry] {
	return func(r *Registry) {
		r.ttl = seconds
	}
}

// WithLogger -> option
func WithLogger(l *zap.Logger) option.Option[Registry] {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry opens a session on c. The client stays owned by the caller;
// Close only ends the session.
func NewRegistry(c *clientv3.Client, opts ...option.Option[Registry]) (*Registry, error) {
	r := newRegistry(c.KV, c.Watcher, opts...)
	sess, err := concurrency.NewSession(c, concurrency.WithTTL(r.ttl))
	if err != nil {
		return nil, err
	}
	r.leaseID = sess.Lease
	r.closeFn = sess.Close
	return r, nil
}

func newRegistry(kv clientv3.KV, watcher clientv3.Watcher, opts ...option.Option[Registry]) *Registry {
	r := &Registry{
		kv:      kv,
		watcher: watcher,
		leaseID: func() clientv3.LeaseID { return clientv3.NoLease },
		closeFn: func() error { return nil },
		prefix:  "/ejrpc",
		ttl:     60,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Register(ctx context.Context, inst registry.ServiceInstance) error {
	if inst.Name == "" {
		return errs.InvalidServiceName
	}
	val, err := json.Marshal(inst)
	if err != nil {
		return err
	}
	_, err = r.kv.Put(ctx, r.instanceKey(inst), string(val), clientv3.WithLease(r.leaseID()))
	return err
}

func (r *Registry) Unregister(ctx context.Context, inst registry.ServiceInstance) error {
	_, err := r.kv.Delete(ctx, r.instanceKey(inst))
	return err
}

func (r *Registry) ListServices(ctx context.Context, serviceName string) ([]registry.ServiceInstance, error) {
	resp, err := r.kv.Get(ctx, r.serviceKey(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	res := make([]registry.ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var si registry.ServiceInstance
		if err = json.Unmarshal(kv.Value, &si); err != nil {
			return nil, err
		}
		res = append(res, si)
	}
	return res, nil
}

func (r *Registry) Subscribe(serviceName string) (<-chan registry.Event, error) {
	if serviceName == "" {
		return nil, errs.InvalidServiceName
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.mutex.Lock()
	r.watchCancel = append(r.watchCancel, cancel)
	r.mutex.Unlock()

	ctx = clientv3.WithRequireLeader(ctx)
	watchCh := r.watcher.Watch(ctx, r.serviceKey(serviceName), clientv3.WithPrefix(), clientv3.WithPrevKV())
	res := make(chan registry.Event)
	go func() {
		defer close(res)
		for {
			select {
			case resp, ok := <-watchCh:
				if !ok || resp.Canceled {
					return
				}
				if err := resp.Err(); err != nil {
					r.logger.Warn("registry watch", zap.String("service", serviceName), zap.Error(err))
					continue
				}
				for _, event := range resp.Events {
					select {
					case res <- r.toEvent(serviceName, event):
					case <-ctx.Done():
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return res, nil
}

func (r *Registry) toEvent(serviceName string, event *clientv3.Event) registry.Event {
	kv := event.Kv
	if event.Type == mvccpb.DELETE && event.PrevKv != nil {
		kv = event.PrevKv
	}
	var ins registry.ServiceInstance
	if len(kv.Value) == 0 || json.Unmarshal(kv.Value, &ins) != nil {
		ins = registry.ServiceInstance{
			Name:    serviceName,
			Address: strings.TrimPrefix(string(kv.Key), r.serviceKey(serviceName)),
		}
	}
	return registry.Event{Type: typesMap[event.Type], Instance: ins}
}

// Close stops every subscription and ends the session.
func (r *Registry) Close() error {
	r.mutex.Lock()
	for _, cancel := range r.watchCancel {
		cancel()
	}
	r.watchCancel = nil
	r.mutex.Unlock()
	return r.closeFn()
}

func (r *Registry) instanceKey(ins registry.ServiceInstance) string {
	return r.serviceKey(ins.Name) + ins.Address
}

func (r *Registry) serviceKey(serviceName string) string {
	return fmt.Sprintf("%s/%s/", r.prefix, serviceName)
}

// Package broadcast sends one call to every instance of a service.
package broadcast

import (
	"context"
	"encoding/json"
	"net"
	"sync"

	"github.com/gotomicro/ekit/bean/option"

	"ejrpc"
	"ejrpc/registry"
)

// Resp is the answer of one instance.
type Resp struct {
	Instance registry.ServiceInstance
	Result   json.RawMessage
	Err      error
}

type Cluster struct {
	service  string
	registry registry.Registry
	dialer   net.Dialer
	opts     []option.Option[ejrpc.ClientConfig]
}

func NewCluster(r registry.Registry, service string, opts ...option.Option[ejrpc.ClientConfig]) *Cluster {
	return &Cluster{
		registry: r,
		service:  service,
		opts:     opts,
	}
}

// Broadcast calls method with params on every instance, each over its own
// connection. The channel yields one Resp per instance and is closed once
// all of them have answered or ctx has ended.
func (c *Cluster) Broadcast(ctx context.Context, method string, params json.RawMessage) (<-chan Resp, error) {
	instances, err := c.registry.ListServices(ctx, c.service)
	if err != nil {
		return nil, err
	}
	ch := make(chan Resp)
	var wg sync.WaitGroup
	wg.Add(len(instances))
	for _, instance := range instances {
		go func(in registry.ServiceInstance) {
			defer wg.Done()
			resp := c.call(ctx, in, method, params)
			// nobody may be listening any more
			select {
			case ch <- resp:
			case <-ctx.Done():
			}
		}(instance)
	}
	go func() {
		wg.Wait()
		close(ch)
	}()
	return ch, nil
}

func (c *Cluster) call(ctx context.Context, in registry.ServiceInstance, method string, params json.RawMessage) Resp {
	conn, err := c.dialer.DialContext(ctx, "tcp", in.Address)
	if err != nil {
		return Resp{Instance: in, Err: err}
	}
	// an empty service: only the generic call path is used
	client, err := ejrpc.NewClient[struct{}](conn, c.opts...)
	if err != nil {
		_ = conn.Close()
		return Resp{Instance: in, Err: err}
	}
	defer client.Close()
	res, err := client.Stage().Invoke(ctx, method, params).Get(ctx)
	return Resp{Instance: in, Result: res, Err: err}
}

package loadbalance

import (
	"context"

	"ejrpc/registry"
)

// PickInfo is what a balancer knows about the connection being opened.
type PickInfo struct {
	Ctx     context.Context
	Service string
}

// DoneInfo reports how the picked instance behaved.
type DoneInfo struct {
	Err error
}

type PickResult struct {
	Instance registry.ServiceInstance
	// Done feeds the outcome back to balancers that adapt their weights.
	Done func(info DoneInfo)
}

// Balancer chooses one of the live instances of a service.
type Balancer interface {
	Pick(info PickInfo, instances []registry.ServiceInstance) (PickResult, error)
	Name() string
}

type Filter func(info PickInfo, ins registry.ServiceInstance) bool

func AllFilter(PickInfo, registry.ServiceInstance) bool {
	return true
}

type groupKey struct{}

// WithGroup restricts GroupFilter to the instances of group.
func WithGroup(ctx context.Context, group string) context.Context {
	return context.WithValue(ctx, groupKey{}, group)
}

// GroupFilter keeps the instances of the group set with WithGroup. Without a
// group every instance is kept.
func GroupFilter(info PickInfo, ins registry.ServiceInstance) bool {
	if info.Ctx == nil {
		return true
	}
	group, ok := info.Ctx.Value(groupKey{}).(string)
	if !ok {
		return true
	}
	return group == ins.Group
}

func NopDone(DoneInfo) {}

package roundrobin

import (
	"sync"

	"ejrpc/internal/errs"
	"ejrpc/loadbalance"
	"ejrpc/registry"
)

const RoundRobin = "ROUND_ROBIN"

var _ loadbalance.Balancer = (*Balancer)(nil)

type Balancer struct {
	cnt    uint64
	mutex  sync.Mutex
	filter loadbalance.Filter
}

func NewBalancer(filter loadbalance.Filter) *Balancer {
	if filter == nil {
		filter = loadbalance.AllFilter
	}
	return &Balancer{filter: filter}
}

func (b *Balancer) Pick(info loadbalance.PickInfo, instances []registry.ServiceInstance) (loadbalance.PickResult, error) {
	candidates := make([]registry.ServiceInstance, 0, len(instances))
	for _, ins := range instances {
		if b.filter(info, ins) {
			candidates = append(candidates, ins)
		}
	}
	if len(candidates) == 0 {
		return loadbalance.PickResult{}, errs.NoInstance(info.Service)
	}
	b.mutex.Lock()
	index := b.cnt % uint64(len(candidates))
	b.cnt++
	b.mutex.Unlock()
	return loadbalance.PickResult{
		Instance: candidates[index],
		Done:     loadbalance.NopDone,
	}, nil
}

func (b *Balancer) Name() string {
	return RoundRobin
}

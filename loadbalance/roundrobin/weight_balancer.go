package roundrobin

import (
	"math"
	"sync"
	"sync/atomic"

	"ejrpc/internal/errs"
	"ejrpc/loadbalance"
	"ejrpc/registry"
)

const WeightRoundRobin = "WEIGHT_ROUND_ROBIN"

var _ loadbalance.Balancer = (*WeightBalancer)(nil)

// WeightBalancer is the smooth weighted round robin. Successful connections
// raise the efficient weight of their instance by one, failures lower it.
type WeightBalancer struct {
	mutex  sync.Mutex
	nodes  map[string]*weightNode
	filter loadbalance.Filter
}

type weightNode struct {
	weight          uint32
	efficientWeight uint32
	currentWeight   int64
}

func NewWeightBalancer(filter loadbalance.Filter) *WeightBalancer {
	if filter == nil {
		filter = loadbalance.AllFilter
	}
	return &WeightBalancer{
		nodes:  make(map[string]*weightNode, 8),
		filter: filter,
	}
}

func (b *WeightBalancer) Pick(info loadbalance.PickInfo, instances []registry.ServiceInstance) (loadbalance.PickResult, error) {
	b.mutex.Lock()
	var (
		totalWeight int64
		picked      *weightNode
		pickedIns   registry.ServiceInstance
	)
	for _, ins := range instances {
		if !b.filter(info, ins) {
			continue
		}
		node := b.node(ins)
		weight := int64(atomic.LoadUint32(&node.efficientWeight))
		totalWeight += weight
		node.currentWeight += weight
		if picked == nil || picked.currentWeight < node.currentWeight {
			picked, pickedIns = node, ins
		}
	}
	if picked == nil {
		b.mutex.Unlock()
		return loadbalance.PickResult{}, errs.NoInstance(info.Service)
	}
	picked.currentWeight -= totalWeight
	b.mutex.Unlock()

	return loadbalance.PickResult{
		Instance: pickedIns,
		Done: func(info loadbalance.DoneInfo) {
			for {
				weight := atomic.LoadUint32(&picked.efficientWeight)
				if info.Err != nil && weight == 0 {
					return
				}
				if info.Err == nil && weight == math.MaxUint32 {
					return
				}
				newWeight := weight + 1
				if info.Err != nil {
					newWeight = weight - 1
				}
				if atomic.CompareAndSwapUint32(&picked.efficientWeight, weight, newWeight) {
					return
				}
			}
		},
	}, nil
}

// node is called with the mutex held. A changed registry weight resets the
// node.
func (b *WeightBalancer) node(ins registry.ServiceInstance) *weightNode {
	node, ok := b.nodes[ins.Address]
	if !ok || node.weight != ins.Weight {
		node = &weightNode{
			weight:          ins.Weight,
			efficientWeight: ins.Weight,
		}
		b.nodes[ins.Address] = node
	}
	return node
}

func (b *WeightBalancer) Name() string {
	return WeightRoundRobin
}

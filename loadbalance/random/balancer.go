package random

import (
	"math/rand"

	"ejrpc/internal/errs"
	"ejrpc/loadbalance"
	"ejrpc/registry"
)

const (
	Random       = "RANDOM"
	WeightRandom = "WEIGHT_RANDOM"
)

var (
	_ loadbalance.Balancer = (*Balancer)(nil)
	_ loadbalance.Balancer = (*WeightBalancer)(nil)
)

type Balancer struct {
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
	return loadbalance.PickResult{
		Instance: candidates[rand.Intn(len(candidates))],
		Done:     loadbalance.NopDone,
	}, nil
}

func (b *Balancer) Name() string {
	return Random
}

// WeightBalancer picks an instance with a probability proportional to its
// registered weight.
type WeightBalancer struct {
	filter loadbalance.Filter
	// intn is rand.Intn, replaced in tests
	intn func(n int) int
}

func NewWeightBalancer(filter loadbalance.Filter) *WeightBalancer {
	if filter == nil {
		filter = loadbalance.AllFilter
	}
	return &WeightBalancer{filter: filter, intn: rand.Intn}
}

func (b *WeightBalancer) Pick(info loadbalance.PickInfo, instances []registry.ServiceInstance) (loadbalance.PickResult, error) {
	var (
		totalWeight uint32
		found       bool
	)
	for _, ins := range instances {
		if !b.filter(info, ins) {
			continue
		}
		found = true
		totalWeight += ins.Weight
	}
	if !found {
		return loadbalance.PickResult{}, errs.NoInstance(info.Service)
	}
	if totalWeight == 0 {
		return loadbalance.PickResult{}, errs.ZeroTotalWeightErr
	}
	val := b.intn(int(totalWeight))
	for _, ins := range instances {
		if !b.filter(info, ins) {
			continue
		}
		val -= int(ins.Weight)
		if val < 0 {
			return loadbalance.PickResult{Instance: ins, Done: loadbalance.NopDone}, nil
		}
	}
	// unreachable while weights are consistent
	return loadbalance.PickResult{}, errs.NoInstance(info.Service)
}

func (b *WeightBalancer) Name() string {
	return WeightRandom
}

package roundrobin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ejrpc/internal/errs"
	"ejrpc/loadbalance"
	"ejrpc/registry"
)

func TestBalancer_Pick(t *testing.T) {
	instances := []registry.ServiceInstance{
		{Name: "calc", Address: "10.0.0.1:8080", Group: "A"},
		{Name: "calc", Address: "10.0.0.2:8080", Group: "B"},
		{Name: "calc", Address: "10.0.0.3:8080", Group: "A"},
	}
	testCases := []struct {
		name     string
		balancer *Balancer
		info     loadbalance.PickInfo
		input    []registry.ServiceInstance
		want     []string
		wantErr  error
	}{
		{
			name:     "no instance",
			balancer: NewBalancer(nil),
			info:     loadbalance.PickInfo{Service: "calc"},
			wantErr:  errs.NoInstanceError,
		},
		{
			name:     "all",
			balancer: NewBalancer(nil),
			info:     loadbalance.PickInfo{Service: "calc"},
			input:    instances,
			want:     []string{"10.0.0.1:8080", "10.0.0.2:8080", "10.0.0.3:8080", "10.0.0.1:8080"},
		},
		{
			name:     "group",
			balancer: NewBalancer(loadbalance.GroupFilter),
			info: loadbalance.PickInfo{
				Ctx:     loadbalance.WithGroup(context.Background(), "A"),
				Service: "calc",
			},
			input: instances,
			want:  []string{"10.0.0.1:8080", "10.0.0.3:8080", "10.0.0.1:8080"},
		},
		{
			name:     "unknown group",
			balancer: NewBalancer(loadbalance.GroupFilter),
			info: loadbalance.PickInfo{
				Ctx:     loadbalance.WithGroup(context.Background(), "C"),
				Service: "calc",
			},
			input:   instances,
			wantErr: errs.NoInstanceError,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.wantErr != nil {
				_, err := tc.balancer.Pick(tc.info, tc.input)
				assert.True(t, errors.Is(err, tc.wantErr))
				return
			}
			for _, addr := range tc.want {
				res, err := tc.balancer.Pick(tc.info, tc.input)
				require.NoError(t, err)
				assert.Equal(t, addr, res.Instance.Address)
				res.Done(loadbalance.DoneInfo{})
			}
		})
	}
}

func TestWeightBalancer_Pick(t *testing.T) {
	b := NewWeightBalancer(nil)
	instances := []registry.ServiceInstance{
		{Address: "weight-5", Weight: 5},
		{Address: "weight-4", Weight: 4},
		{Address: "weight-3", Weight: 3},
	}
	var picked []string
	for i := 0; i < 5; i++ {
		res, err := b.Pick(loadbalance.PickInfo{}, instances)
		require.NoError(t, err)
		picked = append(picked, res.Instance.Address)
		if i == 4 {
			res.Done(loadbalance.DoneInfo{Err: errors.New("dial failed")})
		}
	}
	assert.Equal(t, []string{"weight-5", "weight-4", "weight-3", "weight-5", "weight-4"}, picked)
	assert.Equal(t, uint32(3), b.nodes["weight-4"].efficientWeight)

	// a new registry weight resets the node
	instances[1].Weight = 10
	_, err := b.Pick(loadbalance.PickInfo{}, instances)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), b.nodes["weight-4"].efficientWeight)

	_, err = b.Pick(loadbalance.PickInfo{Service: "calc"}, nil)
	assert.True(t, errors.Is(err, errs.NoInstanceError))
}

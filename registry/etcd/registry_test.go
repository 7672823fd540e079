package etcd

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"

	"ejrpc/internal/errs"
	"ejrpc/registry"
)

// memKV keeps puts in memory; Get always answers with a prefix scan.
type memKV struct {
	clientv3.KV
	mutex sync.Mutex
	data  map[string]string
	err   error
}

func (m *memKV) Put(_ context.Context, key, val string, _ ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.data[key] = val
	return &clientv3.PutResponse{}, nil
}

func (m *memKV) Delete(_ context.Context, key string, _ ...clientv3.OpOption) (*clientv3.DeleteResponse, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.data, key)
	return &clientv3.DeleteResponse{}, nil
}

func (m *memKV) Get(_ context.Context, key string, _ ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if strings.HasPrefix(k, key) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	resp := &clientv3.GetResponse{}
	for _, k := range keys {
		resp.Kvs = append(resp.Kvs, &mvccpb.KeyValue{Key: []byte(k), Value: []byte(m.data[k])})
	}
	return resp, nil
}

type chanWatcher struct {
	clientv3.Watcher
	key string
	ch  chan clientv3.WatchResponse
}

func (w *chanWatcher) Watch(_ context.Context, key string, _ ...clientv3.OpOption) clientv3.WatchChan {
	w.key = key
	return w.ch
}

func TestRegistry_RegisterAndList(t *testing.T) {
	kv := &memKV{data: map[string]string{}}
	r := newRegistry(kv, nil, WithPrefix("/test/"))

	a := registry.ServiceInstance{Name: "calc", Address: "10.0.0.1:8080", Weight: 10}
	b := registry.ServiceInstance{Name: "calc", Address: "10.0.0.2:8080", Weight: 20, Group: "B"}
	other := registry.ServiceInstance{Name: "calculator", Address: "10.0.0.3:8080"}
	for _, ins := range []registry.ServiceInstance{a, b, other} {
		require.NoError(t, r.Register(context.Background(), ins))
	}
	assert.Contains(t, kv.data, "/test/calc/10.0.0.1:8080")
	assert.True(t, errors.Is(r.Register(context.Background(), registry.ServiceInstance{}), errs.InvalidServiceName))

	got, err := r.ListServices(context.Background(), "calc")
	require.NoError(t, err)
	assert.Equal(t, []registry.ServiceInstance{a, b}, got)

	require.NoError(t, r.Unregister(context.Background(), a))
	got, err = r.ListServices(context.Background(), "calc")
	require.NoError(t, err)
	assert.Equal(t, []registry.ServiceInstance{b}, got)

	kv.err = errors.New("etcd down")
	_, err = r.ListServices(context.Background(), "calc")
	assert.EqualError(t, err, "etcd down")
	require.NoError(t, r.Close())
}

func TestRegistry_Subscribe(t *testing.T) {
	testCases := []struct {
		name      string
		resp      clientv3.WatchResponse
		wantEvent registry.Event
	}{
		{
			name: "put",
			resp: clientv3.WatchResponse{Events: []*clientv3.Event{{
				Type: mvccpb.PUT,
				Kv: &mvccpb.KeyValue{
					Key:   []byte("/ejrpc/calc/10.0.0.1:8080"),
					Value: []byte(`{"name":"calc","address":"10.0.0.1:8080","weight":3}`),
				},
			}}},
			wantEvent: registry.Event{
				Type:     registry.EventTypeAdd,
				Instance: registry.ServiceInstance{Name: "calc", Address: "10.0.0.1:8080", Weight: 3},
			},
		},
		{
			name: "delete with previous value",
			resp: clientv3.WatchResponse{Events: []*clientv3.Event{{
				Type: mvccpb.DELETE,
				Kv:   &mvccpb.KeyValue{Key: []byte("/ejrpc/calc/10.0.0.1:8080")},
				PrevKv: &mvccpb.KeyValue{
					Key:   []byte("/ejrpc/calc/10.0.0.1:8080"),
					Value: []byte(`{"name":"calc","address":"10.0.0.1:8080","weight":3,"group":"A"}`),
				},
			}}},
			wantEvent: registry.Event{
				Type:     registry.EventTypeDelete,
				Instance: registry.ServiceInstance{Name: "calc", Address: "10.0.0.1:8080", Weight: 3, Group: "A"},
			},
		},
		{
			name: "delete without previous value",
			resp: clientv3.WatchResponse{Events: []*clientv3.Event{{
				Type: mvccpb.DELETE,
				Kv:   &mvccpb.KeyValue{Key: []byte("/ejrpc/calc/10.0.0.2:8080")},
			}}},
			wantEvent: registry.Event{
				Type:     registry.EventTypeDelete,
				Instance: registry.ServiceInstance{Name: "calc", Address: "10.0.0.2:8080"},
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := &chanWatcher{ch: make(chan clientv3.WatchResponse, 1)}
			r := newRegistry(nil, w)
			ch, err := r.Subscribe("calc")
			require.NoError(t, err)
			assert.Equal(t, "/ejrpc/calc/", w.key)

			w.ch <- tc.resp
			assert.Equal(t, tc.wantEvent, <-ch)

			require.NoError(t, r.Close())
			_, ok := <-ch
			assert.False(t, ok)
		})
	}
}

func TestRegistry_SubscribeCanceled(t *testing.T) {
	w := &chanWatcher{ch: make(chan clientv3.WatchResponse, 1)}
	r := newRegistry(nil, w)
	_, err := r.Subscribe("")
	assert.True(t, errors.Is(err, errs.InvalidServiceName))

	ch, err := r.Subscribe("calc")
	require.NoError(t, err)
	w.ch <- clientv3.WatchResponse{Canceled: true}
	_, ok := <-ch
	assert.False(t, ok)
	require.NoError(t, r.Close())
}

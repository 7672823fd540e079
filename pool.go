package ejrpc

import (
	"time"

	"github.com/silenceper/pool"

	"ejrpc/internal/errs"
)

// PoolConfig sizes a Pool, with the meaning silenceper/pool gives it.
type PoolConfig struct {
	InitialCap  int
	MaxIdle     int
	MaxCap      int
	IdleTimeout time.Duration
}

// DefaultPoolConfig -> default
var DefaultPoolConfig = PoolConfig{
	InitialCap:  1,
	MaxIdle:     4,
	MaxCap:      8,
	IdleTimeout: time.Minute,
}

// Pool keeps clients of one service around. A client whose connection has
// failed is discarded on Get and on Put.
type Pool[T any] struct {
	p pool.Pool
}

func NewPool[T any](dial func() (*Client[T], error), cfg PoolConfig) (*Pool[T], error) {
	p, err := pool.NewChannelPool(&pool.Config{
		InitialCap: cfg.InitialCap,
		MaxIdle:    cfg.MaxIdle,
		MaxCap:     cfg.MaxCap,
		Factory: func() (interface{}, error) {
			return dial()
		},
		Close: func(v interface{}) error {
			return v.(*Client[T]).Close()
		},
		Ping: func(v interface{}) error {
			return alive(v.(*Client[T]))
		},
		IdleTimeout: cfg.IdleTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &Pool[T]{p: p}, nil
}

func alive[T any](c *Client[T]) error {
	select {
	case <-c.Done():
		return errs.ClosedError
	default:
		return nil
	}
}

func (p *Pool[T]) Get() (*Client[T], error) {
	v, err := p.p.Get()
	if err != nil {
		return nil, err
	}
	return v.(*Client[T]), nil
}

// Put hands c back, or closes it if its connection is gone.
func (p *Pool[T]) Put(c *Client[T]) error {
	if alive(c) != nil {
		return p.p.Close(c)
	}
	return p.p.Put(c)
}

func (p *Pool[T]) Len() int {
	return p.p.Len()
}

// Release closes every idle client.
func (p *Pool[T]) Release() {
	p.p.Release()
}

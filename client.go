package ejrpc

import (
	"context"
	"net"
	"sync"

	"github.com/gotomicro/ekit/bean/option"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ejrpc/rpc/compress"
	"ejrpc/transport"
)

// ClientConfig collects the options of NewClient.
type ClientConfig struct {
	catalog   *Catalog
	initialID uint64
	stageOpts []option.Option[Stage]
	connOpts  []option.Option[transport.Conn]
	logger    *zap.Logger
}

// ClientWithCatalog reuses a catalog built earlier for the proxy type.
func ClientWithCatalog(c *Catalog) option.Option[ClientConfig] {
	return func(cfg *ClientConfig) {
		cfg.catalog = c
	}
}

// ClientWithInitialID -> option
func ClientWithInitialID(id uint64) option.Option[ClientConfig] {
	return func(cfg *ClientConfig) {
		cfg.initialID = id
	}
}

// ClientWithStageOptions -> option
func ClientWithStageOptions(opts ...option.Option[Stage]) option.Option[ClientConfig] {
	return func(cfg *ClientConfig) {
		cfg.stageOpts = append(cfg.stageOpts, opts...)
	}
}

// ClientWithCompressor compresses outgoing frames.
func ClientWithCompressor(c compress.Compressor) option.Option[ClientConfig] {
	return func(cfg *ClientConfig) {
		cfg.connOpts = append(cfg.connOpts, transport.WithCompressor(c))
	}
}

// ClientWithMaxFrameSize -> option
func ClientWithMaxFrameSize(n uint64) option.Option[ClientConfig] {
	return func(cfg *ClientConfig) {
		cfg.connOpts = append(cfg.connOpts, transport.WithMaxFrameSize(n))
	}
}

// ClientWithLogger is used by the client and, unless a stage option says
// otherwise, by its stage.
func ClientWithLogger(l *zap.Logger) option.Option[ClientConfig] {
	return func(cfg *ClientConfig) {
		cfg.logger = l
	}
}

// Client runs a stage over one connection: a writer goroutine sends what
// the stage emits, a reader goroutine feeds it the responses. When the
// stream fails the stage is closed with the error as reason.
type Client[T any] struct {
	proxy  *T
	stage  *Stage
	conn   *transport.Conn
	logger *zap.Logger

	closeOnce sync.Once
	closing   bool
	mutex     sync.Mutex
	done      chan struct{}
	err       error
}

// NewClient takes ownership of conn.
func NewClient[T any](conn net.Conn, opts ...option.Option[ClientConfig]) (*Client[T], error) {
	cfg := &ClientConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}
	cat := cfg.catalog
	if cat == nil {
		var err error
		if cat, err = CatalogOf[T](); err != nil {
			return nil, err
		}
	}
	stageOpts := append([]option.Option[Stage]{WithLogger(cfg.logger)}, cfg.stageOpts...)
	stage, proxy, err := Build[T](cat, cfg.initialID, stageOpts...)
	if err != nil {
		return nil, err
	}
	c := &Client[T]{
		proxy:  proxy,
		stage:  stage,
		conn:   transport.NewConn(conn, cfg.connOpts...),
		logger: cfg.logger.With(zap.Stringer("remote", conn.RemoteAddr())),
		done:   make(chan struct{}),
	}
	var eg errgroup.Group
	eg.Go(c.writeLoop)
	eg.Go(c.readLoop)
	go func() {
		err := eg.Wait()
		c.mutex.Lock()
		c.err = err
		c.mutex.Unlock()
		close(c.done)
	}()
	return c, nil
}

// Dial connects to address and starts a client on the connection.
func Dial[T any](ctx context.Context, network, address string, opts ...option.Option[ClientConfig]) (*Client[T], error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	c, err := NewClient[T](conn, opts...)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// DialService connects to an instance of service found by d.
func DialService[T any](ctx context.Context, d *transport.Dialer, service string, opts ...option.Option[ClientConfig]) (*Client[T], error) {
	conn, err := d.Dial(ctx, service)
	if err != nil {
		return nil, err
	}
	c, err := NewClient[T](conn, opts...)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client[T]) writeLoop() error {
	for req := range c.stage.Outbound() {
		if err := c.conn.WriteRequest(req); err != nil {
			return c.fail(errors.Wrapf(err, "ejrpc: write %s", req.Method))
		}
	}
	return nil
}

// readLoop stops on stream errors only. A message that arrived whole but
// does not decode fails at most the call it names.
func (c *Client[T]) readLoop() error {
	for {
		resp, err := c.conn.ReadResponse()
		var malformed *transport.MalformedError
		if errors.As(err, &malformed) {
			c.stage.HandleMalformed(malformed.Payload, malformed)
			continue
		}
		if err != nil {
			return c.fail(errors.Wrap(err, "ejrpc: read response"))
		}
		c.stage.Handle(resp)
	}
}

// fail shuts the client down after a transport error. Errors caused by
// Close itself are not reported.
func (c *Client[T]) fail(err error) error {
	c.mutex.Lock()
	closing := c.closing
	c.mutex.Unlock()
	if closing {
		return nil
	}
	c.logger.Error("connection failed", zap.Error(err))
	c.shutdown(err.Error())
	return err
}

func (c *Client[T]) shutdown(reason string) {
	c.closeOnce.Do(func() {
		c.stage.CloseWithReason(reason)
		_ = c.conn.Close()
	})
}

// Proxy returns the live proxy.
func (c *Client[T]) Proxy() *T {
	return c.proxy
}

func (c *Client[T]) Stage() *Stage {
	return c.stage
}

// Done is closed once both goroutines have stopped.
func (c *Client[T]) Done() <-chan struct{} {
	return c.done
}

// Err returns the transport error that stopped the client, if any.
func (c *Client[T]) Err() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.err
}

// Close fails the pending calls, closes the connection and waits for the
// goroutines to stop.
func (c *Client[T]) Close() error {
	c.mutex.Lock()
	c.closing = true
	c.mutex.Unlock()
	c.shutdown("client closed")
	<-c.done
	return nil
}

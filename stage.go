package ejrpc

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/gotomicro/ekit/bean/option"
	"go.uber.org/zap"

	"ejrpc/internal/errs"
	"ejrpc/message"
	"ejrpc/observability"
	"ejrpc/ratelimit"
	"ejrpc/rpc/serialize"
	jsonserialize "ejrpc/rpc/serialize/json"
)

const defaultOutboundBuffer = 64

// Stage turns proxy calls into outbound messages and inbound responses into
// resolved futures. One stage owns its id sequence and its pending table.
//
// Calls made after Close return a future that already failed with a
// *ClosedError, and notification funcs declared with an error result return
// it. A notification func without a result has no way to report it: the
// message is dropped and only a warning is logged, so the caller is never
// told.
type Stage struct {
	catalog    *Catalog
	serializer serialize.Serializer
	logger     *zap.Logger
	observer   observability.Observer
	limiter    ratelimit.Limiter
	buffer     int

	table *pendingTable

	// sending orders id assignment and emission
	sending   sync.Mutex
	ids       idGenerator
	out       chan *message.Request
	outClosed bool

	closing   chan struct{}
	closeOnce sync.Once
	closeErr  *ClosedError
}

// Build creates a stage for cat, which must describe T, and a proxy whose
// func fields forward to it. Ids start at initialID.
func Build[T any](cat *Catalog, initialID uint64, opts ...option.Option[Stage]) (*Stage, *T, error) {
	s, err := NewStage(cat, initialID, opts...)
	if err != nil {
		return nil, nil, err
	}
	proxy := new(T)
	if err = s.Bind(proxy); err != nil {
		return nil, nil, err
	}
	return s, proxy, nil
}

// NewStage creates a stage without a proxy. Use Bind to wire one, or Invoke
// and Notify to call methods by name.
func NewStage(cat *Catalog, initialID uint64, opts ...option.Option[Stage]) (*Stage, error) {
	if cat == nil {
		return nil, errs.NilCatalogError
	}
	s := &Stage{
		catalog:    cat,
		serializer: jsonserialize.Serializer{},
		logger:     zap.NewNop(),
		observer:   nopObserver{},
		limiter:    nopLimiter{},
		buffer:     defaultOutboundBuffer,
		table:      newPendingTable(),
		ids:        idGenerator{next: initialID},
		closing:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.out = make(chan *message.Request, s.buffer)
	s.logger = s.logger.With(zap.String("service", cat.Name()))
	return s, nil
}

// Bind fills the func fields of service, a pointer to the struct the
// catalog describes. Nil nested pointers are allocated.
func (s *Stage) Bind(service any) error {
	val := reflect.ValueOf(service)
	if val.Kind() != reflect.Ptr || val.IsNil() || val.Elem().Type() != s.catalog.typ {
		return errs.CatalogMismatchError
	}
	s.install(val.Elem(), s.catalog, "", "")
	return nil
}

// Catalog returns the catalog the stage was built from.
func (s *Stage) Catalog() *Catalog {
	return s.catalog
}

// Outbound is the stream of messages to send. It is closed by Close, after
// which the messages still buffered can be read.
func (s *Stage) Outbound() <-chan *message.Request {
	return s.out
}

// Done is closed when the stage starts shutting down.
func (s *Stage) Done() <-chan struct{} {
	return s.closing
}

// Pending counts the requests waiting for a response.
func (s *Stage) Pending() int {
	return s.table.len()
}

// Invoke sends a request for method with already encoded params and returns
// the raw result. It never waits for the response.
func (s *Stage) Invoke(ctx context.Context, method string, params json.RawMessage) *Future[json.RawMessage] {
	f := newFuture[json.RawMessage]()
	s.send(ctx, method, params, f)
	return f
}

// Notify sends a notification. It returns once the message is enqueued.
func (s *Stage) Notify(ctx context.Context, method string, params json.RawMessage) error {
	done := s.observer.Observe(ctx, method, observability.KindNotification)
	err := s.notify(ctx, method, params)
	done(err)
	return err
}

func (s *Stage) notify(ctx context.Context, method string, params json.RawMessage) error {
	if err := s.limiter.Wait(ctx, method); err != nil {
		return err
	}
	s.sending.Lock()
	defer s.sending.Unlock()
	if s.outClosed {
		return s.closeErr
	}
	return s.push(ctx, message.NewNotification(method, params))
}

func (s *Stage) send(ctx context.Context, method string, params json.RawMessage, r resolvable) {
	call := &pendingCall{
		method:  method,
		result:  r,
		observe: s.observer.Observe(ctx, method, observability.KindRequest),
		start:   time.Now(),
	}
	if err := s.limiter.Wait(ctx, method); err != nil {
		call.fail(err)
		return
	}

	s.sending.Lock()
	defer s.sending.Unlock()
	if s.outClosed {
		call.fail(s.closeErr)
		return
	}
	call.id = s.ids.take()
	if err := s.table.register(call); err != nil {
		s.ids.giveBack(call.id)
		s.logger.Error("register pending call", zap.Uint64("id", call.id), zap.Error(err))
		call.fail(err)
		return
	}
	if err := s.push(ctx, message.NewRequest(call.id, method, params)); err != nil {
		s.ids.giveBack(call.id)
		// Close may have drained it already
		if c, ok := s.table.resolve(call.id); ok {
			c.fail(err)
		}
	}
}

// push is called with s.sending held. It blocks while the outbound buffer
// is full, until ctx ends or the stage closes.
func (s *Stage) push(ctx context.Context, req *message.Request) error {
	select {
	case <-s.closing:
		return s.closeErr
	default:
	}
	select {
	case s.out <- req:
		return nil
	case <-s.closing:
		return s.closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle routes one inbound response to its pending call. Responses that
// match nothing are logged and dropped.
func (s *Stage) Handle(resp *message.Response) {
	if resp == nil {
		s.logger.Debug("nil response discarded")
		return
	}
	select {
	case <-s.closing:
		s.logger.Debug("response after close discarded", zap.ByteString("id", resp.ID))
		return
	default:
	}
	id, ok := resp.RequestID()
	if !ok {
		s.logger.Warn("response without usable id discarded",
			zap.ByteString("id", resp.ID), zap.Error(errs.NullIDError))
		return
	}
	call, ok := s.table.resolve(id)
	if !ok {
		s.logger.Debug("unmatched response discarded", zap.Uint64("id", id))
		return
	}
	switch {
	case resp.Error != nil:
		call.fail(&RPCError{
			Code:    resp.Error.Code,
			Message: resp.Error.Message,
			Data:    resp.Error.Data,
		})
	case resp.Result != nil:
		call.complete(resp.Result, s.serializer)
	default:
		s.logger.Warn("empty response", zap.Uint64("id", id), zap.String("method", call.method))
		call.fail(&ProtocolError{ID: id, Method: call.method, Cause: errs.EmptyResponseErr})
	}
}

// HandleMalformed deals with an inbound message that was read in full but
// could not be decoded. If an id can still be found in data, the matching
// call fails with a *ProtocolError; otherwise the message is dropped. Other
// pending calls are not affected.
func (s *Stage) HandleMalformed(data []byte, cause error) {
	select {
	case <-s.closing:
		s.logger.Debug("malformed response after close discarded", zap.Error(cause))
		return
	default:
	}
	var head struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		s.logger.Warn("malformed response discarded", zap.Error(cause))
		return
	}
	id, ok := (&message.Response{ID: head.ID}).RequestID()
	if !ok {
		s.logger.Warn("malformed response without usable id discarded",
			zap.ByteString("id", head.ID), zap.Error(cause))
		return
	}
	call, ok := s.table.resolve(id)
	if !ok {
		s.logger.Debug("unmatched malformed response discarded", zap.Uint64("id", id), zap.Error(cause))
		return
	}
	s.logger.Warn("malformed response", zap.Uint64("id", id),
		zap.String("method", call.method), zap.Error(cause))
	call.fail(&ProtocolError{ID: id, Method: call.method, Cause: cause})
}

// Serve handles inbound responses one at a time until in is closed, ctx
// ends or the stage closes.
func (s *Stage) Serve(ctx context.Context, in <-chan *message.Response) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closing:
			return nil
		case resp, ok := <-in:
			if !ok {
				return nil
			}
			s.Handle(resp)
		}
	}
}

// Forget evicts the pending request id and fails it with err. It is the
// hook for timeouts layered on top of the stage.
func (s *Stage) Forget(id uint64, err error) bool {
	call, ok := s.table.resolve(id)
	if ok {
		call.fail(err)
	}
	return ok
}

// Close shuts the stage down: inbound handling stops, the outbound endpoint
// is closed and every pending call fails with a *ClosedError. Only the first
// call has any effect.
func (s *Stage) Close() error {
	s.CloseWithReason("closed")
	return nil
}

// CloseWithReason is Close with the reason carried by the *ClosedError.
func (s *Stage) CloseWithReason(reason string) {
	s.closeOnce.Do(func() {
		s.closeErr = &ClosedError{Reason: reason}
		close(s.closing)
		s.sending.Lock()
		s.outClosed = true
		close(s.out)
		s.sending.Unlock()
		n := s.table.drain(s.closeErr)
		s.logger.Info("stage closed", zap.String("reason", reason), zap.Int("drained", n))
	})
}

type nopObserver struct{}

func (nopObserver) Observe(context.Context, string, observability.Kind) func(error) {
	return func(error) {}
}

type nopLimiter struct{}

func (nopLimiter) Wait(ctx context.Context, _ string) error {
	return ctx.Err()
}

package ejrpc

import (
	"context"
	"reflect"
	"sync"

	"ejrpc/rpc/serialize"
)

// resolvable is what the correlation table keeps for a pending request.
// *Future[T] is the only implementation; the methods are unexported so the
// catalog can recognise request methods by their result type.
type resolvable interface {
	prepare()
	complete(data []byte, s serialize.Serializer) error
	fail(err error)
	valueType() reflect.Type
}

var resolvableType = reflect.TypeOf((*resolvable)(nil)).Elem()

var _ resolvable = (*Future[int])(nil)

// Future is the result of a request method. It is resolved exactly once,
// with a value or with an error, and may be read from any goroutine.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	f := &Future[T]{}
	f.prepare()
	return f
}

// Resolved returns a future that already holds val.
func Resolved[T any](val T) *Future[T] {
	f := newFuture[T]()
	f.settle(val, nil)
	return f
}

// Failed returns a future that already holds err.
func Failed[T any](err error) *Future[T] {
	f := newFuture[T]()
	f.fail(err)
	return f
}

// Done is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get waits for the result or for ctx to end. Giving up on ctx does not
// cancel the call.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wait blocks until the future is resolved.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.val, f.err
}

// Err returns the error of a resolved future, nil while it is pending.
func (f *Future[T]) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

func (f *Future[T]) prepare() {
	f.done = make(chan struct{})
}

func (f *Future[T]) complete(data []byte, s serialize.Serializer) error {
	var val T
	if err := s.Decode(data, &val); err != nil {
		return err
	}
	f.settle(val, nil)
	return nil
}

func (f *Future[T]) fail(err error) {
	var zero T
	f.settle(zero, err)
}

func (f *Future[T]) settle(val T, err error) {
	f.once.Do(func() {
		f.val, f.err = val, err
		close(f.done)
	})
}

func (f *Future[T]) valueType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Then derives a future from f. fn runs on its own goroutine once f
// succeeds; an error from f is passed through untouched.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	res := newFuture[U]()
	go func() {
		val, err := f.Wait()
		if err != nil {
			res.fail(err)
			return
		}
		res.settle(fn(val))
	}()
	return res
}

package errs

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// catalog construction
var (
	ServiceTypError         = errors.New("ejrpc: service must be a struct or a pointer to a struct")
	OverloadConflictError   = errors.New("ejrpc: overload conflict")
	UnresolvedGenericError  = errors.New("ejrpc: unresolved generic type")
	InvalidSignatureError   = errors.New("ejrpc: invalid method signature")
	CatalogMismatchError    = errors.New("ejrpc: catalog does not describe the proxy type")
	NilCatalogError         = errors.New("ejrpc: catalog is nil")
	UnserializableTypeError = errors.New("ejrpc: type cannot be serialized")
)

// stage runtime
var (
	ClosedError       = errors.New("ejrpc: stage closed")
	DuplicateIDError  = errors.New("ejrpc: duplicate request id")
	ProtocolError     = errors.New("ejrpc: protocol error")
	NullIDError       = errors.New("ejrpc: response carries no usable id")
	EmptyResponseErr  = errors.New("ejrpc: response carries neither result nor error")
	ReadLenDataError  = errors.New("ejrpc: could not read the length data")
	FrameTooLargeErr  = errors.New("ejrpc: frame exceeds the size limit")
	UnknownCompressor = errors.New("ejrpc: unknown compressor code")
)

// discovery
var (
	NoInstanceError    = errors.New("ejrpc: no service instance available")
	InvalidServiceName = errors.New("ejrpc: invalid service name")
	ZeroTotalWeightErr = errors.New("ejrpc: total weight of instances is zero")
)

func OverloadConflict(wireName string, a, b string) error {
	return errors.Wrapf(OverloadConflictError, "%q declared by %s and %s with different parameter shapes", wireName, a, b)
}

func UnresolvedGeneric(method string, typ reflect.Type) error {
	return errors.Wrapf(UnresolvedGenericError, "method %s uses non-concrete type %s", method, typ)
}

func InvalidSignature(method string, format string, args ...any) error {
	return errors.Wrapf(InvalidSignatureError, "method %s: %s", method, fmt.Sprintf(format, args...))
}

func DuplicateID(id uint64) error {
	return errors.Wrapf(DuplicateIDError, "id %d", id)
}

func FrameTooLarge(size, limit uint64) error {
	return errors.Wrapf(FrameTooLargeErr, "%d > %d", size, limit)
}

func NoInstance(serviceName string) error {
	return errors.Wrapf(NoInstanceError, "service %s", serviceName)
}

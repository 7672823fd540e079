package ejrpc

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/pkg/errors"

	"ejrpc/internal/errs"
)

// Catalog construction errors. They are only ever returned by NewCatalog and
// CatalogOf, never at call time.
var (
	ErrServiceType           = errs.ServiceTypError
	ErrOverloadConflict      = errs.OverloadConflictError
	ErrUnresolvedGenericType = errs.UnresolvedGenericError
	ErrInvalidSignature      = errs.InvalidSignatureError
)

// Call errors.
var (
	ErrClosed      = errs.ClosedError
	ErrDuplicateID = errs.DuplicateIDError
	ErrProtocol    = errs.ProtocolError
	// ErrCatalogMismatch is returned by Bind and Build when the catalog
	// describes another type.
	ErrCatalogMismatch = errs.CatalogMismatchError
)

// RPCError is a failure reported by the server for one request.
type RPCError struct {
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("ejrpc: remote error %d: %s", e.Code, e.Message)
}

// UnmarshalData decodes the optional data member into the value to points
// to.
func (e *RPCError) UnmarshalData(to any) error {
	if reflect.ValueOf(to).Kind() != reflect.Ptr {
		return errors.New("ejrpc: UnmarshalData expects a pointer")
	}
	if len(e.Data) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(e.Data, to), "ejrpc: could not unmarshal error data")
}

// ClosedError fails every call still pending when its stage shuts down, and
// every call made afterwards.
type ClosedError struct {
	Reason string
}

func (e *ClosedError) Error() string {
	return errs.ClosedError.Error() + ": " + e.Reason
}

func (e *ClosedError) Unwrap() error {
	return errs.ClosedError
}

// ProtocolError fails a call whose response could not be understood.
type ProtocolError struct {
	ID     uint64
	Method string
	Cause  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: response %d to %q: %v", errs.ProtocolError, e.ID, e.Method, e.Cause)
}

func (e *ProtocolError) Is(target error) bool {
	return target == errs.ProtocolError
}

func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

// IsClosed reports whether err comes from a closed stage.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

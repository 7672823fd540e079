package ejrpc

import (
	"sync"
	"time"

	"ejrpc/internal/errs"
	"ejrpc/rpc/serialize"
)

// pendingCall is one request waiting for its response.
type pendingCall struct {
	id      uint64
	method  string
	result  resolvable
	observe func(err error)
	start   time.Time
}

func (c *pendingCall) complete(data []byte, s serialize.Serializer) {
	if err := c.result.complete(data, s); err != nil {
		c.fail(&ProtocolError{ID: c.id, Method: c.method, Cause: err})
		return
	}
	c.observe(nil)
}

func (c *pendingCall) fail(err error) {
	c.result.fail(err)
	c.observe(err)
}

// pendingTable maps in-flight ids to their calls. Every registered id leaves
// the table exactly once, through resolve or drain; whoever removes an entry
// owns its resolution.
type pendingTable struct {
	mutex   sync.Mutex
	pending map[uint64]*pendingCall
	closed  bool
}

func newPendingTable() *pendingTable {
	return &pendingTable{pending: make(map[uint64]*pendingCall, 16)}
}

func (t *pendingTable) register(call *pendingCall) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.closed {
		return errs.ClosedError
	}
	if _, ok := t.pending[call.id]; ok {
		return errs.DuplicateID(call.id)
	}
	t.pending[call.id] = call
	return nil
}

// resolve removes the call for id. A false result means the id is unknown:
// late, duplicate or unsolicited.
func (t *pendingTable) resolve(id uint64) (*pendingCall, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	call, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	return call, ok
}

// drain empties the table for good and fails every call with err. It
// returns how many calls it failed.
func (t *pendingTable) drain(err error) int {
	t.mutex.Lock()
	calls := t.pending
	t.pending = make(map[uint64]*pendingCall)
	t.closed = true
	t.mutex.Unlock()
	for _, call := range calls {
		call.fail(err)
	}
	return len(calls)
}

func (t *pendingTable) len() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.pending)
}

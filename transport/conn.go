// Package transport carries JSON-RPC messages over a byte stream, one
// compressed frame per message.
package transport

import (
	"net"
	"sync"

	"github.com/gotomicro/ekit/bean/option"
	"github.com/pkg/errors"

	"ejrpc/internal/errs"
	"ejrpc/message"
	"ejrpc/rpc/compress"
	"ejrpc/rpc/compress/gzip"
	"ejrpc/rpc/compress/lz4"
	"ejrpc/rpc/compress/snappy"
	"ejrpc/rpc/compress/zlib"
	"ejrpc/rpc/serialize"
	"ejrpc/rpc/serialize/json"
)

// Compressors lists every compressor a Conn can read, by code.
func Compressors() map[byte]compress.Compressor {
	res := make(map[byte]compress.Compressor, 5)
	for _, c := range []compress.Compressor{
		compress.DoNothingCompressor{},
		gzip.Compressor{},
		lz4.Compressor{},
		snappy.Compressor{},
		zlib.Compressor{},
	} {
		res[c.Code()] = c
	}
	return res
}

// Conn reads and writes framed messages. Reads and writes may run
// concurrently with each other; concurrent writes are serialized.
type Conn struct {
	conn        net.Conn
	serializer  serialize.Serializer
	compressor  compress.Compressor
	compressors map[byte]compress.Compressor
	maxFrame    uint64

	wmu sync.Mutex
	rmu sync.Mutex
}

// WithCompressor sets the compressor for outgoing frames. Incoming frames
// are decoded with whatever compressor their code names.
func WithCompressor(c compress.Compressor) option.Option[Conn] {
	return func(conn *Conn) {
		conn.compressor = c
		conn.compressors[c.Code()] = c
	}
}

// WithMaxFrameSize -> option
func WithMaxFrameSize(n uint64) option.Option[Conn] {
	return func(conn *Conn) {
		conn.maxFrame = n
	}
}

func NewConn(c net.Conn, opts ...option.Option[Conn]) *Conn {
	res := &Conn{
		conn:        c,
		serializer:  json.Serializer{},
		compressor:  compress.DoNothingCompressor{},
		compressors: Compressors(),
		maxFrame:    DefaultMaxFrameSize,
	}
	for _, opt := range opts {
		opt(res)
	}
	return res
}

func (c *Conn) WriteRequest(req *message.Request) error {
	return c.write(req)
}

func (c *Conn) ReadResponse() (*message.Response, error) {
	resp := &message.Response{}
	if err := c.read(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// WriteResponse and ReadRequest serve the other end of the stream.
func (c *Conn) WriteResponse(resp *message.Response) error {
	return c.write(resp)
}

func (c *Conn) ReadRequest() (*message.Request, error) {
	req := &message.Request{}
	if err := c.read(req); err != nil {
		return nil, err
	}
	return req, nil
}

func (c *Conn) write(msg any) error {
	data, err := c.serializer.Encode(msg)
	if err != nil {
		return err
	}
	data, err = c.compressor.Compress(data)
	if err != nil {
		return err
	}
	frame := EncodeFrame(c.compressor.Code(), data)
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err = c.conn.Write(frame)
	return err
}

func (c *Conn) read(msg any) error {
	c.rmu.Lock()
	code, payload, err := ReadFrame(c.conn, c.maxFrame)
	c.rmu.Unlock()
	if err != nil {
		return err
	}
	cp, ok := c.compressors[code]
	if !ok {
		return errors.Wrapf(errs.UnknownCompressor, "%d", code)
	}
	data, err := cp.Uncompress(payload)
	if err != nil {
		return err
	}
	if err = c.serializer.Decode(data, msg); err != nil {
		return &MalformedError{Payload: data, Cause: err}
	}
	return nil
}

// MalformedError is returned by a read whose frame arrived whole but whose
// payload is not a valid message. The stream can still be read.
type MalformedError struct {
	Payload []byte
	Cause   error
}

func (e *MalformedError) Error() string {
	return "ejrpc: malformed message: " + e.Cause.Error()
}

func (e *MalformedError) Unwrap() error {
	return e.Cause
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

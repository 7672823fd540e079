// Package message holds the JSON-RPC 2.0 envelopes exchanged by a stage.
package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Version is the value of the "jsonrpc" member of every message.
const Version = "2.0"

// Reserved error codes.
const (
	ParseError     = -32700 // Invalid JSON was received.
	InvalidRequest = -32600 // The JSON sent is not a valid Request object.
	MethodNotFound = -32601 // The method does not exist / is not available.
	InvalidParams  = -32602 // Invalid method parameter(s).
	InternalError  = -32603 // Internal JSON-RPC error.
)

// Request is an outbound message. A nil ID makes it a notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewRequest builds a request that expects a response.
func NewRequest(id uint64, method string, params json.RawMessage) *Request {
	return &Request{JSONRPC: Version, ID: &id, Method: method, Params: params}
}

// NewNotification builds a request that expects no response.
func NewNotification(method string, params json.RawMessage) *Request {
	return &Request{JSONRPC: Version, Method: method, Params: params}
}

func (r *Request) IsNotification() bool {
	return r.ID == nil
}

func (r *Request) String() string {
	if r.ID == nil {
		return fmt.Sprintf("Notification(%q,%s)", r.Method, r.paramsString())
	}
	return fmt.Sprintf("Request(%d,%q,%s)", *r.ID, r.Method, r.paramsString())
}

func (r *Request) paramsString() string {
	if len(r.Params) == 0 {
		return "NoParams"
	}
	return string(r.Params)
}

// Response is an inbound message. Exactly one of Result and Error is set on
// a well formed response; Result holds the literal "null" for a null result.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewSuccess builds a successful response, mostly for servers and tests.
func NewSuccess(id uint64, result json.RawMessage) *Response {
	return &Response{JSONRPC: Version, ID: encodeID(id), Result: result}
}

// NewFailure builds an error response.
func NewFailure(id uint64, e *Error) *Response {
	return &Response{JSONRPC: Version, ID: encodeID(id), Error: e}
}

func encodeID(id uint64) json.RawMessage {
	return json.RawMessage(strconv.FormatUint(id, 10))
}

// RequestID extracts the id the response answers. Numbers and numeric
// strings are accepted; null, missing or negative ids are not.
func (r *Response) RequestID() (uint64, bool) {
	raw := bytes.TrimSpace(r.ID)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		raw = []byte(s)
	}
	id, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Error is the error object of a failed response.
type Error struct {
	// A number indicating the error type that occurred.
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

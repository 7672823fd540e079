package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_MarshalJSON(t *testing.T) {
	testCases := []struct {
		name string
		req  *Request
		want string
	}{
		{
			name: "request with named params",
			req:  NewRequest(0, "f", json.RawMessage(`{"x":42}`)),
			want: `{"jsonrpc":"2.0","id":0,"method":"f","params":{"x":42}}`,
		},
		{
			name: "request without params",
			req:  NewRequest(3, "nested/foo", nil),
			want: `{"jsonrpc":"2.0","id":3,"method":"nested/foo"}`,
		},
		{
			name: "notification",
			req:  NewNotification("g", json.RawMessage(`["foo"]`)),
			want: `{"jsonrpc":"2.0","method":"g","params":["foo"]}`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bs, err := json.Marshal(tc.req)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(bs))
		})
	}
}

func TestRequest_String(t *testing.T) {
	assert.Equal(t, `Request(1,"f",{"x":17})`, NewRequest(1, "f", json.RawMessage(`{"x":17}`)).String())
	assert.Equal(t, `Notification("g",NoParams)`, NewNotification("g", nil).String())
}

func TestResponse_RequestID(t *testing.T) {
	testCases := []struct {
		name   string
		input  string
		wantID uint64
		wantOK bool
	}{
		{name: "number", input: `{"jsonrpc":"2.0","id":7,"result":1}`, wantID: 7, wantOK: true},
		{name: "numeric string", input: `{"jsonrpc":"2.0","id":"12","result":1}`, wantID: 12, wantOK: true},
		{name: "null", input: `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"x"}}`},
		{name: "missing", input: `{"jsonrpc":"2.0","result":1}`},
		{name: "negative", input: `{"jsonrpc":"2.0","id":-1,"result":1}`},
		{name: "word", input: `{"jsonrpc":"2.0","id":"abc","result":1}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var resp Response
			require.NoError(t, json.Unmarshal([]byte(tc.input), &resp))
			id, ok := resp.RequestID()
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantID, id)
		})
	}
}

func TestResponse_UnmarshalResult(t *testing.T) {
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":1,"result":null}`), &resp))
	assert.Equal(t, json.RawMessage("null"), resp.Result)
	assert.Nil(t, resp.Error)

	resp = Response{}
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":17,"message":"fail!","data":{"a":1}}}`), &resp))
	assert.Nil(t, resp.Result)
	require.NotNil(t, resp.Error)
	assert.Equal(t, 17, resp.Error.Code)
	assert.Equal(t, "fail!", resp.Error.Message)
	assert.JSONEq(t, `{"a":1}`, string(resp.Error.Data))
}

package ejrpc

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ejrpc/internal/errs"
)

type paramsService struct {
	None   func()
	Named  func(a int, b []string) `params:"a,b"`
	Object func(p *fooParams)
	Map    func(m map[string]bool)
	Pos    func(a int, b fooParams)
	Float  func(f float64)
}

func Test_encodeParams(t *testing.T) {
	cat, err := CatalogOf[paramsService]()
	require.NoError(t, err)
	s, err := NewStage(cat, 0)
	require.NoError(t, err)

	testCases := []struct {
		name    string
		method  string
		args    []any
		want    string
		wantErr error
	}{
		{
			name:   "none",
			method: "None",
		},
		{
			name:   "named in declared order",
			method: "Named",
			args:   []any{2, []string{"x"}},
			want:   `{"a":2,"b":["x"]}`,
		},
		{
			name:   "named nil slice",
			method: "Named",
			args:   []any{0, []string(nil)},
			want:   `{"a":0,"b":null}`,
		},
		{
			name:   "object",
			method: "Object",
			args:   []any{&fooParams{X: 42}},
			want:   `{"x":42}`,
		},
		{
			name:   "nil object omits params",
			method: "Object",
			args:   []any{(*fooParams)(nil)},
		},
		{
			name:   "map object",
			method: "Map",
			args:   []any{map[string]bool{"on": true}},
			want:   `{"on":true}`,
		},
		{
			name:   "positional",
			method: "Pos",
			args:   []any{1, fooParams{X: 2}},
			want:   `[1,{"x":2}]`,
		},
		{
			name:    "unserializable value",
			method:  "Float",
			args:    []any{math.Inf(1)},
			wantErr: errs.UnserializableTypeError,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, ok := cat.Lookup(tc.method)
			require.True(t, ok)
			args := make([]reflect.Value, 0, len(tc.args))
			for _, a := range tc.args {
				args = append(args, reflect.ValueOf(a))
			}
			got, err := s.encodeParams(m, args)
			assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
			if err != nil {
				return
			}
			if tc.want == "" {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tc.want, string(got))
		})
	}
}

func Test_proxyEncodeFailure(t *testing.T) {
	s, proxy := newTestStage[struct {
		Ratio  func(f float64) *Future[int]
		Report func(f float64) error
	}](t, 0)

	_, err := proxy.Ratio(math.NaN()).Wait()
	assert.True(t, errors.Is(err, errs.UnserializableTypeError))
	assert.True(t, errors.Is(proxy.Report(math.NaN()), errs.UnserializableTypeError))
	assert.Equal(t, 0, s.Pending())
	assert.Len(t, s.Outbound(), 0)

	// no id was spent on the failed calls
	f := proxy.Ratio(1)
	req := <-s.Outbound()
	require.NotNil(t, req.ID)
	assert.Equal(t, uint64(0), *req.ID)
	assert.Nil(t, f.Err())
}

func Test_errValue(t *testing.T) {
	v := errValue(nil)
	assert.Equal(t, errorType, v.Type())
	assert.True(t, v.IsNil())

	boom := errors.New("boom")
	v = errValue(boom)
	assert.Equal(t, errorType, v.Type())
	assert.Equal(t, boom, v.Interface())
}

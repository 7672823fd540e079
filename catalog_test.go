package ejrpc

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fooParams struct {
	X int `json:"x"`
}

type nestedService struct {
	Foo func() *Future[string] `rpc:"foo"`
}

type testService struct {
	F      func(x int) *Future[string] `rpc:"f" params:"x"`
	G      func(s string)              `rpc:"g" params:"x"`
	Nested *nestedService              `rpc:"nested/"`
}

// Echo is a default method built on the proxy.
func (s *testService) Echo(x int) *Future[int] {
	return Then(s.F(x), func(v string) (int, error) {
		return len(v), nil
	})
}

type contextService struct {
	Add    func(ctx context.Context, a, b int) *Future[int] `params:"a,b"`
	Sum    func(ctx context.Context, values ...int) *Future[int]
	Ignore string `rpc:"-"`
	hidden int
}

func TestNewCatalog(t *testing.T) {
	testCases := []struct {
		name    string
		service any
		wantErr error
		want    []Method
	}{
		{
			name:    "nil",
			wantErr: ErrServiceType,
		},
		{
			name:    "not a struct",
			service: 12,
			wantErr: ErrServiceType,
		},
		{
			name:    "variadic",
			service: contextService{},
			wantErr: ErrInvalidSignature,
		},
		{
			name: "bad result",
			service: struct {
				F func() int
			}{},
			wantErr: ErrInvalidSignature,
		},
		{
			name: "two results",
			service: struct {
				F func() (*Future[int], error)
			}{},
			wantErr: ErrInvalidSignature,
		},
		{
			name: "plain field",
			service: struct {
				Name string
			}{},
			wantErr: ErrInvalidSignature,
		},
		{
			name: "channel param",
			service: struct {
				F func(c chan int)
			}{},
			wantErr: ErrInvalidSignature,
		},
		{
			name: "params tag count",
			service: struct {
				F func(a, b int) `params:"a"`
			}{},
			wantErr: ErrInvalidSignature,
		},
		{
			name: "interface param",
			service: struct {
				F func(v any)
			}{},
			wantErr: ErrUnresolvedGenericType,
		},
		{
			name: "interface inside struct",
			service: struct {
				F func(v struct{ Inner []map[string]error })
			}{},
			wantErr: ErrUnresolvedGenericType,
		},
		{
			name: "interface result",
			service: struct {
				F func() *Future[any]
			}{},
			wantErr: ErrUnresolvedGenericType,
		},
		{
			name: "overload conflict",
			service: struct {
				A func(x int)    `rpc:"f"`
				B func(x string) `rpc:"f"`
			}{},
			wantErr: ErrOverloadConflict,
		},
		{
			name: "overload conflict across namespaces",
			service: struct {
				Foo    func(x int)   `rpc:"nested/foo"`
				Nested nestedService `rpc:"nested/"`
			}{},
			wantErr: ErrOverloadConflict,
		},
		{
			name: "same shape accepted",
			service: struct {
				A func(x int) `rpc:"f"`
				B func(x int) `rpc:"f"`
			}{},
			want: []Method{
				{Name: "A", WireName: "f", Kind: ParamsPositional, Params: []Param{{Type: reflect.TypeOf(0)}}},
				{Name: "B", WireName: "f", Kind: ParamsPositional, Params: []Param{{Type: reflect.TypeOf(0)}}},
			},
		},
		{
			name:    "service",
			service: &testService{},
			want: []Method{
				{
					Name: "F", WireName: "f", Kind: ParamsNamed,
					Params:          []Param{{Name: "x", Type: reflect.TypeOf(0)}},
					ExpectsResponse: true, ResultType: reflect.TypeOf(""),
				},
				{
					Name: "G", WireName: "g", Kind: ParamsNamed,
					Params: []Param{{Name: "x", Type: reflect.TypeOf("")}},
				},
				{
					Name: "Nested.Foo", WireName: "foo", Namespace: "nested/", Kind: ParamsNone,
					ExpectsResponse: true, ResultType: reflect.TypeOf(""),
				},
			},
		},
		{
			name: "context and error",
			service: struct {
				Add    func(ctx context.Context, a, b int) *Future[int] `params:"a,b"`
				Log    func(ctx context.Context, p fooParams) error
				Pos    func(p fooParams) `rpc:",positional"`
				Ignore string            `rpc:"-"`
				hidden int
			}{},
			want: []Method{
				{
					Name: "Add", WireName: "Add", Kind: ParamsNamed,
					Params: []Param{
						{Name: "a", Position: 0, Type: reflect.TypeOf(0)},
						{Name: "b", Position: 1, Type: reflect.TypeOf(0)},
					},
					ExpectsResponse: true, ResultType: reflect.TypeOf(0), HasContext: true,
				},
				{
					Name: "Log", WireName: "Log", Kind: ParamsNamed,
					Params:     []Param{{Type: reflect.TypeOf(fooParams{})}},
					HasContext: true, ReturnsError: true,
				},
				{
					Name: "Pos", WireName: "Pos", Kind: ParamsPositional,
					Params: []Param{{Type: reflect.TypeOf(fooParams{})}},
				},
			},
		},
		{
			name: "custom marshaler is concrete",
			service: struct {
				At  func(t time.Time) *Future[json.RawMessage]
				Raw func(m json.RawMessage)
			}{},
			want: []Method{
				{
					Name: "At", WireName: "At", Kind: ParamsPositional,
					Params:          []Param{{Type: reflect.TypeOf(time.Time{})}},
					ExpectsResponse: true, ResultType: reflect.TypeOf(json.RawMessage{}),
				},
				{
					Name: "Raw", WireName: "Raw", Kind: ParamsPositional,
					Params: []Param{{Type: reflect.TypeOf(json.RawMessage{})}},
				},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewCatalog(tc.service)
			assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
			if err != nil {
				return
			}
			got := c.Methods()
			require.Len(t, got, len(tc.want))
			for i, m := range got {
				w := tc.want[i]
				assert.Equal(t, w.Name, m.Name)
				assert.Equal(t, w.WireName, m.WireName)
				assert.Equal(t, w.Namespace, m.Namespace)
				assert.Equal(t, w.Kind, m.Kind)
				assert.Equal(t, w.Params, m.Params)
				assert.Equal(t, w.ExpectsResponse, m.ExpectsResponse)
				assert.Equal(t, w.ResultType, m.ResultType)
				assert.Equal(t, w.HasContext, m.HasContext)
				assert.Equal(t, w.ReturnsError, m.ReturnsError)
			}
		})
	}
}

type selfNested struct {
	Again *selfNested
}

func TestNewCatalog_SelfNesting(t *testing.T) {
	_, err := CatalogOf[selfNested]()
	assert.True(t, errors.Is(err, ErrInvalidSignature))
}

func TestCatalog_Lookup(t *testing.T) {
	c, err := CatalogOf[testService]()
	require.NoError(t, err)
	assert.Equal(t, "testService", c.Name())
	assert.Equal(t, reflect.TypeOf(testService{}), c.Type())

	m, ok := c.Lookup("nested/foo")
	require.True(t, ok)
	assert.Equal(t, "Nested.Foo", m.Name)
	assert.Equal(t, "nested/foo", m.FullName())

	_, ok = c.Lookup("foo")
	assert.False(t, ok)
}

func TestCatalog_SharedAcrossStages(t *testing.T) {
	c, err := CatalogOf[testService]()
	require.NoError(t, err)
	s1, p1, err := Build[testService](c, 0)
	require.NoError(t, err)
	s2, p2, err := Build[testService](c, 100)
	require.NoError(t, err)

	p1.G("a")
	p2.G("b")
	assert.JSONEq(t, `{"x":"a"}`, string((<-s1.Outbound()).Params))
	assert.JSONEq(t, `{"x":"b"}`, string((<-s2.Outbound()).Params))
}

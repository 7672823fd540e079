package ejrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"ejrpc/internal/errs"
)

// install sets every func field of val, recursing into nested services.
func (s *Stage) install(val reflect.Value, cat *Catalog, path, namespace string) {
	for _, m := range cat.methods {
		cp := *m
		cp.Name = path + m.Name
		cp.Namespace = namespace
		val.Field(m.field).Set(reflect.MakeFunc(m.funcType, s.proxyFunc(cp)))
	}
	for _, n := range cat.nested {
		fieldVal := val.Field(n.field)
		if n.ptr {
			if fieldVal.IsNil() {
				fieldVal.Set(reflect.New(n.catalog.typ))
			}
			fieldVal = fieldVal.Elem()
		}
		s.install(fieldVal, n.catalog, path+n.name+".", namespace+n.namespace)
	}
}

func (s *Stage) proxyFunc(m Method) func(args []reflect.Value) []reflect.Value {
	name := m.FullName()
	return func(args []reflect.Value) []reflect.Value {
		ctx := context.Background()
		if m.HasContext {
			if c, ok := args[0].Interface().(context.Context); ok && c != nil {
				ctx = c
			}
			args = args[1:]
		}
		params, err := s.encodeParams(m, args)

		if m.ExpectsResponse {
			ret := reflect.New(m.funcType.Out(0).Elem())
			res := ret.Interface().(resolvable)
			res.prepare()
			if err != nil {
				res.fail(err)
			} else {
				s.send(ctx, name, params, res)
			}
			return []reflect.Value{ret}
		}

		if err == nil {
			err = s.Notify(ctx, name, params)
		}
		if m.ReturnsError {
			return []reflect.Value{errValue(err)}
		}
		if err != nil {
			s.logger.Warn("notification dropped", zap.String("method", name), zap.Error(err))
		}
		return nil
	}
}

// errValue builds the error result of a proxy func. A bare reflect.Zero of a
// nil error would carry no type.
func errValue(err error) reflect.Value {
	if err == nil {
		return reflect.Zero(errorType)
	}
	return reflect.ValueOf(&err).Elem()
}

// encodeParams renders the params member for m. A nil result means the
// member is omitted.
func (s *Stage) encodeParams(m Method, args []reflect.Value) (json.RawMessage, error) {
	switch {
	case m.Kind == ParamsNone:
		return nil, nil
	case m.object:
		arg := args[0]
		if (arg.Kind() == reflect.Ptr || arg.Kind() == reflect.Map) && arg.IsNil() {
			return nil, nil
		}
		return s.encodeArg(m, 0, arg)
	}

	var buf bytes.Buffer
	if m.Kind == ParamsNamed {
		buf.WriteByte('{')
	} else {
		buf.WriteByte('[')
	}
	for i, arg := range args {
		if i > 0 {
			buf.WriteByte(',')
		}
		if m.Kind == ParamsNamed {
			key, _ := json.Marshal(m.Params[i].Name)
			buf.Write(key)
			buf.WriteByte(':')
		}
		data, err := s.encodeArg(m, i, arg)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	if m.Kind == ParamsNamed {
		buf.WriteByte('}')
	} else {
		buf.WriteByte(']')
	}
	return buf.Bytes(), nil
}

func (s *Stage) encodeArg(m Method, i int, arg reflect.Value) ([]byte, error) {
	data, err := s.serializer.Encode(arg.Interface())
	if err != nil {
		return nil, errors.Wrapf(errs.UnserializableTypeError, "%s argument %d: %v", m.Name, i, err)
	}
	return data, nil
}

package ejrpc

import (
	"context"
	"encoding"
	"encoding/json"
	"reflect"
	"strings"

	"ejrpc/internal/errs"
)

// ParamKind is the shape of the params member of an outbound message.
type ParamKind uint8

const (
	ParamsNone ParamKind = iota
	// ParamsNamed sends a JSON object.
	ParamsNamed
	// ParamsPositional sends a JSON array.
	ParamsPositional
)

func (k ParamKind) String() string {
	switch k {
	case ParamsNamed:
		return "named"
	case ParamsPositional:
		return "positional"
	default:
		return "none"
	}
}

// Param is one serialized argument of a method. Name is empty for
// positional params and for a single argument sent as the params object.
type Param struct {
	Name     string
	Position int
	Type     reflect.Type
}

// Method describes one callable func field of a service.
type Method struct {
	// Name is the dotted path of the func field, e.g. "Nested.Foo".
	Name            string
	WireName        string
	Namespace       string
	Kind            ParamKind
	Params          []Param
	ExpectsResponse bool
	// ResultType is T for a method returning *Future[T], nil otherwise.
	ResultType   reflect.Type
	HasContext   bool
	ReturnsError bool

	// object is set when the single argument is itself the params object.
	object   bool
	funcType reflect.Type
	field    int
}

// FullName is the method member written on the wire.
func (m Method) FullName() string {
	return m.Namespace + m.WireName
}

func (m Method) sameShape(o Method) bool {
	if m.Kind != o.Kind || m.object != o.object || len(m.Params) != len(o.Params) {
		return false
	}
	for i, p := range m.Params {
		if p.Name != o.Params[i].Name || p.Type != o.Params[i].Type {
			return false
		}
	}
	return true
}

// Catalog is the validated description of a service struct. It is
// immutable and may be shared by any number of stages.
type Catalog struct {
	name    string
	typ     reflect.Type
	methods []*Method
	nested  []*nestedCatalog
	// flattened view, namespaces applied
	flat   []Method
	byWire map[string]int
}

type nestedCatalog struct {
	field     int
	name      string
	namespace string
	ptr       bool
	catalog   *Catalog
}

var (
	contextType     = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType       = reflect.TypeOf((*error)(nil)).Elem()
	marshalerType   = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	unmarshalerType = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()
	textType        = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// NewCatalog describes the struct (or pointer to struct) service. Every
// exported field must be either a func field or a nested service:
//
//	type Calculator struct {
//		Add    func(ctx context.Context, a, b int) *ejrpc.Future[int] `params:"a,b"`
//		Log    func(line string)                                      `rpc:"log"`
//		Admin  *Admin                                                 `rpc:"admin/"`
//	}
//
// A func field returning *Future[T] is a request, one returning nothing or
// error is a notification.
func NewCatalog(service any) (*Catalog, error) {
	if service == nil {
		return nil, errs.ServiceTypError
	}
	return buildCatalog(reflect.TypeOf(service))
}

// CatalogOf is NewCatalog for the type T.
func CatalogOf[T any]() (*Catalog, error) {
	return buildCatalog(reflect.TypeOf((*T)(nil)).Elem())
}

func buildCatalog(typ reflect.Type) (*Catalog, error) {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, errs.ServiceTypError
	}
	c, err := newCatalog(typ, map[reflect.Type]bool{})
	if err != nil {
		return nil, err
	}
	c.flat = c.flatten("", "")
	c.byWire = make(map[string]int, len(c.flat))
	for i, m := range c.flat {
		j, ok := c.byWire[m.FullName()]
		if !ok {
			c.byWire[m.FullName()] = i
			continue
		}
		if !c.flat[j].sameShape(m) {
			return nil, errs.OverloadConflict(m.FullName(), c.flat[j].Name, m.Name)
		}
	}
	return c, nil
}

func newCatalog(typ reflect.Type, visiting map[reflect.Type]bool) (*Catalog, error) {
	if visiting[typ] {
		return nil, errs.InvalidSignature(typ.String(), "service nests itself")
	}
	visiting[typ] = true
	defer delete(visiting, typ)

	c := &Catalog{name: typ.Name(), typ: typ}
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, opts := parseTag(sf.Tag.Get("rpc"))
		if name == "-" {
			continue
		}
		ft := sf.Type
		switch {
		case ft.Kind() == reflect.Func:
			m, err := newMethod(sf, name, opts)
			if err != nil {
				return nil, err
			}
			m.field = i
			c.methods = append(c.methods, m)
		case ft.Kind() == reflect.Struct, ft.Kind() == reflect.Ptr && ft.Elem().Kind() == reflect.Struct:
			n := &nestedCatalog{field: i, name: sf.Name, namespace: name, ptr: ft.Kind() == reflect.Ptr}
			if n.ptr {
				ft = ft.Elem()
			}
			sub, err := newCatalog(ft, visiting)
			if err != nil {
				return nil, err
			}
			n.catalog = sub
			c.nested = append(c.nested, n)
		default:
			return nil, errs.InvalidSignature(sf.Name, "field of type %s is neither a func nor a nested service", ft)
		}
	}
	return c, nil
}

func newMethod(sf reflect.StructField, name string, opts []string) (*Method, error) {
	ft := sf.Type
	if ft.IsVariadic() {
		return nil, errs.InvalidSignature(sf.Name, "variadic funcs are not supported")
	}
	m := &Method{
		Name:     sf.Name,
		WireName: sf.Name,
		funcType: ft,
	}
	if name != "" {
		m.WireName = name
	}

	switch ft.NumOut() {
	case 0:
	case 1:
		out := ft.Out(0)
		switch {
		case out == errorType:
			m.ReturnsError = true
		case out.Kind() == reflect.Ptr && out.Implements(resolvableType):
			m.ExpectsResponse = true
			m.ResultType = reflect.New(out.Elem()).Interface().(resolvable).valueType()
			if err := checkType(sf.Name, m.ResultType); err != nil {
				return nil, err
			}
		default:
			return nil, errs.InvalidSignature(sf.Name, "result %s is neither *Future[T] nor error", out)
		}
	default:
		return nil, errs.InvalidSignature(sf.Name, "%d results", ft.NumOut())
	}

	first := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		m.HasContext = true
		first = 1
	}
	for j := first; j < ft.NumIn(); j++ {
		if err := checkType(sf.Name, ft.In(j)); err != nil {
			return nil, err
		}
		m.Params = append(m.Params, Param{Position: j - first, Type: ft.In(j)})
	}

	names := sf.Tag.Get("params")
	switch {
	case names != "":
		parts := strings.Split(names, ",")
		if len(parts) != len(m.Params) {
			return nil, errs.InvalidSignature(sf.Name, "params tag names %d arguments, func takes %d", len(parts), len(m.Params))
		}
		for j, p := range parts {
			m.Params[j].Name = strings.TrimSpace(p)
		}
		m.Kind = ParamsNamed
	case len(m.Params) == 0:
		m.Kind = ParamsNone
	case hasOption(opts, "positional"):
		m.Kind = ParamsPositional
	case len(m.Params) == 1 && isObject(m.Params[0].Type):
		m.Kind = ParamsNamed
		m.object = true
	default:
		m.Kind = ParamsPositional
	}
	return m, nil
}

// checkType rejects types that are not fully concrete, or that JSON cannot
// carry at all.
func checkType(method string, typ reflect.Type) error {
	if bad, unresolved := inspectType(typ, map[reflect.Type]bool{}); bad != nil {
		if unresolved {
			return errs.UnresolvedGeneric(method, bad)
		}
		return errs.InvalidSignature(method, "type %s cannot be serialized", bad)
	}
	return nil
}

func inspectType(typ reflect.Type, seen map[reflect.Type]bool) (reflect.Type, bool) {
	if typ.Kind() == reflect.Interface {
		return typ, true
	}
	// custom codecs take care of their own fields
	if typ.Implements(marshalerType) && (reflect.PointerTo(typ).Implements(unmarshalerType) ||
		reflect.PointerTo(typ).Implements(textType)) {
		return nil, false
	}
	switch typ.Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return typ, false
	case reflect.Ptr, reflect.Slice, reflect.Array:
		return inspectType(typ.Elem(), seen)
	case reflect.Map:
		if bad, unresolved := inspectType(typ.Key(), seen); bad != nil {
			return bad, unresolved
		}
		return inspectType(typ.Elem(), seen)
	case reflect.Struct:
		if seen[typ] {
			return nil, false
		}
		seen[typ] = true
		for i := 0; i < typ.NumField(); i++ {
			f := typ.Field(i)
			if !f.IsExported() && !f.Anonymous {
				continue
			}
			if f.Tag.Get("json") == "-" {
				continue
			}
			if bad, unresolved := inspectType(f.Type, seen); bad != nil {
				return bad, unresolved
			}
		}
	}
	return nil, false
}

func isObject(typ reflect.Type) bool {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Implements(marshalerType) || reflect.PointerTo(typ).Implements(marshalerType) {
		return false
	}
	return typ.Kind() == reflect.Struct || typ.Kind() == reflect.Map && typ.Key().Kind() == reflect.String
}

func (c *Catalog) flatten(path, namespace string) []Method {
	res := make([]Method, 0, len(c.methods))
	for _, m := range c.methods {
		cp := *m
		cp.Name = path + m.Name
		cp.Namespace = namespace
		res = append(res, cp)
	}
	for _, n := range c.nested {
		res = append(res, n.catalog.flatten(path+n.name+".", namespace+n.namespace)...)
	}
	return res
}

// Name is the name of the described struct type.
func (c *Catalog) Name() string {
	return c.name
}

// Type is the described struct type.
func (c *Catalog) Type() reflect.Type {
	return c.typ
}

// Methods lists every method, nested ones included, in field order.
func (c *Catalog) Methods() []Method {
	res := make([]Method, len(c.flat))
	copy(res, c.flat)
	return res
}

// Lookup finds a method by its full wire name.
func (c *Catalog) Lookup(fullName string) (Method, bool) {
	i, ok := c.byWire[fullName]
	if !ok {
		return Method{}, false
	}
	return c.flat[i], true
}

func parseTag(tag string) (string, []string) {
	parts := strings.Split(tag, ",")
	return parts[0], parts[1:]
}

func hasOption(opts []string, opt string) bool {
	for _, o := range opts {
		if strings.TrimSpace(o) == opt {
			return true
		}
	}
	return false
}

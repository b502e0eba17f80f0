package di

import (
	"reflect"
)

// Resolver 由容器实现，注入器通过它获取依赖。
type Resolver interface {
	// Resolve 解析 typ 的实例
	Resolve(typ reflect.Type) (any, error)
	// ResolveOrParameter 先在 params 中查找匹配的覆盖值，找不到再按类型解析
	ResolveOrParameter(typ reflect.Type, name string, params []Parameter) (any, error)
}

// Parameter 调用方提供的参数覆盖。
type Parameter interface {
	Match(typ reflect.Type, name string) bool
	Value() any
}

// NamedParameter 按参数名匹配
type NamedParameter struct {
	name  string
	value any
}

// Named 创建按名称匹配的参数覆盖
func Named(name string, value any) *NamedParameter {
	return &NamedParameter{name: name, value: value}
}

func (p *NamedParameter) Match(_ reflect.Type, name string) bool {
	return name != "" && p.name == name
}

func (p *NamedParameter) Value() any {
	return p.value
}

// TypedParameter 按参数类型匹配
type TypedParameter struct {
	typ   reflect.Type
	value any
}

// Typed 创建按类型 T 匹配的参数覆盖
func Typed[T any](value T) *TypedParameter {
	return &TypedParameter{typ: reflect.TypeFor[T](), value: value}
}

// TypedFor 创建按 typ 匹配的参数覆盖
func TypedFor(typ reflect.Type, value any) *TypedParameter {
	return &TypedParameter{typ: typ, value: value}
}

func (p *TypedParameter) Match(typ reflect.Type, _ string) bool {
	return p.typ == typ
}

func (p *TypedParameter) Value() any {
	return p.value
}

// FindParameter 返回第一个匹配 (typ, name) 的参数覆盖
func FindParameter(params []Parameter, typ reflect.Type, name string) (Parameter, bool) {
	for _, p := range params {
		if p != nil && p.Match(typ, name) {
			return p, true
		}
	}
	return nil, false
}

// ResolverFunc 将函数适配为 Resolver，ResolveOrParameter 先查找参数覆盖。
type ResolverFunc func(typ reflect.Type) (any, error)

func (f ResolverFunc) Resolve(typ reflect.Type) (any, error) {
	return f(typ)
}

func (f ResolverFunc) ResolveOrParameter(typ reflect.Type, name string, params []Parameter) (any, error) {
	if p, ok := FindParameter(params, typ, name); ok {
		return p.Value(), nil
	}
	return f(typ)
}

// Resolve 解析类型 T 的实例（生成代码使用）
func Resolve[T any](r Resolver) (T, error) {
	typ := reflect.TypeFor[T]()
	v, err := r.Resolve(typ)
	if err != nil {
		var zero T
		return zero, err
	}
	return castResolved[T](typ, v)
}

// ResolveOrParameter 按参数名/类型解析 T 的实例（生成代码使用）
func ResolveOrParameter[T any](r Resolver, name string, params []Parameter) (T, error) {
	typ := reflect.TypeFor[T]()
	v, err := r.ResolveOrParameter(typ, name, params)
	if err != nil {
		var zero T
		return zero, err
	}
	return castResolved[T](typ, v)
}

func castResolved[T any](typ reflect.Type, v any) (T, error) {
	if t, ok := v.(T); ok {
		return t, nil
	}
	var zero T
	if v == nil && isNillable(typ) {
		return zero, nil
	}
	return zero, &ResolvedTypeError{Type: KeyFor(typ), Member: typ.String(), Want: typ, Got: reflect.TypeOf(v)}
}

// InstanceOf 将 Inject 收到的实例转换为 *T
func InstanceOf[T any](instance any) (*T, error) {
	x, ok := instance.(*T)
	if !ok {
		return nil, &InstanceTypeError{Type: KeyOf[T](), Got: reflect.TypeOf(instance)}
	}
	if x == nil {
		return nil, &InstanceTypeError{Type: KeyOf[T]()}
	}
	return x, nil
}

// resolvedValue 将 Resolver 的结果转换为可赋给 want 的 reflect.Value
func resolvedValue(want reflect.Type, v any) (reflect.Value, bool) {
	if v == nil {
		if isNillable(want) {
			return reflect.Zero(want), true
		}
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(want) {
		return reflect.Value{}, false
	}
	return rv, true
}

func isNillable(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

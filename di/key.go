package di

import (
	"reflect"
)

// TypeKey 标识一个被声明的类型，可作为 map 键使用。
// 指针类型会被解包为其元素类型，*Widget 与 Widget 共用同一个键。
type TypeKey struct {
	typ reflect.Type
}

// KeyOf 返回类型 T 的 TypeKey
func KeyOf[T any]() TypeKey {
	return KeyFor(reflect.TypeFor[T]())
}

// KeyFor 返回 typ 的 TypeKey
func KeyFor(typ reflect.Type) TypeKey {
	if typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return TypeKey{typ: typ}
}

// Type 返回规范化后的类型
func (k TypeKey) Type() reflect.Type {
	return k.typ
}

// IsZero 报告键是否为空
func (k TypeKey) IsZero() bool {
	return k.typ == nil
}

// PkgPath 返回类型所在包的导入路径
func (k TypeKey) PkgPath() string {
	if k.typ == nil {
		return ""
	}
	return k.typ.PkgPath()
}

// Name 返回类型名（泛型实例化包含类型参数）
func (k TypeKey) Name() string {
	if k.typ == nil {
		return ""
	}
	return k.typ.Name()
}

// FullName 返回 "pkgpath.Name"，未命名类型返回其字面形式
func (k TypeKey) FullName() string {
	if k.typ == nil {
		return "<nil>"
	}
	if k.typ.Name() == "" || k.typ.PkgPath() == "" {
		return k.typ.String()
	}
	return k.typ.PkgPath() + "." + k.typ.Name()
}

func (k TypeKey) String() string {
	if k.typ == nil {
		return "<nil>"
	}
	return k.typ.String()
}

// TypeOf 获取类型 T 的 reflect.Type（泛型辅助函数）
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

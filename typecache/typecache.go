// Package typecache 缓存由 reflect.Type 派生出的类型信息。
//
// 每一种派生（开放泛型定义、泛型实参、数组、序列、只读序列）对应一张独立的表，
// 首次请求时计算，之后直接返回缓存值。类型标识在进程生命周期内不变，因此表没有失效机制。
package typecache

import (
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Table 是一张按键记忆化的派生表。
// 并发未命中时可能重复计算同一个值，但最终只会保存一个结果。
type Table[K comparable, V any] struct {
	entries sync.Map // map[K]V
	derive  func(K) V
}

// NewTable 使用派生函数创建一张表
func NewTable[K comparable, V any](derive func(K) V) *Table[K, V] {
	return &Table[K, V]{derive: derive}
}

// Of 返回 key 的派生值，未命中时计算并缓存
func (t *Table[K, V]) Of(key K) V {
	if v, ok := t.entries.Load(key); ok {
		return v.(V)
	}

	v := t.derive(key)
	actual, _ := t.entries.LoadOrStore(key, v)
	return actual.(V)
}

// GenericDefinition 标识一个开放泛型定义（去掉类型实参后的命名类型）。
type GenericDefinition struct {
	PkgPath string
	Name    string
}

// IsZero 报告该定义是否为空（非泛型类型）
func (d GenericDefinition) IsZero() bool {
	return d.Name == ""
}

// String 返回 "pkgpath.Name" 形式
func (d GenericDefinition) String() string {
	if d.PkgPath == "" {
		return d.Name
	}
	return d.PkgPath + "." + d.Name
}

var (
	openGenerics     = NewTable(openGenericOf)
	genericArguments = NewTable(genericArgumentsOf)
	arrayTypes       = NewTable(reflect.SliceOf)
	sequenceTypes    = NewTable(sequenceTypeOf)
	readOnlySeqTypes = NewTable(readOnlySequenceTypeOf)
)

// OpenGenericOf 返回实例化泛型类型 t 的开放定义；t 不是泛型实例时返回零值。
func OpenGenericOf(t reflect.Type) GenericDefinition {
	return openGenerics.Of(t)
}

// GenericArgumentsOf 返回 t 的类型实参（按 reflect 的书写形式）。
// 返回的切片是缓存值的副本，调用方可以修改。
func GenericArgumentsOf(t reflect.Type) []string {
	return slices.Clone(genericArguments.Of(t))
}

// ArrayTypeOf 返回元素类型为 elem 的切片类型 []elem。
func ArrayTypeOf(elem reflect.Type) reflect.Type {
	return arrayTypes.Of(elem)
}

// SequenceTypeOf 返回 func(yield func(elem) bool)，即 iter.Seq[elem] 的底层类型。
func SequenceTypeOf(elem reflect.Type) reflect.Type {
	return sequenceTypes.Of(elem)
}

// ReadOnlySequenceTypeOf 返回 func(yield func(int, elem) bool)，
// 即 iter.Seq2[int, elem] 的底层类型，表示带索引的只读视图。
func ReadOnlySequenceTypeOf(elem reflect.Type) reflect.Type {
	return readOnlySeqTypes.Of(elem)
}

var (
	boolType = reflect.TypeFor[bool]()
	intType  = reflect.TypeFor[int]()
)

func openGenericOf(t reflect.Type) GenericDefinition {
	name := t.Name()
	i := strings.IndexByte(name, '[')
	if i < 0 {
		return GenericDefinition{}
	}
	return GenericDefinition{PkgPath: t.PkgPath(), Name: name[:i]}
}

func genericArgumentsOf(t reflect.Type) []string {
	name := t.Name()
	open := strings.IndexByte(name, '[')
	if open < 0 || !strings.HasSuffix(name, "]") {
		return nil
	}
	return splitTopLevel(name[open+1 : len(name)-1])
}

// splitTopLevel 按最外层逗号切分，忽略嵌套的 [] 与 () 内部的逗号
func splitTopLevel(s string) []string {
	var (
		args  []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(args, strings.TrimSpace(s[start:]))
}

func sequenceTypeOf(elem reflect.Type) reflect.Type {
	yield := reflect.FuncOf([]reflect.Type{elem}, []reflect.Type{boolType}, false)
	return reflect.FuncOf([]reflect.Type{yield}, nil, false)
}

func readOnlySequenceTypeOf(elem reflect.Type) reflect.Type {
	yield := reflect.FuncOf([]reflect.Type{intType, elem}, []reflect.Type{boolType}, false)
	return reflect.FuncOf([]reflect.Type{yield}, nil, false)
}

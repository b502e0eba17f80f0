package di

import (
	"reflect"
)

// FieldPoint 通过直接赋值注入的字段
type FieldPoint struct {
	Name  string
	Index []int
	Type  reflect.Type
}

// PropertyPoint 通过 setter 注入的字段
type PropertyPoint struct {
	Name   string
	Type   reflect.Type
	Setter string

	method       reflect.Method // *T 上的 setter
	returnsError bool
}

// ParameterSpec 构造函数或注入方法的一个参数
type ParameterSpec struct {
	Name string
	Type reflect.Type
}

// MethodPoint 注入回调方法
type MethodPoint struct {
	Name   string
	Params []ParameterSpec

	method       reflect.Method
	returnsError bool
}

// ConstructorDescriptor 选中的构造方式。Implicit 为 true 时直接构造零值。
type ConstructorDescriptor struct {
	Name     string
	Implicit bool
	Params   []ParameterSpec

	fn           reflect.Value
	returnsValue bool // 返回 T 而不是 *T
	returnsError bool
}

// IsParameterless 报告构造时是否无需解析任何参数
func (c *ConstructorDescriptor) IsParameterless() bool {
	return c.Implicit || len(c.Params) == 0
}

// TypeInfo 一个类型的注入元数据，分析后不再修改
type TypeInfo struct {
	Key         TypeKey
	Fields      []FieldPoint
	Properties  []PropertyPoint
	Methods     []MethodPoint
	Constructor *ConstructorDescriptor
	HostManaged bool

	// Invalid 第一条违反；Violations 全部违反
	Invalid    *Violation
	Violations []Violation
}

// HasPoints 报告类型是否有任何注入点
func (t *TypeInfo) HasPoints() bool {
	return len(t.Fields) > 0 || len(t.Properties) > 0 || len(t.Methods) > 0
}

func (t *TypeInfo) addViolation(kind ViolationKind, member, reason string) {
	v := Violation{Kind: kind, Member: member, Reason: reason}
	t.Violations = append(t.Violations, v)
	if t.Invalid == nil {
		t.Invalid = &v
	}
}

// injectionViolation 返回第一条影响 Inject 的违反
func (t *TypeInfo) injectionViolation() *Violation {
	for i := range t.Violations {
		if t.Violations[i].AffectsInjection() {
			return &t.Violations[i]
		}
	}
	return nil
}

func (t *TypeInfo) constructionError(v *Violation) error {
	return &ConstructionError{Type: t.Key, Member: v.Member, Reason: v.Reason}
}

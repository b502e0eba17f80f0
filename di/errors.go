package di

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrConstruction 类型被标记为不可构造时 CreateInstance / Inject 返回的错误
	ErrConstruction = errors.New("di: construction failed")
	// ErrUnsupportedConstruction 类型由宿主管理生命周期，不允许直接构造
	ErrUnsupportedConstruction = errors.New("di: unsupported construction")
)

// ConstructionError 表示类型在分析阶段被判定为无效。
type ConstructionError struct {
	Type   TypeKey
	Member string // 出错的成员，构造函数歧义时为空
	Reason string
}

// NewConstructionError 创建 ConstructionError（生成代码同样使用）
func NewConstructionError(key TypeKey, member, reason string) error {
	return &ConstructionError{Type: key, Member: member, Reason: reason}
}

func (e *ConstructionError) Error() string {
	if e.Member == "" {
		return fmt.Sprintf("di: cannot construct %s: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("di: cannot construct %s: %s: %s", e.Type, e.Member, e.Reason)
}

func (e *ConstructionError) Is(target error) bool {
	return target == ErrConstruction
}

// UnsupportedConstructionError 表示宿主管理的类型被直接构造。
type UnsupportedConstructionError struct {
	Type TypeKey
}

// NewUnsupportedConstructionError 创建 UnsupportedConstructionError
func NewUnsupportedConstructionError(key TypeKey) error {
	return &UnsupportedConstructionError{Type: key}
}

func (e *UnsupportedConstructionError) Error() string {
	return fmt.Sprintf("di: %s is host-managed and cannot be constructed directly", e.Type)
}

func (e *UnsupportedConstructionError) Is(target error) bool {
	return target == ErrUnsupportedConstruction
}

// InstanceTypeError 表示传给 Inject 的实例不是目标类型的非空指针。
type InstanceTypeError struct {
	Type TypeKey
	Got  reflect.Type
}

func (e *InstanceTypeError) Error() string {
	if e.Got == nil {
		return fmt.Sprintf("di: inject %s: instance is nil", e.Type)
	}
	return fmt.Sprintf("di: inject %s: instance must be *%s, got %v", e.Type, e.Type, e.Got)
}

// ResolvedTypeError 表示 Resolver 返回的值无法赋给注入点。
type ResolvedTypeError struct {
	Type   TypeKey
	Member string
	Want   reflect.Type
	Got    reflect.Type
}

func (e *ResolvedTypeError) Error() string {
	return fmt.Sprintf("di: %s.%s: resolved %v is not assignable to %v", e.Type, e.Member, e.Got, e.Want)
}

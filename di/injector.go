package di

import (
	"fmt"
	"sync"
)

// Injector 构造类型实例并对已有实例执行成员注入。
// 结构体类型的实例总是 *T。
type Injector interface {
	CreateInstance(resolver Resolver, params []Parameter) (any, error)
	Inject(instance any, resolver Resolver, params []Parameter) error
}

// Strategy 标识为某个类型提供注入器的方式
type Strategy int

const (
	// StrategyGenerated injectgen 生成并在 init 中注册的注入器
	StrategyGenerated Strategy = iota + 1
	// StrategyLegacy 类型自身 GetGeneratedInjector 方法返回的注入器
	StrategyLegacy
	// StrategyReflection 运行时反射构建的注入器
	StrategyReflection
)

func (s Strategy) String() string {
	switch s {
	case StrategyGenerated:
		return "generated"
	case StrategyLegacy:
		return "legacy"
	case StrategyReflection:
		return "reflection"
	default:
		return "unknown"
	}
}

// LegacyInjectorFactory 旧版发现方式：类型在零值 *T 上提供注入器工厂。
//
// Deprecated: 使用 injectgen 生成注入器。
type LegacyInjectorFactory interface {
	GetGeneratedInjector() Injector
}

var generated sync.Map // string -> func() Injector

// RegisterGenerated 以约定名登记生成注入器的无参工厂，由生成代码的 init 调用。
// 同名重复登记是编程错误。
func RegisterGenerated(name string, factory func() Injector) {
	if factory == nil {
		panic(fmt.Sprintf("di: nil factory for generated injector %s", name))
	}
	if _, loaded := generated.LoadOrStore(name, factory); loaded {
		panic(fmt.Sprintf("di: generated injector %s already registered", name))
	}
}

func lookupGenerated(name string) (func() Injector, bool) {
	v, ok := generated.Load(name)
	if !ok {
		return nil, false
	}
	return v.(func() Injector), true
}

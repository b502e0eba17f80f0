package di

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

// 反射看不到包级函数和参数名，构造函数与注入方法的参数名通过 Declare 在运行时声明。

// Declaration 一个类型在运行时声明的构造函数与注入方法
type Declaration struct {
	constructors []declaredConstructor
	methods      []declaredMethod
}

type declaredConstructor struct {
	name   string
	fn     reflect.Value
	params []string
	marked bool
}

type declaredMethod struct {
	name   string
	params []string
}

// DeclareOption 配置 Declaration
type DeclareOption func(*Declaration)

// WithConstructor 声明一个构造函数候选。fn 返回 *T 或 T，可附带 error；
// paramNames 为空或与参数个数一致。
func WithConstructor(fn any, paramNames ...string) DeclareOption {
	return withConstructor(fn, paramNames, false)
}

// WithInjectConstructor 声明一个显式标记的构造函数
func WithInjectConstructor(fn any, paramNames ...string) DeclareOption {
	return withConstructor(fn, paramNames, true)
}

func withConstructor(fn any, paramNames []string, marked bool) DeclareOption {
	return func(d *Declaration) {
		d.constructors = append(d.constructors, declaredConstructor{
			name:   funcName(fn),
			fn:     reflect.ValueOf(fn),
			params: paramNames,
			marked: marked,
		})
	}
}

// WithMethod 声明注入方法及其参数名。未导出或不存在的方法在分析时报告为不可达。
func WithMethod(name string, paramNames ...string) DeclareOption {
	return func(d *Declaration) {
		d.methods = append(d.methods, declaredMethod{name: name, params: paramNames})
	}
}

var declarations sync.Map // TypeKey -> *Declaration

// Declare 为类型 T 登记构造函数与注入方法，应在 init 中、首次 GetOrBuild 之前调用。
// injectgen 为每个带标记的类型生成这一调用。同一类型再次声明会替换之前的声明。
// 返回值类型错误属于编程错误，直接 panic；变参构造函数只在被选中时报告为违反。
func Declare[T any](opts ...DeclareOption) {
	key := KeyOf[T]()
	d := &Declaration{}
	for _, opt := range opts {
		opt(d)
	}

	for _, c := range d.constructors {
		if err := checkConstructor(key, c); err != nil {
			panic(fmt.Sprintf("di: failed to declare %v: %v", key, err))
		}
	}

	declarations.Store(key, d)
}

func lookupDeclaration(key TypeKey) *Declaration {
	if v, ok := declarations.Load(key); ok {
		return v.(*Declaration)
	}
	return &Declaration{}
}

var errorType = reflect.TypeFor[error]()

func checkConstructor(key TypeKey, c declaredConstructor) error {
	if !c.fn.IsValid() || c.fn.Kind() != reflect.Func {
		return fmt.Errorf("constructor must be a function, got %v", c.fn.Kind())
	}

	fnType := c.fn.Type()
	if fnType.NumOut() == 0 || fnType.NumOut() > 2 {
		return fmt.Errorf("constructor %s must return T or *T, optionally followed by error", c.name)
	}
	if out := fnType.Out(0); out != key.Type() && out != reflect.PointerTo(key.Type()) {
		return fmt.Errorf("constructor %s returns %v, expected %v or *%v", c.name, out, key, key)
	}
	if fnType.NumOut() == 2 && fnType.Out(1) != errorType {
		return fmt.Errorf("constructor %s: second result must be error", c.name)
	}
	if len(c.params) != 0 && len(c.params) != fnType.NumIn() {
		return fmt.Errorf("constructor %s takes %d parameters, %d names declared", c.name, fnType.NumIn(), len(c.params))
	}
	return nil
}

// funcName 返回函数的短名，如 NewWidget
func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return fmt.Sprintf("%T", fn)
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return "func"
	}
	name := strings.TrimSuffix(f.Name(), "[...]")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func paramSpecs(in func(int) reflect.Type, n int, names []string) []ParameterSpec {
	params := make([]ParameterSpec, n)
	for i := range params {
		params[i].Type = in(i)
		if i < len(names) {
			params[i].Name = names[i]
		}
	}
	return params
}

package di

import (
	"reflect"
)

// invokeConstructor 调用选中的构造函数，返回 *T。构造函数返回的 error 原样传出。
func invokeConstructor(info *TypeInfo, args []reflect.Value) (any, error) {
	c := info.Constructor
	results := c.fn.Call(args)

	if c.returnsError {
		if last := results[len(results)-1]; !last.IsNil() {
			return nil, last.Interface().(error)
		}
	}

	first := results[0]
	if c.returnsValue {
		// 值返回统一装箱为 *T
		ptr := reflect.New(info.Key.Type())
		ptr.Elem().Set(first)
		return ptr.Interface(), nil
	}
	if first.IsNil() {
		return nil, &ConstructionError{Type: info.Key, Member: c.Name, Reason: ReasonNilInstance}
	}
	return first.Interface(), nil
}

// invokeMethod 以 receiver 调用注入方法或 setter
func invokeMethod(method reflect.Method, returnsError bool, receiver reflect.Value, args []reflect.Value) error {
	results := method.Func.Call(append([]reflect.Value{receiver}, args...))
	if returnsError && !results[0].IsNil() {
		return results[0].Interface().(error)
	}
	return nil
}

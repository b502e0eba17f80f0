package di

import (
	"reflect"
)

// ReflectionInjector 基于 TypeInfo 的通用注入器，在没有生成注入器时使用。
type ReflectionInjector struct {
	info *TypeInfo
}

// BuildReflectionInjector 分析类型并构建反射注入器
func BuildReflectionInjector(key TypeKey) *ReflectionInjector {
	return &ReflectionInjector{info: AnalyzeType(key)}
}

// Info 返回分析结果
func (r *ReflectionInjector) Info() *TypeInfo {
	return r.info
}

func (r *ReflectionInjector) CreateInstance(resolver Resolver, params []Parameter) (any, error) {
	info := r.info
	if info.Invalid != nil {
		return nil, info.constructionError(info.Invalid)
	}
	if info.HostManaged {
		return nil, NewUnsupportedConstructionError(info.Key)
	}

	c := info.Constructor
	if c.Implicit {
		return reflect.New(info.Key.Type()).Interface(), nil
	}

	args := make([]reflect.Value, len(c.Params))
	for i, p := range c.Params {
		v, err := resolver.ResolveOrParameter(p.Type, p.Name, params)
		if err != nil {
			return nil, err
		}
		arg, ok := resolvedValue(p.Type, v)
		if !ok {
			return nil, &ResolvedTypeError{Type: info.Key, Member: c.Name, Want: p.Type, Got: reflect.TypeOf(v)}
		}
		args[i] = arg
	}
	return invokeConstructor(info, args)
}

// Inject 依次注入字段、属性、方法。任何解析失败立即返回，不做部分恢复。
func (r *ReflectionInjector) Inject(instance any, resolver Resolver, params []Parameter) error {
	info := r.info
	if v := info.injectionViolation(); v != nil {
		return info.constructionError(v)
	}
	if !info.HasPoints() {
		return nil
	}

	target := reflect.ValueOf(instance)
	if target.Kind() != reflect.Pointer || target.Type().Elem() != info.Key.Type() {
		return &InstanceTypeError{Type: info.Key, Got: reflect.TypeOf(instance)}
	}
	if target.IsNil() {
		return &InstanceTypeError{Type: info.Key}
	}
	elem := target.Elem()

	for _, f := range info.Fields {
		v, err := resolver.Resolve(f.Type)
		if err != nil {
			return err
		}
		val, ok := resolvedValue(f.Type, v)
		if !ok {
			return &ResolvedTypeError{Type: info.Key, Member: f.Name, Want: f.Type, Got: reflect.TypeOf(v)}
		}
		elem.FieldByIndex(f.Index).Set(val)
	}

	for _, p := range info.Properties {
		v, err := resolver.Resolve(p.Type)
		if err != nil {
			return err
		}
		val, ok := resolvedValue(p.Type, v)
		if !ok {
			return &ResolvedTypeError{Type: info.Key, Member: p.Name, Want: p.Type, Got: reflect.TypeOf(v)}
		}
		if val.Type() != p.Type {
			// 字段类型可赋给 setter 参数，按字段类型传入
			val = val.Convert(p.Type)
		}
		if err := invokeMethod(p.method, p.returnsError, target, []reflect.Value{val}); err != nil {
			return err
		}
	}

	for _, m := range info.Methods {
		args := make([]reflect.Value, len(m.Params))
		for i, p := range m.Params {
			v, err := resolver.ResolveOrParameter(p.Type, p.Name, params)
			if err != nil {
				return err
			}
			arg, ok := resolvedValue(p.Type, v)
			if !ok {
				return &ResolvedTypeError{Type: info.Key, Member: m.Name, Want: p.Type, Got: reflect.TypeOf(v)}
			}
			args[i] = arg
		}
		if err := invokeMethod(m.method, m.returnsError, target, args); err != nil {
			return err
		}
	}
	return nil
}

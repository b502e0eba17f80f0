package di

import (
	"fmt"
	"reflect"
)

// HostObject 嵌入此标记的类型由宿主管理生命周期，不能通过注入器直接构造。
type HostObject struct{}

var hostObjectType = reflect.TypeFor[HostObject]()

// AnalyzeType 发现类型的注入点并选择构造函数。
// 结果包含全部规则违反；可达性只在这里检查一次。
func AnalyzeType(key TypeKey) *TypeInfo {
	info := &TypeInfo{Key: key}
	typ := key.Type()
	if typ == nil {
		info.Constructor = &ConstructorDescriptor{Implicit: true}
		info.addViolation(ViolationInvalidConstructor, "", ReasonNotConstructible)
		return info
	}

	decl := lookupDeclaration(key)

	if typ.Kind() == reflect.Struct {
		analyzeFields(info, typ)
	}
	analyzeMethods(info, typ, decl)
	analyzeConstructor(info, typ, decl)
	return info
}

// analyzeFields 只检查直接声明的字段，按声明顺序
func analyzeFields(info *TypeInfo, typ reflect.Type) {
	ptr := reflect.PointerTo(typ)

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.Anonymous && field.Type == hostObjectType {
			info.HostManaged = true
			continue
		}

		spec, ok := ParseInjectTag(field.Tag, field.Name)
		if !ok {
			continue
		}

		if !spec.Property {
			if !IsReachable(field.Name) {
				info.addViolation(ViolationUnreachableField, field.Name, ReasonUnexported)
				continue
			}
			info.Fields = append(info.Fields, FieldPoint{
				Name:  field.Name,
				Index: field.Index,
				Type:  field.Type,
			})
			continue
		}

		method, found := ptr.MethodByName(spec.Setter)
		if !found || !IsReachable(spec.Setter) {
			info.addViolation(ViolationUnreachableProperty, field.Name, ReasonSetterMissing)
			continue
		}
		// method.Type 的第 0 个参数是接收者
		mt := method.Type
		if mt.NumIn() != 2 || mt.IsVariadic() || !field.Type.AssignableTo(mt.In(1)) || !returnsNothingOrError(mt) {
			info.addViolation(ViolationUnreachableProperty, field.Name, ReasonSetterSignature)
			continue
		}
		info.Properties = append(info.Properties, PropertyPoint{
			Name:         field.Name,
			Type:         field.Type,
			Setter:       spec.Setter,
			method:       method,
			returnsError: mt.NumOut() == 1,
		})
	}
}

// analyzeMethods 收集 *T 方法集中的注入方法（反射按字典序）以及 Declare 声明的方法
func analyzeMethods(info *TypeInfo, typ reflect.Type, decl *Declaration) {
	ptr := reflect.PointerTo(typ)

	declared := make(map[string][]string, len(decl.methods))
	for _, m := range decl.methods {
		declared[m.name] = m.params
		if !IsReachable(m.name) {
			info.addViolation(ViolationUnreachableMethod, m.name, ReasonUnexported)
			continue
		}
		if _, ok := ptr.MethodByName(m.name); !ok {
			info.addViolation(ViolationUnreachableMethod, m.name, fmt.Sprintf("method %s not found", m.name))
		}
	}

	for i := 0; i < ptr.NumMethod(); i++ {
		method := ptr.Method(i)
		names, isDeclared := declared[method.Name]
		if !isDeclared && !IsInjectMethodName(method.Name) {
			continue
		}

		mt := method.Type
		if mt.IsVariadic() || !returnsNothingOrError(mt) {
			info.addViolation(ViolationUnsupportedMethod, method.Name, ReasonMethodSignature)
			continue
		}
		if len(names) != 0 && len(names) != mt.NumIn()-1 {
			info.addViolation(ViolationUnsupportedMethod, method.Name, ReasonParamNames)
			continue
		}

		info.Methods = append(info.Methods, MethodPoint{
			Name:         method.Name,
			Params:       paramSpecs(func(i int) reflect.Type { return mt.In(i + 1) }, mt.NumIn()-1, names),
			method:       method,
			returnsError: mt.NumOut() == 1,
		})
	}
}

func analyzeConstructor(info *TypeInfo, typ reflect.Type, decl *Declaration) {
	switch typ.Kind() {
	case reflect.Interface, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		info.Constructor = &ConstructorDescriptor{Implicit: true}
		info.addViolation(ViolationInvalidConstructor, "", ReasonNotConstructible)
		return
	}

	candidates := make([]ConstructorCandidate, len(decl.constructors))
	for i, c := range decl.constructors {
		candidates[i] = ConstructorCandidate{Name: c.name, Arity: c.fn.Type().NumIn(), Marked: c.marked}
	}

	choice := SelectConstructor(candidates)
	if !choice.Valid() {
		info.Constructor = &ConstructorDescriptor{Implicit: true}
		info.addViolation(ViolationInvalidConstructor, "", choice.Reason())
		return
	}
	if choice.Index < 0 {
		info.Constructor = &ConstructorDescriptor{Implicit: true}
		return
	}

	c := decl.constructors[choice.Index]
	fnType := c.fn.Type()
	if fnType.IsVariadic() {
		info.Constructor = &ConstructorDescriptor{Implicit: true}
		info.addViolation(ViolationInvalidConstructor, c.name, ReasonVariadic)
		return
	}
	info.Constructor = &ConstructorDescriptor{
		Name:         c.name,
		Params:       paramSpecs(fnType.In, fnType.NumIn(), c.params),
		fn:           c.fn,
		returnsValue: fnType.Out(0) == typ,
		returnsError: fnType.NumOut() == 2,
	}
}

func returnsNothingOrError(mt reflect.Type) bool {
	switch mt.NumOut() {
	case 0:
		return true
	case 1:
		return mt.Out(0) == errorType
	default:
		return false
	}
}

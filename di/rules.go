package di

import (
	"go/token"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"
)

// 反射构建器与 injectgen 共用的规则。两边的发现、构造函数选择和可达性判断都只经过这里。

const (
	// TagName 字段注入标记：`inject:""` 为字段注入，`inject:"setter"` 为属性注入
	TagName = "inject"
	// SetterOption 属性注入选项，可写作 setter=SetX 指定 setter 名
	SetterOption = "setter"
	// MethodPrefix 方法名以此开头（后跟大写字母或数字）视为注入方法
	MethodPrefix = "Inject"
	// ConstructorPrefix 构造函数命名约定 New<Type>[Suffix]
	ConstructorPrefix = "New"
	// Directive 源码中显式标记注入方法/构造函数的指令
	Directive = "//di:inject"
	// HostObjectName 宿主管理类型嵌入的标记类型名
	HostObjectName = "HostObject"
	// LegacyFactoryMethod 旧版注入器工厂方法名
	LegacyFactoryMethod = "GetGeneratedInjector"
	// GeneratedSuffix 生成注入器类型名后缀
	GeneratedSuffix = "GeneratedInjector"
)

const (
	ReasonMultipleMarked   = "multiple constructors marked for injection"
	ReasonAmbiguous        = "ambiguous constructor"
	ReasonNotConstructible = "type kind is not constructible"
	ReasonNilInstance      = "constructor returned nil"
	ReasonVariadic         = "variadic constructor"
	ReasonUnexported       = "member is not exported"
	ReasonSetterMissing    = "setter not found or not exported"
	ReasonSetterSignature  = "setter must take one argument assignable from the field and return nothing or error"
	ReasonMethodSignature  = "inject method must not be variadic and must return nothing or error"
	ReasonParamNames       = "declared parameter names do not match the method signature"
)

// ViolationKind 违反的规则类别，与 injectgen 的诊断码一一对应
type ViolationKind int

const (
	ViolationUnreachableField ViolationKind = iota + 1
	ViolationUnreachableProperty
	ViolationUnreachableMethod
	ViolationInvalidConstructor
	ViolationUnsupportedMethod
)

func (k ViolationKind) String() string {
	switch k {
	case ViolationUnreachableField:
		return "unreachable field"
	case ViolationUnreachableProperty:
		return "unreachable property"
	case ViolationUnreachableMethod:
		return "unreachable method"
	case ViolationInvalidConstructor:
		return "invalid constructor"
	case ViolationUnsupportedMethod:
		return "unsupported inject method"
	default:
		return "unknown"
	}
}

// Violation 类型分析时发现的一条规则违反
type Violation struct {
	Kind   ViolationKind
	Member string
	Reason string
}

// AffectsInjection 报告该违反是否也使 Inject 失效（构造函数问题只影响 CreateInstance）
func (v Violation) AffectsInjection() bool {
	return v.Kind != ViolationInvalidConstructor
}

// IsReachable 报告成员名能否被生成代码（另一个包）访问
func IsReachable(name string) bool {
	return token.IsExported(name)
}

// TagSpec 解析后的 inject 标签
type TagSpec struct {
	Property bool
	Setter   string
}

// ParseInjectTag 解析字段的 inject 标签。未标记时 ok 为 false。
func ParseInjectTag(tag reflect.StructTag, fieldName string) (spec TagSpec, ok bool) {
	value, ok := tag.Lookup(TagName)
	if !ok {
		return TagSpec{}, false
	}

	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		name, setter, hasSetter := strings.Cut(part, "=")
		if strings.TrimSpace(name) != SetterOption {
			continue
		}
		spec.Property = true
		spec.Setter = DefaultSetterName(fieldName)
		if hasSetter && strings.TrimSpace(setter) != "" {
			spec.Setter = strings.TrimSpace(setter)
		}
	}
	return spec, true
}

// DefaultSetterName 返回字段的默认 setter 名：gear -> SetGear
func DefaultSetterName(fieldName string) string {
	r, size := utf8.DecodeRuneInString(fieldName)
	return "Set" + string(unicode.ToUpper(r)) + fieldName[size:]
}

// IsInjectMethodName 报告方法名是否符合注入方法约定，如 InjectGear
func IsInjectMethodName(name string) bool {
	return hasWordPrefix(name, MethodPrefix)
}

// IsConstructorName 报告 fn 是否为 typeName 的构造函数候选：NewWidget、NewWidgetFromConfig
func IsConstructorName(typeName, fn string) bool {
	base := ConstructorPrefix + typeName
	return fn == base || hasWordPrefix(fn, base)
}

func hasWordPrefix(name, prefix string) bool {
	if !strings.HasPrefix(name, prefix) || len(name) == len(prefix) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(name[len(prefix):])
	return unicode.IsUpper(r) || unicode.IsDigit(r)
}

// ConstructorCandidate 构造函数选择的输入
type ConstructorCandidate struct {
	Name   string
	Arity  int
	Marked bool
}

// ConstructorRule 命中的选择规则，按优先级排列
type ConstructorRule int

const (
	RuleMultipleMarked ConstructorRule = iota + 1
	RuleMarked
	RuleImplicit
	RuleSingle
	RuleParameterless
	RuleAmbiguous
)

func (r ConstructorRule) String() string {
	switch r {
	case RuleMultipleMarked:
		return "multiple-marked"
	case RuleMarked:
		return "marked"
	case RuleImplicit:
		return "implicit"
	case RuleSingle:
		return "single"
	case RuleParameterless:
		return "parameterless"
	case RuleAmbiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// ConstructorChoice 构造函数选择结果。Index 为 -1 表示使用零值构造。
type ConstructorChoice struct {
	Index int
	Rule  ConstructorRule
}

// Valid 报告是否选出了可用的构造方式
func (c ConstructorChoice) Valid() bool {
	return c.Rule != RuleMultipleMarked && c.Rule != RuleAmbiguous
}

// Reason 无效选择的诊断原因
func (c ConstructorChoice) Reason() string {
	switch c.Rule {
	case RuleMultipleMarked:
		return ReasonMultipleMarked
	case RuleAmbiguous:
		return ReasonAmbiguous
	default:
		return ""
	}
}

// SelectConstructor 按固定策略选择构造函数：
//  1. 多个显式标记 -> 无效
//  2. 恰好一个显式标记 -> 选它
//  3. 没有候选 -> 零值构造
//  4. 恰好一个候选 -> 选它
//  5. 恰好一个无参候选 -> 选它
//  6. 其他 -> 歧义，无效
func SelectConstructor(candidates []ConstructorCandidate) ConstructorChoice {
	marked := -1
	for i, c := range candidates {
		if !c.Marked {
			continue
		}
		if marked >= 0 {
			return ConstructorChoice{Index: -1, Rule: RuleMultipleMarked}
		}
		marked = i
	}
	if marked >= 0 {
		return ConstructorChoice{Index: marked, Rule: RuleMarked}
	}

	switch len(candidates) {
	case 0:
		return ConstructorChoice{Index: -1, Rule: RuleImplicit}
	case 1:
		return ConstructorChoice{Index: 0, Rule: RuleSingle}
	}

	parameterless := -1
	for i, c := range candidates {
		if c.Arity != 0 {
			continue
		}
		if parameterless >= 0 {
			return ConstructorChoice{Index: -1, Rule: RuleAmbiguous}
		}
		parameterless = i
	}
	if parameterless >= 0 {
		return ConstructorChoice{Index: parameterless, Rule: RuleParameterless}
	}
	return ConstructorChoice{Index: -1, Rule: RuleAmbiguous}
}

// GeneratedInjectorName 返回生成注入器的注册名 "<pkgpath>.<Name>GeneratedInjector"，
// 泛型实例化名中的方括号替换为下划线
func GeneratedInjectorName(pkgPath, name string) string {
	name = strings.NewReplacer("[", "_", "]", "_").Replace(name)
	if pkgPath == "" {
		return name + GeneratedSuffix
	}
	return pkgPath + "." + name + GeneratedSuffix
}

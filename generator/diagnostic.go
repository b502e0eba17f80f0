package generator

import (
	"fmt"
	"go/token"
	"strings"

	"github.com/gocrud/inject/di"
)

// Severity 诊断级别
type Severity int

const (
	SeverityWarning Severity = iota + 1
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// 诊断码
const (
	CodeUnexpected          = "INJ000"
	CodeUnreachableField    = "INJ001"
	CodeUnreachableProperty = "INJ002"
	CodeUnreachableMethod   = "INJ003"
	CodeInvalidConstructor  = "INJ004"
	CodeUnsupportedMethod   = "INJ005"
	CodeGenericType         = "INJ006"
	CodeStaticAnalysis      = "INJ007"
)

// Diagnostic 一条构建期诊断
type Diagnostic struct {
	Severity Severity
	Code     string
	Pos      token.Position
	Type     string
	Member   string
	Message  string
}

func (d Diagnostic) String() string {
	var b strings.Builder
	if d.Pos.IsValid() {
		b.WriteString(d.Pos.String())
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "%s %s: ", d.Severity, d.Code)
	switch {
	case d.Type != "" && d.Member != "":
		fmt.Fprintf(&b, "%s.%s: ", d.Type, d.Member)
	case d.Type != "":
		fmt.Fprintf(&b, "%s: ", d.Type)
	}
	b.WriteString(d.Message)
	return b.String()
}

// codeFor 将规则违反映射为诊断码
func codeFor(kind di.ViolationKind) string {
	switch kind {
	case di.ViolationUnreachableField:
		return CodeUnreachableField
	case di.ViolationUnreachableProperty:
		return CodeUnreachableProperty
	case di.ViolationUnreachableMethod:
		return CodeUnreachableMethod
	case di.ViolationInvalidConstructor:
		return CodeInvalidConstructor
	case di.ViolationUnsupportedMethod:
		return CodeUnsupportedMethod
	default:
		return CodeUnexpected
	}
}

// unexpected 将 panic 或意外错误压成一行的 INJ000 诊断
func unexpected(pos token.Position, typeName string, detail any) Diagnostic {
	msg := strings.Join(strings.Fields(fmt.Sprint(detail)), " ")
	return Diagnostic{
		Severity: SeverityError,
		Code:     CodeUnexpected,
		Pos:      pos,
		Type:     typeName,
		Message:  "unexpected error: " + msg,
	}
}

package generator

import (
	"bytes"
	"context"
	"errors"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioSource = `package app

import "github.com/gocrud/inject/di"

type Engine struct{}

type Gear struct{}

type Widget struct {
	Gear *Gear ` + "`inject:\"\"`" + `

	engine *Engine
}

func NewWidget(engine *Engine) *Widget {
	return &Widget{engine: engine}
}

type HostManaged struct {
	di.HostObject

	Gear *Gear ` + "`inject:\"\"`" + `
}

type Ambiguous struct {
	Gear *Gear ` + "`inject:\"\"`" + `
}

func NewAmbiguousFromEngine(e *Engine) *Ambiguous {
	return &Ambiguous{}
}

func NewAmbiguousFromGear(g *Gear) *Ambiguous {
	return &Ambiguous{}
}
`

const membersSource = `package app

import (
	"io"
)

type Gear struct{}

type Panel struct {
	gear *Gear ` + "`inject:\"setter\"`" + `
}

func (p *Panel) SetGear(g *Gear) {
	p.gear = g
}

type Service struct {
	out io.Writer
}

func (s *Service) InjectOutput(w io.Writer, _ int) error {
	s.out = w
	return nil
}

type Point struct {
	X int
}

//di:inject
func NewPoint() Point {
	return Point{X: 1}
}

type hidden struct {
	gear *Gear ` + "`inject:\"\"`" + `
}

type Box[T any] struct {
	Gear *Gear ` + "`inject:\"\"`" + `
}

type Plain struct{}

func NewPlain(g *Gear) *Plain {
	return &Plain{}
}
`

// writeModule 在临时目录创建一个模块，files 为 相对路径 -> 内容
func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	files["go.mod"] = "module example.com/app\n\ngo 1.25\n"
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func artifactFor(t *testing.T, result *Result, typeName string) Artifact {
	t.Helper()
	for _, a := range result.Files {
		if a.Type == typeName {
			return a
		}
	}
	require.Failf(t, "artifact not found", "no artifact for %s", typeName)
	return Artifact{}
}

func diagnosticsFor(result *Result, typeName string) []Diagnostic {
	var out []Diagnostic
	for _, d := range result.Diagnostics {
		if d.Type == typeName {
			out = append(out, d)
		}
	}
	return out
}

func TestScenarioGeneration(t *testing.T) {
	root := writeModule(t, map[string]string{"app.go": scenarioSource})

	result, err := Run(context.Background(), Config{Dirs: []string{root}, DryRun: true})
	require.NoError(t, err)

	types := make([]string, 0, len(result.Files))
	for _, a := range result.Files {
		types = append(types, a.Type)
	}
	assert.ElementsMatch(t, []string{"Widget", "HostManaged", "Ambiguous"}, types)

	widget := artifactFor(t, result, "Widget")
	assert.Equal(t, filepath.Join(root, "widget_injector_gen.go"), widget.Path)
	assert.Equal(t, "example.com/app", widget.Package)

	src := string(widget.Content)
	_, err = parser.ParseFile(token.NewFileSet(), widget.Path, widget.Content, 0)
	require.NoError(t, err, src)

	for _, want := range []string{
		"// Code generated by injectgen. DO NOT EDIT.",
		"type WidgetGeneratedInjector struct{}",
		`di.RegisterGenerated("example.com/app.WidgetGeneratedInjector", func() di.Injector {`,
		`c1, err := di.ResolveOrParameter[*Engine](resolver, "engine", params)`,
		"instance := NewWidget(c1)",
		"di.NewConstructionError(di.KeyOf[Widget](), \"NewWidget\", di.ReasonNilInstance)",
		"target, err := di.InstanceOf[Widget](instance)",
		"v0, err := di.Resolve[*Gear](resolver)",
		"target.Gear = v0",
		"di.Declare[Widget](\n\t\tdi.WithConstructor(NewWidget, \"engine\"),\n\t)",
	} {
		assert.Contains(t, src, want)
	}
	assert.True(t, widget.Injector)

	host := string(artifactFor(t, result, "HostManaged").Content)
	assert.Contains(t, host, "return nil, di.NewUnsupportedConstructionError(di.KeyOf[HostManaged]())")
	assert.NotContains(t, host, "&HostManaged{}")
	assert.Contains(t, host, "target.Gear = v0")

	diags := diagnosticsFor(result, "Ambiguous")
	require.Len(t, diags, 1)
	assert.Equal(t, CodeInvalidConstructor, diags[0].Code)
	assert.Equal(t, SeverityError, diags[0].Severity)
	assert.Equal(t, "ambiguous constructor", diags[0].Message)
	assert.Equal(t, 25, diags[0].Pos.Line)
	assert.True(t, result.HasErrors())

	// 有违反的类型只生成声明，运行时反射构建器报告同样的违反
	ambiguous := artifactFor(t, result, "Ambiguous")
	assert.False(t, ambiguous.Injector)
	amb := string(ambiguous.Content)
	assert.Contains(t, amb, `di.WithConstructor(NewAmbiguousFromEngine, "e"),`)
	assert.Contains(t, amb, `di.WithConstructor(NewAmbiguousFromGear, "g"),`)
	assert.NotContains(t, amb, "GeneratedInjector")
	assert.NotContains(t, amb, "RegisterGenerated")
	_, err = parser.ParseFile(token.NewFileSet(), ambiguous.Path, ambiguous.Content, 0)
	require.NoError(t, err, amb)

	// 空运行不写文件
	_, err = os.Stat(widget.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestMemberGeneration(t *testing.T) {
	root := writeModule(t, map[string]string{"app.go": membersSource})

	result, err := Run(context.Background(), Config{Dirs: []string{root}, DryRun: true})
	require.NoError(t, err)

	panel := string(artifactFor(t, result, "Panel").Content)
	assert.Contains(t, panel, "v0, err := di.Resolve[*Gear](resolver)")
	assert.Contains(t, panel, "target.SetGear(v0)")
	assert.Contains(t, panel, "return &Panel{}, nil")

	service := string(artifactFor(t, result, "Service").Content)
	assert.Contains(t, service, `"io"`)
	assert.Contains(t, service, `a0, err := di.ResolveOrParameter[io.Writer](resolver, "w", params)`)
	assert.Contains(t, service, `a1, err := di.ResolveOrParameter[int](resolver, "", params)`)
	assert.Contains(t, service, "if err := target.InjectOutput(a0, a1); err != nil {")
	assert.Contains(t, service, `di.WithMethod("InjectOutput", "w", ""),`)

	point := string(artifactFor(t, result, "Point").Content)
	assert.Contains(t, point, "instance := NewPoint()")
	assert.Contains(t, point, "return &instance, nil")
	assert.Contains(t, point, "\treturn nil\n}")
	assert.Contains(t, point, "di.WithInjectConstructor(NewPoint),")

	hidden := diagnosticsFor(result, "hidden")
	require.Len(t, hidden, 1)
	assert.Equal(t, CodeUnreachableField, hidden[0].Code)
	assert.Equal(t, "gear", hidden[0].Member)
	// 没有可声明的构造函数或方法，不生成文件
	for _, a := range result.Files {
		assert.NotEqual(t, "hidden", a.Type)
	}

	box := diagnosticsFor(result, "Box")
	require.Len(t, box, 1)
	assert.Equal(t, CodeGenericType, box[0].Code)
	assert.Equal(t, SeverityWarning, box[0].Severity)

	// Plain 没有任何标记
	assert.Empty(t, diagnosticsFor(result, "Plain"))
	for _, a := range result.Files {
		assert.NotEqual(t, "Plain", a.Type)
		_, err := parser.ParseFile(token.NewFileSet(), a.Path, a.Content, 0)
		assert.NoError(t, err, string(a.Content))
	}
	assert.True(t, result.HasErrors())
}

func TestViolationCodes(t *testing.T) {
	src := `package app

type Gear struct{}

type NoSetter struct {
	gear *Gear ` + "`inject:\"setter\"`" + `
}

type PrivateMethod struct{}

//di:inject
func (p *PrivateMethod) attach(g *Gear) {}

type BadMethod struct{}

func (b *BadMethod) InjectGear(g *Gear) int { return 0 }

type TwoMarked struct{}

//di:inject
func NewTwoMarked() *TwoMarked { return nil }

//di:inject
func NewTwoMarkedWith(g *Gear) *TwoMarked { return nil }
`
	root := writeModule(t, map[string]string{"app.go": src})
	result, err := Run(context.Background(), Config{Dirs: []string{root}, DryRun: true})
	require.NoError(t, err)

	declared := map[string]string{}
	for _, a := range result.Files {
		assert.False(t, a.Injector, a.Type)
		declared[a.Type] = string(a.Content)
	}
	require.Len(t, declared, 3)
	assert.Contains(t, declared["PrivateMethod"], `di.WithMethod("attach", "g"),`)
	assert.Contains(t, declared["BadMethod"], `di.WithMethod("InjectGear", "g"),`)
	assert.Contains(t, declared["TwoMarked"], "di.WithInjectConstructor(NewTwoMarked),")
	assert.Contains(t, declared["TwoMarked"], `di.WithInjectConstructor(NewTwoMarkedWith, "g"),`)

	codes := map[string]string{}
	for _, d := range result.Diagnostics {
		codes[d.Type] = d.Code
	}
	assert.Equal(t, map[string]string{
		"NoSetter":      CodeUnreachableProperty,
		"PrivateMethod": CodeUnreachableMethod,
		"BadMethod":     CodeUnsupportedMethod,
		"TwoMarked":     CodeInvalidConstructor,
	}, codes)
}

func TestRunWritesAndRemovesStale(t *testing.T) {
	root := writeModule(t, map[string]string{
		"app.go":                    scenarioSource,
		"broken.go":                 "package app\n\ntype Broken struct {\n\tgear *Gear `inject:\"\"`\n}\n",
		"broken_injector_gen.go":    "package app\n",
		"sub/inner/inner.go":        "package inner\n\ntype Thing struct {\n\tN *int `inject:\"\"`\n}\n",
		"sub/testdata/skip/skip.go": "package skip\n\ntype Skip struct {\n\tN *int `inject:\"\"`\n}\n",
	})

	result, err := Run(context.Background(), Config{Dirs: []string{root + "/..."}})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "widget_injector_gen.go"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "sub", "inner", "thing_injector_gen.go"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "sub", "testdata", "skip", "skip_injector_gen.go"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	assert.Equal(t, []string{filepath.Join(root, "broken_injector_gen.go")}, result.Removed)
	_, err = os.Stat(filepath.Join(root, "broken_injector_gen.go"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	_, err = os.Stat(filepath.Join(root, "ambiguous_injector_gen.go"))
	assert.NoError(t, err)

	thing := artifactFor(t, result, "Thing")
	assert.Contains(t, string(thing.Content), `"example.com/app/sub/inner.ThingGeneratedInjector"`)

	// 再次运行：生成文件本身被跳过，结果不变
	again, err := Run(context.Background(), Config{Dirs: []string{root + "/..."}})
	require.NoError(t, err)
	assert.Equal(t, len(result.Files), len(again.Files))
	assert.Empty(t, again.Removed)
}

const promotedSource = `package app

import "io"

type Gear struct{}

type Recorder struct{}

func (r *Recorder) InjectRecorder(g *Gear) {}

type Base struct {
	Recorder
	log io.Writer
}

func (b *Base) InjectBase(gear *Gear) {}

func (b *Base) SetLog(w io.Writer) { b.log = w }

type Machine struct {
	*Base
	Log io.Writer ` + "`inject:\"setter\"`" + `
}

func (m *Machine) InjectZeta(g *Gear) {}

func (m *Machine) InjectAlpha(g *Gear) error { return nil }

//di:inject
func (m *Machine) Setup(w io.Writer) {}

// Left 和 Right 都提供 InjectShared，同一深度重名不提升
type Left struct{}

func (Left) InjectShared(g *Gear) {}

type Right struct{}

func (Right) InjectShared(g *Gear) {}

type Pair struct {
	Left
	Right
}

// Shadow 自身的 InjectBase 遮蔽了嵌入类型的同名方法
type Shadow struct {
	Base
}

func (s *Shadow) InjectBase(w io.Writer) {}
`

func TestMethodOrderAndPromotion(t *testing.T) {
	root := writeModule(t, map[string]string{"app.go": promotedSource})

	result, err := Run(context.Background(), Config{Dirs: []string{root}, DryRun: true})
	require.NoError(t, err)
	assert.Empty(t, result.Diagnostics)

	machine := artifactFor(t, result, "Machine")
	require.True(t, machine.Injector)
	src := string(machine.Content)

	// 与 reflect 的 *T 方法集一致：按名字排序，包含嵌入类型提升的方法
	calls := []string{
		"target.SetLog(v0)",
		"if err := target.InjectAlpha(a1); err != nil {",
		"target.InjectBase(a2)",
		"target.InjectRecorder(a3)",
		"target.InjectZeta(a4)",
		"target.Setup(a5)",
	}
	last := -1
	for _, call := range calls {
		i := strings.Index(src, call)
		require.Greater(t, i, last, "%s out of order in\n%s", call, src)
		last = i
	}

	// 指令方法写入声明，反射路径看到同一组方法
	decls := []string{
		`di.WithMethod("InjectAlpha", "g"),`,
		`di.WithMethod("InjectBase", "gear"),`,
		`di.WithMethod("InjectRecorder", "g"),`,
		`di.WithMethod("InjectZeta", "g"),`,
		`di.WithMethod("Setup", "w"),`,
	}
	last = -1
	for _, d := range decls {
		i := strings.Index(src, d)
		require.Greater(t, i, last, "%s out of order in\n%s", d, src)
		last = i
	}

	left := string(artifactFor(t, result, "Left").Content)
	assert.Contains(t, left, "target.InjectShared(a0)")
	for _, a := range result.Files {
		assert.NotEqual(t, "Pair", a.Type, "ambiguous promoted methods are not in the method set")
	}

	shadow := string(artifactFor(t, result, "Shadow").Content)
	assert.Contains(t, shadow, `a0, err := di.ResolveOrParameter[io.Writer](resolver, "w", params)`)
	assert.Contains(t, shadow, "target.InjectBase(a0)")
	assert.Contains(t, shadow, "target.InjectRecorder(a1)")
	assert.NotContains(t, shadow, `"gear"`)
}

func TestPromotedFromOtherPackage(t *testing.T) {
	root := writeModule(t, map[string]string{
		"base/base.go": `package base

import "io"

type Base struct{}

func (b *Base) InjectBase(w io.Writer, n int) {}

type Hidden struct{}

func (h *Hidden) InjectHidden(s secret) {}

type secret struct{}
`,
		"app/app.go": `package app

import "example.com/app/base"

type Service struct {
	base.Base
}

type Opaque struct {
	base.Hidden
}
`,
	})

	result, err := Run(context.Background(), Config{Dirs: []string{filepath.Join(root, "app")}, DryRun: true})
	require.NoError(t, err)

	service := artifactFor(t, result, "Service")
	require.True(t, service.Injector)
	src := string(service.Content)
	assert.Contains(t, src, `"io"`)
	assert.Contains(t, src, `a0, err := di.ResolveOrParameter[io.Writer](resolver, "w", params)`)
	assert.Contains(t, src, `a1, err := di.ResolveOrParameter[int](resolver, "n", params)`)
	assert.Contains(t, src, "target.InjectBase(a0, a1)")
	assert.Contains(t, src, `di.WithMethod("InjectBase", "w", "n"),`)

	// 参数类型在本包写不出，降级为只生成声明
	opaque := artifactFor(t, result, "Opaque")
	assert.False(t, opaque.Injector)
	assert.Contains(t, string(opaque.Content), `di.WithMethod("InjectHidden", "s"),`)
	diags := diagnosticsFor(result, "Opaque")
	require.Len(t, diags, 1)
	assert.Equal(t, CodeStaticAnalysis, diags[0].Code)
	assert.Equal(t, SeverityWarning, diags[0].Severity)
	assert.Equal(t, "InjectHidden", diags[0].Member)
	assert.False(t, result.HasErrors())
}

func TestUnloadableEmbeddedType(t *testing.T) {
	root := writeModule(t, map[string]string{
		"app.go": `package app

import "example.com/app/missing"

type Gear struct{}

type Service struct {
	missing.Base
	Gear *Gear ` + "`inject:\"\"`" + `
}

func NewService() *Service { return &Service{} }
`,
	})

	result, err := Run(context.Background(), Config{Dirs: []string{root}, DryRun: true})
	require.NoError(t, err)

	diags := diagnosticsFor(result, "Service")
	require.Len(t, diags, 1)
	assert.Equal(t, CodeStaticAnalysis, diags[0].Code)
	assert.Contains(t, diags[0].Message, "the reflection injector is used at runtime")

	service := artifactFor(t, result, "Service")
	assert.False(t, service.Injector)
	assert.Contains(t, string(service.Content), "di.WithConstructor(NewService),")
}

func TestExcludedPackages(t *testing.T) {
	root := writeModule(t, map[string]string{
		"app.go":          scenarioSource,
		"vendored/lib.go": "package lib\n\ntype Lib struct {\n\tN *int `inject:\"\"`\n}\n",
	})

	result, err := Run(context.Background(), Config{
		Dirs:    []string{root + "/..."},
		Exclude: []string{"example.com/app/vendored/..."},
		DryRun:  true,
	})
	require.NoError(t, err)
	for _, a := range result.Files {
		assert.NotEqual(t, "Lib", a.Type)
	}

	cfg := Config{}.withDefaults()
	assert.True(t, cfg.excluded("github.com/gocrud/inject/di"))
	assert.True(t, cfg.excluded("github.com/gocrud/inject/cmd/injectgen"))
	assert.False(t, cfg.excluded("github.com/gocrud/inject/di/examples/widget"))
	assert.False(t, cfg.excluded("example.com/app"))
}

func TestUnparsableSourceReportsUnexpected(t *testing.T) {
	root := writeModule(t, map[string]string{"app.go": "package app\n\nfunc {"})

	result, err := Run(context.Background(), Config{Dirs: []string{root}, DryRun: true})
	require.NoError(t, err)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, CodeUnexpected, result.Diagnostics[0].Code)
	assert.NotContains(t, result.Diagnostics[0].Message, "\n")
}

func TestRunCanceled(t *testing.T) {
	root := writeModule(t, map[string]string{"app.go": scenarioSource})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Config{Dirs: []string{root}, DryRun: true})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMainPackageRegistration(t *testing.T) {
	root := writeModule(t, map[string]string{
		"cmd/tool/main.go": "package main\n\ntype Engine struct{}\n\ntype Tool struct {\n\tEngine *Engine `inject:\"\"`\n}\n\nfunc main() {}\n",
	})

	result, err := Run(context.Background(), Config{Dirs: []string{root + "/..."}, DryRun: true})
	require.NoError(t, err)

	a := artifactFor(t, result, "Tool")
	assert.Equal(t, "example.com/app/cmd/tool", a.Package)
	assert.Contains(t, string(a.Content), `di.RegisterGenerated("main.ToolGeneratedInjector"`)
}

func TestOutputFileName(t *testing.T) {
	tests := map[string]string{
		"Widget":      "widget_injector_gen.go",
		"HostManaged": "host_managed_injector_gen.go",
		"HTTPServer":  "http_server_injector_gen.go",
		"MyID":        "my_id_injector_gen.go",
	}
	for in, want := range tests {
		assert.Equal(t, want, OutputFileName(in, DefaultFileSuffix))
	}
}

func TestDefaultImportName(t *testing.T) {
	assert.Equal(t, "yaml", defaultImportName("gopkg.in/yaml.v3"))
	assert.Equal(t, "redis", defaultImportName("github.com/redis/go-redis/v9"))
	assert.Equal(t, "zap", defaultImportName("go.uber.org/zap"))
	assert.Equal(t, "io", defaultImportName("io"))
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{
		Severity: SeverityError,
		Code:     CodeUnreachableField,
		Pos:      token.Position{Filename: "app.go", Line: 3, Column: 2},
		Type:     "Widget",
		Member:   "gear",
		Message:  "member is not exported",
	}
	assert.Equal(t, "app.go:3:2: error INJ001: Widget.gear: member is not exported", d.String())

	u := unexpected(token.Position{}, "Widget", "boom\n\tat line 1")
	assert.Equal(t, "unexpected error: boom at line 1", u.Message)
	assert.True(t, strings.HasPrefix(u.String(), "error INJ000: Widget:"))
}

// declsOf 返回文件的导入路径和其余声明的规范化文本
func declsOf(t *testing.T, filename string, src []byte) (imports, decls []string) {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	require.NoError(t, err, string(src))

	for _, imp := range file.Imports {
		imports = append(imports, imp.Path.Value)
	}
	for _, decl := range file.Decls {
		if gen, ok := decl.(*ast.GenDecl); ok && gen.Tok == token.IMPORT {
			continue
		}
		var buf bytes.Buffer
		require.NoError(t, format.Node(&buf, fset, decl))
		decls = append(decls, buf.String())
	}
	return imports, decls
}

func TestCheckedInExamplesAreCurrent(t *testing.T) {
	dirs := []string{"../di/examples/parity", "../di/examples/widget"}
	result, err := Run(context.Background(), Config{Dirs: dirs, DryRun: true})
	require.NoError(t, err)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, "Ambiguous", result.Diagnostics[0].Type)
	assert.Equal(t, CodeInvalidConstructor, result.Diagnostics[0].Code)

	var names []string
	for _, a := range result.Files {
		names = append(names, filepath.Base(a.Path))

		onDisk, err := os.ReadFile(a.Path)
		require.NoError(t, err, "%s is not checked in", a.Path)

		wantImports, wantDecls := declsOf(t, a.Path, a.Content)
		gotImports, gotDecls := declsOf(t, a.Path, onDisk)
		assert.Equal(t, wantImports, gotImports, a.Path)
		assert.Equal(t, wantDecls, gotDecls, a.Path)
	}
	assert.ElementsMatch(t, []string{
		"ambiguous_injector_gen.go",
		"base_injector_gen.go",
		"machine_injector_gen.go",
		"widget_injector_gen.go",
	}, names)
}

package generator

import (
	"bytes"
	"go/ast"
	"go/format"
	"go/token"
	"path"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/pool"
)

// importSet 生成文件需要的导入，名字 -> 路径
type importSet map[string]string

var importSets = pool.NewMapPool[string, string](0)

// typeDecl 包内一个具名类型声明及其相关函数
type typeDecl struct {
	spec    *ast.TypeSpec
	file    *ast.File
	methods []methodDecl
	ctors   []*ast.FuncDecl
}

type methodDecl struct {
	fn   *ast.FuncDecl
	file *ast.File
}

// injectorModel 生成一个注入器所需的全部静态信息
type injectorModel struct {
	Package      string
	Type         string
	Registration string
	FileName     string
	Imports      []importSpec

	// Injector 为 false 时只生成 Declare 调用，运行时走反射
	Injector    bool
	Declaration *declarationModel

	HostManaged bool
	Constructor *constructorModel // nil 表示零值构造
	Fields      []pointModel
	Properties  []pointModel
	Methods     []methodModel
}

type importSpec struct {
	Name  string
	Path  string
	Alias bool
}

type pointModel struct {
	Name         string // 字段名或 setter 名
	TypeExpr     string
	Var          string
	ReturnsError bool
}

type paramModel struct {
	Name     string
	TypeExpr string
	Var      string
}

type methodModel struct {
	Name         string
	Params       []paramModel
	ReturnsError bool
}

type constructorModel struct {
	Name         string
	Params       []paramModel
	ReturnsValue bool
	ReturnsError bool
}

// declarationModel 生成的 di.Declare 调用：全部构造函数候选与注入方法
type declarationModel struct {
	Constructors []declaredFunc
	Methods      []declaredFunc
}

type declaredFunc struct {
	Name   string
	Marked bool
	Params []string
}

// HasPoints 报告是否有任何注入点
func (m *injectorModel) HasPoints() bool {
	return len(m.Fields) > 0 || len(m.Properties) > 0 || len(m.Methods) > 0
}

// typeIndex 包内全部具名类型，按名字索引
type typeIndex map[string]*typeDecl

// collectTypes 按声明顺序收集结构体类型，以及全部具名类型的方法与结构体的构造函数候选
func collectTypes(pkg *sourcePackage) ([]*typeDecl, typeIndex) {
	index := make(typeIndex)
	var structs []*typeDecl

	for _, file := range pkg.Files {
		for _, decl := range file.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.TYPE {
				continue
			}
			for _, spec := range gen.Specs {
				ts := spec.(*ast.TypeSpec)
				td := &typeDecl{spec: ts, file: file}
				index[ts.Name.Name] = td
				if _, ok := ts.Type.(*ast.StructType); ok && !ts.Assign.IsValid() {
					structs = append(structs, td)
				}
			}
		}
	}

	for _, file := range pkg.Files {
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok {
				continue
			}
			if fn.Recv != nil {
				if td := index[receiverName(fn)]; td != nil {
					td.methods = append(td.methods, methodDecl{fn: fn, file: file})
				}
				continue
			}
			if fn.Type.TypeParams != nil {
				continue
			}
			for _, td := range structs {
				if isConstructorFor(td.spec.Name.Name, fn) {
					td.ctors = append(td.ctors, fn)
				}
			}
		}
	}
	return structs, index
}

func receiverName(fn *ast.FuncDecl) string {
	if len(fn.Recv.List) == 0 {
		return ""
	}
	expr := fn.Recv.List[0].Type
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	switch e := expr.(type) {
	case *ast.IndexExpr:
		expr = e.X
	case *ast.IndexListExpr:
		expr = e.X
	}
	if id, ok := expr.(*ast.Ident); ok {
		return id.Name
	}
	return ""
}

// isConstructorFor 名字符合 New<Type>[Suffix] 或带 //di:inject，且返回 T/*T（可附带 error）
func isConstructorFor(typeName string, fn *ast.FuncDecl) bool {
	if !di.IsConstructorName(typeName, fn.Name.Name) && !hasDirective(fn.Doc) {
		return false
	}
	_, _, ok := constructorResults(typeName, fn)
	return ok
}

func constructorResults(typeName string, fn *ast.FuncDecl) (returnsValue, returnsError, ok bool) {
	results := fn.Type.Results
	if results == nil || results.NumFields() == 0 || results.NumFields() > 2 {
		return false, false, false
	}

	first := results.List[0].Type
	if star, isStar := first.(*ast.StarExpr); isStar {
		first = star.X
	} else {
		returnsValue = true
	}
	if id, isIdent := first.(*ast.Ident); !isIdent || id.Name != typeName {
		return false, false, false
	}

	if results.NumFields() == 2 {
		last := results.List[len(results.List)-1].Type
		if id, isIdent := last.(*ast.Ident); !isIdent || id.Name != "error" {
			return false, false, false
		}
		returnsError = true
	}
	return returnsValue, returnsError, true
}

func hasDirective(doc *ast.CommentGroup) bool {
	if doc == nil {
		return false
	}
	for _, c := range doc.List {
		if strings.TrimSpace(c.Text) == di.Directive {
			return true
		}
	}
	return false
}

// analyzer 对一个类型应用 di 包的共享规则
type analyzer struct {
	pkg     *sourcePackage
	td      *typeDecl
	index   typeIndex
	loader  *typeLoader
	model   *injectorModel
	imports importSet
	diags   []Diagnostic
	nextVar int

	mset    map[string]*methodEntry
	msetErr *staticError
	// static 成员无法静态生成的原因，非 nil 时只生成声明
	static *staticError
}

// hasMarker 报告类型是否带有任何注入标记，包括嵌入类型提升的注入方法
func (a *analyzer) hasMarker() bool {
	st := a.td.spec.Type.(*ast.StructType)
	embeds := false
	for _, field := range st.Fields.List {
		if a.isHostObject(a.td.file, field) {
			return true
		}
		if _, ok := fieldTag(field); ok {
			return true
		}
		if len(field.Names) == 0 {
			embeds = true
		}
	}
	for _, m := range a.td.methods {
		if di.IsInjectMethodName(m.fn.Name.Name) || hasDirective(m.fn.Doc) {
			return true
		}
	}
	for _, fn := range a.td.ctors {
		if hasDirective(fn.Doc) {
			return true
		}
	}
	if !embeds {
		return false
	}
	// 嵌入类型无法分析时视为未标记，运行时由反射处理
	set, err := a.methodSet()
	if err != nil {
		return false
	}
	for _, e := range set {
		if isInjectMethod(e) {
			return true
		}
	}
	return false
}

func fieldTag(field *ast.Field) (reflect.StructTag, bool) {
	if field.Tag == nil {
		return "", false
	}
	raw, err := strconv.Unquote(field.Tag.Value)
	if err != nil {
		return "", false
	}
	tag := reflect.StructTag(raw)
	_, ok := tag.Lookup(di.TagName)
	return tag, ok
}

// diName 返回文件中 di 包的本地名
func diName(file *ast.File) string {
	for _, imp := range file.Imports {
		p, _ := strconv.Unquote(imp.Path.Value)
		if p != diImportPath {
			continue
		}
		if imp.Name != nil {
			return imp.Name.Name
		}
		return "di"
	}
	return ""
}

func (a *analyzer) isHostObject(file *ast.File, field *ast.Field) bool {
	if len(field.Names) != 0 {
		return false
	}
	sel, ok := field.Type.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != di.HostObjectName {
		return false
	}
	x, ok := sel.X.(*ast.Ident)
	return ok && x.Name == diName(file)
}

func (a *analyzer) report(kind di.ViolationKind, pos token.Pos, member, reason string) {
	a.diags = append(a.diags, Diagnostic{
		Severity: SeverityError,
		Code:     codeFor(kind),
		Pos:      a.pkg.Fset.Position(pos),
		Type:     a.model.Type,
		Member:   member,
		Message:  reason,
	})
}

// reflectOnly 记录成员无法静态生成，类型降级为只生成声明
func (a *analyzer) reflectOnly(err *staticError) {
	if a.static == nil {
		a.static = err
	}
}

func (a *analyzer) newVar(prefix string) string {
	v := prefix + strconv.Itoa(a.nextVar)
	a.nextVar++
	return v
}

// typeExpr 打印类型表达式，并记录它引用的导入
func (a *analyzer) typeExpr(file *ast.File, expr ast.Expr) string {
	ast.Inspect(expr, func(n ast.Node) bool {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if x, ok := sel.X.(*ast.Ident); ok {
			if p, found := importFor(file, x.Name); found {
				a.imports[x.Name] = p
			}
		}
		return false
	})

	return a.exprString(expr)
}

func (a *analyzer) exprString(expr ast.Expr) string {
	var buf bytes.Buffer
	if err := format.Node(&buf, a.pkg.Fset, expr); err != nil {
		panic(err)
	}
	return buf.String()
}

// importFor 按本地名查找文件中的导入路径
func importFor(file *ast.File, name string) (string, bool) {
	for _, imp := range file.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		local := defaultImportName(p)
		if imp.Name != nil {
			local = imp.Name.Name
		}
		if local == name {
			return p, true
		}
	}
	return "", false
}

// analyzeFields 字段与属性，按声明顺序
func (a *analyzer) analyzeFields() {
	st := a.td.spec.Type.(*ast.StructType)
	for _, field := range st.Fields.List {
		if a.isHostObject(a.td.file, field) {
			a.model.HostManaged = true
			continue
		}
		tag, ok := fieldTag(field)
		if !ok {
			continue
		}

		names := field.Names
		if len(names) == 0 {
			names = []*ast.Ident{embeddedName(field.Type)}
		}
		for _, name := range names {
			if name == nil {
				continue
			}
			spec, _ := di.ParseInjectTag(tag, name.Name)
			if spec.Property {
				a.analyzeProperty(field, name, spec.Setter)
				continue
			}
			if !di.IsReachable(name.Name) {
				a.report(di.ViolationUnreachableField, name.Pos(), name.Name, di.ReasonUnexported)
				continue
			}
			a.model.Fields = append(a.model.Fields, pointModel{
				Name:     name.Name,
				TypeExpr: a.typeExpr(a.td.file, field.Type),
				Var:      a.newVar("v"),
			})
		}
	}
}

func embeddedName(expr ast.Expr) *ast.Ident {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	switch e := expr.(type) {
	case *ast.Ident:
		return e
	case *ast.SelectorExpr:
		return e.Sel
	}
	return nil
}

// analyzeProperty setter 在完整方法集中查找，可以来自嵌入类型
func (a *analyzer) analyzeProperty(field *ast.Field, name *ast.Ident, setter string) {
	set, serr := a.methodSet()
	if serr != nil {
		a.reflectOnly(serr)
		return
	}
	e := set[setter]
	if e == nil || !di.IsReachable(setter) {
		a.report(di.ViolationUnreachableProperty, name.Pos(), name.Name, di.ReasonSetterMissing)
		return
	}
	returnsError, ok := e.results()
	if !ok || e.paramCount() != 1 || e.variadic() {
		a.report(di.ViolationUnreachableProperty, name.Pos(), name.Name, di.ReasonSetterSignature)
		return
	}
	a.model.Properties = append(a.model.Properties, pointModel{
		Name:         setter,
		TypeExpr:     a.typeExpr(a.td.file, field.Type),
		Var:          a.newVar("v"),
		ReturnsError: returnsError,
	})
}

// analyzeMethods 注入方法取自 *T 的完整方法集，按名字排序；
// 每个选中的方法都写入声明，反射路径据此看到同一组方法与参数名
func (a *analyzer) analyzeMethods() {
	set, serr := a.methodSet()
	if serr != nil {
		a.reflectOnly(serr)
		return
	}
	for _, e := range sortedMethods(set) {
		if !isInjectMethod(e) {
			continue
		}
		a.model.Declaration.Methods = append(a.model.Declaration.Methods, declaredFunc{
			Name:   e.name,
			Params: declaredNames(e.paramNames()),
		})

		if !di.IsReachable(e.name) {
			a.report(di.ViolationUnreachableMethod, e.pos, e.name, di.ReasonUnexported)
			continue
		}
		returnsError, ok := e.results()
		if !ok || e.variadic() {
			a.report(di.ViolationUnsupportedMethod, e.pos, e.name, di.ReasonMethodSignature)
			continue
		}
		params, ok := a.methodParams(e)
		if !ok {
			continue
		}
		a.model.Methods = append(a.model.Methods, methodModel{
			Name:         e.name,
			Params:       params,
			ReturnsError: returnsError,
		})
	}
}

// methodParams 其他包的方法参数类型经 go/types 打印，写不出的类型降级为反射
func (a *analyzer) methodParams(e *methodEntry) ([]paramModel, bool) {
	if e.sig == nil {
		return a.params(e.file, e.ftype.Params, "a"), true
	}
	var params []paramModel
	for i := range e.sig.Params().Len() {
		p := e.sig.Params().At(i)
		if !nameable(p.Type(), a.pkg.ImportPath) {
			a.reflectOnly(&staticError{pos: e.pos, member: e.name, reason: "parameter type " + p.Type().String() + " is not accessible"})
			return nil, false
		}
		params = append(params, paramModel{
			Name:     blankName(p.Name()),
			TypeExpr: a.typeString(p.Type()),
			Var:      a.newVar("a"),
		})
	}
	return params, true
}

// analyzeConstructor 用共享策略选择构造函数，全部候选写入声明
func (a *analyzer) analyzeConstructor() {
	candidates := make([]di.ConstructorCandidate, len(a.td.ctors))
	for i, fn := range a.td.ctors {
		candidates[i] = di.ConstructorCandidate{
			Name:   fn.Name.Name,
			Arity:  fn.Type.Params.NumFields(),
			Marked: hasDirective(fn.Doc),
		}
		a.model.Declaration.Constructors = append(a.model.Declaration.Constructors, declaredFunc{
			Name:   fn.Name.Name,
			Marked: candidates[i].Marked,
			Params: declaredNames(fieldNames(fn.Type.Params)),
		})
	}

	choice := di.SelectConstructor(candidates)
	if !choice.Valid() {
		a.report(di.ViolationInvalidConstructor, a.td.spec.Name.Pos(), "", choice.Reason())
		return
	}
	if choice.Index < 0 {
		return
	}

	fn := a.td.ctors[choice.Index]
	if isVariadic(fn.Type) {
		a.report(di.ViolationInvalidConstructor, fn.Name.Pos(), fn.Name.Name, di.ReasonVariadic)
		return
	}
	returnsValue, returnsError, _ := constructorResults(a.td.spec.Name.Name, fn)
	a.model.Constructor = &constructorModel{
		Name:         fn.Name.Name,
		Params:       a.params(fileOf(a.pkg, fn), fn.Type.Params, "c"),
		ReturnsValue: returnsValue,
		ReturnsError: returnsError,
	}
}

func (a *analyzer) params(file *ast.File, list *ast.FieldList, prefix string) []paramModel {
	var params []paramModel
	if list == nil {
		return nil
	}
	for _, field := range list.List {
		typeExpr := a.typeExpr(file, field.Type)
		if len(field.Names) == 0 {
			params = append(params, paramModel{TypeExpr: typeExpr, Var: a.newVar(prefix)})
			continue
		}
		for _, name := range field.Names {
			p := paramModel{Name: name.Name, TypeExpr: typeExpr, Var: a.newVar(prefix)}
			if p.Name == "_" {
				p.Name = ""
			}
			params = append(params, p)
		}
	}
	return params
}

var majorVersion = regexp.MustCompile(`^v[0-9]+$`)

// defaultImportName 按常见约定推断未命名导入的本地名：
// example.com/foo/v2 -> foo，gopkg.in/yaml.v3 -> yaml，go-redis -> redis
func defaultImportName(importPath string) string {
	base := path.Base(importPath)
	if majorVersion.MatchString(base) {
		base = path.Base(path.Dir(importPath))
	}
	if i := strings.Index(base, ".v"); i > 0 {
		base = base[:i]
	}
	base = strings.TrimPrefix(base, "go-")
	return strings.ReplaceAll(base, "-", "_")
}

func fileOf(pkg *sourcePackage, node ast.Node) *ast.File {
	for _, f := range pkg.Files {
		if f.FileStart <= node.Pos() && node.End() <= f.FileEnd {
			return f
		}
	}
	return nil
}

func methodResults(ft *ast.FuncType) (returnsError, ok bool) {
	results := ft.Results
	switch results.NumFields() {
	case 0:
		return false, true
	case 1:
		id, isIdent := results.List[0].Type.(*ast.Ident)
		return true, isIdent && id.Name == "error"
	default:
		return false, false
	}
}

func isVariadic(ft *ast.FuncType) bool {
	if ft.Params == nil || len(ft.Params.List) == 0 {
		return false
	}
	_, ok := ft.Params.List[len(ft.Params.List)-1].Type.(*ast.Ellipsis)
	return ok
}

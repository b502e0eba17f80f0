package generator

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"sort"
	"strings"
	"sync"

	"golang.org/x/tools/go/packages"

	"github.com/gocrud/inject/di"
)

// methodEntry *T 方法集中的一个方法，来自同包源码（ftype）或其他包的类型信息（sig）
type methodEntry struct {
	name  string
	depth int
	pos   token.Pos // 自身方法的名字，或引入它的嵌入字段

	file  *ast.File
	ftype *ast.FuncType
	doc   *ast.CommentGroup

	sig *types.Signature
}

func (e *methodEntry) directive() bool {
	return e.ftype != nil && hasDirective(e.doc)
}

func (e *methodEntry) variadic() bool {
	if e.sig != nil {
		return e.sig.Variadic()
	}
	return isVariadic(e.ftype)
}

func (e *methodEntry) paramCount() int {
	if e.sig != nil {
		return e.sig.Params().Len()
	}
	return e.ftype.Params.NumFields()
}

// results 报告方法是否没有返回值或只返回 error
func (e *methodEntry) results() (returnsError, ok bool) {
	if e.sig == nil {
		return methodResults(e.ftype)
	}
	switch r := e.sig.Results(); r.Len() {
	case 0:
		return false, true
	case 1:
		return true, types.Identical(r.At(0).Type(), errorType)
	default:
		return false, false
	}
}

// paramNames 源码中的参数名，"_" 和匿名参数为 ""
func (e *methodEntry) paramNames() []string {
	var names []string
	if e.sig != nil {
		for i := range e.sig.Params().Len() {
			names = append(names, blankName(e.sig.Params().At(i).Name()))
		}
		return names
	}
	return fieldNames(e.ftype.Params)
}

var errorType = types.Universe.Lookup("error").Type()

// staticError 无法静态分析的嵌入类型或参数类型，这类类型只在运行时走反射
type staticError struct {
	pos    token.Pos
	member string
	reason string
}

// methodSet 按 Go 的提升规则计算 *T 的方法集：浅层优先，同一深度出现多次的名字不提升。
func (a *analyzer) methodSet() (map[string]*methodEntry, *staticError) {
	if a.mset != nil || a.msetErr != nil {
		return a.mset, a.msetErr
	}

	w := &methodWalker{
		a:       a,
		methods: make(map[int]map[string][]*methodEntry),
		fields:  make(map[int]map[string]bool),
		seen:    make(map[string]int),
	}
	w.queue = append(w.queue, embedded{td: a.td, depth: 0})
	for len(w.queue) > 0 && w.err == nil {
		next := w.queue[0]
		w.queue = w.queue[1:]
		w.visit(next)
	}
	if w.err != nil {
		a.msetErr = w.err
		return nil, w.err
	}

	a.mset = w.resolve()
	return a.mset, nil
}

type embedded struct {
	td    *typeDecl
	depth int
	pos   token.Pos
}

type methodWalker struct {
	a       *analyzer
	queue   []embedded
	methods map[int]map[string][]*methodEntry
	fields  map[int]map[string]bool
	seen    map[string]int
	maxD    int
	err     *staticError
}

func (w *methodWalker) addMethod(e *methodEntry) {
	if w.methods[e.depth] == nil {
		w.methods[e.depth] = make(map[string][]*methodEntry)
	}
	w.methods[e.depth][e.name] = append(w.methods[e.depth][e.name], e)
	w.maxD = max(w.maxD, e.depth)
}

func (w *methodWalker) addField(depth int, name string) {
	if w.fields[depth] == nil {
		w.fields[depth] = make(map[string]bool)
	}
	w.fields[depth][name] = true
	w.maxD = max(w.maxD, depth)
}

func (w *methodWalker) fail(pos token.Pos, member, format string, args ...any) {
	if w.err == nil {
		w.err = &staticError{pos: pos, member: member, reason: fmt.Sprintf(format, args...)}
	}
}

// visit 收集一个具名类型在给定深度上的方法与字段
func (w *methodWalker) visit(cur embedded) {
	name := cur.td.spec.Name.Name
	if d, ok := w.seen[name]; ok && d < cur.depth {
		return
	}
	w.seen[name] = cur.depth

	for _, m := range cur.td.methods {
		pos := cur.pos
		if cur.depth == 0 {
			pos = m.fn.Name.Pos()
		}
		w.addMethod(&methodEntry{
			name:  m.fn.Name.Name,
			depth: cur.depth,
			pos:   pos,
			file:  m.file,
			ftype: m.fn.Type,
			doc:   m.fn.Doc,
		})
	}

	if cur.td.spec.Assign.IsValid() {
		w.fail(cur.pos, name, "alias %s is not analyzed statically", name)
		return
	}
	switch t := cur.td.spec.Type.(type) {
	case *ast.StructType:
		w.visitStruct(cur, t)
	case *ast.InterfaceType:
		w.visitInterface(cur, cur.td.file, t, map[string]bool{name: true})
	case *ast.Ident, *ast.SelectorExpr, *ast.IndexExpr, *ast.IndexListExpr, *ast.ParenExpr:
		if cur.depth > 0 {
			w.fail(cur.pos, name, "embedded type %s is defined over another named type", name)
		}
	}
}

func (w *methodWalker) visitStruct(cur embedded, st *ast.StructType) {
	for _, field := range st.Fields.List {
		if len(field.Names) > 0 {
			for _, n := range field.Names {
				w.addField(cur.depth, n.Name)
			}
			continue
		}
		if w.a.isHostObject(cur.td.file, field) {
			continue
		}

		pos := cur.pos
		if cur.depth == 0 {
			pos = field.Pos()
		}
		ident := embeddedName(field.Type)
		if ident == nil {
			w.fail(pos, "", "embedded field %s is not analyzed statically", w.a.exprString(field.Type))
			return
		}
		w.addField(cur.depth, ident.Name)
		w.embed(cur.td.file, field.Type, cur.depth+1, pos)
	}
}

// visitInterface 接口方法与内嵌接口的方法处于同一深度
func (w *methodWalker) visitInterface(cur embedded, file *ast.File, it *ast.InterfaceType, visiting map[string]bool) {
	for _, m := range it.Methods.List {
		if ft, ok := m.Type.(*ast.FuncType); ok {
			for _, n := range m.Names {
				w.addMethod(&methodEntry{name: n.Name, depth: cur.depth, pos: cur.pos, file: file, ftype: ft, doc: m.Doc})
			}
			continue
		}
		if id, ok := m.Type.(*ast.Ident); ok {
			if td := w.a.index[id.Name]; td != nil {
				inner, isIface := td.spec.Type.(*ast.InterfaceType)
				if !isIface || visiting[id.Name] {
					continue
				}
				visiting[id.Name] = true
				w.visitInterface(cur, td.file, inner, visiting)
				continue
			}
		}
		w.embed(file, m.Type, cur.depth, cur.pos)
	}
}

// embed 解析嵌入类型：同包类型入队，预声明类型和其他包的类型通过 go/types 展开
func (w *methodWalker) embed(file *ast.File, expr ast.Expr, depth int, pos token.Pos) {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	switch e := expr.(type) {
	case *ast.Ident:
		if td := w.a.index[e.Name]; td != nil {
			w.queue = append(w.queue, embedded{td: td, depth: depth, pos: pos})
			return
		}
		obj, ok := types.Universe.Lookup(e.Name).(*types.TypeName)
		if !ok {
			w.fail(pos, e.Name, "embedded type %s not found", e.Name)
			return
		}
		w.addTypes(obj.Type(), depth, pos)
	case *ast.SelectorExpr:
		x, ok := e.X.(*ast.Ident)
		if !ok {
			w.fail(pos, e.Sel.Name, "embedded type %s is not analyzed statically", w.a.exprString(expr))
			return
		}
		path, found := importFor(file, x.Name)
		if !found {
			w.fail(pos, e.Sel.Name, "import %s not found", x.Name)
			return
		}
		t, err := w.a.loader.lookup(w.a.pkg.Dir, path, e.Sel.Name)
		if err != nil {
			w.fail(pos, e.Sel.Name, "%v", err)
			return
		}
		w.addTypes(t, depth, pos)
	default:
		w.fail(pos, "", "embedded type %s is not analyzed statically", w.a.exprString(expr))
	}
}

// addTypes 展开其他包类型的方法集和直接字段
func (w *methodWalker) addTypes(t types.Type, depth int, pos token.Pos) {
	var ms *types.MethodSet
	if types.IsInterface(t) {
		ms = types.NewMethodSet(t)
	} else {
		ms = types.NewMethodSet(types.NewPointer(t))
	}
	for i := range ms.Len() {
		sel := ms.At(i)
		fn := sel.Obj().(*types.Func)
		w.addMethod(&methodEntry{
			name:  fn.Name(),
			depth: depth + len(sel.Index()) - 1,
			pos:   pos,
			sig:   fn.Type().(*types.Signature),
		})
	}
	if st, ok := t.Underlying().(*types.Struct); ok {
		for i := range st.NumFields() {
			w.addField(depth, st.Field(i).Name())
		}
	}
}

func (w *methodWalker) resolve() map[string]*methodEntry {
	set := make(map[string]*methodEntry)
	blocked := make(map[string]bool)
	for d := 0; d <= w.maxD; d++ {
		for name, entries := range w.methods[d] {
			if !blocked[name] && len(entries) == 1 && !w.fields[d][name] {
				set[name] = entries[0]
			}
		}
		for name := range w.methods[d] {
			blocked[name] = true
		}
		for name := range w.fields[d] {
			blocked[name] = true
		}
	}
	return set
}

// sortedMethods 按名字排序，与 reflect 的方法集顺序一致
func sortedMethods(set map[string]*methodEntry) []*methodEntry {
	out := make([]*methodEntry, 0, len(set))
	for _, e := range set {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// typeLoader 按需加载其他包的类型信息，一次运行内按导入路径缓存
type typeLoader struct {
	mu    sync.Mutex
	cache map[string]*loadedPackage
}

type loadedPackage struct {
	once sync.Once
	pkg  *types.Package
	err  error
}

func newTypeLoader() *typeLoader {
	return &typeLoader{cache: make(map[string]*loadedPackage)}
}

// lookup 返回 importPath 中导出的类型 name，dir 决定模块上下文
func (l *typeLoader) lookup(dir, importPath, name string) (types.Type, error) {
	l.mu.Lock()
	lp, ok := l.cache[importPath]
	if !ok {
		lp = &loadedPackage{}
		l.cache[importPath] = lp
	}
	l.mu.Unlock()

	lp.once.Do(func() { lp.pkg, lp.err = loadTypes(dir, importPath) })
	if lp.err != nil {
		return nil, lp.err
	}
	obj, ok := lp.pkg.Scope().Lookup(name).(*types.TypeName)
	if !ok || !obj.Exported() {
		return nil, fmt.Errorf("%s.%s is not an exported type", importPath, name)
	}
	return types.Unalias(obj.Type()), nil
}

func loadTypes(dir, importPath string) (*types.Package, error) {
	pkgs, err := packages.Load(&packages.Config{
		Mode: packages.NeedName | packages.NeedTypes,
		Dir:  dir,
	}, importPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", importPath, err)
	}
	if len(pkgs) != 1 || pkgs[0].Types == nil {
		return nil, fmt.Errorf("load %s: package not found", importPath)
	}
	if errs := pkgs[0].Errors; len(errs) > 0 {
		return nil, fmt.Errorf("load %s: %v", importPath, errs[0])
	}
	return pkgs[0].Types, nil
}

// typeString 打印其他包中的类型，并记录需要的导入；同名不同路径的包加数字后缀
func (a *analyzer) typeString(t types.Type) string {
	return types.TypeString(t, func(p *types.Package) string {
		if p.Path() == a.pkg.ImportPath {
			return ""
		}
		name := p.Name()
		for i := 2; ; i++ {
			if cur, taken := a.imports[name]; !taken || cur == p.Path() {
				break
			}
			name = fmt.Sprintf("%s%d", p.Name(), i)
		}
		a.imports[name] = p.Path()
		return name
	})
}

// nameable 报告类型能否在包 pkgPath 的代码中写出
func nameable(t types.Type, pkgPath string) bool {
	visible := func(exported bool, pkg *types.Package) bool {
		return exported || pkg == nil || pkg.Path() == pkgPath
	}
	switch t := t.(type) {
	case *types.Basic:
		return t.Kind() != types.Invalid
	case *types.Alias:
		return visible(t.Obj().Exported(), t.Obj().Pkg()) && nameable(types.Unalias(t), pkgPath)
	case *types.Named:
		if !visible(t.Obj().Exported(), t.Obj().Pkg()) {
			return false
		}
		args := t.TypeArgs()
		for i := range args.Len() {
			if !nameable(args.At(i), pkgPath) {
				return false
			}
		}
		return true
	case *types.Pointer:
		return nameable(t.Elem(), pkgPath)
	case *types.Slice:
		return nameable(t.Elem(), pkgPath)
	case *types.Array:
		return nameable(t.Elem(), pkgPath)
	case *types.Chan:
		return nameable(t.Elem(), pkgPath)
	case *types.Map:
		return nameable(t.Key(), pkgPath) && nameable(t.Elem(), pkgPath)
	case *types.Signature:
		return nameableTuple(t.Params(), pkgPath) && nameableTuple(t.Results(), pkgPath)
	case *types.Struct:
		for i := range t.NumFields() {
			f := t.Field(i)
			if !visible(f.Exported(), f.Pkg()) || !nameable(f.Type(), pkgPath) {
				return false
			}
		}
		return true
	case *types.Interface:
		for i := range t.NumMethods() {
			m := t.Method(i)
			if !visible(m.Exported(), m.Pkg()) || !nameable(m.Type(), pkgPath) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func nameableTuple(tuple *types.Tuple, pkgPath string) bool {
	for i := range tuple.Len() {
		if !nameable(tuple.At(i).Type(), pkgPath) {
			return false
		}
	}
	return true
}

func blankName(name string) string {
	if name == "_" {
		return ""
	}
	return name
}

// fieldNames 参数列表中每个参数的名字
func fieldNames(list *ast.FieldList) []string {
	if list == nil {
		return nil
	}
	var names []string
	for _, field := range list.List {
		if len(field.Names) == 0 {
			names = append(names, "")
			continue
		}
		for _, n := range field.Names {
			names = append(names, blankName(n.Name))
		}
	}
	return names
}

// declaredNames Declare 的参数名：全部为空时不声明
func declaredNames(names []string) []string {
	if strings.Join(names, "") == "" {
		return nil
	}
	return names
}

func isInjectMethod(e *methodEntry) bool {
	return e.directive() || di.IsInjectMethodName(e.name)
}

// Package generator 在构建期分析 Go 源码，为带注入标记的类型生成专用注入器。
//
// 生成规则与 di 包的反射构建器共用 di/rules.go：同一类型在两条路径上的
// 成员发现、构造函数选择与可达性判断完全一致。生成的文件在 init 中以
// di.GeneratedInjectorName 约定名注册，运行时由 di.InjectorCache 优先选用。
package generator

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gocrud/inject/di"
	"github.com/gocrud/inject/logging"
)

// Artifact 一个生成的源文件
type Artifact struct {
	Path    string
	Package string
	Type    string
	// Injector 为 false 时文件只包含 di.Declare 声明
	Injector bool
	Content  []byte
}

// Result 一次运行的输出
type Result struct {
	Files       []Artifact
	Diagnostics []Diagnostic
	// Removed 因类型不再有效而删除的旧生成文件
	Removed []string
}

// HasErrors 报告是否存在错误级诊断
func (r *Result) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Run 处理 cfg.Dirs 中的所有包。单个类型或包的失败以诊断形式报告，不中断运行；
// 只有目录展开、上下文取消和写文件失败作为错误返回。
func Run(ctx context.Context, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	logger := cfg.Logger

	dirs, err := expandDirs(cfg.Dirs)
	if err != nil {
		return nil, fmt.Errorf("expand dirs: %w", err)
	}

	var (
		mu     sync.Mutex
		result = &Result{}
		stale  []string
	)
	modules := newModuleResolver()
	loader := newTypeLoader()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for _, dir := range dirs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out := processDir(dir, cfg, modules, loader, logger)

			mu.Lock()
			defer mu.Unlock()
			result.Files = append(result.Files, out.files...)
			result.Diagnostics = append(result.Diagnostics, out.diags...)
			stale = append(stale, out.stale...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(result.Files, func(i, j int) bool { return result.Files[i].Path < result.Files[j].Path })
	sortDiagnostics(result.Diagnostics)
	sort.Strings(stale)

	if cfg.DryRun {
		return result, nil
	}

	for _, a := range result.Files {
		if err := writeIfChanged(a.Path, a.Content); err != nil {
			return nil, fmt.Errorf("write %s: %w", a.Path, err)
		}
		logger.Info("generated injector", logging.F("type", a.Type), logging.F("file", a.Path), logging.F("static", a.Injector))
	}
	for _, p := range stale {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove %s: %w", p, err)
		}
		result.Removed = append(result.Removed, p)
		logger.Info("removed stale injector", logging.F("file", p))
	}
	return result, nil
}

type dirOutput struct {
	files []Artifact
	diags []Diagnostic
	stale []string
}

// processDir 处理一个包目录，panic 被恢复为 INJ000
func processDir(dir string, cfg Config, modules *moduleResolver, loader *typeLoader, logger logging.Logger) (out dirOutput) {
	defer func() {
		if r := recover(); r != nil {
			out.diags = append(out.diags, unexpected(token.Position{Filename: dir}, "", r))
		}
	}()

	importPath, err := modules.importPath(dir)
	if err != nil {
		out.diags = append(out.diags, unexpected(token.Position{Filename: dir}, "", err))
		return out
	}
	if cfg.excluded(importPath) {
		logger.Debug("skipping excluded package", logging.F("package", importPath))
		return out
	}

	pkg, err := loadPackage(dir, importPath, cfg.FileSuffix)
	if err != nil {
		out.diags = append(out.diags, unexpected(token.Position{Filename: dir}, "", err))
		return out
	}
	if pkg == nil {
		return out
	}

	structs, index := collectTypes(pkg)
	for _, td := range structs {
		a := newAnalyzer(pkg, td, index, loader, cfg)
		artifact, diags, ok := processType(a)
		out.diags = append(out.diags, diags...)
		if ok {
			out.files = append(out.files, artifact)
			continue
		}
		// 有诊断却没有可声明内容的类型不再保留旧的生成文件
		if len(diags) > 0 {
			p := filepath.Join(dir, OutputFileName(td.spec.Name.Name, cfg.FileSuffix))
			if _, err := os.Stat(p); err == nil {
				out.stale = append(out.stale, p)
			}
		}
	}
	return out
}

func newAnalyzer(pkg *sourcePackage, td *typeDecl, index typeIndex, loader *typeLoader, cfg Config) *analyzer {
	name := td.spec.Name.Name
	return &analyzer{
		pkg:    pkg,
		td:     td,
		index:  index,
		loader: loader,
		model: &injectorModel{
			Package:      pkg.Name,
			Type:         name,
			Registration: di.GeneratedInjectorName(pkg.runtimePath(), name),
			FileName:     OutputFileName(name, cfg.FileSuffix),
			Declaration:  &declarationModel{},
		},
	}
}

// processType 分析并生成一个类型的文件。类型有违反或成员无法静态分析时，
// 只生成 di.Declare 声明，运行时由反射构建器报告同样的违反；
// 类型未标记、泛型或没有可声明的内容时 ok 为 false。
func processType(a *analyzer) (artifact Artifact, diags []Diagnostic, ok bool) {
	name := a.td.spec.Name.Name
	pos := a.pkg.Fset.Position(a.td.spec.Name.Pos())

	set := importSets.Get()
	defer importSets.Release(set)
	a.imports = set

	defer func() {
		if r := recover(); r != nil {
			diags = append(diags, unexpected(pos, name, r))
			ok = false
		}
	}()

	if !a.hasMarker() {
		return Artifact{}, nil, false
	}
	if a.td.spec.TypeParams != nil {
		return Artifact{}, []Diagnostic{{
			Severity: SeverityWarning,
			Code:     CodeGenericType,
			Pos:      pos,
			Type:     name,
			Message:  "generic types are not generated; the reflection injector is used at runtime",
		}}, false
	}

	a.analyzeFields()
	a.analyzeMethods()
	a.analyzeConstructor()

	diags = a.diags
	if a.static != nil && !hasError(diags) {
		diags = append(diags, Diagnostic{
			Severity: SeverityWarning,
			Code:     CodeStaticAnalysis,
			Pos:      a.pkg.Fset.Position(a.static.pos),
			Type:     name,
			Member:   a.static.member,
			Message:  a.static.reason + "; the reflection injector is used at runtime",
		})
	}

	a.model.Injector = a.static == nil && !hasError(diags)
	if decl := a.model.Declaration; len(decl.Constructors) == 0 && len(decl.Methods) == 0 {
		if !a.model.Injector {
			return Artifact{}, diags, false
		}
		a.model.Declaration = nil
	}
	if !a.model.Injector {
		clear(set)
	}

	a.model.Imports = sortedImports(set)
	path := filepath.Join(a.pkg.Dir, a.model.FileName)
	content, err := render(a.model, path)
	if err != nil {
		return Artifact{}, append(diags, unexpected(pos, name, err)), false
	}

	return Artifact{
		Path:     path,
		Package:  a.pkg.ImportPath,
		Type:     name,
		Injector: a.model.Injector,
		Content:  content,
	}, diags, true
}

func hasError(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

func sortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i].Pos, diags[j].Pos
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}

// writeIfChanged 内容不变时不重写，避免无谓的重新编译
func writeIfChanged(path string, content []byte) error {
	if old, err := os.ReadFile(path); err == nil && string(old) == string(content) {
		return nil
	}
	return os.WriteFile(path, content, 0o644)
}

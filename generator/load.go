package generator

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/mod/modfile"
)

// sourcePackage 一个已解析的包目录
type sourcePackage struct {
	Dir        string
	Name       string
	ImportPath string
	Fset       *token.FileSet
	Files      []*ast.File // 按文件名排序
}

// runtimePath 运行时 reflect.Type.PkgPath() 看到的包路径，main 包总是 "main"
func (p *sourcePackage) runtimePath() string {
	if p.Name == "main" {
		return "main"
	}
	return p.ImportPath
}

// expandDirs 展开 "dir/..." 并去重，结果有序
func expandDirs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	for _, pattern := range patterns {
		root, recursive := strings.CutSuffix(filepath.ToSlash(pattern), "/...")
		if root == "" || root == "..." {
			root, recursive = ".", recursive || root == "..."
		}
		abs, err := filepath.Abs(filepath.FromSlash(root))
		if err != nil {
			return nil, err
		}
		if !recursive {
			add(abs)
			continue
		}

		err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			name := d.Name()
			if p != abs && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "testdata" || name == "vendor") {
				return filepath.SkipDir
			}
			add(p)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(dirs)
	return dirs, nil
}

// moduleResolver 根据最近的 go.mod 计算目录的导入路径
type moduleResolver struct {
	mu    sync.Mutex
	roots map[string]string // 目录 -> 模块路径（"" 表示没有 go.mod）
}

func newModuleResolver() *moduleResolver {
	return &moduleResolver{roots: make(map[string]string)}
}

func (m *moduleResolver) importPath(dir string) (string, error) {
	for d := dir; ; d = filepath.Dir(d) {
		modPath, err := m.modulePath(d)
		if err != nil {
			return "", err
		}
		if modPath != "" {
			rel, err := filepath.Rel(d, dir)
			if err != nil {
				return "", err
			}
			if rel == "." {
				return modPath, nil
			}
			return path.Join(modPath, filepath.ToSlash(rel)), nil
		}
		if parent := filepath.Dir(d); parent == d {
			return "", fmt.Errorf("no go.mod found above %s", dir)
		}
	}
}

func (m *moduleResolver) modulePath(dir string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.roots[dir]; ok {
		return p, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		m.roots[dir] = ""
		return "", nil
	case err != nil:
		return "", err
	}

	modPath := modfile.ModulePath(data)
	if modPath == "" {
		return "", fmt.Errorf("%s: missing module directive", filepath.Join(dir, "go.mod"))
	}
	m.roots[dir] = modPath
	return modPath, nil
}

// loadPackage 解析目录中的非测试源文件，跳过已生成的文件。目录中没有 Go 文件时返回 nil。
func loadPackage(dir, importPath, fileSuffix string) (*sourcePackage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	pkg := &sourcePackage{Dir: dir, ImportPath: importPath, Fset: token.NewFileSet()}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") ||
			strings.HasSuffix(name, "_test.go") || strings.HasSuffix(name, fileSuffix) ||
			strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}

		file, err := parser.ParseFile(pkg.Fset, filepath.Join(dir, name), nil, parser.ParseComments)
		if err != nil {
			return nil, err
		}
		if pkg.Name == "" {
			pkg.Name = file.Name.Name
		}
		if file.Name.Name != pkg.Name {
			continue
		}
		pkg.Files = append(pkg.Files, file)
	}

	if len(pkg.Files) == 0 {
		return nil, nil
	}
	return pkg, nil
}

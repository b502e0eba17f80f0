package generator

import (
	"runtime"
	"strings"

	"github.com/gocrud/inject/logging"
)

const (
	// DefaultFileSuffix 生成文件名后缀：widget_injector_gen.go
	DefaultFileSuffix = "_injector_gen.go"

	diImportPath = "github.com/gocrud/inject/di"
)

// FrameworkPackages 默认排除的框架自身包，"/..." 后缀表示整个子树
var FrameworkPackages = []string{
	diImportPath,
	"github.com/gocrud/inject/pool",
	"github.com/gocrud/inject/typecache",
	"github.com/gocrud/inject/generator",
	"github.com/gocrud/inject/logging",
	"github.com/gocrud/inject/config",
	"github.com/gocrud/inject/cmd/...",
}

// Config injectgen 的运行配置
type Config struct {
	// Dirs 要处理的包目录，"dir/..." 递归处理子目录
	Dirs []string `json:"dirs"`
	// Exclude 追加到 FrameworkPackages 之后的排除导入路径
	Exclude []string `json:"exclude"`
	// FileSuffix 生成文件名后缀
	FileSuffix string `json:"fileSuffix"`
	// Concurrency 同时处理的包数，<= 0 时为 GOMAXPROCS
	Concurrency int `json:"concurrency"`
	// DryRun 只返回生成结果，不写文件
	DryRun bool `json:"dryRun"`

	Logger logging.Logger `json:"-"`
}

func (c Config) withDefaults() Config {
	if len(c.Dirs) == 0 {
		c.Dirs = []string{"."}
	}
	if c.FileSuffix == "" {
		c.FileSuffix = DefaultFileSuffix
	}
	if c.Concurrency <= 0 {
		c.Concurrency = runtime.GOMAXPROCS(0)
	}
	c.Logger = logging.ForCategory(c.Logger, "injectgen")
	c.Exclude = append(append([]string(nil), FrameworkPackages...), c.Exclude...)
	return c
}

// excluded 报告导入路径是否匹配任一排除模式
func (c Config) excluded(importPath string) bool {
	for _, pattern := range c.Exclude {
		if prefix, ok := strings.CutSuffix(pattern, "/..."); ok {
			if importPath == prefix || strings.HasPrefix(importPath, prefix+"/") {
				return true
			}
			continue
		}
		if importPath == pattern {
			return true
		}
	}
	return false
}

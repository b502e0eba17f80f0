package config

import (
	"strings"

	"github.com/gocrud/inject/typecache"
)

// PathCache 缓存配置路径的分段结果，"log:level" 和 "log.level" 等价
type PathCache struct {
	segments *typecache.Table[string, []string]
}

// NewPathCache 创建路径缓存
func NewPathCache() *PathCache {
	return &PathCache{segments: typecache.NewTable(splitPath)}
}

// GetPathSegments 返回路径片段，结果共享，调用方不能修改
func (c *PathCache) GetPathSegments(path string) []string {
	return c.segments.Of(path)
}

// splitPath 按 ":" 或 "." 分段，丢弃空段
func splitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool {
		return r == ':' || r == '.'
	})
}

var globalPathCache = NewPathCache()

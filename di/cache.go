package di

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/gocrud/inject/logging"
	"github.com/gocrud/inject/typecache"
)

// InjectorCache 进程级的 类型 -> 注入器 映射。
// 条目在首次请求时构建，之后在缓存生命周期内不再变化，也从不清除。
type InjectorCache struct {
	entries sync.Map // TypeKey -> *cacheEntry
	logger  atomic.Pointer[loggerHolder]
}

type loggerHolder struct {
	logging.Logger
}

type cacheEntry struct {
	once     sync.Once
	injector Injector
	strategy Strategy
	built    atomic.Bool
}

// CacheOption 配置 InjectorCache
type CacheOption func(*InjectorCache)

// WithLogger 设置缓存使用的日志记录器
func WithLogger(logger logging.Logger) CacheOption {
	return func(c *InjectorCache) {
		c.SetLogger(logger)
	}
}

// NewInjectorCache 创建独立的缓存，默认不输出日志
func NewInjectorCache(opts ...CacheOption) *InjectorCache {
	c := &InjectorCache{}
	c.SetLogger(logging.NewNopLogger())
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetLogger 替换日志记录器
func (c *InjectorCache) SetLogger(logger logging.Logger) {
	c.logger.Store(&loggerHolder{Logger: logging.ForCategory(logger, "di")})
}

func (c *InjectorCache) log() logging.Logger {
	return c.logger.Load().Logger
}

// GetOrBuild 返回 key 的注入器。同一 key 的并发首次请求只构建一次，
// 所有调用方得到同一个实例。缓存本身从不返回错误。
func (c *InjectorCache) GetOrBuild(key TypeKey) Injector {
	v, ok := c.entries.Load(key)
	if !ok {
		v, _ = c.entries.LoadOrStore(key, &cacheEntry{})
	}

	entry := v.(*cacheEntry)
	entry.once.Do(func() {
		entry.injector, entry.strategy = c.build(key)
		entry.built.Store(true)
		c.log().Debug("built injector",
			logging.F("type", key.FullName()),
			logging.F("strategy", entry.strategy.String()))
	})
	return entry.injector
}

// Strategy 报告 key 的注入器来自哪种方式；尚未构建时返回 false
func (c *InjectorCache) Strategy(key TypeKey) (Strategy, bool) {
	v, ok := c.entries.Load(key)
	if !ok {
		return 0, false
	}
	entry := v.(*cacheEntry)
	if !entry.built.Load() {
		return 0, false
	}
	return entry.strategy, true
}

// build 按 生成 -> 旧版工厂 -> 反射 的顺序选择，第一个命中的生效
func (c *InjectorCache) build(key TypeKey) (Injector, Strategy) {
	if injector := c.generatedInjector(key); injector != nil {
		return injector, StrategyGenerated
	}

	if injector := c.legacyInjector(key); injector != nil {
		return injector, StrategyLegacy
	}

	return BuildReflectionInjector(key), StrategyReflection
}

// generatedInjector 调用按约定名登记的工厂，泛型实例没有生成注入器。
// 工厂 panic 时记录警告并回退到后续方式。
func (c *InjectorCache) generatedInjector(key TypeKey) (injector Injector) {
	typ := key.Type()
	if typ == nil || key.Name() == "" || !typecache.OpenGenericOf(typ).IsZero() {
		return nil
	}
	factory, ok := lookupGenerated(GeneratedInjectorName(key.PkgPath(), key.Name()))
	if !ok {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			c.log().Warn("generated injector factory panicked",
				logging.F("type", key.FullName()),
				logging.F("panic", fmt.Sprint(r)))
			injector = nil
		}
	}()
	return factory()
}

// legacyInjector 在零值 *T（或 T）上调用 GetGeneratedInjector。
// 工厂 panic 时记录警告并回退到反射。
func (c *InjectorCache) legacyInjector(key TypeKey) (injector Injector) {
	typ := key.Type()
	if typ == nil {
		return nil
	}

	factory, ok := reflect.Zero(reflect.PointerTo(typ)).Interface().(LegacyInjectorFactory)
	if !ok {
		if factory, ok = reflect.Zero(typ).Interface().(LegacyInjectorFactory); !ok {
			return nil
		}
	}

	defer func() {
		if r := recover(); r != nil {
			c.log().Warn("legacy injector factory panicked",
				logging.F("type", key.FullName()),
				logging.F("panic", fmt.Sprint(r)))
			injector = nil
		}
	}()
	return factory.GetGeneratedInjector()
}

var defaultCache = NewInjectorCache()

// DefaultCache 返回进程级默认缓存
func DefaultCache() *InjectorCache {
	return defaultCache
}

// GetOrBuild 从默认缓存获取 key 的注入器
func GetOrBuild(key TypeKey) Injector {
	return defaultCache.GetOrBuild(key)
}

// InjectorFor 从默认缓存获取类型 T 的注入器
func InjectorFor[T any]() Injector {
	return defaultCache.GetOrBuild(KeyOf[T]())
}

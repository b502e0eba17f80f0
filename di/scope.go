package di

import (
	"errors"
	"sync"

	"github.com/gocrud/inject/pool"
)

// ErrScopeDisposed 在已释放的作用域上实例化
var ErrScopeDisposed = errors.New("di: scope disposed")

// Scope 通过注入器缓存创建实例，并跟踪其中实现了 pool.Disposable 的对象，
// Dispose 时按创建的逆序释放。作用域不做生命周期映射，每次 Instantiate 都创建新实例。
type Scope struct {
	cache       *InjectorCache
	resolver    Resolver
	disposables *pool.DisposablePool

	mu       sync.Mutex
	tracked  *pool.CompositeDisposable
	disposed bool
}

// ScopeOption 配置 Scope
type ScopeOption func(*Scope)

// WithCache 使用指定的注入器缓存（默认进程级缓存）
func WithCache(cache *InjectorCache) ScopeOption {
	return func(s *Scope) {
		s.cache = cache
	}
}

// WithDisposablePool 使用指定的聚合池（默认 pool.Disposables）
func WithDisposablePool(p *pool.DisposablePool) ScopeOption {
	return func(s *Scope) {
		s.disposables = p
	}
}

// NewScope 创建作用域
func NewScope(resolver Resolver, opts ...ScopeOption) *Scope {
	s := &Scope{
		cache:       defaultCache,
		resolver:    resolver,
		disposables: pool.Disposables,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tracked = s.disposables.Get()
	return s
}

// Instantiate 构造 key 的实例并执行成员注入
func (s *Scope) Instantiate(key TypeKey, params ...Parameter) (any, error) {
	s.mu.Lock()
	disposed := s.disposed
	s.mu.Unlock()
	if disposed {
		return nil, ErrScopeDisposed
	}

	injector := s.cache.GetOrBuild(key)
	instance, err := injector.CreateInstance(s.resolver, params)
	if err != nil {
		return nil, err
	}
	if err := injector.Inject(instance, s.resolver, params); err != nil {
		// 注入失败的实例不会交给调用方，构造函数已获取的资源在这里释放
		if d, ok := instance.(pool.Disposable); ok {
			d.Dispose()
		}
		return nil, err
	}

	if d, ok := instance.(pool.Disposable); ok {
		s.Track(d)
	}
	return instance, nil
}

// Track 将资源交给作用域管理；作用域已释放时立即释放资源
func (s *Scope) Track(d pool.Disposable) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		d.Dispose()
		return
	}
	// 持锁添加，避免向已归还给池的聚合写入
	s.tracked.Add(d)
	s.mu.Unlock()
}

// Dispose 释放所有跟踪的资源并把聚合归还给池。重复调用为空操作。
func (s *Scope) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	tracked := s.tracked
	s.tracked = nil
	s.mu.Unlock()

	s.disposables.Release(tracked)
}

// Instantiate 在作用域中创建 *T
func Instantiate[T any](s *Scope, params ...Parameter) (*T, error) {
	instance, err := s.Instantiate(KeyOf[T](), params...)
	if err != nil {
		return nil, err
	}
	return InstanceOf[T](instance)
}

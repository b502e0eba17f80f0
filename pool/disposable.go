// Package pool 提供作用域销毁与解析记账时复用的缓冲池。
package pool

import (
	"io"
	"sync"
)

// Disposable 表示可释放的资源
type Disposable interface {
	Dispose()
}

// DisposableFunc 将函数适配为 Disposable
type DisposableFunc func()

// Dispose 调用函数本身
func (f DisposableFunc) Dispose() {
	f()
}

// Closer 将 io.Closer 适配为 Disposable，Close 返回的错误交给 onError（可为 nil）
func Closer(c io.Closer, onError func(error)) Disposable {
	return DisposableFunc(func() {
		if err := c.Close(); err != nil && onError != nil {
			onError(err)
		}
	})
}

// CompositeDisposable 按获取顺序保存资源，销毁时按 LIFO 顺序释放。
// Add 与 Dispose 可以并发调用。
type CompositeDisposable struct {
	mu    sync.Mutex
	items []Disposable
}

// Add 压入一个资源
func (c *CompositeDisposable) Add(d Disposable) {
	c.mu.Lock()
	c.items = append(c.items, d)
	c.mu.Unlock()
}

// Len 返回当前持有的资源数
func (c *CompositeDisposable) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Dispose 逐个弹出并释放资源，直到为空。
// 每次循环都重新检查是否为空，释放过程中并发 Add 的资源同样会被释放。
// 再次调用时集合已空，什么也不做。
func (c *CompositeDisposable) Dispose() {
	for {
		d := c.pop()
		if d == nil {
			return
		}
		d.Dispose()
	}
}

func (c *CompositeDisposable) pop() Disposable {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.items)
	if n == 0 {
		return nil
	}
	d := c.items[n-1]
	c.items[n-1] = nil
	c.items = c.items[:n-1]
	return d
}

// DisposablePool 复用 CompositeDisposable，零值可用，最多保留 maxRetained 个空壳
type DisposablePool struct {
	mu          sync.Mutex
	items       []*CompositeDisposable
	maxRetained int
}

// NewDisposablePool 创建聚合池；maxRetained <= 0 时使用默认上限
func NewDisposablePool(maxRetained int) *DisposablePool {
	if maxRetained <= 0 {
		maxRetained = defaultMaxRetained
	}
	return &DisposablePool{maxRetained: maxRetained}
}

// Disposables 全局 CompositeDisposable 池
var Disposables = NewDisposablePool(0)

// Get 从池中取出一个空的 CompositeDisposable，池为空时新建
func (p *DisposablePool) Get() *CompositeDisposable {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.items)
	if n == 0 {
		return &CompositeDisposable{}
	}
	c := p.items[n-1]
	p.items[n-1] = nil
	p.items = p.items[:n-1]
	return c
}

// Release 释放 c 持有的全部资源，然后把空壳放回池中；池已满时丢弃空壳。
// 调用后调用方不应再使用 c。
func (p *DisposablePool) Release(c *CompositeDisposable) {
	if c == nil {
		return
	}
	c.Dispose()

	p.mu.Lock()
	defer p.mu.Unlock()

	limit := p.maxRetained
	if limit <= 0 {
		limit = defaultMaxRetained
	}
	if len(p.items) >= limit {
		return
	}
	p.items = append(p.items, c)
}

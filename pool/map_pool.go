package pool

import "sync"

const defaultMaxRetained = 16

// MapPool 复用 map 缓冲区。池本身的读写加锁，
// 取出的 map 在归还前只属于借用方，不应被多个持有者同时使用。
type MapPool[K comparable, V any] struct {
	mu          sync.Mutex
	items       []map[K]V
	maxRetained int
}

// NewMapPool 创建 map 池；maxRetained <= 0 时使用默认上限
func NewMapPool[K comparable, V any](maxRetained int) *MapPool[K, V] {
	if maxRetained <= 0 {
		maxRetained = defaultMaxRetained
	}
	return &MapPool[K, V]{maxRetained: maxRetained}
}

// Get 返回一个空 map
func (p *MapPool[K, V]) Get() map[K]V {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.items)
	if n == 0 {
		return make(map[K]V)
	}
	m := p.items[n-1]
	p.items[n-1] = nil
	p.items = p.items[:n-1]
	return m
}

// Release 清空 m 并放回池中；超过保留上限时直接丢弃
func (p *MapPool[K, V]) Release(m map[K]V) {
	if m == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	clear(m)
	limit := p.maxRetained
	if limit <= 0 {
		limit = defaultMaxRetained
	}
	if len(p.items) >= limit {
		return
	}
	p.items = append(p.items, m)
}

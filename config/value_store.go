package config

import (
	"sync/atomic"
)

// ValueStore 保存配置快照，读取无锁
type ValueStore struct {
	value atomic.Pointer[map[string]any]
}

func NewValueStore() *ValueStore {
	s := &ValueStore{}
	s.Store(nil)
	return s
}

// Load 返回当前快照，快照构建后不再修改
func (s *ValueStore) Load() map[string]any {
	if p := s.value.Load(); p != nil {
		return *p
	}
	return map[string]any{}
}

// Store 原子替换快照，nil 视为空配置
func (s *ValueStore) Store(data map[string]any) {
	if data == nil {
		data = make(map[string]any)
	}
	s.value.Store(&data)
}

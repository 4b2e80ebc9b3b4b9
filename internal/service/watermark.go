package service

import (
	"context"
	"sync"
	"time"
)

// Watermark 分发水位线：同一任务槽位只触发一次
type Watermark interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// memoryWatermark 未配置 Redis 时的进程内实现，仅对单实例有效
type memoryWatermark struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

// NewMemoryWatermark 创建进程内水位线
func NewMemoryWatermark() Watermark {
	return &memoryWatermark{keys: make(map[string]time.Time), now: time.Now}
}

func (w *memoryWatermark) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	for k, exp := range w.keys {
		if !now.Before(exp) {
			delete(w.keys, k)
		}
	}
	if _, ok := w.keys[key]; ok {
		return false, nil
	}
	w.keys[key] = now.Add(ttl)
	return true, nil
}

func (w *memoryWatermark) Release(_ context.Context, key string) error {
	w.mu.Lock()
	delete(w.keys, key)
	w.mu.Unlock()
	return nil
}

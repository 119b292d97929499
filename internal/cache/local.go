package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Local реализация в памяти процесса для запуска без Redis.
// TTL задаётся при создании и одинаков для всех ключей.
type Local struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, struct{}]
}

// NewLocal создаёт кэш на size ключей со временем жизни ttl.
func NewLocal(size int, ttl time.Duration) *Local {
	return &Local{lru: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

// MarkOnce возвращает true, если ключ встретился впервые. Аргумент ttl игнорируется.
func (l *Local) MarkOnce(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lru.Contains(key) {
		return false, nil
	}
	l.lru.Add(key, struct{}{})
	return true, nil
}

// Forget удаляет ключ.
func (l *Local) Forget(_ context.Context, key string) error {
	l.lru.Remove(key)
	return nil
}

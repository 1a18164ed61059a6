// Package cache содержит простой кэш с ограниченным временем жизни записей.
//
// Кэш процессный и эфемерный: сервис переживает его потерю без последствий.
// Инвалидация выполняется явно в точках записи, а не аспектно.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache хранит значения по ключу не дольше заданного TTL.
type Cache[K comparable, V any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[K]entry[V]
}

// New создаёт кэш с указанным временем жизни записей.
func New[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		ttl:   ttl,
		items: make(map[K]entry[V]),
	}
}

// Get возвращает значение по ключу, если оно есть и ещё не истекло.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok || time.Now().After(e.expiresAt) {
		delete(c.items, key)
		var zero V
		return zero, false
	}

	return e.value, true
}

// Put сохраняет значение по ключу, заменяя прежнее.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Evict удаляет значение по ключу.
func (c *Cache[K, V]) Evict(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

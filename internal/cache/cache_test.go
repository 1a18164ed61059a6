package cache

import (
	"testing"
	"time"
)

func TestCachePutGet(t *testing.T) {
	c := New[int64, string](time.Minute)

	c.Put(1, "first")
	c.Put(2, "second")

	got, ok := c.Get(1)
	if !ok || got != "first" {
		t.Fatalf("Get(1) = %q, %v; want first, true", got, ok)
	}

	if _, ok := c.Get(3); ok {
		t.Fatalf("Get(3) must miss")
	}
}

func TestCacheOverwrite(t *testing.T) {
	c := New[int64, string](time.Minute)

	c.Put(1, "old")
	c.Put(1, "new")

	got, ok := c.Get(1)
	if !ok || got != "new" {
		t.Fatalf("Get(1) = %q, %v; want new, true", got, ok)
	}
}

func TestCacheEvict(t *testing.T) {
	c := New[int64, string](time.Minute)

	c.Put(1, "value")
	c.Evict(1)

	if _, ok := c.Get(1); ok {
		t.Fatalf("evicted key must miss")
	}
}

func TestCacheExpiry(t *testing.T) {
	c := New[int64, string](10 * time.Millisecond)

	c.Put(1, "value")
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get(1); ok {
		t.Fatalf("expired key must miss")
	}
}

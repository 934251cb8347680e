package cache

import (
	"sync"
	"testing"
	"time"
)

func TestLRUCache_GetSetDelete(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v", v, ok)
	}
	// "b" is now least recently used.
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Fatal("expected b to be evicted")
	}
	if c.Size() != 2 {
		t.Fatalf("Size = %d, want 2", c.Size())
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected a to be deleted")
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c := NewLRUCache[string](10, 50*time.Millisecond)
	c.Set("k", "v")
	time.Sleep(80 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected entry to expire")
	}

	c.Set("x", "1")
	c.Set("y", "2")
	time.Sleep(80 * time.Millisecond)
	if n := c.CleanExpired(); n != 2 {
		t.Fatalf("CleanExpired = %d, want 2", n)
	}
}

func TestLRUCache_SlidingTTL(t *testing.T) {
	c := NewLRUCache[int](10, 100*time.Millisecond).WithSlidingTTL()
	c.Set("k", 1)
	for i := 0; i < 4; i++ {
		time.Sleep(50 * time.Millisecond)
		if _, ok := c.Get("k"); !ok {
			t.Fatalf("entry expired despite access at iteration %d", i)
		}
	}
}

func TestLRUCache_OnEvict(t *testing.T) {
	var mu sync.Mutex
	evicted := map[string]int{}
	c := NewLRUCache[int](1, time.Minute).OnEvict(func(key string, v int) {
		mu.Lock()
		evicted[key] = v
		mu.Unlock()
	})

	c.Set("a", 1)
	c.Set("b", 2) // evicts a
	c.Delete("b")

	mu.Lock()
	defer mu.Unlock()
	if evicted["a"] != 1 || evicted["b"] != 2 {
		t.Fatalf("unexpected evictions: %v", evicted)
	}
}

func TestManager_CleansRegisteredCaches(t *testing.T) {
	c := NewLRUCache[int](10, 10*time.Millisecond)
	c.Set("k", 1)

	m := NewManager(nil)
	m.Register(c)
	m.StartCleanup(20 * time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	m.Stop()

	if c.Size() != 0 {
		t.Fatalf("Size = %d after cleanup, want 0", c.Size())
	}
}

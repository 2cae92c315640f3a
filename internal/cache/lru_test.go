package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[string](3, time.Hour)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")
	c.Set("key4", "value4") // evicts key1

	if _, found := c.Get("key1"); found {
		t.Error("key1 should have been evicted")
	}
	for _, k := range []string{"key2", "key3", "key4"} {
		if _, found := c.Get(k); !found {
			t.Errorf("%s should still exist", k)
		}
	}
	if c.Size() != 3 {
		t.Errorf("Size() = %d, want 3", c.Size())
	}
}

func TestLRUCacheRecentlyUsedSurvives(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3) // evicts b, a was touched

	if _, found := c.Get("a"); !found {
		t.Error("a should survive after being read")
	}
	if _, found := c.Get("b"); found {
		t.Error("b should have been evicted")
	}
}

func TestLRUCacheTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	if v, found := c.Get("k"); !found || v != "v" {
		t.Fatalf("Get() = %q, %v, want v, true", v, found)
	}

	now = now.Add(2 * time.Minute)
	if _, found := c.Get("k"); found {
		t.Error("expired entry should not be returned")
	}

	c.Set("a", "1")
	c.Set("b", "2")
	now = now.Add(2 * time.Minute)
	c.Set("c", "3")
	if removed := c.CleanExpired(); removed != 2 {
		t.Errorf("CleanExpired() = %d, want 2", removed)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCacheDeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Hour)
	c.Set(Key("alice", "summary", "2024-03"), 1)
	c.Set(Key("alice", "dashboard"), 2)
	c.Set(Key("alicia", "dashboard"), 3)
	c.Set(Key("bob", "summary"), 4)

	if n := c.DeletePrefix(OwnerPrefix("alice")); n != 2 {
		t.Errorf("DeletePrefix() = %d, want 2", n)
	}
	if _, found := c.Get(Key("alicia", "dashboard")); !found {
		t.Error("a different owner sharing a name prefix must not be dropped")
	}
	if _, found := c.Get(Key("bob", "summary")); !found {
		t.Error("bob's entry should remain")
	}

	c.Delete(Key("bob", "summary"))
	if _, found := c.Get(Key("bob", "summary")); found {
		t.Error("Delete() left the entry behind")
	}
}

func TestLRUCacheConcurrentAccess(t *testing.T) {
	c := NewLRUCache[int](100, time.Hour)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k-%d", (g*500+i)%150)
				c.Set(key, i)
				c.Get(key)
				if i%50 == 0 {
					c.DeletePrefix("k-1")
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Size() > 100 {
		t.Errorf("Size() = %d, exceeds max 100", c.Size())
	}
}

func TestManager(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewLRUCache[int](10, time.Second)
	b := NewLRUCache[string](10, time.Second)
	a.now = func() time.Time { return now }
	b.now = func() time.Time { return now }
	a.Set("x", 1)
	b.Set("y", "2")

	m := NewManager(nil)
	m.Register(a, b)

	now = now.Add(time.Minute)
	if n := m.CleanAll(); n != 2 {
		t.Errorf("CleanAll() = %d, want 2", n)
	}

	// Stop before and after starting must both return.
	m.Stop()
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

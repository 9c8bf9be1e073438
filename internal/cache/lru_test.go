package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUCacheExpiry(t *testing.T) {
	c, clock := newTestCache(4, 5*time.Second)
	c.Set("ledger", "snapshot")

	if v, ok := c.Get("ledger"); !ok || v != "snapshot" {
		t.Fatalf("expected hit, got %q %v", v, ok)
	}

	clock.t = clock.t.Add(5 * time.Second)
	if _, ok := c.Get("ledger"); ok {
		t.Fatal("expected miss at TTL boundary")
	}
	if c.Size() != 0 {
		t.Fatalf("expired item should be removed on Get, size=%d", c.Size())
	}
}

func TestLRUCacheZeroTTLAlwaysMisses(t *testing.T) {
	c, _ := newTestCache(4, 0)
	c.Set("ledger", "snapshot")
	if _, ok := c.Get("ledger"); ok {
		t.Fatal("zero TTL must not serve cached data")
	}
}

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should survive, it was used recently")
	}
}

func TestLRUCacheCleanExpiredAndPurge(t *testing.T) {
	c, clock := newTestCache(10, time.Second)
	c.Set("old", "x")
	clock.t = clock.t.Add(2 * time.Second)
	c.Set("new", "y")

	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 expired item, got %d", n)
	}
	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("expected empty cache after purge, got %d", c.Size())
	}
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager()
	m.Register(NewLRUCache[int](1, time.Second))
	m.Stop()

	m = NewManager()
	m.StartCleanup(10 * time.Millisecond)
	time.Sleep(25 * time.Millisecond)
	m.Stop()
}

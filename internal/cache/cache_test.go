package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCache_PutGet(t *testing.T) {
	c, err := New(t.TempDir(), 24*time.Hour)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	key := Key("anthropic", "claude", "system", "user")
	value := `{"summary":"ok","findings":[]}`

	if _, ok := c.Get(key); ok {
		t.Error("Expected cache miss before put")
	}
	if err := c.Put(key, value); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	got, ok := c.Get(key)
	if !ok {
		t.Fatal("Expected cache hit after put")
	}
	if got != value {
		t.Errorf("Got = %q, want %q", got, value)
	}

	if err := c.Put(key, "replaced"); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if got, _ := c.Get(key); got != "replaced" {
		t.Errorf("Got = %q after overwrite", got)
	}

	matches, _ := filepath.Glob(filepath.Join(c.Dir(), ".entry-*"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestCache_TTLExpiration(t *testing.T) {
	c, err := New(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Put("k", "data"); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if _, ok := c.Get("k"); !ok {
		t.Error("Expected cache hit before expiration")
	}

	now = now.Add(2 * time.Hour)
	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats.Entries != 1 || stats.Expired != 1 {
		t.Errorf("stats = %+v, want 1 entry, 1 expired", stats)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("Expected cache miss after TTL expiration")
	}
	if _, err := os.Stat(c.entryPath("k")); !os.IsNotExist(err) {
		t.Error("expired entry should be removed on read")
	}
}

func TestCache_Nil(t *testing.T) {
	var c *Cache
	if _, ok := c.Get("k"); ok {
		t.Error("nil cache should never hit")
	}
	if err := c.Put("k", "v"); err != nil {
		t.Errorf("Put on nil cache: %v", err)
	}
	if n, err := c.Clear(); n != 0 || err != nil {
		t.Errorf("Clear on nil cache = %d, %v", n, err)
	}
}

func TestCache_CorruptEntry(t *testing.T) {
	c, err := New(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	os.WriteFile(c.entryPath("k"), []byte("{not json"), 0o644)
	if _, ok := c.Get("k"); ok {
		t.Error("corrupt entry should miss")
	}
}

func TestCache_Clear(t *testing.T) {
	c, err := New(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	for _, k := range []string{"a", "b", "c"} {
		if err := c.Put(k, k); err != nil {
			t.Fatalf("Put error: %v", err)
		}
	}
	os.WriteFile(filepath.Join(c.Dir(), "keep.txt"), []byte("x"), 0o644)

	n, err := c.Clear()
	if err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if n != 3 {
		t.Errorf("removed %d entries, want 3", n)
	}
	stats, _ := c.Stats()
	if stats.Entries != 0 {
		t.Errorf("entries after clear = %d", stats.Entries)
	}
	if _, err := os.Stat(filepath.Join(c.Dir(), "keep.txt")); err != nil {
		t.Error("non-entry files should survive Clear")
	}
}

func TestKey(t *testing.T) {
	a := Key("anthropic", "m", "sys", "user")
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64", len(a))
	}
	if a != Key("anthropic", "m", "sys", "user") {
		t.Error("Key is not deterministic")
	}
	for _, other := range []string{
		Key("openai", "m", "sys", "user"),
		Key("anthropic", "m2", "sys", "user"),
		Key("anthropic", "m", "sys", "user2"),
		Key("anthropic", "m", "sysuser"),
	} {
		if other == a {
			t.Error("different inputs produced the same key")
		}
	}
}

func TestDefaultDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	dir, err := DefaultDir()
	if err != nil {
		t.Fatalf("DefaultDir: %v", err)
	}
	if dir != filepath.Join("/tmp/xdg", "prrisk") {
		t.Errorf("dir = %q", dir)
	}
}

package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit || data != nil {
		t.Errorf("Get = (%q, %v), want miss", data, hit)
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}

	if _, hit, _ := c.Get(ctx, "scene:a"); hit {
		t.Fatal("empty cache reported a hit")
	}
	if err := c.Set(ctx, "scene:a", []byte(`{"year":2020}`), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, "scene:a")
	if err != nil || !hit {
		t.Fatalf("Get = (%v, %v), want hit", hit, err)
	}
	if string(data) != `{"year":2020}` {
		t.Errorf("data = %s", data)
	}

	if err := c.Delete(ctx, "scene:a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "scene:a"); hit {
		t.Error("deleted entry still present")
	}
	if err := c.Delete(ctx, "scene:a"); err != nil {
		t.Errorf("Delete of missing entry = %v, want nil", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "forever", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}

	now = now.Add(2 * time.Minute)
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry reported as hit")
	}
	if _, err := os.Stat(c.path("k")); !os.IsNotExist(err) {
		t.Error("expired entry file not removed")
	}
	if _, hit, _ := c.Get(ctx, "forever"); !hit {
		t.Error("entry without ttl expired")
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	path := c.path("bad")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, hit, err := c.Get(ctx, "bad")
	if err != nil || hit {
		t.Errorf("Get = (%v, %v), want clean miss", hit, err)
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"a", "b", "c"} {
		if err := c.Set(ctx, k, []byte(k), 0); err != nil {
			t.Fatal(err)
		}
	}
	n, err := c.Clear()
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 3 {
		t.Errorf("Clear = %d, want 3", n)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("cache dir has %d entries after Clear", len(entries))
	}
	if c.Dir() != dir {
		t.Errorf("Dir = %q, want %q", c.Dir(), dir)
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("len(Hash) = %d, want 64", len(h1))
	}

	j1, err := HashJSON(map[string]int{"a": 1})
	if err != nil {
		t.Fatal(err)
	}
	j2, _ := HashJSON(map[string]int{"a": 2})
	if j1 == j2 {
		t.Error("HashJSON ignored content")
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	s1 := k.SceneKey("ds", SceneKeyOpts{Year: 2020, ActiveWidth: 800})
	s2 := k.SceneKey("ds", SceneKeyOpts{Year: 2021, ActiveWidth: 800})
	if s1 == s2 {
		t.Error("different years should produce different scene keys")
	}
	if !strings.HasPrefix(s1, "scene:") {
		t.Errorf("SceneKey = %q, want scene: prefix", s1)
	}
	if s1 != k.SceneKey("ds", SceneKeyOpts{Year: 2020, ActiveWidth: 800}) {
		t.Error("SceneKey is not deterministic")
	}

	p1 := k.PlaneKey("ds", PlaneKeyOpts{Plane: "active", Seed: 1})
	p2 := k.PlaneKey("ds", PlaneKeyOpts{Plane: "inactive", Seed: 1})
	if p1 == p2 {
		t.Error("different planes should produce different plane keys")
	}
	if !strings.HasPrefix(p1, "plane:") {
		t.Errorf("PlaneKey = %q, want plane: prefix", p1)
	}

	r1 := k.RenderKey("run", RenderKeyOpts{Format: "svg", Theme: "dark"})
	r2 := k.RenderKey("run", RenderKeyOpts{Format: "svg", Theme: "light"})
	if r1 == r2 {
		t.Error("different themes should produce different render keys")
	}
	if !strings.HasPrefix(r1, "render:") {
		t.Errorf("RenderKey = %q, want render: prefix", r1)
	}
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(NewDefaultKeyer(), "user:123:")
	key := scoped.SceneKey("ds", SceneKeyOpts{})
	if !strings.HasPrefix(key, "user:123:scene:") {
		t.Errorf("SceneKey = %q, want prefixed", key)
	}
	key = scoped.PlaneKey("ds", PlaneKeyOpts{})
	if !strings.HasPrefix(key, "user:123:plane:") {
		t.Errorf("PlaneKey = %q, want prefixed", key)
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	scoped := NewScopedKeyer(nil, "prefix:")
	want := "prefix:" + NewDefaultKeyer().SceneKey("ds", SceneKeyOpts{Year: 1})
	if got := scoped.SceneKey("ds", SceneKeyOpts{Year: 1}); got != want {
		t.Errorf("SceneKey = %q, want %q", got, want)
	}
}

func TestRedisCacheKey(t *testing.T) {
	c := NewRedisCache(nil, DefaultRedisPrefix)
	if got := c.Key("scene:x"); got != "techmap:scene:x" {
		t.Errorf("Key = %q", got)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close on borrowed client = %v, want nil", err)
	}
}

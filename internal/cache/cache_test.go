package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ethanasm/mcp-review/internal/config"
	"github.com/ethanasm/mcp-review/internal/review"
)

func sampleResult() *review.Result {
	return &review.Result{
		ID:          "r1",
		Critical:    []review.Finding{{File: "a.go", Line: 3, Message: "nil deref"}},
		Suggestions: []review.Finding{},
		Positive:    []review.Finding{},
		Confidence:  review.ConfidenceHigh,
	}
}

func TestCache_PutGet(t *testing.T) {
	c, err := New(true, t.TempDir(), 86400)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	cfg := config.Default()
	diff := "diff --git a/a.go b/a.go\n"

	if _, ok := c.GetCachedReview(diff, cfg, "m"); ok {
		t.Error("Expected cache miss before put")
	}
	if err := c.CacheReview(diff, cfg, "m", sampleResult()); err != nil {
		t.Fatalf("CacheReview error: %v", err)
	}

	got, ok := c.GetCachedReview(diff, cfg, "m")
	if !ok {
		t.Fatal("Expected cache hit after put")
	}
	if got.ID != "r1" || len(got.Critical) != 1 || got.Critical[0].Line != 3 {
		t.Errorf("Got = %+v", got)
	}

	if _, ok := c.GetCachedReview(diff, cfg, "other-model"); ok {
		t.Error("different model should miss")
	}
	if _, ok := c.GetCachedReview(diff+" ", cfg, "m"); ok {
		t.Error("different diff should miss")
	}
	cfg.Focus = []string{"security"}
	if _, ok := c.GetCachedReview(diff, cfg, "m"); ok {
		t.Error("different focus should miss")
	}
}

func TestCache_TTLExpiration(t *testing.T) {
	c, err := New(true, t.TempDir(), 60)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	cfg := config.Default()

	if err := c.CacheReview("d", cfg, "m", sampleResult()); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.GetCachedReview("d", cfg, "m"); !ok {
		t.Error("Expected cache hit before expiration")
	}

	now = now.Add(61 * time.Second)
	stats, err := c.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 || stats.Expired != 1 {
		t.Errorf("stats = %+v, want 1 expired entry", stats)
	}
	if _, ok := c.GetCachedReview("d", cfg, "m"); ok {
		t.Error("Expected cache miss after TTL")
	}
	if stats, _ := c.GetStats(); stats.Entries != 0 {
		t.Errorf("expired entry should be removed, entries = %d", stats.Entries)
	}
}

func TestCache_Disabled(t *testing.T) {
	c, err := New(false, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if c.Enabled() {
		t.Error("Expected disabled cache")
	}
	if err := c.CacheReview("d", config.Default(), "m", sampleResult()); err != nil {
		t.Errorf("CacheReview on disabled cache: %v", err)
	}
	if _, ok := c.GetCachedReview("d", config.Default(), "m"); ok {
		t.Error("disabled cache should never hit")
	}
}

func TestCache_Clear(t *testing.T) {
	c, err := New(true, t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	for _, d := range []string{"a", "b", "c"} {
		if err := c.CacheReview(d, cfg, "m", sampleResult()); err != nil {
			t.Fatal(err)
		}
	}
	n, err := c.Clear()
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 3 {
		t.Errorf("removed = %d, want 3", n)
	}
	if _, ok := c.GetCachedReview("a", cfg, "m"); ok {
		t.Error("Expected miss after clear")
	}
}

func TestBuildCacheKey(t *testing.T) {
	cfg := config.Default()
	k1 := BuildCacheKey("diff", cfg, "m")
	if k1 != BuildCacheKey("diff", cfg, "m") {
		t.Error("key should be deterministic")
	}
	if len(k1) != 64 {
		t.Errorf("key length = %d, want 64", len(k1))
	}
	cfg.Format = "json"
	if BuildCacheKey("diff", cfg, "m") != k1 {
		t.Error("output format should not change the key")
	}
	cfg.MaxRounds = 5
	if BuildCacheKey("diff", cfg, "m") == k1 {
		t.Error("maxRounds should change the key")
	}
}

func TestDefaultDir_XDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")
	dir, err := DefaultDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != filepath.Join("/tmp/xdg-cache", "mcp-review") {
		t.Errorf("DefaultDir = %q", dir)
	}
}

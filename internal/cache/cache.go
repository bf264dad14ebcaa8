package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/ethanasm/mcp-review/internal/config"
	"github.com/ethanasm/mcp-review/internal/review"
)

// Entry is one cached review.
type Entry struct {
	Key       string         `json:"key"`
	Model     string         `json:"model"`
	Result    *review.Result `json:"result"`
	CreatedAt time.Time      `json:"createdAt"`
	TTL       int            `json:"ttl"`
}

// Cache provides file-based caching of review results.
type Cache struct {
	dir        string
	ttlSeconds int
	enabled    bool
	now        func() time.Time
}

// New creates a new Cache. If dir is empty, uses the default cache directory.
func New(enabled bool, dir string, ttlSeconds int) (*Cache, error) {
	if !enabled {
		return &Cache{enabled: false, now: time.Now}, nil
	}
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Cache{
		dir:        dir,
		ttlSeconds: ttlSeconds,
		enabled:    true,
		now:        time.Now,
	}, nil
}

// FromConfig creates the cache described by cfg.Cache.
func FromConfig(cfg config.Config) (*Cache, error) {
	return New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
}

// GetCachedReview returns the cached result for diff under cfg and model.
func (c *Cache) GetCachedReview(diff string, cfg config.Config, model string) (*review.Result, bool) {
	if !c.enabled {
		return nil, false
	}
	key := BuildCacheKey(diff, cfg, model)
	path := c.entryPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Result == nil || entry.Key != key {
		return nil, false
	}
	if c.expired(entry) {
		os.Remove(path)
		return nil, false
	}
	return entry.Result, true
}

// CacheReview stores result for diff under cfg and model.
func (c *Cache) CacheReview(diff string, cfg config.Config, model string, result *review.Result) error {
	if !c.enabled || result == nil {
		return nil
	}
	key := BuildCacheKey(diff, cfg, model)
	entry := Entry{
		Key:       key,
		Model:     model,
		Result:    result,
		CreatedAt: c.now(),
		TTL:       c.ttlSeconds,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	tmp := c.entryPath(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return os.Rename(tmp, c.entryPath(key))
}

func (c *Cache) expired(e Entry) bool {
	return c.ttlSeconds > 0 && c.now().Sub(e.CreatedAt) > time.Duration(c.ttlSeconds)*time.Second
}

// Clear removes all cache entries and returns how many were removed.
func (c *Cache) Clear() (int, error) {
	if !c.enabled || c.dir == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading cache directory: %w", err)
	}
	var removed int
	var errs []error
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".json" {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// Stats returns cache statistics.
type Stats struct {
	Dir        string `json:"dir"`
	Entries    int    `json:"entries"`
	TotalBytes int64  `json:"totalBytes"`
	Expired    int    `json:"expired"`
}

// GetStats returns information about the cache.
func (c *Cache) GetStats() (Stats, error) {
	stats := Stats{Dir: c.dir}
	if !c.enabled || c.dir == "" {
		return stats, nil
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return stats, nil
		}
		return stats, fmt.Errorf("reading cache directory: %w", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		stats.Entries++
		stats.TotalBytes += info.Size()

		data, err := os.ReadFile(filepath.Join(c.dir, e.Name()))
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		if c.expired(entry) {
			stats.Expired++
		}
	}
	return stats, nil
}

// Dir returns the cache directory path.
func (c *Cache) Dir() string {
	return c.dir
}

// Enabled returns whether caching is enabled.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// HashKey creates a SHA-256 hash of the given key material.
func HashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// BuildCacheKey hashes the inputs that determine a review's content.
func BuildCacheKey(diff string, cfg config.Config, model string) string {
	parts := []string{
		"v1",
		model,
		cfg.Provider,
		cfg.ProviderKind,
		cfg.Endpoint,
		strings.Join(cfg.Focus, ","),
		strings.Join(cfg.Ignore, ","),
		cfg.RulesFile,
		strconv.Itoa(cfg.MaxRounds),
		strconv.Itoa(cfg.MaxDiffTokens),
		strconv.Itoa(cfg.MaxFiles),
		strconv.Itoa(cfg.ContextLines),
		strconv.FormatBool(cfg.Preload),
		strconv.FormatBool(cfg.Privacy.RedactSecrets),
	}
	return HashKey(strings.Join(parts, "\x00") + "\x00" + diff)
}

func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// DefaultDir returns the platform-appropriate cache directory.
func DefaultDir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "mcp-review"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "mcp-review"), nil
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "mcp-review", "cache"), nil
		}
		return filepath.Join(home, "AppData", "Local", "mcp-review", "cache"), nil
	default:
		return filepath.Join(home, ".cache", "mcp-review"), nil
	}
}

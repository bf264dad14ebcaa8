package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProjectFileName is the per-repository config file.
const ProjectFileName = ".mcp-review.yml"

// ServerCommand is the tool-server binary the default servers run.
const ServerCommand = "mcp-review-server"

// Formats lists the supported output formats.
var Formats = []string{"text", "json", "markdown", "sarif"}

// Config represents the mcp-review configuration.
type Config struct {
	Provider       string          `yaml:"provider"`
	ProviderKind   string          `yaml:"providerKind,omitempty"`
	Model          string          `yaml:"model,omitempty"`
	Endpoint       string          `yaml:"endpoint,omitempty"`
	APIKeyEnv      string          `yaml:"apiKeyEnv,omitempty"`
	MaxTokens      int             `yaml:"maxTokens"`
	Focus          []string        `yaml:"focus,omitempty"`
	Ignore         []string        `yaml:"ignore"`
	MaxFiles       int             `yaml:"maxFiles"`
	ContextLines   int             `yaml:"contextLines"`
	Format         string          `yaml:"format"`
	MaxRounds      int             `yaml:"maxRounds"`
	MaxDiffTokens  int             `yaml:"maxDiffTokens"`
	Preload        bool            `yaml:"preload"`
	TokenBudget    int             `yaml:"tokenBudget"`
	RulesFile      string          `yaml:"rulesFile,omitempty"`
	Cache          CacheConfig     `yaml:"cache"`
	Privacy        PrivacyConfig   `yaml:"privacy"`
	Servers        []Server        `yaml:"servers"`
	CacheableTools map[string]bool `yaml:"cacheableTools"`
}

// CacheConfig controls the on-disk review cache.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Dir        string `yaml:"dir,omitempty"`
	TTLSeconds int    `yaml:"ttlSeconds"`
}

// PrivacyConfig controls redaction.
type PrivacyConfig struct {
	RedactSecrets bool `yaml:"redactSecrets"`
}

// Server is one tool-server child process.
type Server struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// DefaultServers returns the four bundled tool servers.
func DefaultServers() []Server {
	var out []Server
	for _, ts := range []string{"file-context", "git-history", "import-graph", "lint-config"} {
		out = append(out, Server{Name: ts, Command: ServerCommand, Args: []string{ts}})
	}
	return out
}

// DefaultCacheableTools returns which bundled tools may be memoized within a
// session. search_imports results depend on the pattern's context and are
// never cached.
func DefaultCacheableTools() map[string]bool {
	return map[string]bool{
		"read_file":        true,
		"list_files":       true,
		"get_diff":         true,
		"get_file_history": true,
		"find_lint_config": true,
		"search_imports":   false,
	}
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Provider:      "anthropic",
		MaxTokens:     4096,
		Ignore:        []string{"vendor/**", "**/*.gen.go", "**/dist/**", "**/*.lock", "**/go.sum"},
		MaxFiles:      20,
		ContextLines:  3,
		Format:        "text",
		MaxRounds:     2,
		MaxDiffTokens: 100_000,
		Preload:       true,
		TokenBudget:   200_000,
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: 86400,
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
		},
		Servers:        DefaultServers(),
		CacheableTools: DefaultCacheableTools(),
	}
}

// ConfigDir returns the platform-appropriate config directory for mcp-review.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mcp-review"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "mcp-review"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "mcp-review"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "mcp-review"), nil
	default:
		return filepath.Join(home, ".config", "mcp-review"), nil
	}
}

// ConfigPath returns the full path to the user config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yml"), nil
}

// mergeFile decodes the YAML file at path on top of cfg. A missing file is
// not an error.
func mergeFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// LoadFile returns the defaults overlaid with the file at path only. It is
// what "config set" edits, so that env and project values are not persisted.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if err := mergeFile(&cfg, path); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes the config to the user config file.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes cfg as YAML to path, creating parent directories.
func SaveTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load builds the effective config by merging:
// defaults <- user file <- project file <- env <- overrides.
// The overrides map comes from CLI flags (only non-zero values should be set).
func Load(overrides map[string]string) (Config, error) {
	userPath, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return load(userPath, ProjectFileName, os.Getenv, overrides)
}

func load(userPath, projectPath string, getenv func(string) string, overrides map[string]string) (Config, error) {
	cfg := Default()

	if err := mergeFile(&cfg, userPath); err != nil {
		return Config{}, err
	}
	if err := mergeFile(&cfg, projectPath); err != nil {
		return Config{}, err
	}
	if err := mergeEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKeys maps environment variables to SetField keys.
var envKeys = []struct{ env, key string }{
	{"MCP_REVIEW_PROVIDER", "provider"},
	{"MCP_REVIEW_PROVIDER_KIND", "providerKind"},
	{"MCP_REVIEW_MODEL", "model"},
	{"MCP_REVIEW_ENDPOINT", "endpoint"},
	{"MCP_REVIEW_API_KEY_ENV", "apiKeyEnv"},
	{"MCP_REVIEW_FORMAT", "format"},
	{"MCP_REVIEW_FOCUS", "focus"},
	{"MCP_REVIEW_MAX_FILES", "maxFiles"},
	{"MCP_REVIEW_CONTEXT_LINES", "contextLines"},
	{"MCP_REVIEW_MAX_ROUNDS", "maxRounds"},
	{"MCP_REVIEW_MAX_DIFF_TOKENS", "maxDiffTokens"},
	{"MCP_REVIEW_TOKEN_BUDGET", "tokenBudget"},
	{"MCP_REVIEW_PRELOAD", "preload"},
	{"MCP_REVIEW_CACHE", "cache.enabled"},
	{"MCP_REVIEW_REDACT_SECRETS", "privacy.redactSecrets"},
}

func mergeEnv(cfg *Config, getenv func(string) string) error {
	if getenv == nil {
		return nil
	}
	for _, e := range envKeys {
		v := getenv(e.env)
		if v == "" {
			continue
		}
		if err := SetField(cfg, e.key, v); err != nil {
			return fmt.Errorf("%s: %w", e.env, err)
		}
	}
	return nil
}

func mergeOverrides(cfg *Config, overrides map[string]string) error {
	keys := make([]string, 0, len(overrides))
	for k, v := range overrides {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := SetField(cfg, k, overrides[k]); err != nil {
			return err
		}
	}
	return nil
}

// Keys returns the keys SetField accepts.
func Keys() []string {
	return []string{
		"provider", "providerKind", "model", "endpoint", "apiKeyEnv", "maxTokens",
		"focus", "ignore", "maxFiles", "contextLines", "format", "maxRounds",
		"maxDiffTokens", "preload", "tokenBudget", "rulesFile",
		"cache.enabled", "cache.dir", "cache.ttlSeconds", "privacy.redactSecrets",
	}
}

// SetField sets a single config field by key name. Returns error if key is
// unknown or the value does not parse. List keys take comma-separated values.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "provider":
		cfg.Provider = value
	case "providerKind":
		cfg.ProviderKind = value
	case "model":
		cfg.Model = value
	case "endpoint":
		cfg.Endpoint = value
	case "apiKeyEnv":
		cfg.APIKeyEnv = value
	case "format":
		cfg.Format = value
	case "rulesFile":
		cfg.RulesFile = value
	case "cache.dir":
		cfg.Cache.Dir = value
	case "focus":
		cfg.Focus = splitList(value)
	case "ignore":
		cfg.Ignore = splitList(value)
	case "maxTokens":
		return setInt(&cfg.MaxTokens, key, value)
	case "maxFiles":
		return setInt(&cfg.MaxFiles, key, value)
	case "contextLines":
		return setInt(&cfg.ContextLines, key, value)
	case "maxRounds":
		return setInt(&cfg.MaxRounds, key, value)
	case "maxDiffTokens":
		return setInt(&cfg.MaxDiffTokens, key, value)
	case "tokenBudget":
		return setInt(&cfg.TokenBudget, key, value)
	case "cache.ttlSeconds":
		return setInt(&cfg.Cache.TTLSeconds, key, value)
	case "preload":
		return setBool(&cfg.Preload, key, value)
	case "cache.enabled":
		return setBool(&cfg.Cache.Enabled, key, value)
	case "privacy.redactSecrets":
		return setBool(&cfg.Privacy.RedactSecrets, key, value)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s must be true or false: %w", key, err)
	}
	*dst = b
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports the first invalid setting in cfg.
func Validate(cfg Config) error {
	if !slices.Contains(Formats, cfg.Format) {
		return fmt.Errorf("invalid format %q (want one of %s)", cfg.Format, strings.Join(Formats, ", "))
	}
	if cfg.MaxRounds < 1 {
		return fmt.Errorf("maxRounds must be at least 1, got %d", cfg.MaxRounds)
	}
	for _, n := range []struct {
		name string
		v    int
	}{
		{"maxTokens", cfg.MaxTokens},
		{"maxFiles", cfg.MaxFiles},
		{"contextLines", cfg.ContextLines},
		{"maxDiffTokens", cfg.MaxDiffTokens},
		{"tokenBudget", cfg.TokenBudget},
		{"cache.ttlSeconds", cfg.Cache.TTLSeconds},
	} {
		if n.v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", n.name, n.v)
		}
	}
	seen := make(map[string]bool)
	for i, s := range cfg.Servers {
		if s.Name == "" || s.Command == "" {
			return fmt.Errorf("servers[%d]: name and command are required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("servers[%d]: duplicate server name %q", i, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

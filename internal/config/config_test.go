package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Provider != "anthropic" {
		t.Errorf("Default provider = %q, want %q", cfg.Provider, "anthropic")
	}
	if cfg.Format != "text" {
		t.Errorf("Default format = %q, want %q", cfg.Format, "text")
	}
	if cfg.MaxRounds != 2 {
		t.Errorf("Default maxRounds = %d, want 2", cfg.MaxRounds)
	}
	if cfg.MaxDiffTokens != 100_000 {
		t.Errorf("Default maxDiffTokens = %d, want 100000", cfg.MaxDiffTokens)
	}
	if !cfg.Privacy.RedactSecrets {
		t.Error("Default redactSecrets should be true")
	}
	if len(cfg.Servers) != 4 {
		t.Fatalf("Default servers = %d, want 4", len(cfg.Servers))
	}
	if cfg.Servers[0].Command != ServerCommand || cfg.Servers[0].Args[0] != "file-context" {
		t.Errorf("servers[0] = %+v", cfg.Servers[0])
	}
	if !cfg.CacheableTools["read_file"] || cfg.CacheableTools["search_imports"] {
		t.Errorf("cacheable tools = %v", cfg.CacheableTools)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate(Default()) = %v", err)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	user := writeFile(t, dir, "user.yml", `provider: openai
model: gpt-4.1
maxFiles: 5
preload: false
`)
	project := writeFile(t, dir, "project.yml", `model: gpt-4.1-mini
focus: [security]
cacheableTools:
  search_imports: true
servers:
  - name: files
    command: ./bin/files
    env:
      DEBUG: "1"
`)
	cfg, err := load(user, project, envMap(map[string]string{"MCP_REVIEW_MAX_FILES": "7"}), map[string]string{"format": "json"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Provider != "openai" {
		t.Errorf("Provider = %q, want user file value", cfg.Provider)
	}
	if cfg.Model != "gpt-4.1-mini" {
		t.Errorf("Model = %q, want project file value", cfg.Model)
	}
	if cfg.MaxFiles != 7 {
		t.Errorf("MaxFiles = %d, want env value 7", cfg.MaxFiles)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q, want flag value", cfg.Format)
	}
	if cfg.Preload {
		t.Error("Preload should be false from the user file")
	}
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled should keep its default when no file sets it")
	}
	if len(cfg.Servers) != 1 || cfg.Servers[0].Env["DEBUG"] != "1" {
		t.Errorf("Servers = %+v, want project list only", cfg.Servers)
	}
	if !cfg.CacheableTools["search_imports"] || !cfg.CacheableTools["read_file"] {
		t.Errorf("CacheableTools = %v, want merged table", cfg.CacheableTools)
	}
	if len(cfg.Focus) != 1 || cfg.Focus[0] != "security" {
		t.Errorf("Focus = %v", cfg.Focus)
	}
}

func TestLoadMissingFiles(t *testing.T) {
	dir := t.TempDir()
	cfg, err := load(filepath.Join(dir, "none.yml"), filepath.Join(dir, "none2.yml"), nil, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider != "anthropic" {
		t.Errorf("Provider = %q, want default", cfg.Provider)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yml", "maxFiles: [oops\n")
	if _, err := load(path, "", nil, nil); err == nil {
		t.Error("expected parse error")
	}
}

func TestMergeEnv(t *testing.T) {
	cfg := Default()
	err := mergeEnv(&cfg, envMap(map[string]string{
		"MCP_REVIEW_PROVIDER":      "groq",
		"MCP_REVIEW_MODEL":         "llama",
		"MCP_REVIEW_FORMAT":        "sarif",
		"MCP_REVIEW_FOCUS":         "security, testing",
		"MCP_REVIEW_CONTEXT_LINES": "5",
		"MCP_REVIEW_PRELOAD":       "false",
	}))
	if err != nil {
		t.Fatalf("mergeEnv error: %v", err)
	}

	if cfg.Provider != "groq" {
		t.Errorf("Provider = %q, want %q", cfg.Provider, "groq")
	}
	if cfg.Model != "llama" {
		t.Errorf("Model = %q, want %q", cfg.Model, "llama")
	}
	if cfg.Format != "sarif" {
		t.Errorf("Format = %q, want %q", cfg.Format, "sarif")
	}
	if strings.Join(cfg.Focus, ",") != "security,testing" {
		t.Errorf("Focus = %v", cfg.Focus)
	}
	if cfg.ContextLines != 5 {
		t.Errorf("ContextLines = %d, want 5", cfg.ContextLines)
	}
	if cfg.Preload {
		t.Error("Preload should be false")
	}
}

func TestMergeEnv_BadValue(t *testing.T) {
	cfg := Default()
	err := mergeEnv(&cfg, envMap(map[string]string{"MCP_REVIEW_MAX_ROUNDS": "many"}))
	if err == nil || !strings.Contains(err.Error(), "MCP_REVIEW_MAX_ROUNDS") {
		t.Errorf("err = %v, want error naming the variable", err)
	}
}

func TestMergeOverrides(t *testing.T) {
	cfg := Default()
	overrides := map[string]string{
		"provider": "ollama",
		"model":    "qwen2.5-coder",
		"maxFiles": "3",
		"endpoint": "",
	}
	if err := mergeOverrides(&cfg, overrides); err != nil {
		t.Fatal(err)
	}
	if cfg.Provider != "ollama" || cfg.Model != "qwen2.5-coder" || cfg.MaxFiles != 3 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Endpoint != "" {
		t.Error("empty override should be skipped")
	}
	if err := mergeOverrides(&cfg, nil); err != nil {
		t.Errorf("nil overrides: %v", err)
	}
}

func TestSetField(t *testing.T) {
	cfg := Default()
	for _, key := range Keys() {
		value := "x"
		switch key {
		case "maxTokens", "maxFiles", "contextLines", "maxRounds", "maxDiffTokens", "tokenBudget", "cache.ttlSeconds":
			value = "9"
		case "preload", "cache.enabled", "privacy.redactSecrets":
			value = "false"
		}
		if err := SetField(&cfg, key, value); err != nil {
			t.Errorf("SetField(%q, %q) error: %v", key, value, err)
		}
	}
	if cfg.MaxRounds != 9 || cfg.Cache.TTLSeconds != 9 {
		t.Errorf("ints not set: %+v", cfg)
	}
	if cfg.Privacy.RedactSecrets || cfg.Cache.Enabled {
		t.Error("bools not set")
	}
}

func TestSetField_Errors(t *testing.T) {
	cfg := Default()
	if err := SetField(&cfg, "nonexistent", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
	if err := SetField(&cfg, "maxFiles", "abc"); err == nil {
		t.Error("expected error for non-integer value")
	}
	if err := SetField(&cfg, "preload", "maybe"); err == nil {
		t.Error("expected error for non-bool value")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"format", func(c *Config) { c.Format = "html" }},
		{"rounds", func(c *Config) { c.MaxRounds = 0 }},
		{"negative", func(c *Config) { c.TokenBudget = -1 }},
		{"server command", func(c *Config) { c.Servers = []Server{{Name: "x"}} }},
		{"duplicate server", func(c *Config) { c.Servers = append(c.Servers, c.Servers[0]) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yml")
	cfg := Default()
	cfg.Model = "saved-model"
	if err := SaveTo(path, cfg); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	got, err := load(path, "", nil, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Model != "saved-model" || len(got.Servers) != 4 {
		t.Errorf("round trip = %+v", got)
	}
}

func TestConfigDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	dir, err := ConfigDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != filepath.Join("/tmp/xdg", "mcp-review") {
		t.Errorf("ConfigDir = %q", dir)
	}
	path, _ := ConfigPath()
	if filepath.Base(path) != "config.yml" {
		t.Errorf("ConfigPath = %q", path)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("MCP_REVIEW_MODEL", "from-env")
	path := writeFile(t, t.TempDir(), "config.yml", "maxRounds: 4\n")
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxRounds != 4 || cfg.Model != "" || cfg.MaxFiles != 20 {
		t.Errorf("LoadFile = %+v", cfg)
	}
}

package providers

import (
	"fmt"
	"strings"
)

// Kind selects a wire dialect.
type Kind string

const (
	KindAnthropic Kind = "anthropic"
	KindOpenAI    Kind = "openai"
)

// Shortcut pre-fills a Config under a short name.
type Shortcut struct {
	Name      string
	Kind      Kind
	Model     string
	Endpoint  string
	APIKeyEnv string
	// NoAuth shortcuts talk to local servers that need no credential.
	NoAuth bool
}

var shortcuts = []Shortcut{
	{Name: "anthropic", Kind: KindAnthropic, Model: "claude-sonnet-4-20250514", Endpoint: anthropicBaseURL, APIKeyEnv: "ANTHROPIC_API_KEY"},
	{Name: "openai", Kind: KindOpenAI, Model: "gpt-4.1", Endpoint: "https://api.openai.com/v1", APIKeyEnv: "OPENAI_API_KEY"},
	{Name: "openrouter", Kind: KindOpenAI, Model: "anthropic/claude-sonnet-4", Endpoint: "https://openrouter.ai/api/v1", APIKeyEnv: "OPENROUTER_API_KEY"},
	{Name: "groq", Kind: KindOpenAI, Model: "llama-3.3-70b-versatile", Endpoint: "https://api.groq.com/openai/v1", APIKeyEnv: "GROQ_API_KEY"},
	{Name: "gemini", Kind: KindOpenAI, Model: "gemini-2.5-flash", Endpoint: "https://generativelanguage.googleapis.com/v1beta/openai", APIKeyEnv: "GEMINI_API_KEY"},
	{Name: "deepseek", Kind: KindOpenAI, Model: "deepseek-chat", Endpoint: "https://api.deepseek.com/v1", APIKeyEnv: "DEEPSEEK_API_KEY"},
	{Name: "ollama", Kind: KindOpenAI, Model: "qwen2.5-coder", Endpoint: "http://localhost:11434/v1", NoAuth: true},
	{Name: "lmstudio", Kind: KindOpenAI, Model: "qwen2.5-coder", Endpoint: "http://localhost:1234/v1", NoAuth: true},
}

// Shortcuts returns the shortcut table.
func Shortcuts() []Shortcut {
	return append([]Shortcut(nil), shortcuts...)
}

// LookupShortcut finds a shortcut by name, case-insensitively.
func LookupShortcut(name string) (Shortcut, bool) {
	for _, s := range shortcuts {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Shortcut{}, false
}

// Config selects and configures a provider. Non-empty fields override the
// shortcut named by Provider.
type Config struct {
	Provider  string
	Kind      Kind
	Model     string
	Endpoint  string
	APIKeyEnv string
	// APIKey takes precedence over APIKeyEnv.
	APIKey string
}

// Resolved is a Config after shortcut defaults have been applied.
type Resolved struct {
	Name      string
	Kind      Kind
	Model     string
	Endpoint  string
	APIKeyEnv string
	NoAuth    bool
}

// Resolve applies shortcut defaults to cfg.
func Resolve(cfg Config) (Resolved, error) {
	var r Resolved
	if cfg.Provider != "" {
		s, ok := LookupShortcut(cfg.Provider)
		switch {
		case ok:
			r = Resolved{Name: s.Name, Kind: s.Kind, Model: s.Model, Endpoint: s.Endpoint, APIKeyEnv: s.APIKeyEnv, NoAuth: s.NoAuth}
		case cfg.Kind == "":
			return Resolved{}, fmt.Errorf("unknown provider: %s", cfg.Provider)
		default:
			r.Name = cfg.Provider
		}
	}
	if cfg.Kind != "" {
		r.Kind = cfg.Kind
	}
	if cfg.Model != "" {
		r.Model = cfg.Model
	}
	if cfg.Endpoint != "" {
		r.Endpoint = cfg.Endpoint
	}
	if cfg.APIKeyEnv != "" {
		r.APIKeyEnv = cfg.APIKeyEnv
		r.NoAuth = false
	}
	if r.Name == "" {
		r.Name = string(r.Kind)
	}

	switch r.Kind {
	case KindAnthropic:
		if r.Endpoint == "" {
			r.Endpoint = anthropicBaseURL
		}
		if r.APIKeyEnv == "" && !r.NoAuth {
			r.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
	case KindOpenAI:
		if r.Endpoint == "" {
			return Resolved{}, fmt.Errorf("provider %s: endpoint is required for the openai dialect", r.Name)
		}
	case "":
		return Resolved{}, fmt.Errorf("no provider configured")
	default:
		return Resolved{}, fmt.Errorf("unknown provider kind: %s", r.Kind)
	}
	if r.Model == "" {
		return Resolved{}, fmt.Errorf("provider %s: model is required", r.Name)
	}
	return r, nil
}

// New builds a provider. Credentials are resolved through getenv; a missing
// credential is an error here rather than on the first call.
func New(cfg Config, getenv func(string) string) (Provider, error) {
	r, err := Resolve(cfg)
	if err != nil {
		return nil, err
	}

	key := cfg.APIKey
	if key == "" && r.APIKeyEnv != "" && getenv != nil {
		key = getenv(r.APIKeyEnv)
	}
	if key == "" && !r.NoAuth {
		if r.APIKeyEnv == "" {
			return nil, fmt.Errorf("provider %s: no API key and no apiKeyEnv configured", r.Name)
		}
		return nil, &authError{message: fmt.Sprintf("%s environment variable is not set", r.APIKeyEnv)}
	}

	switch r.Kind {
	case KindAnthropic:
		return NewAnthropic(key, r.Model, r.Endpoint)
	default:
		return NewOpenAI(r.Name, key, r.Model, r.Endpoint)
	}
}

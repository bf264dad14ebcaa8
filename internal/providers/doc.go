// Package providers adapts chat-completion APIs to one request/response
// contract built from typed content blocks.
//
// Two wire dialects are supported: the Anthropic Messages API, where tool
// invocations and tool results are content blocks, and the OpenAI-compatible
// chat-completions API, where tool results are "tool" role messages and
// invocations are function calls with JSON-string arguments. The second
// dialect covers OpenAI, OpenRouter, Groq, Gemini's compatibility endpoint,
// DeepSeek, Ollama and LM Studio.
//
// Both adapters retry HTTP 429 responses, honouring Retry-After when the
// server sends one. HTTP clients are injected so that tests can redirect
// calls to local httptest servers.
//
// Use [New] to build a Provider from a [Config] or a named shortcut.
package providers

// Package redact removes secrets from text before it is sent to an LLM
// provider. The review pipeline applies it to the diff, to preloaded file
// contents and to every tool result.
//
// Detection uses named regex rules covering common secret shapes: API keys,
// JWTs, private key blocks, AWS access key IDs and secret access keys, bearer
// tokens, database connection strings with inline passwords, and
// provider-specific tokens (Anthropic, OpenAI, GitHub, Slack).
package redact

// Package redact removes secrets from diff text before it leaves the
// process, either to a language model or into a published comment.
//
// Detection uses regex heuristics covering common secret shapes: API keys,
// JWTs, private keys, AWS access keys, bearer tokens, credentialed
// connection URLs, and provider-specific tokens (Anthropic, OpenAI, GitHub,
// Slack, Stripe).
//
// Path-based redaction withholds whole files whose paths match configured
// glob patterns, such as .env files and key material.
package redact

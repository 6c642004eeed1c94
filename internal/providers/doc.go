// Package providers implements the language-model Client for each supported
// provider: Anthropic through its Messages API over net/http, and OpenAI (or
// any compatible endpoint) through go-openai.
//
// Both share one retry Policy with capped exponential backoff. Rate limits,
// server errors and network failures are retried; authentication failures
// and rejected requests are returned at once. Use [IsAuthError] and
// [IsTransient] to classify errors.
//
// Use [New] to obtain a Client by provider name and model string.
package providers

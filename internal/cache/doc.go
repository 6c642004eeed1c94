// Package cache stores validated AI responses on disk so a rerun over the
// same diff, prompt and model reuses the earlier answer instead of calling
// the provider again.
//
// Entries are keyed by a SHA-256 hash of the provider name, model and the
// full prompt. Prompts are built after secret redaction, so cached
// payloads never contain redacted values. Expired entries are skipped on
// read and removed when encountered.
//
// In CI the directory can be persisted between workflow runs with the
// platform's cache action.
package cache

// Package config loads prrisk configuration.
//
// Precedence (highest to lowest):
//  1. CLI flags, passed to [Load] as overrides
//  2. Environment variables (PRRISK_MAX_FILES, PRRISK_AI_MODEL, ...)
//  3. The YAML file (.prrisk.yml, or --config / PRRISK_CONFIG)
//  4. Built-in defaults
//
// The merged result is checked with struct validation. Every unparsable or
// out-of-range value is reported as an [*Error]. Secrets never live in the
// file; [LoadSecrets] reads them from the environment.
package config

// Package logging configures the process-wide slog logger and hands out
// component-scoped loggers.
package logging

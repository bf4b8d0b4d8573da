// Package logging assembles structured slog loggers and formatting helpers used
// across printsync.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so engine and worker code can
// tag log lines with request IDs, derived object IDs, and step names. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging

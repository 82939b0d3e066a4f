// Package logging assembles structured slog loggers and formatting helpers used
// across scrutin components.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so store and tabulation code can
// tag log lines with the acting user, the round, and correlation IDs. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging

// Package logging assembles the structured slog loggers used across the
// compositing pipeline.
//
// It owns the console and JSON handler wiring, centralizes level parsing,
// and exposes a no-op logger for tests and wiring code that cannot fail.
// Prefer these constructors over hand-rolled slog setup so every component
// emits the same shape.
package logging

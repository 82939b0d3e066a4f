package logging

import (
	"context"
	"log/slog"

	"scrutin/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a log line for filtering (e.g. "store_retry").
	FieldEventType = "event_type"
	// FieldErrorHint tells the reader what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldActor is the authenticated user behind an operation.
	FieldActor = "actor"
	// FieldRole is the access role of the session.
	FieldRole = "role"
	// FieldPrecinctID identifies a polling precinct.
	FieldPrecinctID = "precinct_id"
	// FieldTable is the remote table touched by an operation.
	FieldTable = "table"
	// FieldRound is the electoral round (1 or 2).
	FieldRound = "round"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if actor, ok := services.ActorFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldActor, actor))
	}
	if round, ok := services.RoundFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldRound, round))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(toArgs(fields)...)
}

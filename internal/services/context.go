package services

import "context"

type contextKey string

const (
	actorKey     contextKey = "actor"
	roundKey     contextKey = "round"
	requestIDKey contextKey = "request_id"
)

// WithActor annotates context with the authenticated actor name.
func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the actor name if present.
func ActorFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(actorKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRound annotates context with the electoral round being processed.
func WithRound(ctx context.Context, round int) context.Context {
	if round <= 0 {
		return ctx
	}
	return context.WithValue(ctx, roundKey, round)
}

// RoundFromContext extracts the electoral round if present.
func RoundFromContext(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(roundKey).(int)
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

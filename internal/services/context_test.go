package services_test

import (
	"context"
	"testing"

	"scrutin/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithActor(ctx, "marie")
	ctx = services.WithRound(ctx, 2)
	ctx = services.WithRequestID(ctx, "req-123")

	if actor, ok := services.ActorFromContext(ctx); !ok || actor != "marie" {
		t.Fatalf("unexpected actor: %v %v", actor, ok)
	}
	if round, ok := services.RoundFromContext(ctx); !ok || round != 2 {
		t.Fatalf("unexpected round: %v %v", round, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithActor(ctx, "")
	ctx = services.WithRound(ctx, 0)
	if _, ok := services.ActorFromContext(ctx); ok {
		t.Fatal("expected no actor value")
	}
	if _, ok := services.RoundFromContext(ctx); ok {
		t.Fatal("expected no round value")
	}
}

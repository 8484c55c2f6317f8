package services_test

import (
	"context"
	"testing"

	"reelsmith/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "20261016-abcd1234")
	ctx = services.WithStage(ctx, "compose")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "20261016-abcd1234" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "compose" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithRunID(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage for blank value")
	}
	if _, ok := services.RunIDFromContext(ctx); ok {
		t.Fatal("expected no run id for blank value")
	}
}

package correlation

import (
	"context"
	"testing"
)

func TestFromContext_Empty(t *testing.T) {
	id, ok := FromContext(context.Background())
	if ok {
		t.Errorf("expected no correlation id on empty context, got %q", id)
	}
}

func TestWithID_RoundTrip(t *testing.T) {
	ctx := WithID(context.Background(), "abc-123")
	id, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected correlation id to be present")
	}
	if id != "abc-123" {
		t.Errorf("expected %q, got %q", "abc-123", id)
	}
}

func TestEnsure_GeneratesWhenAbsent(t *testing.T) {
	ctx, id := Ensure(context.Background())
	if id == "" {
		t.Fatal("expected a generated correlation id")
	}
	got, ok := FromContext(ctx)
	if !ok || got != id {
		t.Errorf("expected context to carry %q, got %q (ok=%v)", id, got, ok)
	}
}

func TestEnsure_PreservesExisting(t *testing.T) {
	ctx := WithID(context.Background(), "existing")
	ctx2, id := Ensure(ctx)
	if id != "existing" {
		t.Errorf("expected existing id to be preserved, got %q", id)
	}
	if ctx2 != ctx {
		t.Error("expected the same context when an id already exists")
	}
}

func TestField_EmptyContext(t *testing.T) {
	f := Field(context.Background())
	if f.Key != "correlation_id" {
		t.Errorf("expected field key correlation_id, got %q", f.Key)
	}
	if f.String != "" {
		t.Errorf("expected empty value for empty context, got %q", f.String)
	}
}

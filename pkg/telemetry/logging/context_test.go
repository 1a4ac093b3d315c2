package logging

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" || GetUser(ctx) != "" {
		t.Error("Expected empty values on a bare context")
	}

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithUser(ctx, "bob")
	if GetRequestID(ctx) != "req-1" {
		t.Errorf("Expected req-1, got %s", GetRequestID(ctx))
	}
	if GetUser(ctx) != "bob" {
		t.Errorf("Expected bob, got %s", GetUser(ctx))
	}
}

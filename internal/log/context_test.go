package log

import (
	"context"
	"errors"
	"testing"
)

func TestFromContext_RoundTrip(t *testing.T) {
	l := Nop().With("component", "test")
	got := FromContext(WithContext(context.Background(), l))
	if got != l {
		t.Fatal("FromContext returned a different logger than stored")
	}
}

func TestFromContext_FallsBackToNop(t *testing.T) {
	ctxs := map[string]context.Context{
		"empty":      context.Background(),
		"nil logger": context.WithValue(context.Background(), ctxKey{}, nil),
		"wrong type": context.WithValue(context.Background(), ctxKey{}, "not a logger"),
	}
	for name, ctx := range ctxs {
		t.Run(name, func(t *testing.T) {
			got := FromContext(ctx)
			if got == nil {
				t.Fatal("FromContext returned nil")
			}
			got.Info(ctx, "safe")
			got.Error(ctx, errors.New("x"), "safe")
			if err := got.Sync(); err != nil {
				t.Fatalf("Sync: %v", err)
			}
		})
	}
}

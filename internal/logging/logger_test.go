package logging

import (
	"context"
	"testing"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()

	for _, dev := range []bool{true, false} {
		logger := NewLogger("debug", dev)
		if logger == nil {
			t.Fatal("logger cannot be nil")
		}
	}

	if NewLogger("not-a-level", false) == nil {
		t.Fatal("invalid level should fall back, not return nil")
	}
}

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	logger1 := DefaultLogger()
	if logger1 == nil {
		t.Fatal("logger cannot be nil")
	}

	logger2 := DefaultLogger()
	if logger1 != logger2 {
		t.Errorf("expected %#v got %#v", logger1, logger2)
	}
}

func TestContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger1 := FromContext(ctx)
	if logger1 == nil {
		t.Fatal("logger cannot be nil")
	}

	logger := NewLogger("warn", true)
	ctx = WithLogger(ctx, logger)

	logger2 := FromContext(ctx)
	if logger != logger2 {
		t.Errorf("expected %#v got %#v", logger, logger2)
	}
}

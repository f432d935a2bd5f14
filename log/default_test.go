package log

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	saved := Default()
	t.Cleanup(func() { SetDefault(saved) })

	var buf bytes.Buffer

	SetDefault(Make(&buf, WithTimeLayout("none")))
	Config(WithLevel(LevelDebug))

	ctx := t.Context()

	Trace("trace")
	Debug("debug")
	InfoContext(ctx, "info")
	Warn("warn")
	ErrorContext(ctx, "error")
	With().Info("with")

	got := buf.String()

	if strings.Contains(got, "msg=trace") {
		t.Error("expected trace to be filtered")
	}

	for _, msg := range []string{"debug", "info", "warn", "error", "with"} {
		if !strings.Contains(got, "msg="+msg) {
			t.Errorf("expected %q in output:\n%s", msg, got)
		}
	}
}

func TestDefaultContextProvider(t *testing.T) {
	saved := DefaultContextProvider
	t.Cleanup(func() { DefaultContextProvider = saved })

	called := false
	DefaultContextProvider = func() context.Context {
		called = true

		return context.Background()
	}

	Make(&bytes.Buffer{}).Info("x")

	if !called {
		t.Error("expected context-free method to use the provider")
	}
}

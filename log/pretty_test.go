package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestPrettyHandler_Text(t *testing.T) {
	var buf bytes.Buffer

	l := Make(&buf, WithTimeLayout("none"))
	l.Info("values",
		slog.String("s", "a b"),
		slog.Int("i", -3),
		slog.Float64("f", 0.5),
		slog.Bool("ok", true),
		slog.Duration("d", time.Second),
		slog.Any("err", errors.New("boom")),
		slog.Any("nil", nil),
	)

	want := "level=INFO msg=values s=a b i=-3 f=0.5 ok=true d=1s err=boom nil=null\n"
	if got := buf.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestPrettyHandler_JSON(t *testing.T) {
	var buf bytes.Buffer

	l := Make(&buf, WithFormat(FormatJSON))
	l.With(slog.String("expr", "x + 1")).
		WithGroup("frame").
		Warn("read", slog.Int("rows", 2), slog.Group("col", slog.String("name", "a")),
			slog.Any("list", []int{1, 2}))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("Unmarshal failed: %v\n%s", err, buf.String())
	}

	want := map[string]any{
		"level":          "WARN",
		"msg":            "read",
		"expr":           "x + 1",
		"frame.rows":     float64(2),
		"frame.col.name": "a",
	}

	for k, v := range want {
		if rec[k] != v {
			t.Errorf("%s: expected %v, got %v", k, v, rec[k])
		}
	}

	if list, ok := rec["frame.list"].([]any); !ok || len(list) != 2 {
		t.Errorf("expected frame.list to be an array, got %v", rec["frame.list"])
	}

	if _, ok := rec["time"].(string); !ok {
		t.Errorf("expected a time field, got %v", rec["time"])
	}
}

func TestPrettyHandler_EmptyGroups(t *testing.T) {
	var buf bytes.Buffer

	l := Make(&buf, WithTimeLayout("none")).WithGroup("")
	l.Info("m", slog.Group("empty"), slog.Group("", slog.Int("inline", 1)))

	if got := strings.TrimSpace(buf.String()); got != "level=INFO msg=m inline=1" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestPrettyHandler_Enabled(t *testing.T) {
	h := newPrettyHandler(&bytes.Buffer{}, FormatText, &slog.HandlerOptions{})

	if h.Enabled(t.Context(), slog.LevelDebug) || !h.Enabled(t.Context(), slog.LevelInfo) {
		t.Error("expected info to be the minimum level without options")
	}
}

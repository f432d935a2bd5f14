package log

import (
	"slices"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"trace", LevelTrace},
		{"TRACE", LevelTrace},
		{"debug", LevelDebug},
		{" Info ", LevelInfo},
		{"warn", LevelWarn},
		{"ERROR", LevelError},
		{"warn+2", Level(6)},
		{"bogus", DefaultLevel},
		{"", DefaultLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"json":  FormatJSON,
		" JSON": FormatJSON,
		"text":  FormatText,
		"yaml":  DefaultFormat,
	}

	for in, want := range tests {
		if got := ParseFormat(in); got != want {
			t.Errorf("ParseFormat(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevels(t *testing.T) {
	want := []string{"trace", "debug", "info", "warn", "error"}
	if got := slices.Collect(Levels()); !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if got := slices.Collect(Formats()); !slices.Equal(got, []string{"text", "json"}) {
		t.Errorf("unexpected formats %v", got)
	}

	if s := Level(2).String(); s != "Level(2)" {
		t.Errorf("expected Level(2), got %s", s)
	}
}

func TestMakeFormatTimeFunc(t *testing.T) {
	ts := time.Date(2022, time.November, 13, 18, 45, 10, 123456789, time.UTC)

	tests := []struct {
		layout string
		want   string
	}{
		{"RFC3339", "2022-11-13T18:45:10Z"},
		{"rfc-3339-nano", "2022-11-13T18:45:10.123456789Z"},
		{"Kitchen", "6:45PM"},
		{"DateTime", "2022-11-13 18:45:10"},
		{"ms", "Nov 13 18:45:10.123"},
		{"2006/01/02", "2022/11/13"},
		{"none", ""},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.layout, func(t *testing.T) {
			if got := makeFormatTimeFunc(tt.layout)(ts); got != tt.want {
				t.Errorf("format(%q) = %q, want %q", tt.layout, got, tt.want)
			}
		})
	}
}

func TestApply(t *testing.T) {
	c := makeConfig(nil,
		WithLevel(LevelWarn),
		nil,
		WithFormat(FormatJSON),
		WithCaller(true),
		WithPretty(false))

	if c.level != LevelWarn || c.format != FormatJSON || !c.caller || c.pretty {
		t.Errorf("options not applied: %+v", c)
	}

	if c = apply(c, WithDefaults(nil)); c.level != DefaultLevel || c.caller {
		t.Errorf("expected defaults restored, got %+v", c)
	}
}

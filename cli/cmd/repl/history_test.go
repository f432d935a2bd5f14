package repl

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestParseEntry(t *testing.T) {
	tests := []struct {
		line string
		want HistoryEntry
	}{
		{"E:1 + 2", HistoryEntry{Line: "1 + 2", Mode: modeEval}},
		{"C:help", HistoryEntry{Line: "help", Mode: modeCtrl}},
		{"${a}.sum()", HistoryEntry{Line: "${a}.sum()", Mode: modeEval}},
		{"E:C:x", HistoryEntry{Line: "C:x", Mode: modeEval}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got := parseEntry(tt.line)
			if got != tt.want {
				t.Errorf("parseEntry(%q) = %+v, want %+v", tt.line, got, tt.want)
			}

			if tt.line[1] == ':' && got.String() != tt.line {
				t.Errorf("String() = %q, want %q", got.String(), tt.line)
			}
		})
	}
}

func TestHistory_Persist(t *testing.T) {
	path := filepath.Join(t.TempDir(), baseHistory)
	h := NewHistory(path)

	for _, add := range []struct {
		line string
		mode inputMode
	}{
		{"1 + 1", modeEval},
		{"help", modeCtrl},
		{"  ", modeEval},
		{"1 + 1", modeEval},
		{"help", modeCtrl},
		{"str(1)", modeEval},
	} {
		if err := h.Add(add.line, add.mode); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	want := []HistoryEntry{
		{Line: "1 + 1", Mode: modeEval},
		{Line: "help", Mode: modeCtrl},
		{Line: "str(1)", Mode: modeEval},
	}

	if got := h.Entries(); !slices.Equal(got, want) {
		t.Fatalf("Entries() = %+v, want %+v", got, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if got := string(data); got != "E:1 + 1\nC:help\nE:str(1)\n" {
		t.Errorf("history file = %q", got)
	}

	loaded := NewHistory(path)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := loaded.Entries(); !slices.Equal(got, want) {
		t.Errorf("loaded Entries() = %+v, want %+v", got, want)
	}
}

func TestHistory_MoveToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), baseHistory)
	h := NewHistory(path)

	for _, line := range []string{"a", "b", "a"} {
		if err := h.Add(line, modeEval); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if got := string(data); got != "E:b\nE:a\n" {
		t.Errorf("history file = %q, want rewritten order", got)
	}
}

func TestHistory_Memory(t *testing.T) {
	h := NewHistory("")

	if err := h.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := h.Add("x", modeEval); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if h.Len() != 1 {
		t.Errorf("Len() = %d, want 1", h.Len())
	}

	if _, err := h.Entry(1); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Entry(1) error = %v, want %v", err, ErrOutOfBounds)
	}
}

func TestHistory_LoadMissing(t *testing.T) {
	h := NewHistory(filepath.Join(t.TempDir(), "none", baseHistory))

	if err := h.Load(); err != nil {
		t.Errorf("Load() error = %v, want nil", err)
	}

	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}
}

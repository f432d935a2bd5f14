package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
)

func TestInitRun(t *testing.T) {
	tests := []struct {
		name    string
		force   bool
		exists  bool
		wantErr error
	}{
		{"create_new_config", false, false, nil},
		{"overwrite_existing_with_force", true, true, nil},
		{"fail_without_force", false, true, ErrFileExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			confPath := filepath.Join(t.TempDir(), "safeval", "config.yaml")

			if tt.exists {
				if err := os.MkdirAll(filepath.Dir(confPath), 0o700); err != nil {
					t.Fatal(err)
				}

				if err := os.WriteFile(confPath, []byte("existing content"), 0o600); err != nil {
					t.Fatal(err)
				}
			}

			var cli struct {
				Env  Env  `embed:""`
				Init Init `cmd:""`
			}

			parser, err := kong.New(&cli,
				kong.Vars{ConfigIdentifier: confPath}.CloneWith(Env{}.Vars()),
				kong.Exit(func(int) { t.Fatal("unexpected exit") }),
			)
			if err != nil {
				t.Fatalf("kong.New failed: %v", err)
			}

			args := []string{"--max-depth=7", "--var", "x=1", "init"}
			if tt.force {
				args = append(args, "--force")
			}

			ktx, err := parser.Parse(args)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}

			err = cli.Init.Run(WithContext(t.Context(), ktx))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}

				return
			}

			if err != nil {
				t.Fatalf("Init failed: %v", err)
			}

			data, err := os.ReadFile(confPath)
			if err != nil {
				t.Fatal(err)
			}

			for _, want := range []string{"max-depth: 7", "format: auto", "- x=1"} {
				if !strings.Contains(string(data), want) {
					t.Errorf("expected %q in config:\n%s", want, data)
				}
			}

			if strings.Contains(string(data), "help") {
				t.Errorf("expected help flag to be omitted:\n%s", data)
			}
		})
	}
}

func TestConfigValue(t *testing.T) {
	tests := []struct {
		in   any
		keep bool
	}{
		{nil, false},
		{"", false},
		{[]string{}, false},
		{"x", true},
		{0, true},
		{false, true},
		{[]string{"a"}, true},
	}

	for _, tt := range tests {
		if got := configValue(tt.in) != nil; got != tt.keep {
			t.Errorf("configValue(%#v) kept = %v, want %v", tt.in, got, tt.keep)
		}
	}
}

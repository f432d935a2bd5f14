package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/ardnew/safeval/lang"
)

func TestPolicy_Default(t *testing.T) {
	var out bytes.Buffer

	if err := (&Policy{}).run(t.Context(), testEnv(), &out); err != nil {
		t.Fatalf("Policy failed: %v", err)
	}

	p, err := lang.ReadPolicy(&out)
	if err != nil {
		t.Fatalf("ReadPolicy of output failed: %v", err)
	}

	if !slices.Equal(p.Allowed(), lang.DefaultPolicy().Allowed()) {
		t.Errorf("expected default allow list, got %v", p.Allowed())
	}
}

func TestPolicy_Names(t *testing.T) {
	env := testEnv()
	env.Policy = writeTemp(t, "policy.yaml", "allowed: [int, str]\nnamespaces: [pd]\n")

	var out bytes.Buffer

	if err := (&Policy{Names: true}).run(t.Context(), env, &out); err != nil {
		t.Fatalf("Policy failed: %v", err)
	}

	names := strings.Fields(out.String())

	for _, want := range []string{"int", "str", "pd.to_datetime"} {
		if !slices.Contains(names, want) {
			t.Errorf("expected %s in %v", want, names)
		}
	}

	for _, reject := range []string{"range", "np.round"} {
		if slices.Contains(names, reject) {
			t.Errorf("expected %s to be excluded from %v", reject, names)
		}
	}
}

func TestPolicy_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "policy.yaml")
	cmd := &Policy{Write: path}

	if err := cmd.run(t.Context(), testEnv(), nil); err != nil {
		t.Fatalf("Policy failed: %v", err)
	}

	if err := cmd.run(t.Context(), testEnv(), nil); !errors.Is(err, ErrFileExists) {
		t.Fatalf("expected ErrFileExists, got %v", err)
	}

	cmd.Force = true
	if err := cmd.run(t.Context(), testEnv(), nil); err != nil {
		t.Fatalf("Policy with force failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if _, err := lang.ReadPolicy(f); err != nil {
		t.Errorf("expected written policy to load, got %v", err)
	}
}

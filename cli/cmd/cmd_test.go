package cmd

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	return path
}

func readAll(t *testing.T, s *sourceFiles) []string {
	t.Helper()

	var out []string

	for _, r := range s.All() {
		b, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("ReadAll failed: %v", err)
		}

		out = append(out, string(b))
	}

	return out
}

func TestOpenSources_Empty(t *testing.T) {
	s, err := openSources(nil, strings.NewReader("x"))
	if err != nil {
		t.Fatalf("openSources failed: %v", err)
	}

	if !s.IsZero() {
		t.Error("expected no sources")
	}

	if got := readAll(t, s); len(got) != 0 {
		t.Errorf("expected nothing to read, got %q", got)
	}
}

func TestOpenSources_Order(t *testing.T) {
	a := writeTemp(t, "a.txt", "first")
	b := writeTemp(t, "b.txt", "second")

	s, err := openSources([]string{"-", b, a, "-"}, strings.NewReader("stdin"))
	if err != nil {
		t.Fatalf("openSources failed: %v", err)
	}
	defer s.Close()

	got := readAll(t, s)
	want := []string{"second", "first", "stdin"}

	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestOpenSources_Dedup(t *testing.T) {
	a := writeTemp(t, "a.txt", "once")
	link := filepath.Join(t.TempDir(), "link.txt")

	if err := os.Symlink(a, link); err != nil {
		t.Skipf("symlink unsupported: %v", err)
	}

	rel, err := filepath.Rel(mustGetwd(t), a)
	if err != nil {
		rel = a
	}

	s, err := openSources([]string{a, link, rel}, nil)
	if err != nil {
		t.Fatalf("openSources failed: %v", err)
	}
	defer s.Close()

	if got := readAll(t, s); len(got) != 1 || got[0] != "once" {
		t.Errorf("expected a single read of the file, got %q", got)
	}
}

func TestOpenSources_Missing(t *testing.T) {
	_, err := openSources([]string{filepath.Join(t.TempDir(), "nope")}, nil)
	if !isErr(err, ErrReadSource) {
		t.Errorf("expected ErrReadSource, got %v", err)
	}
}

func mustGetwd(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	return wd
}

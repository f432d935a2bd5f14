package lang

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func cacheLen(e *Evaluator) int {
	n := 0

	e.cache.entries.Range(func(_, _ any) bool {
		n++

		return true
	})

	return n
}

func TestCache_Hit(t *testing.T) {
	e := New()

	for range 3 {
		if _, err := e.Evaluate(t.Context(), "1 + 2"); err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
	}

	if n := cacheLen(e); n != 1 {
		t.Errorf("expected 1 cached expression, got %d", n)
	}

	if got := e.cache.size.Load(); got != 1 {
		t.Errorf("expected size 1, got %d", got)
	}
}

func TestCache_LocalNames(t *testing.T) {
	e := New()

	v, err := e.Evaluate(t.Context(), "x", WithLocal("x", Int(1)))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if v.Repr() != "1" {
		t.Errorf("expected 1, got %s", v.Repr())
	}

	// The same text without the local must be lexed again and rejected.
	if _, err := e.Evaluate(t.Context(), "x"); !errors.Is(err, ErrUnsupportedFunction) {
		t.Errorf("expected ErrUnsupportedFunction, got %v", err)
	}

	// Different values under the same names reuse the tokens.
	v, err = e.Evaluate(t.Context(), "x", WithLocal("x", Int(2)))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if v.Repr() != "2" {
		t.Errorf("expected 2, got %s", v.Repr())
	}
}

func TestCache_CachesErrors(t *testing.T) {
	e := New()

	for range 2 {
		if _, err := e.Evaluate(t.Context(), "'open"); !errors.Is(err, ErrLex) {
			t.Fatalf("expected ErrLex, got %v", err)
		}
	}

	if n := cacheLen(e); n != 1 {
		t.Errorf("expected failed lex to be cached once, got %d entries", n)
	}
}

func TestCache_Reset(t *testing.T) {
	e := New(WithCacheSize(2))

	for _, expr := range []string{"1", "2", "3"} {
		if _, err := e.Evaluate(t.Context(), expr); err != nil {
			t.Fatalf("Evaluate(%q) failed: %v", expr, err)
		}
	}

	if n := cacheLen(e); n != 1 {
		t.Errorf("expected cache to reset to the newest entry, got %d entries", n)
	}
}

func TestCache_Disabled(t *testing.T) {
	e := New(WithCacheSize(0))

	if _, err := e.Evaluate(t.Context(), "1 + 1"); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if e.cache != nil && cacheLen(e) != 0 {
		t.Errorf("expected nothing cached, got %d entries", cacheLen(e))
	}
}

func TestClearCache(t *testing.T) {
	e := New()

	if _, err := e.Evaluate(t.Context(), "1"); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	e.ClearCache()

	if n := cacheLen(e); n != 0 {
		t.Errorf("expected empty cache, got %d entries", n)
	}

	if e.cache.size.Load() != 0 {
		t.Errorf("expected size 0, got %d", e.cache.size.Load())
	}
}

func TestCache_Concurrent(t *testing.T) {
	e := New()

	var wg sync.WaitGroup

	errs := make(chan error, 32)

	for i := range 32 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			v, err := e.Evaluate(t.Context(), "x * 2", WithLocal("x", Int(int64(i))))
			if err != nil {
				errs <- err

				return
			}

			if n, _ := v.AsInt(); n != int64(i*2) {
				errs <- errors.New("unexpected result " + v.Repr())
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestEvaluateReader(t *testing.T) {
	v, err := New().EvaluateReader(t.Context(), strings.NewReader("  x + 1\n\n"), WithLocal("x", Int(41)))
	if err != nil {
		t.Fatalf("EvaluateReader failed: %v", err)
	}

	if v.Repr() != "42" {
		t.Errorf("expected 42, got %s", v.Repr())
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestEvaluateReader_Error(t *testing.T) {
	_, err := New().EvaluateReader(t.Context(), failingReader{})
	if !errors.Is(err, ErrReadInput) {
		t.Errorf("expected ErrReadInput, got %v", err)
	}
}

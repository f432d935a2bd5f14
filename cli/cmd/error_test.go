package cmd

import (
	"errors"
	"io/fs"
	"log/slog"
	"testing"
)

func isErr(err error, target *Error) bool { return errors.Is(err, target) }

func TestError(t *testing.T) {
	err := ErrWriteConfig.With(slog.String("file", "x")).Wrap(fs.ErrExist)

	if !errors.Is(err, ErrWriteConfig) {
		t.Error("expected derived error to match its sentinel")
	}

	if errors.Is(err, ErrWriteOutput) {
		t.Error("expected derived error not to match another sentinel")
	}

	if !errors.Is(err, fs.ErrExist) {
		t.Error("expected cause to be reachable")
	}

	if got, want := err.Error(), "write configuration file: file already exists"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	v := err.LogValue()
	if v.Kind() != slog.KindGroup || len(v.Group()) != 3 {
		t.Errorf("expected error, cause and file attrs, got %v", v)
	}
}

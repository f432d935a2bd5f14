package cmd

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
)

// ContextKey is used to store a [kong.Context] value in [context.Context].
type contextKey struct{}

// WithContext returns a new context.Context containing the given kong.Context.
func WithContext(ctx context.Context, ktx *kong.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ktx)
}

func kongContextFrom(ctx context.Context) *kong.Context {
	ktx, ok := ctx.Value(contextKey{}).(*kong.Context)
	if !ok || ktx == nil {
		return nil
	}

	return ktx
}

// stdinSource is the special source indicator for reading from stdin.
const stdinSource = "-"

// sourceFiles is an ordered, deduplicated set of opened expression sources.
// Stdin, if named, is always read last.
type sourceFiles struct {
	files    []*os.File
	hasStdin bool
	stdin    io.Reader
}

// fileKey uniquely identifies a file by its device and inode numbers.
// This handles deduplication across symlinks and absolute/relative paths.
type fileKey struct {
	dev uint64
	ino uint64
}

// openSources opens each named source once. All occurrences of "-" (and any
// path resolving to the same file as stdin) collapse into a single read of
// stdin, placed after the regular files.
func openSources(sources []string, stdin io.Reader) (*sourceFiles, error) {
	srcs := &sourceFiles{stdin: stdin}
	seen := make(map[fileKey]struct{})

	var stdinKey fileKey

	if f, ok := stdin.(*os.File); ok {
		if info, err := f.Stat(); err == nil {
			stdinKey, _ = makeFileKey(info)
		}
	}

	for _, src := range sources {
		if src == stdinSource {
			srcs.hasStdin = true

			continue
		}

		file, key, err := openUniqueFile(src, seen)
		if err != nil {
			_ = srcs.Close()

			return nil, ErrReadSource.With(slog.String("file", src)).Wrap(err)
		}

		if file == nil {
			continue
		}

		if key == stdinKey && key != (fileKey{}) {
			_ = file.Close()
			srcs.hasStdin = true

			continue
		}

		srcs.files = append(srcs.files, file)
	}

	return srcs, nil
}

// IsZero reports whether there are no sources.
func (s *sourceFiles) IsZero() bool {
	return s == nil || (len(s.files) == 0 && !s.hasStdin)
}

// All yields each source's name and reader in read order.
func (s *sourceFiles) All() iter.Seq2[string, io.Reader] {
	return func(yield func(string, io.Reader) bool) {
		if s == nil {
			return
		}

		for _, f := range s.files {
			if !yield(f.Name(), f) {
				return
			}
		}

		if s.hasStdin && s.stdin != nil {
			yield(stdinSource, s.stdin)
		}
	}
}

// Close closes every opened file.
func (s *sourceFiles) Close() error {
	if s == nil {
		return nil
	}

	errs := make([]error, 0, len(s.files))
	for _, f := range s.files {
		errs = append(errs, f.Close())
	}

	return errors.Join(errs...)
}

// openUniqueFile opens the file at path unless it has been seen before, in
// which case it returns a nil file and no error.
func openUniqueFile(path string, seen map[fileKey]struct{}) (*os.File, fileKey, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fileKey{}, err
	}

	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, fileKey{}, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fileKey{}, err
	}

	key, ok := makeFileKey(info)
	if ok {
		if _, exists := seen[key]; exists {
			return nil, key, nil
		}

		seen[key] = struct{}{}
	}

	file, err := os.Open(resolved)
	if err != nil {
		return nil, key, err
	}

	return file, key, nil
}

// makeFileKey creates a fileKey from os.FileInfo.
// Returns false if the underlying Sys() data is not of type *syscall.Stat_t.
func makeFileKey(info os.FileInfo) (key fileKey, ok bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return key, false
	}

	return fileKey{dev: uint64(stat.Dev), ino: stat.Ino}, true
}

package lang

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/klauspost/readahead"
	"github.com/zeebo/xxh3"
)

// DefaultCacheSize is the default number of lexed expressions retained per
// evaluator.
const DefaultCacheSize = 1024

// entry is a lexed expression shared by concurrent evaluations.
type entry struct {
	once   sync.Once
	tokens []Token
	err    error
}

// tokenCache stores token sequences keyed by expression and local names.
// Tokens hold no environment, so a cached sequence is valid for any table
// and any local values with the same names.
type tokenCache struct {
	entries sync.Map
	size    atomic.Int64
	limit   int
}

// key hashes the expression together with the sorted local names.
func (c *tokenCache) key(expr string, names []string) string {
	h := xxh3.New()
	_, _ = h.WriteString(expr)

	for _, name := range names {
		_, _ = h.WriteString("\x00" + name)
	}

	return strconv.FormatUint(h.Sum64(), 36)
}

// tokens returns the cached tokens for expr, lexing at most once per key.
func (e *Evaluator) tokens(
	ctx context.Context,
	expr string,
	sc scope,
) ([]Token, error) {
	names := sc.names()
	locals := make(map[string]struct{}, len(names))

	for _, name := range names {
		locals[name] = struct{}{}
	}

	if e.cache == nil || e.cache.limit <= 0 {
		return e.lex(ctx, expr, locals)
	}

	key := e.cache.key(expr, names)

	value, hit := e.cache.entries.LoadOrStore(key, new(entry))
	if !hit && e.cache.size.Add(1) > int64(e.cache.limit) {
		e.logger.DebugContext(ctx, "cache reset", slog.Int("limit", e.cache.limit))
		e.cache.clear()
		e.cache.entries.Store(key, value)
		e.cache.size.Store(1)
	}

	e.logger.TraceContext(ctx, "cache lookup",
		slog.String("key", key),
		slog.Bool("cache_hit", hit),
	)

	ent, _ := value.(*entry)
	ent.once.Do(func() {
		ent.tokens, ent.err = e.lex(ctx, expr, locals)
	})

	return ent.tokens, ent.err
}

func (c *tokenCache) clear() {
	c.entries.Range(func(k, _ any) bool {
		c.entries.Delete(k)

		return true
	})
}

// ClearCache discards every cached token sequence.
func (e *Evaluator) ClearCache() {
	if e.cache != nil {
		e.cache.clear()
		e.cache.size.Store(0)
	}
}

// EvaluateReader reads an expression from r and evaluates it. Trailing
// whitespace is ignored.
func (e *Evaluator) EvaluateReader(
	ctx context.Context,
	r io.Reader,
	opts ...EvalOption,
) (Value, error) {
	// Wrap reader with async read-ahead for concurrent I/O.
	ra := readahead.NewReader(r)
	defer ra.Close()

	data, err := io.ReadAll(ra)
	if err != nil {
		return Null(), ErrReadInput.Wrap(err).With(slog.String("source", "reader"))
	}

	e.logger.TraceContext(ctx, "read input",
		slog.Int("source_bytes", len(data)),
		slog.Bool("read_ahead", true),
	)

	return e.Evaluate(ctx, strings.TrimSpace(string(data)), opts...)
}

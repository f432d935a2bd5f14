package lang

import (
	"log/slog"
	"maps"
	"slices"
)

func sortedKeys[T any](m map[string]T) []string {
	if len(m) == 0 {
		return nil
	}

	return slices.Sorted(maps.Keys(m))
}

// tokenAttrs summarizes a token sequence for trace logging.
func tokenAttrs(tokens []Token) slog.Attr {
	kinds := make([]string, len(tokens))
	for i, t := range tokens {
		kinds[i] = t.Kind.String()
	}

	return slog.Any("tokens", kinds)
}

// valueAttr describes an evaluation result for trace logging.
func valueAttr(key string, v Value) slog.Attr {
	return slog.Group(key,
		slog.String("type", v.TypeName()),
		slog.String("value", truncate(v.Repr(), 64)),
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}

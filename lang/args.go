package lang

import (
	"context"
	"log/slog"
	"strings"
)

// Arguments holds the evaluated arguments of a call.
type Arguments struct {
	Positional []Value
	Keyword    map[string]Value
	order      []string // keyword names in call order
}

// Args returns positional arguments.
func Args(values ...Value) Arguments { return Arguments{Positional: values} }

// Len returns the total number of arguments.
func (a Arguments) Len() int { return len(a.Positional) + len(a.Keyword) }

// KeywordNames returns the keyword names in the order they were given.
func (a Arguments) KeywordNames() []string {
	if len(a.order) == len(a.Keyword) {
		return a.order
	}

	return sortedKeys(a.Keyword)
}

// WithKeyword returns a copy of a with the keyword argument name set to v.
func (a Arguments) WithKeyword(name string, v Value) Arguments {
	kw := make(map[string]Value, len(a.Keyword)+1)
	for k, e := range a.Keyword {
		kw[k] = e
	}

	order := a.KeywordNames()
	if _, ok := kw[name]; !ok {
		order = append(order[:len(order):len(order)], name)
	}

	kw[name] = v

	return Arguments{Positional: a.Positional, Keyword: kw, order: order}
}

// withoutKeyword returns a copy of a without the keyword argument name.
func (a Arguments) withoutKeyword(name string) Arguments {
	if _, ok := a.Keyword[name]; !ok {
		return a
	}

	kw := make(map[string]Value, len(a.Keyword)-1)
	order := make([]string, 0, len(a.Keyword)-1)

	for _, k := range a.KeywordNames() {
		if k != name {
			kw[k] = a.Keyword[k]
			order = append(order, k)
		}
	}

	return Arguments{Positional: a.Positional, Keyword: kw, order: order}
}

// Lookup returns the keyword argument name if present, otherwise the
// positional argument at pos.
func (a Arguments) Lookup(pos int, name string) (Value, bool) {
	if v, ok := a.Keyword[name]; ok && name != "" {
		return v, true
	}

	if pos >= 0 && pos < len(a.Positional) {
		return a.Positional[pos], true
	}

	return Null(), false
}

// Bind assigns the arguments to params. Positional arguments fill, in order,
// the parameters not supplied by keyword. Parameters that received nothing
// are absent from the result.
func (a Arguments) Bind(fn string, params ...string) (map[string]Value, error) {
	bound := make(map[string]Value, len(params))
	known := make(map[string]struct{}, len(params))

	for _, p := range params {
		known[p] = struct{}{}
	}

	for _, name := range a.KeywordNames() {
		if _, ok := known[name]; !ok {
			return nil, ErrArgumentCount.With(
				slog.String("function", fn),
				slog.String("unexpected", name),
			)
		}

		bound[name] = a.Keyword[name]
	}

	next := 0

	for _, p := range params {
		if next == len(a.Positional) {
			break
		}

		if _, ok := bound[p]; ok {
			continue
		}

		bound[p] = a.Positional[next]
		next++
	}

	if next < len(a.Positional) {
		return nil, ErrArgumentCount.With(
			slog.String("function", fn),
			slog.Int("expected", len(params)),
			slog.Int("given", a.Len()),
		)
	}

	return bound, nil
}

// Expect checks that a carries between lo and hi arguments.
func (a Arguments) Expect(fn string, lo, hi int) error {
	if n := a.Len(); n < lo || n > hi {
		return ErrArgumentCount.With(
			slog.String("function", fn),
			slog.Int("min", lo),
			slog.Int("max", hi),
			slog.Int("given", n),
		)
	}

	return nil
}

// splitArgs splits the raw text between call parentheses into parameters.
// Commas inside brackets or quotes never split, and neither do the commas of
// a lambda header that has not reached its colon.
func splitArgs(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	parts := splitTopLevel(text)
	params := make([]string, 0, len(parts))

	for i := 0; i < len(parts); i++ {
		param := parts[i]

		for isOpenLambda(param) && i+1 < len(parts) {
			i++
			param += "," + parts[i]
		}

		params = append(params, param)
	}

	if last := params[len(params)-1]; strings.TrimSpace(last) == "" && len(params) > 1 {
		params = params[:len(params)-1]
	}

	for _, p := range params {
		if strings.TrimSpace(p) == "" {
			return nil, ErrLex.WithPosition(0, text).With(
				slog.String("reason", "empty argument"),
			)
		}
	}

	return params, nil
}

func isOpenLambda(param string) bool {
	s := strings.TrimSpace(param)

	return strings.HasPrefix(s, "lambda") &&
		(len(s) == len("lambda") || !isIdentChar(s[len("lambda")])) &&
		!strings.Contains(s, ":")
}

// keywordParam splits "name = expr" into its name and expression. The
// equals sign must not begin "==".
func keywordParam(param string) (name, expr string, ok bool) {
	s := strings.TrimLeft(param, " \t")

	i := 0
	for i < len(s) && (isIdentStart(s[i]) || isDigit(s[i])) {
		i++
	}

	j := i
	for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
		j++
	}

	if i == 0 || j >= len(s) || s[j] != '=' || (j+1 < len(s) && s[j+1] == '=') {
		return "", "", false
	}

	return s[:i], s[j+1:], true
}

// evalArgs evaluates the parameters of a call in scope sc. A parameter that
// is exactly the name of a local is bound to that local without evaluation.
func (e *Evaluator) evalArgs(
	ctx context.Context,
	text string,
	sc scope,
) (Arguments, error) {
	params, err := splitArgs(text)
	if err != nil {
		return Arguments{}, err
	}

	var args Arguments

	for _, param := range params {
		name, expr, isKeyword := keywordParam(param)
		if !isKeyword {
			if len(args.Keyword) > 0 {
				return Arguments{}, ErrArgumentOrder.With(
					slog.String("argument", strings.TrimSpace(param)),
				)
			}

			expr = param
		}

		v, err := e.evalParam(ctx, expr, sc)
		if err != nil {
			return Arguments{}, err
		}

		if !isKeyword {
			args.Positional = append(args.Positional, v)

			continue
		}

		if args.Keyword == nil {
			args.Keyword = make(map[string]Value)
		}

		if _, dup := args.Keyword[name]; !dup {
			args.order = append(args.order, name)
		}

		args.Keyword[name] = v
	}

	return args, nil
}

func (e *Evaluator) evalParam(
	ctx context.Context,
	expr string,
	sc scope,
) (Value, error) {
	expr = strings.TrimSpace(expr)

	if v, ok := sc.locals[expr]; ok {
		return v, nil
	}

	return e.evaluate(ctx, expr, sc)
}
